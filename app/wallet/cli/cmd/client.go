package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var client = http.Client{Timeout: 30 * time.Second}

// get calls the node and writes the indented response body to w.
func get(w io.Writer, path string) error {
	resp, err := client.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return printBody(w, resp)
}

// post sends the body to the node and writes the indented response to w.
func post(w io.Writer, path string, body []byte) error {
	resp, err := client.Post(url+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return printBody(w, resp)
}

func printBody(w io.Writer, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		out.Reset()
		out.Write(data)
	}
	fmt.Fprintln(w, out.String())

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("node returned %s", resp.Status)
	}

	return nil
}
