// Package cmd contains the operator client commands.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	keyName string
	keyPath string
	url     string
)

const (
	keyExtension = ".key"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "private.key", "Name of the key file.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zblock/keys/", "Path to the directory with key files.")
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:9333", "Url of the node.")
}

var rootCmd = &cobra.Command{
	Use:          "blacksilk",
	Short:        "BlackSilk node client",
	SilenceUsage: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getKeyFilePath() string {
	name := keyName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(keyPath, name)
}
