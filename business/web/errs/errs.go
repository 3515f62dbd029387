// Package errs provides the error values handlers return to describe a
// failure the client is allowed to see.
package errs

import (
	"errors"
	"net/http"
)

// Response is the body sent to the client for a failed request.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is an error whose message is safe to return to the client along
// with the status code to respond with.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps err so the client receives its message with status.
func NewTrusted(err error, status int) error {
	return &Trusted{Err: err, Status: status}
}

// BadRequest marks err as a client mistake.
func BadRequest(err error) error {
	return NewTrusted(err, http.StatusBadRequest)
}

// NotFound marks err as a missing resource.
func NotFound(err error) error {
	return NewTrusted(err, http.StatusNotFound)
}

// Error implements the error interface.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// Unwrap returns the wrapped error so sentinel checks still match.
func (t *Trusted) Unwrap() error {
	return t.Err
}

// IsTrusted reports whether a Trusted error is in the chain.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted returns the Trusted error in the chain, or nil.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}
	return t
}
