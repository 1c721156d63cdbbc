package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoResult is returned when a response carries neither a result
	// nor an error.
	ErrNoResult = errors.New("response has neither result nor error")

	// ErrMalformedResponse is returned when the server reply is not a
	// valid JSON-RPC response to the request that was sent.
	ErrMalformedResponse = errors.New("malformed JSON-RPC response")
)

// Error is a JSON-RPC error object returned by the server.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *Error) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("JSON-RPC error %d", err.Code)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", err.Code, err.Message)
}

// RequestError is returned when the HTTP request itself failed: the server
// could not be reached or replied with a non-2xx status.
type RequestError struct {
	Method     string
	StatusCode int
	Err        error
}

func (err *RequestError) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("request %s failed with HTTP status %d: %v",
			err.Method, err.StatusCode, err.Err)
	}
	return fmt.Sprintf("request %s failed: %v", err.Method, err.Err)
}

func (err *RequestError) Unwrap() error {
	return err.Err
}
