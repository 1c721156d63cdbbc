package rpc

import (
	"context"
	"errors"

	"github.com/socialvoid/svclient/jsonrpc"
)

// Caller performs one RPC call, decoding the result into result.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) error
}

// Client adapts a JSON-RPC client so that server errors are returned as
// classified *Error values.
type Client struct {
	c *jsonrpc.Client
}

var _ Caller = (*Client)(nil)

// NewClient wraps c.
func NewClient(c *jsonrpc.Client) *Client {
	return &Client{c: c}
}

// Call invokes method. Error objects returned by the server are converted to
// *Error. Transport and decoding errors are returned unchanged.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	err := c.c.Call(ctx, method, params, result)
	var jerr *jsonrpc.Error
	if errors.As(err, &jerr) {
		return NewError(jerr.Code, jerr.Message)
	}
	return err
}
