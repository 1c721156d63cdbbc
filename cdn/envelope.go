package cdn

import (
	"errors"

	"github.com/socialvoid/svclient/rpc"
)

// ErrMissingResults is returned when the CDN reports success but the
// response does not carry any results.
var ErrMissingResults = errors.New("CDN reported success without results")

// Response is the envelope of every CDN reply.
type Response[T any] struct {
	Success   bool    `json:"success"`
	ErrorCode *int    `json:"error_code,omitempty"`
	Message   *string `json:"message,omitempty"`
	Results   *T      `json:"results,omitempty"`
}

// Result returns the results of a successful response. Failed responses are
// returned as *rpc.Error. Codes that do not fall in a known range are
// classified as rpc.KindCDN.
func (r *Response[T]) Result() (*T, error) {
	if !r.Success {
		return nil, r.err()
	}
	if r.Results == nil {
		return nil, ErrMissingResults
	}
	return r.Results, nil
}

func (r *Response[T]) err() error {
	var code int
	if r.ErrorCode != nil {
		code = *r.ErrorCode
	}
	var msg string
	if r.Message != nil {
		msg = *r.Message
	}
	err := rpc.NewError(code, msg)
	if err.Kind == rpc.KindUnknown {
		err.Kind = rpc.KindCDN
	}
	return err
}
