// Package jsonrpc implements a JSON-RPC 2.0 client over HTTP POST requests.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout is the request timeout used when the config does not
	// specify an http client nor a timeout.
	DefaultTimeout = time.Minute

	// maxResponseSize limits how much of a response body is read.
	maxResponseSize = 16 * 1024 * 1024
)

// Config is the configuration of a Client.
type Config struct {
	// URL is the endpoint requests are POSTed to.
	URL string

	// HTTPClient is used to perform requests. When nil, a new client with
	// Timeout is used.
	HTTPClient *http.Client

	// Timeout is the per request timeout of the default HTTP client.
	Timeout time.Duration

	Log     slog.Logger
	Metrics *Metrics
}

// Client sends JSON-RPC requests. It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	log        slog.Logger
	metrics    *Metrics
	newID      func() string
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("empty JSON-RPC URL")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		log:        log,
		metrics:    cfg.Metrics,
		newID:      uuid.NewString,
	}, nil
}

// URL returns the endpoint of this client.
func (c *Client) URL() string {
	return c.url
}

// post sends req and returns the raw reply body along with its HTTP status.
func (c *Client) post(ctx context.Context, req *request) ([]byte, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to encode params of %s: %w", req.Method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url,
		bytes.NewReader(body))
	if err != nil {
		return nil, 0, &RequestError{Method: req.Method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	rep, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &RequestError{Method: req.Method, Err: err}
	}
	defer rep.Body.Close()

	data, err := io.ReadAll(io.LimitReader(rep.Body, maxResponseSize))
	if err != nil {
		return nil, rep.StatusCode, &RequestError{Method: req.Method, Err: err}
	}
	return data, rep.StatusCode, nil
}

func statusOK(status int) bool {
	return status >= 200 && status <= 299
}

func statusError(method string, status int) error {
	return &RequestError{
		Method:     method,
		StatusCode: status,
		Err:        errors.New(http.StatusText(status)),
	}
}

// Call invokes method with the given params and decodes the result into
// result (which may be nil when the result is not needed).
//
// A server error is returned as *Error. A reply carrying neither result nor
// error returns ErrNoResult.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	start := time.Now()
	req := &request{
		Version: version,
		ID:      c.newID(),
		Method:  method,
		Params:  params,
	}
	c.log.Debugf("-> %s (id %s)", method, req.ID)

	err := c.call(ctx, req, result)
	code := -1
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		code = rpcErr.Code
	}
	c.metrics.observe(method, start, err == nil, code)
	if err != nil {
		c.log.Debugf("<- %s (id %s) failed after %s: %v", method, req.ID,
			time.Since(start).Truncate(time.Millisecond), err)
	} else {
		c.log.Tracef("<- %s (id %s) in %s", method, req.ID,
			time.Since(start).Truncate(time.Millisecond))
	}
	return err
}

func (c *Client) call(ctx context.Context, req *request, result interface{}) error {
	data, status, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	// Server errors keep their code regardless of the HTTP status. Errors
	// for requests the server could not parse carry a null id.
	var rep response
	if err := json.Unmarshal(data, &rep); err != nil {
		if !statusOK(status) {
			return statusError(req.Method, status)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if rep.Error != nil && (rep.hasNullID() || rep.matchesID(req.ID)) {
		return rep.Error
	}
	if !statusOK(status) {
		return statusError(req.Method, status)
	}
	if rep.Version != "" && rep.Version != version {
		return fmt.Errorf("%w: unexpected version %q", ErrMalformedResponse, rep.Version)
	}
	if !rep.matchesID(req.ID) {
		return fmt.Errorf("%w: response id %s does not match request id %s",
			ErrMalformedResponse, rep.ID, req.ID)
	}

	switch {
	case rep.Error != nil:
		return rep.Error
	case !rep.hasResult():
		return fmt.Errorf("%s: %w", req.Method, ErrNoResult)
	case result == nil:
		return nil
	}
	if err := json.Unmarshal(rep.Result, result); err != nil {
		return fmt.Errorf("%w: unable to decode result of %s: %v",
			ErrMalformedResponse, req.Method, err)
	}
	return nil
}

// Notify sends a notification: a request without an id, for which the server
// sends no response.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	c.log.Debugf("-> %s (notification)", method)
	_, status, err := c.post(ctx, &request{Version: version, Method: method, Params: params})
	if err != nil {
		return err
	}
	if !statusOK(status) {
		return statusError(method, status)
	}
	return nil
}
