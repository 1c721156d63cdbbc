// Package cdn implements the client side of the CDN file transfer protocol.
//
// Every request is a multipart form carrying the session identification
// fields and an action. Uploads stream the file contents as the form is
// sent.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/rpc"
	"golang.org/x/sync/errgroup"
)

const (
	actionUpload   = "upload"
	actionDownload = "download"

	// maxEnvelopeSize limits the size of JSON envelopes read from the
	// server.
	maxEnvelopeSize = 1024 * 1024
)

// ErrUnexpectedStatus is returned when the CDN replies with a non-2xx status
// and no envelope.
var ErrUnexpectedStatus = errors.New("unexpected CDN HTTP status")

// Config is the configuration of a CDN client.
type Config struct {
	URL        string
	HTTPClient *http.Client

	// Timeout is used when HTTPClient is nil. Zero means no timeout, as
	// transfers of large files may take arbitrarily long.
	Timeout time.Duration

	Log slog.Logger
}

// Client performs CDN transfers. It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	log        slog.Logger
}

// New creates a new CDN client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("empty CDN URL")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Client{url: cfg.URL, httpClient: httpClient, log: log}, nil
}

// URL returns the CDN endpoint of this client.
func (c *Client) URL() string {
	return c.url
}

func writeIdentification(mw *multipart.Writer, id rpc.SessionIdentification, action string) error {
	fields := [][2]string{
		{"client_public_hash", id.ClientPublicHash},
		{"session_id", id.SessionID},
		{"challenge_answer", id.ChallengeAnswer},
		{"action", action},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return nil
}

// Upload sends the contents of r as a document named name. The contents are
// streamed while the request is sent.
func (c *Client) Upload(ctx context.Context, id rpc.SessionIdentification,
	name string, r io.Reader) (*rpc.Document, error) {

	start := time.Now()
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := func() error {
			if err := writeIdentification(mw, id, actionUpload); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("document", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, r); err != nil {
				return fmt.Errorf("unable to read upload contents: %w", err)
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
		return err
	})

	// repErr is the error reported by the server. It takes precedence over
	// the write error caused by the server closing the request early.
	var doc *rpc.Document
	var repErr error
	g.Go(func() error {
		defer pr.Close()
		req, err := http.NewRequestWithContext(gctx, http.MethodPost, c.url, pr)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rep, err := c.httpClient.Do(req)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		defer rep.Body.Close()

		var env Response[rpc.Document]
		if repErr = decodeEnvelope(rep, &env); repErr != nil {
			return repErr
		}
		doc, repErr = env.Result()
		return repErr
	})

	err := g.Wait()
	if repErr != nil {
		err = repErr
	}
	if err != nil {
		c.log.Debugf("Upload of %q failed: %v", name, err)
		return nil, err
	}
	c.log.Debugf("Uploaded %q as document %s (%d bytes) in %s", name, doc.ID,
		doc.FileSize, time.Since(start).Truncate(time.Millisecond))
	return doc, nil
}

// UploadFile uploads the file at path, using its base name as the document
// name.
func (c *Client) UploadFile(ctx context.Context, id rpc.SessionIdentification,
	path string) (*rpc.Document, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Upload(ctx, id, filepath.Base(path), f)
}

// Download writes the contents of the given document to w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, id rpc.SessionIdentification,
	documentID string, w io.Writer) (int64, error) {

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := writeIdentification(mw, id, actionDownload); err != nil {
		return 0, err
	}
	if err := mw.WriteField("document", documentID); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rep, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer rep.Body.Close()

	// Failures are reported as a JSON envelope instead of the file.
	if !isSuccess(rep.StatusCode) || isJSON(rep) {
		data, err := io.ReadAll(io.LimitReader(rep.Body, maxEnvelopeSize))
		if err != nil {
			return 0, err
		}
		if env, ok := failureEnvelope(data); ok {
			return 0, env.err()
		}
		if !isSuccess(rep.StatusCode) {
			return 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, rep.StatusCode)
		}
		n, err := w.Write(data)
		return int64(n), err
	}

	n, err := io.Copy(w, rep.Body)
	if err != nil {
		return n, err
	}
	c.log.Debugf("Downloaded document %s (%d bytes)", documentID, n)
	return n, nil
}

// failureEnvelope returns the decoded envelope if data is a CDN envelope
// that reports a failure.
func failureEnvelope(data []byte) (*Response[json.RawMessage], bool) {
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Success == nil || *probe.Success {
		return nil, false
	}
	var env Response[json.RawMessage]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func isJSON(rep *http.Response) bool {
	mt, _, err := mime.ParseMediaType(rep.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeEnvelope decodes the reply envelope into env. Non-2xx replies that do
// not carry an envelope are returned as ErrUnexpectedStatus.
func decodeEnvelope[T any](rep *http.Response, env *Response[T]) error {
	data, err := io.ReadAll(io.LimitReader(rep.Body, maxEnvelopeSize))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, env); err != nil {
		if !isSuccess(rep.StatusCode) {
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, rep.StatusCode)
		}
		return fmt.Errorf("unable to decode CDN response: %w", err)
	}
	return nil
}
