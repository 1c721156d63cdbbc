package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/cdn"
	"github.com/socialvoid/svclient/rpc"
	"github.com/socialvoid/svclient/session"
)

// CDNMethods transfer files to and from the CDN using the identification of
// the current session.
type CDNMethods struct {
	sessions *SessionMethods
	help     *HelpMethods
	cfg      *Config
	log      slog.Logger

	mtx    sync.Mutex
	client *cdn.Client
}

func (cm *CDNMethods) newClient(url string) (*cdn.Client, error) {
	return cdn.New(cdn.Config{
		URL:        url,
		HTTPClient: cm.cfg.HTTPClient,
		Log:        cm.log,
	})
}

// cdnClient returns the CDN client, fetching the CDN endpoint from the server
// when it is not configured.
func (cm *CDNMethods) cdnClient(ctx context.Context) (*cdn.Client, error) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	if cm.client != nil {
		return cm.client, nil
	}

	url := cm.cfg.CDNURL
	if url == "" {
		info, err := cm.help.ServerInformation(ctx)
		if err != nil {
			return nil, err
		}
		if info.CDNServer == "" {
			return nil, errNoCDNServer
		}
		url = info.CDNServer
	}
	c, err := cm.newClient(url)
	if err != nil {
		return nil, err
	}
	cm.log.Debugf("Using CDN server %s", url)
	cm.client = c
	return c, nil
}

func (cm *CDNMethods) reset(ctx context.Context) error {
	info, err := cm.help.ServerInformation(ctx)
	if err != nil {
		return err
	}
	if info.CDNServer == "" {
		return errNoCDNServer
	}
	c, err := cm.newClient(info.CDNServer)
	if err != nil {
		return err
	}
	cm.mtx.Lock()
	cm.client = c
	cm.mtx.Unlock()
	cm.log.Infof("CDN server reset to %s", info.CDNServer)
	return nil
}

// URL returns the CDN endpoint in use, fetching it from the server if needed.
func (cm *CDNMethods) URL(ctx context.Context) (string, error) {
	c, err := cm.cdnClient(ctx)
	if err != nil {
		return "", err
	}
	return c.URL(), nil
}

// withIdentification calls f with a fresh identification of the current
// session, recovering the session once if the CDN reports it invalid.
func (cm *CDNMethods) withIdentification(ctx context.Context,
	f func(c *cdn.Client, id rpc.SessionIdentification) error) error {

	c, err := cm.cdnClient(ctx)
	if err != nil {
		return err
	}
	return cm.sessions.withCurrent(ctx, func(h *session.Holder) error {
		id, err := h.Identification()
		if err != nil {
			return err
		}
		return f(c, id)
	})
}

// Upload uploads the contents of r as a document named name. The upload is
// only retried on a replacement session when r is an io.Seeker.
func (cm *CDNMethods) Upload(ctx context.Context, name string, r io.Reader) (*rpc.Document, error) {
	var doc *rpc.Document
	var prevErr error
	err := cm.withIdentification(ctx, func(c *cdn.Client, id rpc.SessionIdentification) error {
		if prevErr != nil {
			seeker, ok := r.(io.Seeker)
			if !ok {
				return fmt.Errorf("%w: %w", errNotRetriable, prevErr)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		var err error
		doc, err = c.Upload(ctx, id, name, r)
		prevErr = err
		return err
	})
	return doc, err
}

// UploadFile uploads the file at path.
func (cm *CDNMethods) UploadFile(ctx context.Context, path string) (*rpc.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return cm.Upload(ctx, filepath.Base(path), f)
}

// Download writes the contents of the document to w.
func (cm *CDNMethods) Download(ctx context.Context, documentID string, w io.Writer) (int64, error) {
	var n int64
	err := cm.withIdentification(ctx, func(c *cdn.Client, id rpc.SessionIdentification) error {
		var err error
		n, err = c.Download(ctx, id, documentID, w)
		return err
	})
	return n, err
}
