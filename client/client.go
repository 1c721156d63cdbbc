// Package client provides a high level client to a Socialvoid server. It
// owns the client identity and the list of sessions persisted in a root
// directory and exposes the server methods through facades that share one
// transport and one session registry.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/identity"
	"github.com/socialvoid/svclient/jsonrpc"
	"github.com/socialvoid/svclient/lockfile"
	"github.com/socialvoid/svclient/rpc"
	"github.com/socialvoid/svclient/session"
)

// Client is a Socialvoid client. The session methods act on the current
// session of the registry.
type Client struct {
	*SessionMethods

	cfg  Config
	log  slog.Logger
	lock *lockfile.LockFile
	id   *identity.ClientIdentity
	rpc  *rpc.Client
	help *HelpMethods
	cdn  *CDNMethods

	closeMtx sync.Mutex
	closed   bool
}

// New opens the client root, loading or generating the client identity and
// loading any saved sessions. It blocks while the root is locked by another
// client, until ctx is done.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.logger("CLNT")

	lock, err := lockfile.Create(ctx, cfg.lockPath())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			owner, _ := lockfile.ReadOwner(cfg.lockPath())
			return nil, RootInUseError{Root: cfg.Root, Owner: owner, Err: err}
		}
		return nil, fmt.Errorf("unable to lock client root: %w", err)
	}
	c, err := newClient(cfg, lock, log)
	if err != nil {
		lock.Close()
		return nil, err
	}
	return c, nil
}

func newClient(cfg Config, lock *lockfile.LockFile, log slog.Logger) (*Client, error) {
	name := cfg.ClientName
	if name == "" {
		name = identity.DefaultName
	}
	id, generated, err := identity.LoadOrGenerate(cfg.identityPath(), name, log)
	if err != nil {
		return nil, fmt.Errorf("unable to load client identity: %w", err)
	}
	if generated {
		log.Infof("Generated new client identity %s", id)
	} else {
		log.Debugf("Loaded client identity %s", id)
	}

	var metrics *jsonrpc.Metrics
	if cfg.MetricsRegisterer != nil {
		metrics = jsonrpc.NewMetrics(cfg.MetricsRegisterer)
	}
	jc, err := jsonrpc.New(jsonrpc.Config{
		URL:        cfg.RPCURL,
		HTTPClient: cfg.HTTPClient,
		Timeout:    cfg.RequestTimeout,
		Log:        cfg.logger("RPC"),
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}
	rc := rpc.NewClient(jc)

	reg := session.NewRegistry(id, cfg.logger("SESS"))
	err = reg.LoadFile(cfg.sessionsPath())
	switch {
	case errors.Is(err, session.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		log.Infof("Loaded %d saved sessions", reg.Len())
	}

	help := &HelpMethods{c: rc}
	c := &Client{
		SessionMethods: &SessionMethods{c: rc, reg: reg, log: log},
		cfg:            cfg,
		log:            log,
		lock:           lock,
		id:             id,
		rpc:            rc,
		help:           help,
	}
	c.cdn = &CDNMethods{
		sessions: c.SessionMethods,
		help:     help,
		cfg:      &c.cfg,
		log:      cfg.logger("CDN"),
	}
	return c, nil
}

// Identity returns the client identity.
func (c *Client) Identity() *identity.ClientIdentity {
	return c.id
}

// Registry returns the session registry of the client.
func (c *Client) Registry() *session.Registry {
	return c.reg
}

// Help returns the help methods.
func (c *Client) Help() *HelpMethods {
	return c.help
}

// CDN returns the CDN methods.
func (c *Client) CDN() *CDNMethods {
	return c.cdn
}

// ResetCDNURL discards the CDN endpoint and fetches the current one from the
// server information.
func (c *Client) ResetCDNURL(ctx context.Context) error {
	return c.cdn.reset(ctx)
}

// SaveSessions writes all sessions to the client root.
func (c *Client) SaveSessions() error {
	c.closeMtx.Lock()
	defer c.closeMtx.Unlock()
	if c.closed {
		return errClientClosed
	}
	return c.reg.SaveFile(c.cfg.sessionsPath())
}

// Logout logs the user out of the current session and deletes it from the
// registry. The session is deleted even if it was already invalid on the
// server.
func (c *Client) Logout(ctx context.Context) error {
	h, err := c.reg.Current()
	if err != nil {
		return err
	}
	err = h.Logout(ctx, c.rpc)
	if err != nil && !rpc.IsSessionInvalid(err) {
		return err
	}
	c.reg.Remove(h)
	c.log.Infof("Logged out and deleted session %s", h.ID())
	return nil
}

// Close saves the sessions and releases the client root.
func (c *Client) Close() error {
	c.closeMtx.Lock()
	defer c.closeMtx.Unlock()
	if c.closed {
		return errClientClosed
	}
	c.closed = true
	err := c.reg.SaveFile(c.cfg.sessionsPath())
	if lerr := c.lock.Close(); err == nil {
		err = lerr
	}
	return err
}
