package client

import (
	"context"
	"sync"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/rpc"
	"github.com/socialvoid/svclient/session"
)

// SessionMethods are the session related methods. They act on the current
// session and transparently replace it (retrying once) when the server
// reports it expired or not found.
type SessionMethods struct {
	c   rpc.Caller
	reg *session.Registry
	log slog.Logger

	// tos is the last accepted terms of service document. It is accepted
	// again on a replacement session when registration needs recovery.
	tosMtx sync.Mutex
	tos    *rpc.HelpDocument
}

// withCurrent calls f with the current session, recovering it once if it is
// no longer valid on the server.
func (sm *SessionMethods) withCurrent(ctx context.Context, f func(h *session.Holder) error) error {
	h, err := sm.reg.Current()
	if err != nil {
		return err
	}
	return sm.reg.WithRecovery(ctx, sm.c, h, f)
}

// EnsureSession makes sure there is a current session valid on the server
// and returns it. A session is created if none exists, and the current one is
// replaced if the server no longer accepts it.
func (sm *SessionMethods) EnsureSession(ctx context.Context) (*session.Holder, error) {
	if _, ok := sm.reg.CurrentIndex(); !ok {
		if _, err := sm.reg.NewSession(ctx, sm.c); err != nil {
			return nil, err
		}
	}
	var res *session.Holder
	err := sm.withCurrent(ctx, func(h *session.Holder) error {
		if h.State() == session.StateUnestablished {
			if err := h.Create(ctx, sm.c); err != nil {
				return err
			}
		}
		_, err := h.Get(ctx, sm.c)
		res = h
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NewSession creates a new session and returns its index. It becomes the
// current session only if there was no current session.
func (sm *SessionMethods) NewSession(ctx context.Context) (int, error) {
	return sm.reg.NewSession(ctx, sm.c)
}

// DeleteSession removes the current session from the registry without
// contacting the server.
func (sm *SessionMethods) DeleteSession() error {
	_, err := sm.reg.DeleteCurrent()
	return err
}

// SetCurrentSession selects the session at idx as the current one.
func (sm *SessionMethods) SetCurrentSession(idx int) error {
	return sm.reg.SetCurrent(idx)
}

// CurrentSessionIndex returns the index of the current session and false if
// there is none.
func (sm *SessionMethods) CurrentSessionIndex() (int, bool) {
	return sm.reg.CurrentIndex()
}

// SessionCount returns the number of sessions.
func (sm *SessionMethods) SessionCount() int {
	return sm.reg.Len()
}

// GetSession returns the server view of the current session.
func (sm *SessionMethods) GetSession(ctx context.Context) (*rpc.Session, error) {
	var res *rpc.Session
	err := sm.withCurrent(ctx, func(h *session.Holder) error {
		var err error
		res, err = h.Get(ctx, sm.c)
		return err
	})
	return res, err
}

// Authenticate logs the user in within the current session.
func (sm *SessionMethods) Authenticate(ctx context.Context, username, password string, otp *string) error {
	return sm.withCurrent(ctx, func(h *session.Holder) error {
		return h.Authenticate(ctx, sm.c, username, password, otp)
	})
}

// IsAuthenticated returns whether a user is logged in within the current
// session.
func (sm *SessionMethods) IsAuthenticated() (bool, error) {
	h, err := sm.reg.Current()
	if err != nil {
		return false, err
	}
	return h.IsAuthenticated(), nil
}

// AcceptTermsOfService records the acceptance of the terms of service on the
// current session. It must be called before Register.
func (sm *SessionMethods) AcceptTermsOfService(doc *rpc.HelpDocument) error {
	h, err := sm.reg.Current()
	if err != nil {
		return err
	}
	h.AcceptTermsOfService(doc)
	sm.tosMtx.Lock()
	sm.tos = doc
	sm.tosMtx.Unlock()
	return nil
}

// Register creates a new account using the current session.
func (sm *SessionMethods) Register(ctx context.Context, req session.RegisterRequest) (*rpc.Peer, error) {
	first, err := sm.reg.Current()
	if err != nil {
		return nil, err
	}
	var peer *rpc.Peer
	err = sm.reg.WithRecovery(ctx, sm.c, first, func(h *session.Holder) error {
		if h != first {
			sm.tosMtx.Lock()
			tos := sm.tos
			sm.tosMtx.Unlock()
			if tos != nil {
				h.AcceptTermsOfService(tos)
			}
		}
		var err error
		peer, err = h.Register(ctx, sm.c, req)
		return err
	})
	return peer, err
}
