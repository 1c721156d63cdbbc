package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/identity"
	"github.com/socialvoid/svclient/internal/jsonfile"
	"github.com/socialvoid/svclient/rpc"
	"golang.org/x/sync/singleflight"
)

// Registry is an ordered list of sessions with an optional current session.
//
// The registry lock only protects the list and the current index. Individual
// sessions have their own lock, so different sessions may be used
// concurrently. The registry lock is never acquired while holding a session
// lock.
type Registry struct {
	id  *identity.ClientIdentity
	log slog.Logger

	recoverGroup singleflight.Group

	mtx     sync.Mutex
	holders []*Holder
	current int // -1 when there is no current session
}

// NewRegistry creates an empty registry whose new sessions are created with
// the given client identity.
func NewRegistry(id *identity.ClientIdentity, log slog.Logger) *Registry {
	if log == nil {
		log = slog.Disabled
	}
	return &Registry{
		id:      id,
		log:     log,
		current: -1,
	}
}

// Identity returns the client identity used for new sessions.
func (r *Registry) Identity() *identity.ClientIdentity {
	return r.id
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.holders)
}

// NewSession creates a session on the server and appends it to the registry,
// returning its index. The new session becomes the current one if there was
// no current session.
func (r *Registry) NewSession(ctx context.Context, c rpc.Caller) (int, error) {
	h := NewHolder(r.id, r.log)
	if err := h.Create(ctx, c); err != nil {
		return -1, err
	}

	r.mtx.Lock()
	r.holders = append(r.holders, h)
	idx := len(r.holders) - 1
	if r.current < 0 {
		r.current = idx
	}
	r.mtx.Unlock()

	r.log.Debugf("Added session %s at index %d", h.ID(), idx)
	return idx, nil
}

// removeLocked removes the session at idx, adjusting the current index.
//
// When the current session is removed and it was the last one in the list,
// the previous session becomes current (or none, if it was the only one).
// Otherwise the current index is kept and now refers to the session that
// took its slot. Removing a session before the current one shifts the current
// index so it keeps referring to the same session.
func (r *Registry) removeLocked(idx int) *Holder {
	h := r.holders[idx]
	last := len(r.holders) - 1
	switch {
	case idx == r.current && idx == last:
		r.current = idx - 1
	case idx < r.current:
		r.current--
	}
	copy(r.holders[idx:], r.holders[idx+1:])
	r.holders[last] = nil
	r.holders = r.holders[:last]
	return h
}

func (r *Registry) indexLocked(h *Holder) int {
	for i := range r.holders {
		if r.holders[i] == h {
			return i
		}
	}
	return -1
}

// DeleteCurrent removes the current session from the registry and returns
// it. It does not contact the server.
func (r *Registry) DeleteCurrent() (*Holder, error) {
	r.mtx.Lock()
	if r.current < 0 {
		r.mtx.Unlock()
		return nil, ErrNoSessionsExist
	}
	h := r.removeLocked(r.current)
	current := r.current
	r.mtx.Unlock()

	// Session locks may be held across network calls, so the holder is
	// only accessed once the registry is unlocked.
	r.log.Debugf("Deleted session %s (current index now %d)", h.ID(), current)
	return h, nil
}

// Remove removes h from the registry. It returns false if h was not in the
// registry.
func (r *Registry) Remove(h *Holder) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	idx := r.indexLocked(h)
	if idx < 0 {
		return false
	}
	r.removeLocked(idx)
	return true
}

// SetCurrent selects the session at idx as the current one.
func (r *Registry) SetCurrent(idx int) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if idx < 0 || idx >= len(r.holders) {
		return IndexOutOfBoundsError{Index: idx, Count: len(r.holders)}
	}
	r.current = idx
	return nil
}

// CurrentIndex returns the index of the current session and false if there
// is no current session.
func (r *Registry) CurrentIndex() (int, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.current, r.current >= 0
}

// Current returns the current session.
func (r *Registry) Current() (*Holder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.current < 0 {
		return nil, ErrNoSessionsExist
	}
	return r.holders[r.current], nil
}

// Session returns the session at idx.
func (r *Registry) Session(idx int) (*Holder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if idx < 0 || idx >= len(r.holders) {
		return nil, IndexOutOfBoundsError{Index: idx, Count: len(r.holders)}
	}
	return r.holders[idx], nil
}

// Sessions returns a copy of the list of sessions.
func (r *Registry) Sessions() []*Holder {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	res := make([]*Holder, len(r.holders))
	copy(res, r.holders)
	return res
}

// Save encodes all sessions of the registry.
func (r *Registry) Save() ([]byte, error) {
	return json.Marshal(r.Sessions())
}

// Load decodes sessions encoded by Save and appends them to the registry. If
// the registry was empty, the first loaded session becomes the current one.
// Otherwise the current session is not changed.
func (r *Registry) Load(b []byte) error {
	var holders []*Holder
	if err := json.Unmarshal(b, &holders); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, h := range holders {
		if h == nil {
			return fmt.Errorf("%w: null session at index %d", ErrCorrupt, i)
		}
		if h.id.PublicHash == r.id.PublicHash && h.id.PrivateHash == r.id.PrivateHash {
			h.id = r.id
		}
		h.setLogger(r.log)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if len(r.holders) == 0 && len(holders) > 0 {
		r.current = 0
	}
	r.holders = append(r.holders, holders...)
	r.log.Debugf("Loaded %d sessions", len(holders))
	return nil
}

// SaveFile atomically writes all sessions to fname.
func (r *Registry) SaveFile(fname string) error {
	b, err := r.Save()
	if err != nil {
		return err
	}
	return jsonfile.WriteBytes(fname, b, r.log)
}

// LoadFile loads the sessions stored in fname. It returns ErrNotFound if the
// file does not exist.
func (r *Registry) LoadFile(fname string) error {
	b, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := r.Load(b); err != nil {
		return fmt.Errorf("unable to load sessions from %s: %w", fname, err)
	}
	return nil
}
