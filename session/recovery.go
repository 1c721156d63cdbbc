package session

import (
	"context"
	"fmt"

	"github.com/socialvoid/svclient/rpc"
)

// Recover replaces the invalid session old with a newly created one and
// returns the replacement. The replacement takes the slot of old in the
// registry, so it is the current session if old was.
//
// Concurrent calls for the same session share a single replacement, as do
// calls made after old has already been replaced.
func (r *Registry) Recover(ctx context.Context, c rpc.Caller, old *Holder) (*Holder, error) {
	r.mtx.Lock()
	repl := old.replacement
	r.mtx.Unlock()
	if repl != nil {
		return repl, nil
	}

	key := fmt.Sprintf("%p", old)
	v, err, shared := r.recoverGroup.Do(key, func() (interface{}, error) {
		return r.replace(ctx, c, old)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.Tracef("Shared replacement of session %s", old.ID())
	}
	return v.(*Holder), nil
}

func (r *Registry) replace(ctx context.Context, c rpc.Caller, old *Holder) (*Holder, error) {
	r.mtx.Lock()
	if old.replacement != nil {
		r.mtx.Unlock()
		return old.replacement, nil
	}
	r.mtx.Unlock()

	oldID := old.ID()
	h := NewHolder(r.id, r.log)
	if err := h.Create(ctx, c); err != nil {
		// Drop the stale session even without a replacement.
		if r.Remove(old) {
			r.log.Warnf("Removed invalid session %s without replacement: %v",
				oldID, err)
		}
		return nil, fmt.Errorf("unable to replace session %s: %w", oldID, err)
	}

	r.mtx.Lock()
	idx := r.indexLocked(old)
	if idx >= 0 {
		r.holders[idx] = h
	} else {
		r.holders = append(r.holders, h)
		idx = len(r.holders) - 1
		if r.current < 0 {
			r.current = idx
		}
	}
	old.replacement = h
	r.mtx.Unlock()

	r.log.Infof("Replaced invalid session %s with %s at index %d", oldID,
		h.ID(), idx)
	return h, nil
}

// WithRecovery calls f with h. If f fails because the server no longer
// accepts the session (expired or not found), the session is replaced
// through Recover and f is called once more with the replacement. Any other
// error, and the error of the second attempt, is returned unchanged.
func (r *Registry) WithRecovery(ctx context.Context, c rpc.Caller, h *Holder,
	f func(h *Holder) error) error {

	err := f(h)
	if !rpc.IsSessionInvalid(err) {
		return err
	}
	r.log.Debugf("Session %s is no longer valid: %v", h.ID(), err)

	repl, rerr := r.Recover(ctx, c, h)
	if rerr != nil {
		return fmt.Errorf("%w (recovery failed: %v)", err, rerr)
	}
	return f(repl)
}
