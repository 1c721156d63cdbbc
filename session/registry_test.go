package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/socialvoid/svclient/internal/assert"
	"github.com/socialvoid/svclient/internal/testutils"
	"github.com/socialvoid/svclient/rpc"
)

func assertCurrent(t *testing.T, r *Registry, want int) {
	t.Helper()
	idx, ok := r.CurrentIndex()
	if want < 0 {
		if ok {
			t.Fatalf("unexpected current index %d", idx)
		}
		_, err := r.Current()
		assert.ErrorIs(t, err, ErrNoSessionsExist)
		return
	}
	if !ok {
		t.Fatalf("no current index, want %d", want)
	}
	assert.DeepEqual(t, idx, want)
	h, err := r.Current()
	assert.NilErr(t, err)
	h2, err := r.Session(want)
	assert.NilErr(t, err)
	if h != h2 {
		t.Fatalf("current session is not the session at index %d", want)
	}
}

// TestNewSession asserts new sessions are appended and the first one becomes
// current.
func TestNewSession(t *testing.T) {
	fc := newFakeCaller()
	r := newTestRegistry(t)
	assertCurrent(t, r, -1)

	for i := 0; i < 3; i++ {
		idx, err := r.NewSession(context.Background(), fc)
		assert.NilErr(t, err)
		assert.DeepEqual(t, idx, i)
		assertCurrent(t, r, 0)
	}
	assert.DeepEqual(t, r.Len(), 3)
	for i, h := range r.Sessions() {
		assert.DeepEqual(t, h.State(), StateEstablished)
		if h.Identity() != r.Identity() {
			t.Fatalf("session %d does not share the registry identity", i)
		}
	}
}

func TestNewSessionError(t *testing.T) {
	fc := newFakeCaller()
	fc.handle(rpc.MethodSessionCreate, func(interface{}) (interface{}, error) {
		return nil, rpc.NewError(int(rpc.ErrInvalidClientPublicHash), "")
	})
	r := newTestRegistry(t)
	_, err := r.NewSession(context.Background(), fc)
	assert.ErrorIs(t, err, rpc.ErrInvalidClientPublicHash)
	assert.DeepEqual(t, r.Len(), 0)
	assertCurrent(t, r, -1)
}

// TestDeleteCurrentRebalancing asserts the current index after deleting the
// current session.
func TestDeleteCurrentRebalancing(t *testing.T) {
	tests := []struct {
		name        string
		sessions    int
		current     int
		wantCurrent int
		wantShifted bool
	}{{
		name:        "last of three",
		sessions:    3,
		current:     2,
		wantCurrent: 1,
	}, {
		name:        "only session",
		sessions:    1,
		current:     0,
		wantCurrent: -1,
	}, {
		name:        "middle of three",
		sessions:    3,
		current:     1,
		wantCurrent: 1,
		wantShifted: true,
	}, {
		name:        "first of three",
		sessions:    3,
		current:     0,
		wantCurrent: 0,
		wantShifted: true,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			fc := newFakeCaller()
			r := newRegistryWithSessions(t, fc, tc.sessions)
			assert.NilErr(t, r.SetCurrent(tc.current))
			before := r.Sessions()

			h, err := r.DeleteCurrent()
			assert.NilErr(t, err)
			if h != before[tc.current] {
				t.Fatalf("deleted the wrong session")
			}
			assert.DeepEqual(t, r.Len(), tc.sessions-1)
			assertCurrent(t, r, tc.wantCurrent)

			if tc.wantShifted {
				cur, _ := r.Current()
				if cur != before[tc.current+1] {
					t.Fatalf("current does not refer to the next session")
				}
			}
		})
	}
}

// TestDeleteCurrentWhileSessionBusy asserts that deleting a session that is
// in the middle of a remote call does not lock the registry for the other
// sessions.
func TestDeleteCurrentWhileSessionBusy(t *testing.T) {
	fc := newFakeCaller()
	r := newRegistryWithSessions(t, fc, 2)
	busy, err := r.Session(0)
	assert.NilErr(t, err)
	other, err := r.Session(1)
	assert.NilErr(t, err)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fc.handle(rpc.MethodSessionAuthenticateUser, func(interface{}) (interface{}, error) {
		started <- struct{}{}
		<-release
		return true, nil
	})
	authErr := make(chan error, 1)
	go func() {
		authErr <- busy.Authenticate(context.Background(), fc, "alice", "pass", nil)
	}()
	assert.ChanWritten(t, started)

	deleted := make(chan *Holder, 1)
	go func() {
		h, err := r.DeleteCurrent()
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		deleted <- h
	}()

	func() {
		defer func() {
			if t.Failed() {
				close(release)
			}
		}()
		assert.DoesNotBlock(t, func() {
			for r.Len() != 1 {
				time.Sleep(time.Millisecond)
			}
			if h, err := r.Session(0); err != nil || h != other {
				t.Errorf("unexpected session at index 0 (err %v)", err)
			}
			if h, err := r.Current(); err != nil || h != other {
				t.Errorf("unexpected current session (err %v)", err)
			}
		})
	}()

	close(release)
	assert.NilErr(t, assert.ChanWritten(t, authErr))
	if h := assert.ChanWritten(t, deleted); h != busy {
		t.Fatalf("deleted the wrong session")
	}
}

func TestDeleteCurrentNoSessions(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.DeleteCurrent()
	assert.ErrorIs(t, err, ErrNoSessionsExist)

	// Deleting every session leaves the registry without a current one.
	fc := newFakeCaller()
	r = newRegistryWithSessions(t, fc, 2)
	for i := 0; i < 2; i++ {
		_, err := r.DeleteCurrent()
		assert.NilErr(t, err)
	}
	_, err = r.DeleteCurrent()
	assert.ErrorIs(t, err, ErrNoSessionsExist)
}

func TestSetCurrent(t *testing.T) {
	fc := newFakeCaller()
	r := newRegistryWithSessions(t, fc, 3)

	assert.NilErr(t, r.SetCurrent(2))
	assertCurrent(t, r, 2)

	for _, idx := range []int{3, 10, -1} {
		err := r.SetCurrent(idx)
		assert.ErrorIs(t, err, IndexOutOfBoundsError{})
		oob := assert.ErrorAs[IndexOutOfBoundsError](t, err)
		assert.DeepEqual(t, oob.Count, 3)
		assert.DeepEqual(t, oob.Index, idx)
		assertCurrent(t, r, 2)
	}

	_, err := r.Session(3)
	assert.ErrorIs(t, err, IndexOutOfBoundsError{})

	empty := newTestRegistry(t)
	oob := assert.ErrorAs[IndexOutOfBoundsError](t, empty.SetCurrent(0))
	assert.DeepEqual(t, oob.Count, 0)
}

// TestRemove asserts removing sessions by identity keeps the current index
// referring to the same session.
func TestRemove(t *testing.T) {
	fc := newFakeCaller()
	r := newRegistryWithSessions(t, fc, 3)
	assert.NilErr(t, r.SetCurrent(2))
	before := r.Sessions()

	assert.BoolIs(t, r.Remove(before[0]), true)
	assertCurrent(t, r, 1)
	cur, _ := r.Current()
	if cur != before[2] {
		t.Fatalf("current changed after removing another session")
	}

	assert.BoolIs(t, r.Remove(before[0]), false)

	// Removing the current and last session follows the delete rule.
	assert.BoolIs(t, r.Remove(before[2]), true)
	assertCurrent(t, r, 0)
	assert.BoolIs(t, r.Remove(before[1]), true)
	assertCurrent(t, r, -1)
}

func TestSaveLoad(t *testing.T) {
	fc := newFakeCaller()
	fc.handle(rpc.MethodSessionAuthenticateUser, func(interface{}) (interface{}, error) {
		return true, nil
	})
	r := newRegistryWithSessions(t, fc, 2)
	h1, _ := r.Session(1)
	assert.NilErr(t, h1.Authenticate(context.Background(), fc, "u", "p", nil))
	assert.NilErr(t, r.SetCurrent(1))

	b, err := r.Save()
	assert.NilErr(t, err)

	// Loading into an empty registry selects the first session.
	r2 := NewRegistry(r.Identity(), testutils.TestLoggerSys(t, "SESS"))
	assert.NilErr(t, r2.Load(b))
	assert.DeepEqual(t, r2.Len(), 2)
	assertCurrent(t, r2, 0)
	for i, h := range r2.Sessions() {
		orig, _ := r.Session(i)
		assert.DeepEqual(t, h.ID(), orig.ID())
		assert.DeepEqual(t, h.State(), orig.State())
		if h.Identity() != r2.Identity() {
			t.Fatalf("loaded session %d does not share the registry identity", i)
		}
		sid, err := h.Identification()
		assert.NilErr(t, err)
		assert.DeepEqual(t, sid.SessionID, orig.ID())
	}

	// Loading into a registry with sessions appends and keeps current.
	assert.NilErr(t, r.Load(b))
	assert.DeepEqual(t, r.Len(), 4)
	assertCurrent(t, r, 1)

	// Loading nothing into an empty registry leaves no current session.
	r3 := newTestRegistry(t)
	assert.NilErr(t, r3.Load([]byte("[]")))
	assertCurrent(t, r3, -1)
}

// TestLoadForeignIdentity asserts sessions created by another identity keep
// their own identity.
func TestLoadForeignIdentity(t *testing.T) {
	fc := newFakeCaller()
	r := newRegistryWithSessions(t, fc, 1)
	b, err := r.Save()
	assert.NilErr(t, err)

	other := newTestRegistry(t)
	assert.NilErr(t, other.Load(b))
	h, err := other.Current()
	assert.NilErr(t, err)
	assert.DeepEqual(t, h.Identity().PublicHash, r.Identity().PublicHash)
	if h.Identity() == other.Identity() {
		t.Fatalf("foreign session uses the registry identity")
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []string{
		``,
		`{`,
		`{}`,
		`[null]`,
		`[{"established":null}]`,
		`["x"]`,
	}
	for _, tc := range tests {
		r := newTestRegistry(t)
		err := r.Load([]byte(tc))
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.DeepEqual(t, r.Len(), 0)
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir := testutils.TempTestDir(t, "sessions")
	fname := filepath.Join(dir, "sessions.json")

	r := newTestRegistry(t)
	assert.ErrorIs(t, r.LoadFile(fname), ErrNotFound)

	fc := newFakeCaller()
	r = newRegistryWithSessions(t, fc, 2)
	assert.NilErr(t, r.SaveFile(fname))

	fi, err := os.Stat(fname)
	assert.NilErr(t, err)
	assert.DeepEqual(t, fi.Mode().Perm(), os.FileMode(0o600))

	r2 := NewRegistry(r.Identity(), nil)
	assert.NilErr(t, r2.LoadFile(fname))
	assert.DeepEqual(t, r2.Len(), 2)

	assert.NilErr(t, os.WriteFile(fname, []byte("garbage"), 0o600))
	r3 := newTestRegistry(t)
	assert.ErrorIs(t, r3.LoadFile(fname), ErrCorrupt)
}
