// Package lockfile guards a client data directory so that only one process
// uses its identity and sessions at a time.
package lockfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// ErrClosed is returned when closing a lock file twice.
var ErrClosed = errors.New("lock file already closed")

// Owner describes the process holding a lock file.
type Owner struct {
	PID     int
	Host    string
	Process string
}

func (o Owner) String() string {
	return fmt.Sprintf("%s (pid %d on %s)", o.Process, o.PID, o.Host)
}

func currentOwner() Owner {
	host, _ := os.Hostname()
	var proc string
	if len(os.Args) > 0 {
		proc = os.Args[0]
	}
	return Owner{PID: os.Getpid(), Host: host, Process: proc}
}

// LockFile is an exclusively held lock file.
type LockFile struct {
	f    *lockedfile.File
	path string
}

// Path returns the path of the lock file.
func (lf *LockFile) Path() string {
	return lf.path
}

// Close releases the lock.
func (lf *LockFile) Close() error {
	if lf.f == nil {
		return ErrClosed
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}

// Create acquires the lock file at filePath, creating it and its parent dirs
// as needed. It blocks until the lock is acquired or ctx is done.
func Create(ctx context.Context, filePath string) (*LockFile, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return nil, err
	}
	cf := make(chan *lockedfile.File)
	cerr := make(chan error)
	go func() {
		f, err := lockedfile.Create(filePath)
		if err != nil {
			cerr <- err
		} else {
			cf <- f
		}
	}()

	select {
	case f := <-cf:
		// Errors writing the owner are not fatal: it is only used in
		// diagnostic messages.
		o := currentOwner()
		fmt.Fprintf(f, "PID=%d\nHost=%q\nProcess=%q\n", o.PID, o.Host, o.Process)
		f.Sync()
		return &LockFile{f: f, path: filePath}, nil

	case err := <-cerr:
		return nil, err

	case <-ctx.Done():
		// The file may still be locked later on. Release it if so.
		go func() {
			select {
			case <-cerr:
			case f := <-cf:
				f.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// ReadOwner returns the owner recorded in the lock file at filePath. It does
// not acquire the lock, so the result may be stale.
func ReadOwner(filePath string) (Owner, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return Owner{}, err
	}
	var o Owner
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		k, v, ok := strings.Cut(s.Text(), "=")
		if !ok {
			continue
		}
		switch k {
		case "PID":
			o.PID, err = strconv.Atoi(v)
		case "Host":
			o.Host, err = strconv.Unquote(v)
		case "Process":
			o.Process, err = strconv.Unquote(v)
		}
		if err != nil {
			return Owner{}, fmt.Errorf("invalid %s in lock file: %w", k, err)
		}
	}
	return o, s.Err()
}
