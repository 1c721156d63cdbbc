package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
)

var (
	// ErrNotFound is returned by Read when the file does not exist.
	ErrNotFound = errors.New("json file not found")

	// ErrCorrupt is returned by Read when the file exists but its contents
	// cannot be decoded.
	ErrCorrupt = errors.New("json file is corrupt")
)

// Write encodes data as json into a temp file with owner-only permissions,
// then renames the temp file to fname.
//
// log is used to log warnings that are not fatal to the Write() operation.
func Write(fname string, data interface{}, log slog.Logger) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to encode json contents: %w", err)
	}
	return WriteBytes(fname, b, log)
}

// WriteBytes atomically replaces fname with the already encoded contents b.
func WriteBytes(fname string, b []byte, log slog.Logger) error {
	if log == nil {
		log = slog.Disabled
	}
	dir := filepath.Dir(fname)
	tempFname := filepath.Join(dir, "."+filepath.Base(fname)+".new")

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create dest dir: %w", err)
	}

	f, err := os.OpenFile(tempFname, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}

	// No early returns from here on, so the temp file is always cleaned
	// up on errors.
	_, err = f.Write(b)
	if err != nil {
		err = fmt.Errorf("unable to write temp file: %w", err)
	}
	if err == nil {
		if err = f.Sync(); err != nil {
			err = fmt.Errorf("unable to fsync temp file: %w", err)
		}
	}
	if err == nil {
		err = f.Close()
		f = nil
		if err != nil {
			err = fmt.Errorf("unable to close temp file: %w", err)
		}
	}
	if err == nil {
		if err = os.Rename(tempFname, fname); err != nil {
			err = fmt.Errorf("unable to rename temp file to final file: %w", err)
		}
	}
	if err != nil {
		if f != nil {
			if closeErr := f.Close(); closeErr != nil {
				log.Warnf("Unable to close temp file prior to cleanup: %v", closeErr)
			}
		}
		if remErr := os.Remove(tempFname); remErr != nil && !os.IsNotExist(remErr) {
			log.Warnf("Unable to remove temp file %s: %v", tempFname, remErr)
		}
	}

	return err
}

// Read decodes the first json value in fname into data. Decoding failures
// are wrapped with ErrCorrupt.
func Read(fname string, data interface{}) error {
	f, err := os.Open(fname)
	if os.IsNotExist(err) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(data); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s is empty", ErrCorrupt, fname)
		}
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, fname, err)
	}
	return nil
}

// Exists returns true if the specified file exists.
func Exists(fname string) bool {
	_, err := os.Stat(fname)
	return err == nil
}

// RemoveIfExists removes the filename if it exists. If it does not exist, this
// doesn't return an error.
func RemoveIfExists(fname string) error {
	err := os.Remove(fname)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
