package client

import (
	"errors"
	"fmt"

	"github.com/socialvoid/svclient/lockfile"
)

var (
	errClientClosed = errors.New("client closed")
	errNoCDNServer  = errors.New("server did not advertise a CDN server")
	errNotRetriable = errors.New("upload source cannot be rewound for a retry")
)

// RootInUseError is returned by New when the client root is locked by
// another process.
type RootInUseError struct {
	Root  string
	Owner lockfile.Owner
	Err   error
}

func (err RootInUseError) Error() string {
	if err.Owner.PID == 0 {
		return fmt.Sprintf("client root %s is in use: %v", err.Root, err.Err)
	}
	return fmt.Sprintf("client root %s is in use by %s: %v", err.Root,
		err.Owner, err.Err)
}

func (err RootInUseError) Unwrap() error {
	return err.Err
}

func (err RootInUseError) Is(target error) bool {
	_, ok := target.(RootInUseError)
	return ok
}
