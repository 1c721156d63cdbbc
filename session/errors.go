package session

import (
	"errors"
	"fmt"

	"github.com/socialvoid/svclient/internal/jsonfile"
)

var (
	// ErrSessionNotEstablished is returned when an operation requires the
	// session to have been created on the server.
	ErrSessionNotEstablished = errors.New("session not established")

	// ErrNoSessionsExist is returned when an operation requires a current
	// session and none is selected.
	ErrNoSessionsExist = errors.New("no sessions exist")

	// ErrTermsOfServiceNotAgreed is returned by Register when the terms of
	// service were not accepted since the last registration attempt.
	ErrTermsOfServiceNotAgreed = errors.New("terms of service not agreed")

	// ErrCorrupt is returned when persisted sessions cannot be decoded.
	ErrCorrupt = jsonfile.ErrCorrupt

	// ErrNotFound is returned by LoadFile when the sessions file does not
	// exist.
	ErrNotFound = jsonfile.ErrNotFound
)

// IndexOutOfBoundsError is returned when selecting a session index that does
// not exist. Count is the number of sessions at the time of the call.
type IndexOutOfBoundsError struct {
	Index int
	Count int
}

func (err IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("session index %d out of bounds (%d sessions)",
		err.Index, err.Count)
}

func (err IndexOutOfBoundsError) Is(target error) bool {
	_, ok := target.(IndexOutOfBoundsError)
	return ok
}
