package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable means the store could not be reached: DNS failure,
	// refused connection, timeout, or an open circuit breaker.
	ErrRemoteUnavailable = errors.New("remote session store unavailable")
	// ErrRemoteRejected means the store answered with a non-success status
	// or a body that could not be understood.
	ErrRemoteRejected = errors.New("remote session store rejected request")
)

// Operation names, also used as metric labels.
const (
	OpFetchSession = "fetch_session"
	OpFetchFile    = "fetch_file"
	OpCreateFile   = "create_file"
	OpUpdateFile   = "update_file"
	OpDeleteFile   = "delete_file"
)

// Error describes a failed remote operation. It matches ErrRemoteUnavailable
// or ErrRemoteRejected with errors.Is, and exposes the underlying cause.
type Error struct {
	Op         string
	SessionID  string
	FileName   string
	// Target names the resource of operations not bound to a session
	Target     string
	StatusCode int
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	target := e.SessionID
	if e.FileName != "" {
		target += "/" + e.FileName
	}
	if target == "" {
		target = e.Target
	}
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: %v: HTTP status code %d", e.Op, target, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v: %v", e.Op, target, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, target, e.Kind)
	}
}

// Unwrap exposes both the error kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.StatusCode
	}
	return 0
}
