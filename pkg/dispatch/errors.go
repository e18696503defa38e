package dispatch

import (
	"fmt"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// Error is a failed call to a server. StatusCode is zero when no
// response was received (network failure, timeout). Err is the
// server's own error when it sent one, so errors.Cause gives the same
// answer as for a call made in process.
type Error struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("calling %s: %s", e.Operation, e.Err)
	}
	return fmt.Sprintf("calling %s: status %d: %s", e.Operation, e.StatusCode, e.Err)
}

func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

func UnknownOperationError(name string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  fmt.Errorf("unknown operation %q", name),
		Help: fmt.Sprintf(`Operation %q is not registered

This usually means the client and server were built from different
releases. Check both are the same version.
`, name),
	}
}

func UnboundOperationError(name string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  fmt.Errorf("operation %q is not available in this process", name),
		Help: fmt.Sprintf(`Operation %q has no handler here

The operation is known but this process was not configured with what
it needs to run it (for example, a cluster or registry). Check the
configuration given to promoterd.
`, name),
	}
}
