package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is how failures are represented in the API. The Type says
// whose fault it is, which decides how callers (and the HTTP layer)
// treat it:
//   - Server: a cluster or registry misbehaved, so it may be worth trying again
//   - Missing: the cluster, deployment, image or pipeline named doesn't exist
//   - User: the request can't be honoured as it stands, e.g., the pipeline is busy
type Error struct {
	Type Type
	// Help is a message fit for showing to the user.
	Help string
	// Err is the underlying error, for logs.
	Err error
}

type Type string

const (
	Server  Type = "server"
	Missing Type = "missing"
	User    Type = "user"
)

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TypeOf finds the first *Error in err's chain and gives its type,
// or "" if there isn't one.
func TypeOf(err error) Type {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ""
}

func IsMissing(err error) bool {
	return TypeOf(err) == Missing
}

func IsUser(err error) bool {
	return TypeOf(err) == User
}

func newError(t Type, format string, args []interface{}) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Type: t, Help: err.Error(), Err: err}
}

// MissingError reports that the named thing does not exist.
func MissingError(format string, args ...interface{}) *Error {
	return newError(Missing, format, args)
}

// UserError reports a request that cannot be honoured as it stands.
func UserError(format string, args ...interface{}) *Error {
	return newError(User, format, args)
}

// wireError is the JSON form; the underlying error travels as text.
type wireError struct {
	Type Type   `json:"type"`
	Help string `json:"help"`
	Err  string `json:"error,omitempty"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	w := wireError{Type: e.Type, Help: e.Help}
	if e.Err != nil {
		w.Err = e.Err.Error()
	}
	return json.Marshal(w)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Type, e.Help = w.Type, w.Help
	switch {
	case w.Err != "":
		e.Err = errors.New(w.Err)
	case w.Help != "":
		e.Err = errors.New(w.Help)
	}
	return nil
}

// CoverAllError is for errors nobody has given a type; they are
// treated as the server's fault.
func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

There is no specific help for the error above. promoterd logs each
failed operation, so its logs around the time of the request should
say more.
`,
	}
}
