package http

import (
	"errors"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

func MakeAPINotFound(path string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably promoctl) is a different
version from the server. Check both are built from the same release.

The path requested was:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}

// BadRequestError is for requests whose parameters or body could not
// be decoded.
func BadRequestError(err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.User,
		Help: `The request could not be decoded

The body of the request, or one of the path parameters, was not in the
expected form. The error was:

    ` + err.Error() + `
`,
		Err: err,
	}
}
