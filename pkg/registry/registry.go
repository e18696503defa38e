package registry

import (
	"context"
	"fmt"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	"github.com/fluxcd/promoter/pkg/image"
)

// DefaultTag is resolved when no tag is given.
const DefaultTag = "latest"

// Gateway is what the promoter needs from an image registry.
// Repository names are as they appear in the registry catalog
// (e.g., `team/api`), without the registry host.
type Gateway interface {
	// List returns the repositories in the registry catalog.
	List(ctx context.Context) ([]string, error)
	// Tags returns the tags of a repository.
	Tags(ctx context.Context, name string) ([]string, error)
	// Image resolves a tag to an image, including its digest.
	Image(ctx context.Context, name, tag string) (image.Image, error)
}

// MissingError is returned for repositories and tags the registry
// doesn't know about.
func MissingError(what string, err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  err,
		Help: fmt.Sprintf(`Image %s not found in registry

Check the spelling, and that the image has been pushed to the registry
the promoter is configured with.
`, what),
	}
}

// GatewayError wraps any other failure talking to the registry.
func GatewayError(op, host string, err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Server,
		Err:  fmt.Errorf("%s %s: %s", op, host, err),
		Help: fmt.Sprintf(`Talking to image registry %q failed

The request (%s) could not be completed. This is usually transient, or
a problem with credentials for the registry; the error was:

    %s
`, host, op, err),
	}
}
