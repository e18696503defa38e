package dispatch

import (
	"strings"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// Layer says where operations run. It is fixed for the life of a
// process.
type Layer int

const (
	// Standalone runs everything in one process.
	Standalone Layer = iota
	// Client sends every call to a server.
	Client
	// Server runs calls in process, and exposes them over HTTP.
	Server
)

func (l Layer) String() string {
	switch l {
	case Standalone:
		return "standalone"
	case Client:
		return "client"
	case Server:
		return "server"
	}
	return "unknown"
}

func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(s) {
	case "standalone", "":
		return Standalone, nil
	case "client":
		return Client, nil
	case "server":
		return Server, nil
	}
	return Standalone, fluxerr.UserError("unknown layer %q; expected one of standalone, client, server", s)
}
