package cluster

import (
	"fmt"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// UnknownClusterError is returned for a cluster not in the
// configuration.
func UnknownClusterError(name string) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  fmt.Errorf("unknown cluster %q", name),
		Help: fmt.Sprintf(`Cluster %q is not known to the promoter

Clusters are taken from the contexts in the kubeconfig file given to
promoterd. Check the name against the output of `+"`promoctl clusters`"+`.
`, name),
	}
}

// ObjectMissingError is returned when a named object does not exist
// in a cluster.
func ObjectMissingError(obj string, err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Missing,
		Err:  err,
		Help: fmt.Sprintf(`Cluster object %q not found

The object requested was not found in the cluster. Check spelling and
perhaps verify its presence using kubectl.
`, obj)}
}

// GatewayError wraps any other failure talking to a cluster.
func GatewayError(op string, group ServerGroup, err error) *fluxerr.Error {
	return &fluxerr.Error{
		Type: fluxerr.Server,
		Err:  fmt.Errorf("%s %s: %s", op, group, err),
		Help: fmt.Sprintf(`Talking to cluster %q failed

The operation %q could not be completed against the cluster API. This
is usually transient (a network or authorization problem); the error
was:

    %s
`, group.Cluster, op, err),
	}
}
