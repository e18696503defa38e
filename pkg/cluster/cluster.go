package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	"github.com/fluxcd/promoter/pkg/image"
)

// DefaultNamespace is used for a ServerGroup that doesn't name one.
const DefaultNamespace = "default"

// Gateway is what the promoter needs from the clusters it manages. It
// is implemented against the Kubernetes API, and, through the
// dispatcher, by thin clients talking to a server that has access to
// the clusters.
type Gateway interface {
	Clusters(ctx context.Context) ([]string, error)
	Namespaces(ctx context.Context, cluster string) ([]string, error)
	Pods(ctx context.Context, group ServerGroup) ([]Pod, error)
	Deployments(ctx context.Context, group ServerGroup) ([]Deployment, error)
	Scalers(ctx context.Context, group ServerGroup) ([]Scaler, error)
	UpdateDeployment(ctx context.Context, group ServerGroup, deployment string, img image.Image) (Deployment, error)
	RestartDeployment(ctx context.Context, group ServerGroup, deployment string) (Deployment, error)
	TakeSnapshot(ctx context.Context, group ServerGroup) (Snapshot, error)
	// ApplySnapshot restores every deployment recorded in the
	// snapshot. Failures are reported per deployment in the result;
	// the returned error is for failing to get started at all.
	ApplySnapshot(ctx context.Context, group ServerGroup, snapshot Snapshot, ignoreImage bool) (ApplyResult, error)
}

// ServerGroup identifies a namespace within a cluster.
type ServerGroup struct {
	Cluster   string `json:"cluster"`
	Namespace string `json:"namespace,omitempty"`
}

// ParseServerGroup parses `cluster[/namespace]`.
func ParseServerGroup(s string) (ServerGroup, error) {
	parts := strings.SplitN(s, "/", 2)
	g := ServerGroup{Cluster: parts[0]}
	if len(parts) == 2 {
		g.Namespace = parts[1]
	}
	if g.Cluster == "" || strings.Contains(g.Namespace, "/") {
		return ServerGroup{}, fluxerr.UserError("expected <cluster>[/<namespace>], got %q", s)
	}
	return g.WithDefaults(), nil
}

// WithDefaults fills in the default namespace if none is given.
func (g ServerGroup) WithDefaults() ServerGroup {
	if g.Namespace == "" {
		g.Namespace = DefaultNamespace
	}
	return g
}

func (g ServerGroup) String() string {
	return g.Cluster + "/" + g.WithDefaults().Namespace
}

type Pod struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Restarts *int32 `json:"restarts,omitempty"`
	Ready    bool   `json:"ready"`
}

// Deployment is one workload unit. Image is nil when the workload has
// no container image that could be parsed.
type Deployment struct {
	Name  string       `json:"name"`
	Image *image.Image `json:"image,omitempty"`
}

type Replicas struct {
	Current int32 `json:"current"`
	Minimum int32 `json:"minimum"`
	Maximum int32 `json:"maximum"`
}

type Scaler struct {
	Name     string   `json:"name"`
	Replicas Replicas `json:"replicas"`
}

// Snapshot is a diffable capture of the deployments in a namespace.
// The data for each deployment is the gateway's minified
// representation of it, so it can be compared and applied elsewhere.
type Snapshot struct {
	Deployments []SnapshotEntry `json:"deployments"`
}

type SnapshotEntry struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// ApplyError records a single deployment that could not be updated.
type ApplyError struct {
	Deployment string `json:"deployment"`
	Error      string `json:"error"`
}

// ApplyResult is the outcome of applying a batch of changes. A batch
// that partially succeeded is an ordinary result, not an error.
type ApplyResult struct {
	Applied []Deployment `json:"applied"`
	Skipped []string     `json:"skipped,omitempty"`
	Errored []ApplyError `json:"errored,omitempty"`
}

// Empty is true when nothing was attempted.
func (r ApplyResult) Empty() bool {
	return len(r.Applied) == 0 && len(r.Skipped) == 0 && len(r.Errored) == 0
}

func (r ApplyResult) String() string {
	return fmt.Sprintf("applied %d, skipped %d, failed %d", len(r.Applied), len(r.Skipped), len(r.Errored))
}
