package pipeline

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/job"
	"github.com/fluxcd/promoter/pkg/policy"
)

type SourceType string

const (
	// SourceImage pipelines promote the newest matching tag from the
	// image registry.
	SourceImage SourceType = "image"
	// SourceCluster pipelines promote what is running in another
	// cluster.
	SourceCluster SourceType = "cluster"
)

// Source says where a pipeline takes its images from. For
// SourceImage, Expression is a tag pattern (see policy.NewPattern);
// for SourceCluster, it is `cluster[/namespace]`.
type Source struct {
	Type       SourceType `json:"type"`
	Expression string     `json:"expression"`
}

func (s Source) String() string {
	return fmt.Sprintf("%s %s", s.Type, s.Expression)
}

// Description is a pipeline as configured. It doesn't change once
// loaded.
type Description struct {
	Name      string `json:"name"`
	Cluster   string `json:"cluster"`
	Namespace string `json:"namespace,omitempty"`
	Cron      string `json:"cron,omitempty"`
	From      Source `json:"from"`
}

// Target is where the pipeline deploys to.
func (d Description) Target() cluster.ServerGroup {
	return cluster.ServerGroup{Cluster: d.Cluster, Namespace: d.Namespace}.WithDefaults()
}

func (d Description) Validate() error {
	if d.Name == "" {
		return errors.New("pipeline has no name")
	}
	if d.Cluster == "" {
		return errors.Errorf("pipeline %s: no target cluster", d.Name)
	}
	if d.Cron != "" {
		if _, err := ParseSchedule(d.Cron); err != nil {
			return errors.Wrapf(err, "pipeline %s: cron", d.Name)
		}
	}
	switch d.From.Type {
	case SourceImage:
		if !policy.NewPattern(d.From.Expression).Valid() {
			return errors.Errorf("pipeline %s: invalid tag expression %q", d.Name, d.From.Expression)
		}
	case SourceCluster:
		if _, err := cluster.ParseServerGroup(d.From.Expression); err != nil {
			return errors.Wrapf(err, "pipeline %s: source", d.Name)
		}
	default:
		return errors.Errorf("pipeline %s: unknown source type %q", d.Name, d.From.Type)
	}
	return nil
}

// Action is one deployment to update.
type Action struct {
	Deployment  string       `json:"deployment"`
	Current     *image.Image `json:"current,omitempty"`
	TargetImage image.Image  `json:"targetImage"`
	// Candidates are the tags that matched the pipeline's expression,
	// for image pipelines.
	Candidates []string `json:"candidates,omitempty"`
}

// Plan is what a pipeline would do if applied now. Computing a plan
// changes nothing; applying it acts on exactly these actions.
type Plan struct {
	Pipeline string              `json:"pipeline"`
	Target   cluster.ServerGroup `json:"target"`
	Actions  []Action            `json:"actions"`
}

// Cron is derived from the pipeline's schedule. LastRun is only known
// for runs made by this process.
type Cron struct {
	LastRun  *time.Time  `json:"lastRun,omitempty"`
	NextRuns []time.Time `json:"nextRuns"`
}

type State string

const (
	Idle     State = "idle"
	Planning State = "planning"
	Applying State = "applying"
)

// Status is a pipeline together with what it is doing and last did.
type Status struct {
	Pipeline Description `json:"pipeline"`
	State    State       `json:"state"`
	Cron     Cron        `json:"cron"`
	LastJob  *job.Status `json:"lastJob,omitempty"`
}
