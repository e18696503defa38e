// Package remote declares the operations the promoter exposes, binds
// them to the gateways and pipeline engine in a server process, and
// gives typed clients that call them through a dispatcher.
package remote

import (
	"context"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/dispatch"
	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/job"
	"github.com/fluxcd/promoter/pkg/pipeline"
)

// Operation names.
const (
	Clusters          = "clusters"
	Namespaces        = "namespaces"
	Pods              = "pods"
	Deployments       = "deployments"
	Scalers           = "scalers"
	UpdateDeployment  = "updateDeployment"
	RestartDeployment = "restartDeployment"
	TakeSnapshot      = "takeSnapshot"
	ApplySnapshot     = "applySnapshot"

	Images = "images"
	Tags   = "tags"
	Image  = "image"

	Pipelines = "pipelines"
	Plan      = "plan"
	Apply     = "apply"
	Run       = "run"
	Schedules = "schedules"
	Restore   = "restore"
)

type ClusterArgs struct {
	Cluster string `json:"cluster"`
}

type GroupArgs struct {
	cluster.ServerGroup
}

type DeploymentArgs struct {
	cluster.ServerGroup
	Deployment string       `json:"deployment"`
	Image      *image.Image `json:"image,omitempty"`
}

type SnapshotArgs struct {
	cluster.ServerGroup
	Snapshot    cluster.Snapshot `json:"snapshot"`
	IgnoreImage bool             `json:"ignoreImage"`
}

type ImageArgs struct {
	Image string `json:"image"`
	Tag   string `json:"tag,omitempty"`
}

type PipelineArgs struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger,omitempty"`
}

type PlanArgs struct {
	Plan pipeline.Plan `json:"plan"`
}

// PipelineServer is what the pipeline operations are served by;
// *pipeline.Engine in a server process, or PipelineClient elsewhere.
type PipelineServer interface {
	Pipelines(ctx context.Context) ([]pipeline.Status, error)
	Plan(ctx context.Context, name string) (pipeline.Plan, error)
	Apply(ctx context.Context, plan pipeline.Plan) ([]cluster.Deployment, error)
	Run(ctx context.Context, name, trigger string) (job.Status, error)
	Schedules(ctx context.Context, name string) (pipeline.Cron, error)
	Restore(ctx context.Context, group cluster.ServerGroup, snapshot cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error)
}

var (
	_ PipelineServer = &pipeline.Engine{}
	_ PipelineServer = &PipelineClient{}
)

func clusterArgs() interface{}    { return &ClusterArgs{} }
func groupArgs() interface{}      { return &GroupArgs{} }
func deploymentArgs() interface{} { return &DeploymentArgs{} }
func snapshotArgs() interface{}   { return &SnapshotArgs{} }
func imageArgs() interface{}      { return &ImageArgs{} }
func pipelineArgs() interface{}   { return &PipelineArgs{} }
func planArgs() interface{}       { return &PlanArgs{} }

var group = []string{"cluster", "namespace?"}

// Operations lists every operation, without handlers. Clients and
// servers both build their table from this list, so they agree on
// names and routes.
func Operations() []dispatch.Operation {
	return []dispatch.Operation{
		{Name: Clusters},
		{Name: Namespaces, Params: []string{"cluster"}, Args: clusterArgs},
		{Name: Pods, Params: group, Args: groupArgs},
		{Name: Deployments, Params: group, Args: groupArgs},
		{Name: Scalers, Params: group, Args: groupArgs},
		{Name: UpdateDeployment, Method: "POST", Params: []string{"cluster", "namespace", "deployment"}, Args: deploymentArgs},
		{Name: RestartDeployment, Method: "POST", Params: []string{"cluster", "namespace", "deployment"}, Args: deploymentArgs},
		{Name: TakeSnapshot, Params: group, Args: groupArgs},
		{Name: ApplySnapshot, Method: "POST", Params: []string{"cluster", "namespace"}, Args: snapshotArgs},

		{Name: Images},
		{Name: Tags, Params: []string{"image"}, Args: imageArgs},
		{Name: Image, Params: []string{"image", "tag?"}, Args: imageArgs},

		{Name: Pipelines},
		{Name: Plan, Params: []string{"name"}, Args: pipelineArgs},
		{Name: Apply, Method: "POST", Args: planArgs},
		{Name: Run, Method: "POST", Params: []string{"name"}, Args: pipelineArgs},
		{Name: Schedules, Params: []string{"name"}, Args: pipelineArgs},
		{Name: Restore, Method: "POST", Params: []string{"cluster", "namespace"}, Args: snapshotArgs},
	}
}
