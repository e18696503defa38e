package remote

import (
	"context"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/dispatch"
	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	"github.com/fluxcd/promoter/pkg/pipeline"
	"github.com/fluxcd/promoter/pkg/registry"
)

// NewTable makes the table of operations, with handlers for whichever
// of clusters, images and pipelines are given (any may be nil).
// Operations without a handler fail with a not-found error.
func NewTable(clusters cluster.Gateway, images registry.Gateway, pipelines PipelineServer) (*dispatch.Table, error) {
	table, err := dispatch.NewTable(Operations()...)
	if err != nil {
		return nil, err
	}
	handlers := map[string]dispatch.Handler{}
	if clusters != nil {
		clusterHandlers(clusters, handlers)
	}
	if images != nil {
		imageHandlers(images, handlers)
	}
	if pipelines != nil {
		pipelineHandlers(pipelines, handlers)
	}
	if err := bind(table, handlers); err != nil {
		return nil, err
	}
	return table, nil
}

// BindPipelines adds handlers for the pipeline operations to a table
// made without them. The daemon needs this, since its pipeline engine
// calls the clusters and registry through a dispatcher over the same
// table.
func BindPipelines(table *dispatch.Table, pipelines PipelineServer) error {
	handlers := map[string]dispatch.Handler{}
	pipelineHandlers(pipelines, handlers)
	return bind(table, handlers)
}

func bind(table *dispatch.Table, handlers map[string]dispatch.Handler) error {
	for name, h := range handlers {
		if err := table.Bind(name, h); err != nil {
			return err
		}
	}
	return nil
}

func groupOf(a interface{}) cluster.ServerGroup {
	return a.(*GroupArgs).ServerGroup.WithDefaults()
}

func clusterHandlers(g cluster.Gateway, h map[string]dispatch.Handler) {
	h[Clusters] = func(ctx context.Context, _ interface{}) (interface{}, error) {
		return g.Clusters(ctx)
	}
	h[Namespaces] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.Namespaces(ctx, a.(*ClusterArgs).Cluster)
	}
	h[Pods] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.Pods(ctx, groupOf(a))
	}
	h[Deployments] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.Deployments(ctx, groupOf(a))
	}
	h[Scalers] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.Scalers(ctx, groupOf(a))
	}
	h[UpdateDeployment] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*DeploymentArgs)
		if args.Image == nil {
			return nil, fluxerr.UserError("no image given for deployment %s", args.Deployment)
		}
		return g.UpdateDeployment(ctx, args.ServerGroup.WithDefaults(), args.Deployment, *args.Image)
	}
	h[RestartDeployment] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*DeploymentArgs)
		return g.RestartDeployment(ctx, args.ServerGroup.WithDefaults(), args.Deployment)
	}
	h[TakeSnapshot] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.TakeSnapshot(ctx, groupOf(a))
	}
	h[ApplySnapshot] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*SnapshotArgs)
		return g.ApplySnapshot(ctx, args.ServerGroup.WithDefaults(), args.Snapshot, args.IgnoreImage)
	}
}

func imageHandlers(g registry.Gateway, h map[string]dispatch.Handler) {
	h[Images] = func(ctx context.Context, _ interface{}) (interface{}, error) {
		return g.List(ctx)
	}
	h[Tags] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return g.Tags(ctx, a.(*ImageArgs).Image)
	}
	h[Image] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*ImageArgs)
		tag := args.Tag
		if tag == "" {
			tag = registry.DefaultTag
		}
		return g.Image(ctx, args.Image, tag)
	}
}

func pipelineHandlers(p PipelineServer, h map[string]dispatch.Handler) {
	h[Pipelines] = func(ctx context.Context, _ interface{}) (interface{}, error) {
		return p.Pipelines(ctx)
	}
	h[Plan] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return p.Plan(ctx, a.(*PipelineArgs).Name)
	}
	h[Apply] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return p.Apply(ctx, a.(*PlanArgs).Plan)
	}
	h[Run] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*PipelineArgs)
		trigger := args.Trigger
		if trigger == "" {
			trigger = pipeline.TriggerManual
		}
		return p.Run(ctx, args.Name, trigger)
	}
	h[Schedules] = func(ctx context.Context, a interface{}) (interface{}, error) {
		return p.Schedules(ctx, a.(*PipelineArgs).Name)
	}
	h[Restore] = func(ctx context.Context, a interface{}) (interface{}, error) {
		args := a.(*SnapshotArgs)
		return p.Restore(ctx, args.ServerGroup.WithDefaults(), args.Snapshot, args.IgnoreImage)
	}
}
