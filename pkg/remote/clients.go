package remote

import (
	"context"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/dispatch"
	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/job"
	"github.com/fluxcd/promoter/pkg/pipeline"
	"github.com/fluxcd/promoter/pkg/registry"
)

// ClusterClient is a cluster.Gateway whose calls go through a
// dispatcher.
type ClusterClient struct {
	d *dispatch.Dispatcher
}

var _ cluster.Gateway = &ClusterClient{}

func NewClusterClient(d *dispatch.Dispatcher) *ClusterClient {
	return &ClusterClient{d: d}
}

func (c *ClusterClient) Clusters(ctx context.Context) ([]string, error) {
	var res []string
	err := c.d.Call(ctx, Clusters, nil, &res)
	return res, err
}

func (c *ClusterClient) Namespaces(ctx context.Context, name string) ([]string, error) {
	var res []string
	err := c.d.Call(ctx, Namespaces, ClusterArgs{Cluster: name}, &res)
	return res, err
}

func (c *ClusterClient) Pods(ctx context.Context, group cluster.ServerGroup) ([]cluster.Pod, error) {
	var res []cluster.Pod
	err := c.d.Call(ctx, Pods, GroupArgs{group}, &res)
	return res, err
}

func (c *ClusterClient) Deployments(ctx context.Context, group cluster.ServerGroup) ([]cluster.Deployment, error) {
	var res []cluster.Deployment
	err := c.d.Call(ctx, Deployments, GroupArgs{group}, &res)
	return res, err
}

func (c *ClusterClient) Scalers(ctx context.Context, group cluster.ServerGroup) ([]cluster.Scaler, error) {
	var res []cluster.Scaler
	err := c.d.Call(ctx, Scalers, GroupArgs{group}, &res)
	return res, err
}

func (c *ClusterClient) UpdateDeployment(ctx context.Context, group cluster.ServerGroup, deployment string, img image.Image) (cluster.Deployment, error) {
	var res cluster.Deployment
	err := c.d.Call(ctx, UpdateDeployment, DeploymentArgs{ServerGroup: group, Deployment: deployment, Image: &img}, &res)
	return res, err
}

func (c *ClusterClient) RestartDeployment(ctx context.Context, group cluster.ServerGroup, deployment string) (cluster.Deployment, error) {
	var res cluster.Deployment
	err := c.d.Call(ctx, RestartDeployment, DeploymentArgs{ServerGroup: group, Deployment: deployment}, &res)
	return res, err
}

func (c *ClusterClient) TakeSnapshot(ctx context.Context, group cluster.ServerGroup) (cluster.Snapshot, error) {
	var res cluster.Snapshot
	err := c.d.Call(ctx, TakeSnapshot, GroupArgs{group}, &res)
	return res, err
}

func (c *ClusterClient) ApplySnapshot(ctx context.Context, group cluster.ServerGroup, snapshot cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
	var res cluster.ApplyResult
	err := c.d.Call(ctx, ApplySnapshot, SnapshotArgs{ServerGroup: group, Snapshot: snapshot, IgnoreImage: ignoreImage}, &res)
	return res, err
}

// RegistryClient is a registry.Gateway whose calls go through a
// dispatcher.
type RegistryClient struct {
	d *dispatch.Dispatcher
}

var _ registry.Gateway = &RegistryClient{}

func NewRegistryClient(d *dispatch.Dispatcher) *RegistryClient {
	return &RegistryClient{d: d}
}

func (c *RegistryClient) List(ctx context.Context) ([]string, error) {
	var res []string
	err := c.d.Call(ctx, Images, nil, &res)
	return res, err
}

func (c *RegistryClient) Tags(ctx context.Context, name string) ([]string, error) {
	var res []string
	err := c.d.Call(ctx, Tags, ImageArgs{Image: name}, &res)
	return res, err
}

func (c *RegistryClient) Image(ctx context.Context, name, tag string) (image.Image, error) {
	var res image.Image
	err := c.d.Call(ctx, Image, ImageArgs{Image: name, Tag: tag}, &res)
	return res, err
}

// PipelineClient calls the pipeline operations through a dispatcher.
type PipelineClient struct {
	d *dispatch.Dispatcher
}

func NewPipelineClient(d *dispatch.Dispatcher) *PipelineClient {
	return &PipelineClient{d: d}
}

func (c *PipelineClient) Pipelines(ctx context.Context) ([]pipeline.Status, error) {
	var res []pipeline.Status
	err := c.d.Call(ctx, Pipelines, nil, &res)
	return res, err
}

func (c *PipelineClient) Plan(ctx context.Context, name string) (pipeline.Plan, error) {
	var res pipeline.Plan
	err := c.d.Call(ctx, Plan, PipelineArgs{Name: name}, &res)
	return res, err
}

func (c *PipelineClient) Apply(ctx context.Context, plan pipeline.Plan) ([]cluster.Deployment, error) {
	var res []cluster.Deployment
	err := c.d.Call(ctx, Apply, PlanArgs{Plan: plan}, &res)
	return res, err
}

func (c *PipelineClient) Run(ctx context.Context, name, trigger string) (job.Status, error) {
	var res job.Status
	err := c.d.Call(ctx, Run, PipelineArgs{Name: name, Trigger: trigger}, &res)
	return res, err
}

func (c *PipelineClient) Schedules(ctx context.Context, name string) (pipeline.Cron, error) {
	var res pipeline.Cron
	err := c.d.Call(ctx, Schedules, PipelineArgs{Name: name}, &res)
	return res, err
}

func (c *PipelineClient) Restore(ctx context.Context, group cluster.ServerGroup, snapshot cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
	var res cluster.ApplyResult
	err := c.d.Call(ctx, Restore, SnapshotArgs{ServerGroup: group, Snapshot: snapshot, IgnoreImage: ignoreImage}, &res)
	return res, err
}
