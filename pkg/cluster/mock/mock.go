package mock

import (
	"context"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
)

// Mock is a cluster.Gateway whose methods are supplied as funcs.
type Mock struct {
	ClustersFunc          func(ctx context.Context) ([]string, error)
	NamespacesFunc        func(ctx context.Context, c string) ([]string, error)
	PodsFunc              func(ctx context.Context, g cluster.ServerGroup) ([]cluster.Pod, error)
	DeploymentsFunc       func(ctx context.Context, g cluster.ServerGroup) ([]cluster.Deployment, error)
	ScalersFunc           func(ctx context.Context, g cluster.ServerGroup) ([]cluster.Scaler, error)
	UpdateDeploymentFunc  func(ctx context.Context, g cluster.ServerGroup, deployment string, img image.Image) (cluster.Deployment, error)
	RestartDeploymentFunc func(ctx context.Context, g cluster.ServerGroup, deployment string) (cluster.Deployment, error)
	TakeSnapshotFunc      func(ctx context.Context, g cluster.ServerGroup) (cluster.Snapshot, error)
	ApplySnapshotFunc     func(ctx context.Context, g cluster.ServerGroup, s cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error)
}

var _ cluster.Gateway = &Mock{}

func (m *Mock) Clusters(ctx context.Context) ([]string, error) {
	return m.ClustersFunc(ctx)
}

func (m *Mock) Namespaces(ctx context.Context, c string) ([]string, error) {
	return m.NamespacesFunc(ctx, c)
}

func (m *Mock) Pods(ctx context.Context, g cluster.ServerGroup) ([]cluster.Pod, error) {
	return m.PodsFunc(ctx, g)
}

func (m *Mock) Deployments(ctx context.Context, g cluster.ServerGroup) ([]cluster.Deployment, error) {
	return m.DeploymentsFunc(ctx, g)
}

func (m *Mock) Scalers(ctx context.Context, g cluster.ServerGroup) ([]cluster.Scaler, error) {
	return m.ScalersFunc(ctx, g)
}

func (m *Mock) UpdateDeployment(ctx context.Context, g cluster.ServerGroup, deployment string, img image.Image) (cluster.Deployment, error) {
	return m.UpdateDeploymentFunc(ctx, g, deployment, img)
}

func (m *Mock) RestartDeployment(ctx context.Context, g cluster.ServerGroup, deployment string) (cluster.Deployment, error) {
	return m.RestartDeploymentFunc(ctx, g, deployment)
}

func (m *Mock) TakeSnapshot(ctx context.Context, g cluster.ServerGroup) (cluster.Snapshot, error) {
	return m.TakeSnapshotFunc(ctx, g)
}

func (m *Mock) ApplySnapshot(ctx context.Context, g cluster.ServerGroup, s cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
	return m.ApplySnapshotFunc(ctx, g, s, ignoreImage)
}
