package cluster

import (
	"context"
	"strings"

	"github.com/fluxcd/promoter/pkg/cache"
	"github.com/fluxcd/promoter/pkg/image"
)

// Cached memoizes the listing operations of a Gateway. Deployments
// are always read live, since plans and snapshot diffs depend on
// them; mutations invalidate what they could have changed.
type Cached struct {
	Gateway
	cache *cache.Cache
}

var _ Gateway = &Cached{}

func NewCached(g Gateway, c *cache.Cache) *Cached {
	return &Cached{Gateway: g, cache: c}
}

func key(parts ...string) string {
	return strings.Join(parts, "|")
}

func (c *Cached) Clusters(ctx context.Context) ([]string, error) {
	v, err := c.cache.Calculate(key("clusters"), func() (interface{}, error) {
		return c.Gateway.Clusters(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cached) Namespaces(ctx context.Context, cluster string) ([]string, error) {
	v, err := c.cache.Calculate(key("namespaces", cluster), func() (interface{}, error) {
		return c.Gateway.Namespaces(ctx, cluster)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cached) Pods(ctx context.Context, group ServerGroup) ([]Pod, error) {
	v, err := c.cache.Calculate(key("pods", group.String()), func() (interface{}, error) {
		return c.Gateway.Pods(ctx, group)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Pod), nil
}

func (c *Cached) Scalers(ctx context.Context, group ServerGroup) ([]Scaler, error) {
	v, err := c.cache.Calculate(key("scalers", group.String()), func() (interface{}, error) {
		return c.Gateway.Scalers(ctx, group)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Scaler), nil
}

func (c *Cached) UpdateDeployment(ctx context.Context, group ServerGroup, deployment string, img image.Image) (Deployment, error) {
	defer c.cache.Forget(key("pods", group.String()))
	return c.Gateway.UpdateDeployment(ctx, group, deployment, img)
}

func (c *Cached) RestartDeployment(ctx context.Context, group ServerGroup, deployment string) (Deployment, error) {
	defer c.cache.Forget(key("pods", group.String()))
	return c.Gateway.RestartDeployment(ctx, group, deployment)
}

func (c *Cached) ApplySnapshot(ctx context.Context, group ServerGroup, snapshot Snapshot, ignoreImage bool) (ApplyResult, error) {
	defer func() {
		c.cache.Forget(key("pods", group.String()))
		c.cache.Forget(key("scalers", group.String()))
	}()
	return c.Gateway.ApplySnapshot(ctx, group, snapshot, ignoreImage)
}
