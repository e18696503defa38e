package cluster_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/promoter/pkg/cache"
	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/cluster/mock"
	"github.com/fluxcd/promoter/pkg/image"
)

func TestCachedListsAreMemoized(t *testing.T) {
	var calls int
	m := &mock.Mock{
		PodsFunc: func(ctx context.Context, g cluster.ServerGroup) ([]cluster.Pod, error) {
			calls++
			return []cluster.Pod{{Name: "api-1", Image: "registry/api:v1", Ready: true}}, nil
		},
		UpdateDeploymentFunc: func(ctx context.Context, g cluster.ServerGroup, d string, img image.Image) (cluster.Deployment, error) {
			return cluster.Deployment{Name: d, Image: &img}, nil
		},
	}
	c := cluster.NewCached(m, cache.New(time.Hour))
	group := cluster.ServerGroup{Cluster: "dev"}

	first, err := c.Pods(context.Background(), group)
	require.NoError(t, err)
	second, err := c.Pods(context.Background(), group.WithDefaults())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = c.UpdateDeployment(context.Background(), group, "api", image.Image{URL: "registry/api:v2", Name: "api"})
	require.NoError(t, err)
	_, err = c.Pods(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedDoesNotKeepFailures(t *testing.T) {
	var calls int
	m := &mock.Mock{
		ClustersFunc: func(ctx context.Context) ([]string, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("kubeconfig unreadable")
			}
			return []string{"dev", "prod"}, nil
		},
	}
	c := cluster.NewCached(m, cache.New(time.Hour))

	_, err := c.Clusters(context.Background())
	assert.Error(t, err)
	clusters, err := c.Clusters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, clusters)
}

func TestParseServerGroup(t *testing.T) {
	g, err := cluster.ParseServerGroup("prod")
	require.NoError(t, err)
	assert.Equal(t, cluster.ServerGroup{Cluster: "prod", Namespace: "default"}, g)

	g, err = cluster.ParseServerGroup("prod/shop")
	require.NoError(t, err)
	assert.Equal(t, "prod/shop", g.String())

	for _, bad := range []string{"", "/shop", "prod/shop/extra"} {
		_, err = cluster.ParseServerGroup(bad)
		assert.Error(t, err, bad)
	}
}
