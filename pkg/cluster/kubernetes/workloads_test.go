package kubernetes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiv1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/fluxcd/promoter/pkg/cluster"
	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	"github.com/fluxcd/promoter/pkg/image"
)

func TestDeploymentsSkipsAddons(t *testing.T) {
	addon := newDeployment("kube-dns", "k8s.gcr.io/kube-dns:1.14", 1)
	addon.Namespace = "kube-system"
	addon.Labels["kubernetes.io/cluster-service"] = "true"
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev": {addon, newDeployment("api", "registry/api:v1", 1)},
	})

	deployments, err := c.Deployments(context.Background(), cluster.ServerGroup{Cluster: "dev", Namespace: "kube-system"})
	require.NoError(t, err)
	assert.Empty(t, deployments)

	deployments, err = c.Deployments(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)
	assert.Equal(t, []cluster.Deployment{
		{Name: "api", Image: &image.Image{URL: "registry/api:v1", Name: "api"}},
	}, deployments)
}

func TestUpdateDeploymentChangesMatchingContainer(t *testing.T) {
	d := newDeployment("api", "registry/api:v1", 1)
	d.Spec.Template.Spec.Containers = []apiv1.Container{
		{Name: "proxy", Image: "envoy:1.14"},
		{Name: "api", Image: "registry/api:v1"},
	}
	c, _ := newCluster(nil, map[string][]runtime.Object{"dev": {d}})

	img := image.Image{URL: "registry/api:v2", Name: "api", Tag: "v2"}
	updated, err := c.UpdateDeployment(context.Background(), cluster.ServerGroup{Cluster: "dev"}, "api", img)
	require.NoError(t, err)
	assert.Equal(t, cluster.Deployment{Name: "api", Image: &image.Image{URL: "registry/api:v2", Name: "api"}}, updated)

	containers := getDeployment(t, c, "dev", "api").Spec.Template.Spec.Containers
	assert.Equal(t, "envoy:1.14", containers[0].Image)
	assert.Equal(t, "registry/api:v2", containers[1].Image)
}

func TestUpdateDeploymentFallsBackToFirstContainer(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{"dev": {newDeployment("api", "registry/api:v1", 1)}})

	_, err := c.UpdateDeployment(context.Background(), cluster.ServerGroup{Cluster: "dev"}, "api", image.Image{URL: "mirror/api-next:v9", Name: "api-next"})
	require.NoError(t, err)
	assert.Equal(t, "mirror/api-next:v9", getDeployment(t, c, "dev", "api").Spec.Template.Spec.Containers[0].Image)
}

func TestUpdateMissingDeployment(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{"dev": nil})
	_, err := c.UpdateDeployment(context.Background(), cluster.ServerGroup{Cluster: "dev"}, "ghost", image.Image{URL: "registry/ghost:v1", Name: "ghost"})
	assert.True(t, fluxerr.IsMissing(err))
}

func TestRestartDeploymentSetsAnnotation(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{"dev": {newDeployment("api", "registry/api:v1", 1)}})

	restarted, err := c.RestartDeployment(context.Background(), cluster.ServerGroup{Cluster: "dev"}, "api")
	require.NoError(t, err)
	assert.Equal(t, "api", restarted.Name)

	d := getDeployment(t, c, "dev", "api")
	assert.NotEmpty(t, d.Spec.Template.Annotations[RestartedAtAnnotation])
	assert.Equal(t, "registry/api:v1", d.Spec.Template.Spec.Containers[0].Image)
}

func TestRestartDoesNotShowInSnapshot(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{"dev": {newDeployment("api", "registry/api:v1", 1)}})
	group := cluster.ServerGroup{Cluster: "dev"}

	before, err := c.TakeSnapshot(context.Background(), group)
	require.NoError(t, err)
	_, err = c.RestartDeployment(context.Background(), group, "api")
	require.NoError(t, err)
	after, err := c.TakeSnapshot(context.Background(), group)
	require.NoError(t, err)

	assert.JSONEq(t, string(before.Deployments[0].Data), string(after.Deployments[0].Data))
}
