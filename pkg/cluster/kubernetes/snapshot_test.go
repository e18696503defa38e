package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apps "k8s.io/api/apps/v1"
	apiv1 "k8s.io/api/core/v1"
	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	k8stesting "k8s.io/client-go/testing"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
)

func newDeployment(name, img string, replicas int32) *apps.Deployment {
	labels := map[string]string{"app": name}
	return &apps.Deployment{
		ObjectMeta: meta_v1.ObjectMeta{
			Name:            name,
			Namespace:       "default",
			Labels:          labels,
			UID:             types.UID("uid-" + name),
			ResourceVersion: "41",
			Generation:      3,
			Annotations: map[string]string{
				"deployment.kubernetes.io/revision": "3",
			},
		},
		Spec: apps.DeploymentSpec{
			Replicas: &replicas,
			Selector: &meta_v1.LabelSelector{MatchLabels: labels},
			Template: apiv1.PodTemplateSpec{
				ObjectMeta: meta_v1.ObjectMeta{Labels: labels},
				Spec: apiv1.PodSpec{
					Containers: []apiv1.Container{{Name: name, Image: img}},
				},
			},
		},
		Status: apps.DeploymentStatus{Replicas: replicas, ReadyReplicas: replicas},
	}
}

func getDeployment(t *testing.T, c *Cluster, clusterName, name string) *apps.Deployment {
	d, err := c.clients[clusterName].AppsV1().Deployments("default").Get(context.Background(), name, meta_v1.GetOptions{})
	require.NoError(t, err)
	return d
}

func patchActions(actions []k8stesting.Action) int {
	var n int
	for _, a := range actions {
		if a.GetVerb() == "patch" {
			n++
		}
	}
	return n
}

func TestMinifyIsIdempotent(t *testing.T) {
	raw := []byte(`{
  "apiVersion": "apps/v1",
  "kind": "Deployment",
  "metadata": {
    "name": "api",
    "namespace": "default",
    "uid": "b1c8",
    "resourceVersion": "1234",
    "generation": 7,
    "creationTimestamp": "2020-01-01T00:00:00Z",
    "managedFields": [{"manager": "kubectl"}],
    "labels": {"app": "api"},
    "annotations": {
      "deployment.kubernetes.io/revision": "7",
      "kubectl.kubernetes.io/last-applied-configuration": "{}"
    }
  },
  "spec": {
    "replicas": 2,
    "template": {
      "metadata": {
        "creationTimestamp": null,
        "labels": {"app": "api"},
        "annotations": {"kubectl.kubernetes.io/restartedAt": "2020-01-02T00:00:00Z"}
      },
      "spec": {"containers": [{"name": "api", "image": "registry/api:v1"}]}
    }
  },
  "status": {"replicas": 2, "readyReplicas": 2}
}`)

	once, err := Minify(raw)
	require.NoError(t, err)
	twice, err := Minify(once)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))

	assert.JSONEq(t, `{
  "apiVersion": "apps/v1",
  "kind": "Deployment",
  "metadata": {"name": "api", "namespace": "default", "labels": {"app": "api"}},
  "spec": {
    "replicas": 2,
    "template": {
      "metadata": {"labels": {"app": "api"}},
      "spec": {"containers": [{"name": "api", "image": "registry/api:v1"}]}
    }
  }
}`, string(once))
}

func TestMinifyObjectIsIdempotent(t *testing.T) {
	once, err := minifyObject(newDeployment("api", "registry/api:v1", 1))
	require.NoError(t, err)
	twice, err := Minify(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.NotContains(t, string(once), "status")
	assert.NotContains(t, string(once), "resourceVersion")
	assert.NotContains(t, string(once), "revision")
}

func TestApplyOwnSnapshotIsSkipped(t *testing.T) {
	c, fakes := newCluster(nil, map[string][]runtime.Object{
		"dev": {newDeployment("api", "registry/api:v1", 1), newDeployment("worker", "registry/worker:v3", 2)},
	})
	group := cluster.ServerGroup{Cluster: "dev"}

	snapshot, err := c.TakeSnapshot(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, snapshot.Deployments, 2)
	assert.Equal(t, "api", snapshot.Deployments[0].Name)

	fakes["dev"].ClearActions()
	result, err := c.ApplySnapshot(context.Background(), group, snapshot, false)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.Errored)
	assert.Equal(t, []string{"api", "worker"}, result.Skipped)
	assert.Equal(t, 0, patchActions(fakes["dev"].Actions()))
}

func TestApplySnapshotAcrossClusters(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev":  {newDeployment("api", "registry/api:v2", 3)},
		"prod": {newDeployment("api", "registry/api:v1", 1)},
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, false)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "registry/api:v2", result.Applied[0].Image.URL)

	d := getDeployment(t, c, "prod", "api")
	assert.Equal(t, int32(3), *d.Spec.Replicas)
	assert.Equal(t, "registry/api:v2", d.Spec.Template.Spec.Containers[0].Image)
}

func TestApplySnapshotIgnoreImageKeepsRunningImage(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev":  {newDeployment("api", "registry/api:v2", 3)},
		"prod": {newDeployment("api", "registry/api:v1", 1)},
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, true)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, &image.Image{URL: "registry/api:v1", Name: "api"}, result.Applied[0].Image)

	d := getDeployment(t, c, "prod", "api")
	assert.Equal(t, int32(3), *d.Spec.Replicas)
	assert.Equal(t, "registry/api:v1", d.Spec.Template.Spec.Containers[0].Image)
}

func TestApplySnapshotIgnoreImageRenamedContainer(t *testing.T) {
	dev := newDeployment("api", "registry/api:v0", 1)
	dev.Spec.Template.Spec.Containers[0].Name = "server"
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev":  {dev},
		"prod": {newDeployment("api", "registry/api:v5", 1)},
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	_, err = c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, true)
	require.NoError(t, err)
	d := getDeployment(t, c, "prod", "api")
	require.Len(t, d.Spec.Template.Spec.Containers, 1)
	assert.Equal(t, "registry/api:v5", d.Spec.Template.Spec.Containers[0].Image)

	// Neither the name nor the image name matches; position does.
	other := newDeployment("api", "registry/other:v9", 1)
	other.Spec.Template.Spec.Containers[0].Name = "sidecar"
	_, err = c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshotOf(t, other), true)
	require.NoError(t, err)
	d = getDeployment(t, c, "prod", "api")
	assert.Equal(t, "registry/api:v5", d.Spec.Template.Spec.Containers[0].Image)
}

func snapshotOf(t *testing.T, d *apps.Deployment) cluster.Snapshot {
	data, err := minifyObject(d)
	require.NoError(t, err)
	return cluster.Snapshot{Deployments: []cluster.SnapshotEntry{{Name: d.Name, Data: data}}}
}

func TestApplySnapshotIgnoreImageOnlyImageDiffers(t *testing.T) {
	c, fakes := newCluster(nil, map[string][]runtime.Object{
		"dev":  {newDeployment("api", "registry/api:v2", 1)},
		"prod": {newDeployment("api", "registry/api:v1", 1)},
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	fakes["prod"].ClearActions()
	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, result.Skipped)
	assert.Equal(t, 0, patchActions(fakes["prod"].Actions()))
}

func TestApplySnapshotPartialFailure(t *testing.T) {
	c, fakes := newCluster(nil, map[string][]runtime.Object{
		"dev": {
			newDeployment("a", "registry/a:v1", 2),
			newDeployment("b", "registry/b:v1", 2),
			newDeployment("c", "registry/c:v1", 2),
		},
		"prod": {
			newDeployment("a", "registry/a:v1", 1),
			newDeployment("b", "registry/b:v1", 1),
			newDeployment("c", "registry/c:v1", 1),
		},
	})
	fakes["prod"].PrependReactor("patch", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.(k8stesting.PatchAction).GetName() == "a" {
			return true, nil, errors.New("admission webhook denied the request")
		}
		return false, nil, nil
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, false)
	require.NoError(t, err)
	require.Len(t, result.Errored, 1)
	assert.Equal(t, "a", result.Errored[0].Deployment)
	assert.Contains(t, result.Errored[0].Error, "admission webhook")

	var applied []string
	for _, d := range result.Applied {
		applied = append(applied, d.Name)
	}
	assert.Equal(t, []string{"b", "c"}, applied)
	assert.Equal(t, int32(2), *getDeployment(t, c, "prod", "c").Spec.Replicas)
	assert.Equal(t, int32(1), *getDeployment(t, c, "prod", "a").Spec.Replicas)
}

func TestApplySnapshotCreatesMissingDeployment(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev":  {newDeployment("worker", "registry/worker:v3", 2)},
		"prod": nil,
	})

	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "prod"}, snapshot, true)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	d := getDeployment(t, c, "prod", "worker")
	assert.Equal(t, "registry/worker:v3", d.Spec.Template.Spec.Containers[0].Image)
}

func TestSnapshotSerialisation(t *testing.T) {
	c, _ := newCluster(nil, map[string][]runtime.Object{
		"dev": {newDeployment("api", "registry/api:v1", 1)},
	})
	snapshot, err := c.TakeSnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"})
	require.NoError(t, err)

	bytes, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var decoded cluster.Snapshot
	require.NoError(t, json.Unmarshal(bytes, &decoded))

	result, err := c.ApplySnapshot(context.Background(), cluster.ServerGroup{Cluster: "dev"}, decoded, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, result.Skipped)
}
