package kubernetes

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/Jeffail/gabs"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	apps "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	appsclient "k8s.io/client-go/kubernetes/typed/apps/v1"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
)

// The parts of a deployment that make it what it is. Everything else
// (status, uid, resourceVersion, managedFields, ...) is assigned by the
// API server and differs from cluster to cluster.
var keptPaths = [][]string{
	{"apiVersion"},
	{"kind"},
	{"metadata", "name"},
	{"metadata", "namespace"},
	{"metadata", "labels"},
	{"metadata", "annotations"},
	{"spec"},
}

// Annotations written by controllers and kubectl rather than by
// whoever owns the deployment.
var (
	droppedAnnotations = []string{
		"deployment.kubernetes.io/revision",
		"kubectl.kubernetes.io/last-applied-configuration",
	}
	droppedTemplateAnnotations = []string{
		RestartedAtAnnotation,
	}
)

// Minify reduces a deployment, as JSON, to its identity and spec. The
// result is deterministic (object keys are sorted) and minifying it
// again gives the same bytes.
func Minify(data []byte) ([]byte, error) {
	in, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing deployment")
	}
	out := gabs.New()
	for _, path := range keptPaths {
		if !in.Exists(path...) {
			continue
		}
		if _, err := out.Set(in.Search(path...).Data(), path...); err != nil {
			return nil, errors.Wrapf(err, "copying %v", path)
		}
	}

	for _, a := range droppedAnnotations {
		out.Delete("metadata", "annotations", a)
	}
	for _, a := range droppedTemplateAnnotations {
		out.Delete("spec", "template", "metadata", "annotations", a)
	}
	out.Delete("spec", "template", "metadata", "creationTimestamp")
	dropIfEmpty(out, "metadata", "annotations")
	dropIfEmpty(out, "metadata", "labels")
	dropIfEmpty(out, "spec", "template", "metadata", "annotations")

	return json.Marshal(out.Data())
}

func dropIfEmpty(c *gabs.Container, path ...string) {
	if !c.Exists(path...) {
		return
	}
	if m, ok := c.Search(path...).Data().(map[string]interface{}); ok && len(m) == 0 {
		c.Delete(path...)
	}
}

func stringAt(c *gabs.Container, path ...string) (string, bool) {
	if !c.Exists(path...) {
		return "", false
	}
	s, ok := c.Search(path...).Data().(string)
	return s, ok
}

func minifyObject(d *apps.Deployment) ([]byte, error) {
	d = d.DeepCopy()
	d.APIVersion = "apps/v1"
	d.Kind = "Deployment"
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return Minify(data)
}

func (c *Cluster) TakeSnapshot(ctx context.Context, group cluster.ServerGroup) (cluster.Snapshot, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return cluster.Snapshot{}, err
	}
	list, err := client.AppsV1().Deployments(ns).List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return cluster.Snapshot{}, cluster.GatewayError("listing deployments", group, err)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Name < list.Items[j].Name })

	snapshot := cluster.Snapshot{Deployments: []cluster.SnapshotEntry{}}
	for i := range list.Items {
		d := &list.Items[i]
		if isAddon(d) {
			continue
		}
		data, err := minifyObject(d)
		if err != nil {
			return cluster.Snapshot{}, errors.Wrapf(err, "minifying deployment %s", d.Name)
		}
		snapshot.Deployments = append(snapshot.Deployments, cluster.SnapshotEntry{Name: d.Name, Data: data})
	}
	return snapshot, nil
}

// ApplySnapshot brings each deployment recorded in the snapshot into
// line with it, in the order recorded. Deployments whose minified form
// already matches are left alone; deployments that don't exist are
// created. Failures are collected rather than returned.
func (c *Cluster) ApplySnapshot(ctx context.Context, group cluster.ServerGroup, snapshot cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return cluster.ApplyResult{}, err
	}
	deployments := client.AppsV1().Deployments(ns)

	result := cluster.ApplyResult{Applied: []cluster.Deployment{}}
	for _, entry := range snapshot.Deployments {
		applied, changed, err := c.applyEntry(ctx, deployments, ns, entry, ignoreImage)
		switch {
		case err != nil:
			c.logger.Log("deployment", entry.Name, "cluster", group.Cluster, "namespace", ns, "err", err)
			result.Errored = append(result.Errored, cluster.ApplyError{Deployment: entry.Name, Error: err.Error()})
		case !changed:
			result.Skipped = append(result.Skipped, entry.Name)
		default:
			result.Applied = append(result.Applied, applied)
		}
	}
	c.logger.Log("snapshot", "applied", "cluster", group.Cluster, "namespace", ns, "result", result.String())
	return result, nil
}

func (c *Cluster) applyEntry(ctx context.Context, deployments appsclient.DeploymentInterface, ns string, entry cluster.SnapshotEntry, ignoreImage bool) (cluster.Deployment, bool, error) {
	target, err := gabs.ParseJSON(entry.Data)
	if err != nil {
		return cluster.Deployment{}, false, errors.Wrap(err, "parsing snapshot data")
	}
	// The snapshot may come from another namespace or cluster.
	if _, err := target.Set(entry.Name, "metadata", "name"); err != nil {
		return cluster.Deployment{}, false, err
	}
	if _, err := target.Set(ns, "metadata", "namespace"); err != nil {
		return cluster.Deployment{}, false, err
	}

	current, err := deployments.Get(ctx, entry.Name, meta_v1.GetOptions{})
	if apierrors.IsNotFound(err) {
		var d apps.Deployment
		if err := json.Unmarshal(target.Bytes(), &d); err != nil {
			return cluster.Deployment{}, false, errors.Wrap(err, "decoding snapshot data")
		}
		created, err := deployments.Create(ctx, &d, meta_v1.CreateOptions{})
		if err != nil {
			return cluster.Deployment{}, false, errors.Wrap(err, "creating deployment")
		}
		return c.toDeployment(created, ""), true, nil
	}
	if err != nil {
		return cluster.Deployment{}, false, errors.Wrap(err, "getting deployment")
	}

	currentMin, err := minifyObject(current)
	if err != nil {
		return cluster.Deployment{}, false, errors.Wrap(err, "minifying current deployment")
	}
	if ignoreImage {
		if err := keepImages(target, currentMin); err != nil {
			return cluster.Deployment{}, false, err
		}
	}
	targetMin, err := Minify(target.Bytes())
	if err != nil {
		return cluster.Deployment{}, false, err
	}

	patch, err := jsonpatch.CreateMergePatch(currentMin, targetMin)
	if err != nil {
		return cluster.Deployment{}, false, errors.Wrap(err, "computing patch")
	}
	if string(patch) == "{}" {
		return cluster.Deployment{}, false, nil
	}
	updated, err := deployments.Patch(ctx, entry.Name, types.MergePatchType, patch, meta_v1.PatchOptions{})
	if err != nil {
		return cluster.Deployment{}, false, errors.Wrap(err, "patching deployment")
	}
	return c.toDeployment(updated, ""), true, nil
}

// keepImages copies the image of each container (and init container)
// in current into the matching container in target. Containers match
// by name, then by image name, then by position.
func keepImages(target *gabs.Container, current []byte) error {
	cur, err := gabs.ParseJSON(current)
	if err != nil {
		return errors.Wrap(err, "parsing current deployment")
	}
	for _, field := range []string{"containers", "initContainers"} {
		path := []string{"spec", "template", "spec", field}
		if !target.Exists(path...) || !cur.Exists(path...) {
			continue
		}
		running, err := cur.Search(path...).Children()
		if err != nil {
			return errors.Wrapf(err, "reading current %s", field)
		}
		targetContainers, err := target.Search(path...).Children()
		if err != nil {
			return errors.Wrapf(err, "reading snapshot %s", field)
		}
		for i, container := range targetContainers {
			j := runningFor(container, running, i)
			if j < 0 || !running[j].Exists("image") {
				continue
			}
			if _, err := container.Set(running[j].Search("image").Data(), "image"); err != nil {
				return err
			}
		}
	}
	return nil
}

// runningFor returns the index in running of the container that
// container (at index in its own list) stands for, or -1.
func runningFor(container *gabs.Container, running []*gabs.Container, index int) int {
	if name, ok := stringAt(container, "name"); ok {
		for j, r := range running {
			if n, ok := stringAt(r, "name"); ok && n == name {
				return j
			}
		}
	}
	if ref, ok := stringAt(container, "image"); ok {
		if want, err := image.FromURL(ref); err == nil {
			for j, r := range running {
				ref, ok := stringAt(r, "image")
				if !ok {
					continue
				}
				if img, err := image.FromURL(ref); err == nil && img.Name == want.Name {
					return j
				}
			}
		}
	}
	if index < len(running) {
		return index
	}
	return -1
}
