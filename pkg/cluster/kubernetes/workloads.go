package kubernetes

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	apps "k8s.io/api/apps/v1"
	apiv1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
)

// RestartedAtAnnotation is the pod template annotation that, when
// changed, makes the deployment controller roll out new pods. It is
// the same one `kubectl rollout restart` uses.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

func (c *Cluster) Pods(ctx context.Context, group cluster.ServerGroup) ([]cluster.Pod, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return nil, err
	}
	list, err := client.CoreV1().Pods(ns).List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return nil, cluster.GatewayError("listing pods", group, err)
	}
	pods := make([]cluster.Pod, 0, len(list.Items))
	for _, p := range list.Items {
		if isAddon(&p) {
			continue
		}
		pods = append(pods, toPod(p))
	}
	sort.Slice(pods, func(i, j int) bool { return pods[i].Name < pods[j].Name })
	return pods, nil
}

func toPod(p apiv1.Pod) cluster.Pod {
	pod := cluster.Pod{Name: p.Name}
	if len(p.Spec.Containers) > 0 {
		pod.Image = p.Spec.Containers[0].Image
	}
	if len(p.Status.ContainerStatuses) > 0 {
		var restarts int32
		ready := true
		for _, cs := range p.Status.ContainerStatuses {
			restarts += cs.RestartCount
			ready = ready && cs.Ready
		}
		pod.Restarts = &restarts
		pod.Ready = ready
	}
	return pod
}

func (c *Cluster) Deployments(ctx context.Context, group cluster.ServerGroup) ([]cluster.Deployment, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return nil, err
	}
	list, err := client.AppsV1().Deployments(ns).List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return nil, cluster.GatewayError("listing deployments", group, err)
	}
	deployments := make([]cluster.Deployment, 0, len(list.Items))
	for i := range list.Items {
		d := &list.Items[i]
		if isAddon(d) {
			continue
		}
		deployments = append(deployments, c.toDeployment(d, ""))
	}
	sort.Slice(deployments, func(i, j int) bool { return deployments[i].Name < deployments[j].Name })
	return deployments, nil
}

// toDeployment summarises a deployment. The image is taken from the
// container named by imageName if there is one, otherwise from the
// first container.
func (c *Cluster) toDeployment(d *apps.Deployment, imageName string) cluster.Deployment {
	out := cluster.Deployment{Name: d.Name}
	containers := d.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return out
	}
	i := containerFor(containers, imageName)
	img, err := image.FromURL(containers[i].Image)
	if err != nil {
		c.logger.Log("warning", "unparseable container image", "deployment", d.Name, "image", containers[i].Image, "err", err)
		return out
	}
	out.Image = &img
	return out
}

// containerFor returns the index of the container running an image
// with the given name, or 0 if there is none.
func containerFor(containers []apiv1.Container, imageName string) int {
	if imageName == "" {
		return 0
	}
	for i, container := range containers {
		if img, err := image.FromURL(container.Image); err == nil && img.Name == imageName {
			return i
		}
	}
	return 0
}

func (c *Cluster) Scalers(ctx context.Context, group cluster.ServerGroup) ([]cluster.Scaler, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return nil, err
	}
	list, err := client.AutoscalingV2().HorizontalPodAutoscalers(ns).List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return nil, cluster.GatewayError("listing autoscalers", group, err)
	}
	scalers := make([]cluster.Scaler, 0, len(list.Items))
	for _, hpa := range list.Items {
		minimum := int32(1)
		if hpa.Spec.MinReplicas != nil {
			minimum = *hpa.Spec.MinReplicas
		}
		scalers = append(scalers, cluster.Scaler{
			Name: hpa.Name,
			Replicas: cluster.Replicas{
				Current: hpa.Status.CurrentReplicas,
				Minimum: minimum,
				Maximum: hpa.Spec.MaxReplicas,
			},
		})
	}
	sort.Slice(scalers, func(i, j int) bool { return scalers[i].Name < scalers[j].Name })
	return scalers, nil
}

// UpdateDeployment sets the image of the container running an image of
// the same name, or of the first container if none does.
func (c *Cluster) UpdateDeployment(ctx context.Context, group cluster.ServerGroup, name string, img image.Image) (cluster.Deployment, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return cluster.Deployment{}, err
	}
	deployments := client.AppsV1().Deployments(ns)
	d, err := deployments.Get(ctx, name, meta_v1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return cluster.Deployment{}, cluster.ObjectMissingError(ns+"/"+name, err)
		}
		return cluster.Deployment{}, cluster.GatewayError("getting deployment", group, err)
	}
	containers := d.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return cluster.Deployment{}, cluster.GatewayError("updating deployment", group, errors.Errorf("deployment %q has no containers", name))
	}
	i := containerFor(containers, img.Name)
	containers[i].Image = img.URL

	updated, err := deployments.Update(ctx, d, meta_v1.UpdateOptions{})
	if err != nil {
		return cluster.Deployment{}, cluster.GatewayError("updating deployment", group, err)
	}
	c.logger.Log("updated", name, "cluster", group.Cluster, "namespace", ns, "image", img.URL)
	return c.toDeployment(updated, img.Name), nil
}

// RestartDeployment rolls the pods of a deployment without otherwise
// changing it.
func (c *Cluster) RestartDeployment(ctx context.Context, group cluster.ServerGroup, name string) (cluster.Deployment, error) {
	client, ns, err := c.clientFor(group)
	if err != nil {
		return cluster.Deployment{}, err
	}
	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{
						RestartedAtAnnotation: time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	})
	if err != nil {
		return cluster.Deployment{}, err
	}
	updated, err := client.AppsV1().Deployments(ns).Patch(ctx, name, types.MergePatchType, patch, meta_v1.PatchOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return cluster.Deployment{}, cluster.ObjectMissingError(ns+"/"+name, err)
		}
		return cluster.Deployment{}, cluster.GatewayError("restarting deployment", group, err)
	}
	c.logger.Log("restarted", name, "cluster", group.Cluster, "namespace", ns)
	return c.toDeployment(updated, ""), nil
}
