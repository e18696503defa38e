package kubernetes

import (
	"context"
	"sort"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	meta_v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/fluxcd/promoter/pkg/cluster"
	fluxerr "github.com/fluxcd/promoter/pkg/errors"
)

// --- add-ons

// Kubernetes has a mechanism of "Add-ons", whereby manifest files
// left in a particular directory on the Kubernetes master will be
// applied. We can recognise these, because they:
//  1. Must be in the namespace `kube-system`; and,
//  2. Must have one of the labels below set, else the addon manager will ignore them.
//
// We want to ignore add-ons, since they are managed by the add-on
// manager, and attempts to control them via other means will fail.

// k8sObject represents an value from which you can obtain typical
// Kubernetes metadata. These methods are implemented by the
// Kubernetes API resource types.
type k8sObject interface {
	GetName() string
	GetNamespace() string
	GetLabels() map[string]string
	GetAnnotations() map[string]string
}

func isAddon(obj k8sObject) bool {
	if obj.GetNamespace() != "kube-system" {
		return false
	}
	labels := obj.GetLabels()
	if labels["kubernetes.io/cluster-service"] == "true" ||
		labels["addonmanager.kubernetes.io/mode"] == "EnsureExists" ||
		labels["addonmanager.kubernetes.io/mode"] == "Reconcile" {
		return true
	}
	return false
}

// --- /add ons

// Cluster is a handle to a set of Kubernetes API servers, one per
// kubeconfig context.
type Cluster struct {
	clients map[string]k8sclient.Interface
	names   []string
	logger  log.Logger

	allowedNamespaces []string
	loggedAllowedNS   map[string]bool // to keep track of whether we've logged a problem with seeing an allowed namespace
	mu                sync.Mutex
}

var _ cluster.Gateway = &Cluster{}

// NewCluster returns a usable cluster gateway over the given clients,
// keyed by cluster name.
func NewCluster(clients map[string]k8sclient.Interface, logger log.Logger, allowedNamespaces []string) *Cluster {
	var names []string
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Cluster{
		clients:           clients,
		names:             names,
		logger:            logger,
		allowedNamespaces: allowedNamespaces,
		loggedAllowedNS:   map[string]bool{},
	}
}

// NewClusterFromKubeconfig makes a client for every context in the
// kubeconfig file at path. An empty path uses the usual loading rules
// ($KUBECONFIG, then ~/.kube/config).
func NewClusterFromKubeconfig(path string, logger log.Logger, allowedNamespaces []string) (*Cluster, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	config, err := rules.Load()
	if err != nil {
		return nil, errors.Wrapf(err, "loading kubeconfig %q", path)
	}
	clients := map[string]k8sclient.Interface{}
	for name := range config.Contexts {
		restConfig, err := clientcmd.NewNonInteractiveClientConfig(*config, name, &clientcmd.ConfigOverrides{}, rules).ClientConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "building client config for context %q", name)
		}
		client, err := k8sclient.NewForConfig(restConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "creating client for context %q", name)
		}
		clients[name] = client
	}
	if len(clients) == 0 {
		return nil, errors.Errorf("kubeconfig %q has no contexts", path)
	}
	logger.Log("clusters", len(clients))
	return NewCluster(clients, logger, allowedNamespaces), nil
}

func (c *Cluster) client(name string) (k8sclient.Interface, error) {
	client, ok := c.clients[name]
	if !ok {
		return nil, cluster.UnknownClusterError(name)
	}
	return client, nil
}

// clientFor checks the group refers to a known cluster and an allowed
// namespace, and returns the client for the cluster along with the
// namespace to use.
func (c *Cluster) clientFor(group cluster.ServerGroup) (k8sclient.Interface, string, error) {
	group = group.WithDefaults()
	client, err := c.client(group.Cluster)
	if err != nil {
		return nil, "", err
	}
	if !c.isAllowedNamespace(group.Namespace) {
		return nil, "", &fluxerr.Error{
			Type: fluxerr.User,
			Err:  errors.Errorf("namespace %q is not in the allowed namespaces", group.Namespace),
			Help: "The promoter is configured to only look at the namespaces " +
				"listed under `namespaces` in its configuration.",
		}
	}
	return client, group.Namespace, nil
}

func (c *Cluster) isAllowedNamespace(ns string) bool {
	if len(c.allowedNamespaces) == 0 {
		return true
	}
	for _, allowed := range c.allowedNamespaces {
		if allowed == ns {
			return true
		}
	}
	return false
}

// --- cluster.Gateway

func (c *Cluster) Clusters(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, c.names...), nil
}

// Namespaces lists the namespaces of a cluster, restricted to the
// allowed namespaces if there are any.
func (c *Cluster) Namespaces(ctx context.Context, name string) ([]string, error) {
	client, err := c.client(name)
	if err != nil {
		return nil, err
	}
	if len(c.allowedNamespaces) > 0 {
		return c.getAllowedAndExistingNamespaces(ctx, name, client)
	}
	list, err := client.CoreV1().Namespaces().List(ctx, meta_v1.ListOptions{})
	if err != nil {
		return nil, cluster.GatewayError("listing namespaces", cluster.ServerGroup{Cluster: name}, err)
	}
	var namespaces []string
	for _, ns := range list.Items {
		namespaces = append(namespaces, ns.Name)
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

// getAllowedAndExistingNamespaces returns those of the allowed
// namespaces that exist and can be seen in the cluster.
func (c *Cluster) getAllowedAndExistingNamespaces(ctx context.Context, name string, client k8sclient.Interface) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nsList := []string{}
	for _, ns := range c.allowedNamespaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logKey := name + "/" + ns
		_, err := client.CoreV1().Namespaces().Get(ctx, ns, meta_v1.GetOptions{})
		switch {
		case err == nil:
			c.loggedAllowedNS[logKey] = false // reset, so if the namespace goes away we'll log it again
			nsList = append(nsList, ns)
		case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err) || apierrors.IsNotFound(err):
			if !c.loggedAllowedNS[logKey] {
				c.logger.Log("warning", "cannot access allowed namespace",
					"cluster", name, "namespace", ns, "err", err)
				c.loggedAllowedNS[logKey] = true
			}
		default:
			return nil, cluster.GatewayError("getting namespace", cluster.ServerGroup{Cluster: name, Namespace: ns}, err)
		}
	}
	return nsList, nil
}
