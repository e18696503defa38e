package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/image"
)

func parseGroup(s string) (cluster.ServerGroup, error) {
	g, err := cluster.ParseServerGroup(s)
	if err != nil {
		return g, newUsageError(err.Error())
	}
	return g, nil
}

type clustersOpts struct {
	*rootOpts
}

func newClusters(parent *rootOpts) *clustersOpts {
	return &clustersOpts{rootOpts: parent}
}

func (opts *clustersOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "clusters",
		Short:   "List the clusters promoterd can reach.",
		Example: makeExample("promoctl clusters"),
		RunE:    opts.RunE,
	}
}

func (opts *clustersOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	clusters, err := opts.Clusters.Clusters(context.Background())
	if err != nil {
		return err
	}
	return opts.printNames(cmd, "CLUSTER", clusters)
}

func (opts *rootOpts) printNames(cmd *cobra.Command, heading string, names []string) error {
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), names)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "%s\n", heading)
	for _, name := range names {
		fmt.Fprintf(w, "%s\n", name)
	}
	return w.Flush()
}

type namespacesOpts struct {
	*rootOpts
}

func newNamespaces(parent *rootOpts) *namespacesOpts {
	return &namespacesOpts{rootOpts: parent}
}

func (opts *namespacesOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "namespaces <cluster>",
		Short:   "List the namespaces in a cluster.",
		Example: makeExample("promoctl namespaces prod"),
		RunE:    opts.RunE,
	}
}

func (opts *namespacesOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "cluster"); err != nil {
		return err
	}
	namespaces, err := opts.Clusters.Namespaces(context.Background(), args[0])
	if err != nil {
		return err
	}
	return opts.printNames(cmd, "NAMESPACE", namespaces)
}

type podsOpts struct {
	*rootOpts
}

func newPods(parent *rootOpts) *podsOpts {
	return &podsOpts{rootOpts: parent}
}

func (opts *podsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "pods <cluster>[/<namespace>]",
		Short:   "List the pods in a namespace.",
		Example: makeExample("promoctl pods prod/web"),
		RunE:    opts.RunE,
	}
}

func (opts *podsOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	pods, err := opts.Clusters.Pods(context.Background(), group)
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), pods)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "POD\tIMAGE\tREADY\tRESTARTS\n")
	for _, p := range pods {
		restarts := "?"
		if p.Restarts != nil {
			restarts = strconv.Itoa(int(*p.Restarts))
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Image, p.Ready, restarts)
	}
	return w.Flush()
}

type deploymentsOpts struct {
	*rootOpts
}

func newDeployments(parent *rootOpts) *deploymentsOpts {
	return &deploymentsOpts{rootOpts: parent}
}

func (opts *deploymentsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "deployments <cluster>[/<namespace>]",
		Short:   "List the deployments in a namespace, and the image each runs.",
		Example: makeExample("promoctl deployments prod/web"),
		RunE:    opts.RunE,
	}
}

func (opts *deploymentsOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	deployments, err := opts.Clusters.Deployments(context.Background(), group)
	if err != nil {
		return err
	}
	return opts.printDeployments(cmd, deployments)
}

func (opts *rootOpts) printDeployments(cmd *cobra.Command, deployments []cluster.Deployment) error {
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), deployments)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "DEPLOYMENT\tIMAGE\n")
	for _, d := range deployments {
		img := "-"
		if d.Image != nil {
			img = d.Image.URL
		}
		fmt.Fprintf(w, "%s\t%s\n", d.Name, img)
	}
	return w.Flush()
}

type scalersOpts struct {
	*rootOpts
}

func newScalers(parent *rootOpts) *scalersOpts {
	return &scalersOpts{rootOpts: parent}
}

func (opts *scalersOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "scalers <cluster>[/<namespace>]",
		Short:   "List the horizontal autoscalers in a namespace.",
		Example: makeExample("promoctl scalers prod/web"),
		RunE:    opts.RunE,
	}
}

func (opts *scalersOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	scalers, err := opts.Clusters.Scalers(context.Background(), group)
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), scalers)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "SCALER\tCURRENT\tMIN\tMAX\n")
	for _, s := range scalers {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.Name, s.Replicas.Current, s.Replicas.Minimum, s.Replicas.Maximum)
	}
	return w.Flush()
}

type updateDeploymentOpts struct {
	*rootOpts
}

func newUpdateDeployment(parent *rootOpts) *updateDeploymentOpts {
	return &updateDeploymentOpts{rootOpts: parent}
}

func (opts *updateDeploymentOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "update-deployment <cluster>[/<namespace>] <deployment> <image>",
		Short: "Set the image a deployment runs.",
		Example: makeExample(
			"promoctl update-deployment prod/web api registry.example.com/api:1.4.2",
		),
		RunE: opts.RunE,
	}
}

func (opts *updateDeploymentOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group", "deployment", "image"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	img, err := image.FromURL(args[2])
	if err != nil {
		return newUsageError(err.Error())
	}
	d, err := opts.Clusters.UpdateDeployment(context.Background(), group, args[1], img)
	if err != nil {
		return err
	}
	return opts.printDeployments(cmd, []cluster.Deployment{d})
}

type restartDeploymentOpts struct {
	*rootOpts
}

func newRestartDeployment(parent *rootOpts) *restartDeploymentOpts {
	return &restartDeploymentOpts{rootOpts: parent}
}

func (opts *restartDeploymentOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "restart-deployment <cluster>[/<namespace>] <deployment>",
		Short:   "Restart the pods of a deployment, keeping its image.",
		Example: makeExample("promoctl restart-deployment prod/web api"),
		RunE:    opts.RunE,
	}
}

func (opts *restartDeploymentOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group", "deployment"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	d, err := opts.Clusters.RestartDeployment(context.Background(), group, args[1])
	if err != nil {
		return err
	}
	return opts.printDeployments(cmd, []cluster.Deployment{d})
}
