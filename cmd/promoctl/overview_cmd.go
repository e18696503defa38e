package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxcd/promoter/pkg/remote"
)

type overviewOpts struct {
	*rootOpts
}

func newOverview(parent *rootOpts) *overviewOpts {
	return &overviewOpts{rootOpts: parent}
}

func (opts *overviewOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "overview",
		Short:   "Summarise clusters, pipelines and images. A section that can't be fetched shows its error.",
		Example: makeExample("promoctl overview"),
		RunE:    opts.RunE,
	}
}

func (opts *overviewOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	o := remote.GetOverview(context.Background(), opts.Clusters, opts.Registry, opts.Pipelines)
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), o)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "CLUSTERS\t%s\n", section(strings.Join(o.Clusters, ", "), o.ClustersError))
	var pipelines []string
	for _, p := range o.Pipelines {
		pipelines = append(pipelines, fmt.Sprintf("%s (%s)", p.Pipeline.Name, p.State))
	}
	fmt.Fprintf(w, "PIPELINES\t%s\n", section(strings.Join(pipelines, ", "), o.PipelinesError))
	fmt.Fprintf(w, "IMAGES\t%s\n", section(fmt.Sprintf("%d", len(o.Images)), o.ImagesError))
	return w.Flush()
}

func section(value, err string) string {
	if err != "" {
		return "error: " + err
	}
	if value == "" {
		return "-"
	}
	return value
}
