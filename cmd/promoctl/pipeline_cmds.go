package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fluxcd/promoter/pkg/job"
	"github.com/fluxcd/promoter/pkg/pipeline"
)

type pipelinesOpts struct {
	*rootOpts
}

func newPipelines(parent *rootOpts) *pipelinesOpts {
	return &pipelinesOpts{rootOpts: parent}
}

func (opts *pipelinesOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "pipelines",
		Short:   "List the pipelines, what they are doing, and how their last run went.",
		Example: makeExample("promoctl pipelines"),
		RunE:    opts.RunE,
	}
}

func (opts *pipelinesOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	statuses, err := opts.Pipelines.Pipelines(context.Background())
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "PIPELINE\tFROM\tTO\tSTATE\tLAST RUN\tNEXT RUN\n")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Pipeline.Name, s.Pipeline.From, s.Pipeline.Target(), s.State, lastRun(s.LastJob), nextRun(s.Cron))
	}
	return w.Flush()
}

func lastRun(status *job.Status) string {
	if status == nil {
		return "-"
	}
	out := status.StartedAt.UTC().Format(time.RFC3339) + " " + string(status.StatusString)
	if status.Err != "" {
		out += ": " + status.Err
	}
	return out
}

func nextRun(c pipeline.Cron) string {
	if len(c.NextRuns) == 0 {
		return "-"
	}
	return c.NextRuns[0].UTC().Format(time.RFC3339)
}

type planOpts struct {
	*rootOpts
}

func newPlan(parent *rootOpts) *planOpts {
	return &planOpts{rootOpts: parent}
}

func (opts *planOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <pipeline>",
		Short: "Show what a run of the pipeline would change.",
		Example: makeExample(
			"promoctl plan staging",
			"promoctl plan staging -o json > plan.json",
		),
		RunE: opts.RunE,
	}
}

func (opts *planOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "pipeline"); err != nil {
		return err
	}
	plan, err := opts.Pipelines.Plan(context.Background(), args[0])
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), plan)
	}
	if len(plan.Actions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to do for %s.\n", plan.Target)
		return nil
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "DEPLOYMENT\tCURRENT\t\tTARGET\n")
	for _, a := range plan.Actions {
		current := "-"
		if a.Current != nil {
			current = a.Current.URL
		}
		fmt.Fprintf(w, "%s\t%s\t->\t%s\n", a.Deployment, current, a.TargetImage.URL)
	}
	return w.Flush()
}

type applyOpts struct {
	*rootOpts
	file string
}

func newApply(parent *rootOpts) *applyOpts {
	return &applyOpts{rootOpts: parent}
}

func (opts *applyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a plan, as printed by `plan -o json`.",
		Example: makeExample(
			"promoctl apply -f plan.json",
			"promoctl plan staging -o json | promoctl apply",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "Plan file to apply, or - for stdin")
	return cmd
}

func (opts *applyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	var plan pipeline.Plan
	if err := readJSONFile(opts.file, opts.stdin, &plan); err != nil {
		return err
	}
	if plan.Pipeline == "" {
		return newUsageError("the plan does not name a pipeline")
	}
	applied, err := opts.Pipelines.Apply(context.Background(), plan)
	if err != nil {
		return err
	}
	if err := opts.printDeployments(cmd, applied); err != nil {
		return err
	}
	if len(applied) < len(plan.Actions) {
		return errors.Errorf("applied %d of %d actions", len(applied), len(plan.Actions))
	}
	return nil
}

type runOpts struct {
	*rootOpts
}

func newRun(parent *rootOpts) *runOpts {
	return &runOpts{rootOpts: parent}
}

func (opts *runOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "run <pipeline>",
		Short:   "Plan and apply a pipeline now.",
		Example: makeExample("promoctl run staging"),
		RunE:    opts.RunE,
	}
}

func (opts *runOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "pipeline"); err != nil {
		return err
	}
	status, err := opts.Pipelines.Run(context.Background(), args[0], pipeline.TriggerManual)
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s %s.\n", status.ID, status.StatusString)
	if err := opts.printResult(cmd, status.Result); err != nil {
		return err
	}
	if status.StatusString == job.StatusFailed {
		return errors.New(status.Err)
	}
	return nil
}

type schedulesOpts struct {
	*rootOpts
}

func newSchedules(parent *rootOpts) *schedulesOpts {
	return &schedulesOpts{rootOpts: parent}
}

func (opts *schedulesOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "schedules <pipeline>",
		Short:   "Show when the pipeline last ran, and when it will next run.",
		Example: makeExample("promoctl schedules staging"),
		RunE:    opts.RunE,
	}
}

func (opts *schedulesOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "pipeline"); err != nil {
		return err
	}
	c, err := opts.Pipelines.Schedules(context.Background(), args[0])
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), c)
	}
	out := cmd.OutOrStdout()
	if c.LastRun != nil {
		fmt.Fprintf(out, "Last run: %s\n", c.LastRun.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Last run: never\n")
	}
	if len(c.NextRuns) == 0 {
		fmt.Fprintf(out, "Not scheduled.\n")
		return nil
	}
	var next []string
	for _, t := range c.NextRuns {
		next = append(next, "  "+t.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Next runs:\n%s\n", strings.Join(next, "\n"))
	return nil
}
