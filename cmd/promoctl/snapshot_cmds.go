package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fluxcd/promoter/pkg/cluster"
)

type snapshotOpts struct {
	*rootOpts
}

func newSnapshot(parent *rootOpts) *snapshotOpts {
	return &snapshotOpts{rootOpts: parent}
}

func (opts *snapshotOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "snapshot <cluster>[/<namespace>]",
		Short:   "Print a snapshot of the deployments in a namespace, as JSON.",
		Example: makeExample("promoctl snapshot prod/web > web.json"),
		RunE:    opts.RunE,
	}
}

func (opts *snapshotOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	snapshot, err := opts.Clusters.TakeSnapshot(context.Background(), group)
	if err != nil {
		return err
	}
	// A snapshot is only useful as something to apply later.
	return writeJSON(cmd.OutOrStdout(), snapshot)
}

// applySnapshotOpts serves both apply-snapshot, which goes straight to
// the cluster, and restore, which goes through the pipeline engine
// and so is reported as an event.
type applySnapshotOpts struct {
	*rootOpts
	restore     bool
	file        string
	ignoreImage bool
}

func newApplySnapshot(parent *rootOpts, restore bool) *applySnapshotOpts {
	return &applySnapshotOpts{rootOpts: parent, restore: restore}
}

func (opts *applySnapshotOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apply-snapshot <cluster>[/<namespace>]",
		Short:   "Make the deployments in a namespace match a snapshot.",
		Example: makeExample("promoctl apply-snapshot staging/web -f web.json --ignore-image"),
		RunE:    opts.RunE,
	}
	if opts.restore {
		cmd.Use = "restore <cluster>[/<namespace>]"
		cmd.Short = "Make the deployments in a namespace match a snapshot, and report it as an event."
		cmd.Example = makeExample("promoctl restore prod/web -f web.json")
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "Snapshot file to apply, or - for stdin")
	cmd.Flags().BoolVar(&opts.ignoreImage, "ignore-image", false, "Keep the images currently running")
	return cmd
}

func (opts *applySnapshotOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "group"); err != nil {
		return err
	}
	group, err := parseGroup(args[0])
	if err != nil {
		return err
	}
	var snapshot cluster.Snapshot
	if err := readJSONFile(opts.file, opts.stdin, &snapshot); err != nil {
		return err
	}

	var result cluster.ApplyResult
	if opts.restore {
		result, err = opts.Pipelines.Restore(context.Background(), group, snapshot, opts.ignoreImage)
	} else {
		result, err = opts.Clusters.ApplySnapshot(context.Background(), group, snapshot, opts.ignoreImage)
	}
	if err != nil {
		return err
	}
	if err := opts.printResult(cmd, result); err != nil {
		return err
	}
	if len(result.Errored) > 0 {
		return errors.New(result.String())
	}
	return nil
}

func (opts *rootOpts) printResult(cmd *cobra.Command, result cluster.ApplyResult) error {
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "DEPLOYMENT\tRESULT\tDETAIL\n")
	for _, d := range result.Applied {
		detail := ""
		if d.Image != nil {
			detail = d.Image.URL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, "applied", detail)
	}
	for _, name := range result.Skipped {
		fmt.Fprintf(w, "%s\t%s\t\n", name, "unchanged")
	}
	for _, e := range result.Errored {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Deployment, "failed", e.Error)
	}
	return w.Flush()
}

func readJSONFile(path string, stdin io.Reader, v interface{}) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = ioutil.ReadAll(stdin)
	} else {
		data, err = ioutil.ReadFile(path)
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}
