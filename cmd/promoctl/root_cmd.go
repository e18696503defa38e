package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxcd/promoter/pkg/config"
	"github.com/fluxcd/promoter/pkg/dispatch"
	"github.com/fluxcd/promoter/pkg/remote"
)

const (
	EnvVariableURL    = "PROMOTER_URL"
	defaultURL        = "http://localhost:3030"
	defaultConfigPath = "promoter.yaml"
)

type rootOpts struct {
	URL          string
	ConfigPath   string
	Timeout      time.Duration
	OutputFormat string

	stdin io.Reader

	Clusters  *remote.ClusterClient
	Registry  *remote.RegistryClient
	Pipelines *remote.PipelineClient
}

func newRoot() *rootOpts {
	return &rootOpts{stdin: os.Stdin}
}

var rootLongHelp = strings.TrimSpace(`
promoctl talks to promoterd, which moves images from one cluster (or
the registry) to the next.

Workflow:
  promoctl pipelines                        # What is set up, and how did it last go?
  promoctl plan staging                     # What would a run change?
  promoctl run staging                      # Change it now, rather than waiting for cron.
  promoctl snapshot prod/web > web.json     # Keep a copy of what's running ...
  promoctl restore prod/web -f web.json     # ... and put it back.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "promoctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", defaultURL,
		fmt.Sprintf("Base URL of the promoterd API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath,
		"promoterd configuration file to take the server address and timeout from, when no URL is given")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", dispatch.DefaultTimeout, "Global command timeout")
	cmd.PersistentFlags().StringVarP(&opts.OutputFormat, "output-format", "o", outputFormatTab, "Output format (tab or json)")

	cmd.AddCommand(
		newClusters(opts).Command(),
		newNamespaces(opts).Command(),
		newPods(opts).Command(),
		newDeployments(opts).Command(),
		newScalers(opts).Command(),
		newUpdateDeployment(opts).Command(),
		newRestartDeployment(opts).Command(),
		newSnapshot(opts).Command(),
		newApplySnapshot(opts, false).Command(),
		newApplySnapshot(opts, true).Command(),
		newImages(opts).Command(),
		newTags(opts).Command(),
		newImage(opts).Command(),
		newPipelines(opts).Command(),
		newPlan(opts).Command(),
		newApply(opts).Command(),
		newRun(opts).Command(),
		newSchedules(opts).Command(),
		newOverview(opts).Command(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	if !outputFormatIsValid(opts.OutputFormat) {
		return errorInvalidOutputFormat
	}

	url, err := opts.endpoint(cmd)
	if err != nil {
		return err
	}
	if url == "" {
		return newUsageError(fmt.Sprintf("please supply the URL of promoterd with --url or %s", EnvVariableURL))
	}
	opts.URL = url

	// The client side needs the operations, but no handlers for them.
	table, err := remote.NewTable(nil, nil, nil)
	if err != nil {
		return err
	}
	d, err := dispatch.New(table, dispatch.Config{
		Layer:    dispatch.Client,
		Endpoint: url,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return err
	}
	opts.Clusters = remote.NewClusterClient(d)
	opts.Registry = remote.NewRegistryClient(d)
	opts.Pipelines = remote.NewPipelineClient(d)
	return nil
}

// endpoint works out where promoterd is: --url, then the environment,
// then the server section of its configuration file. The file also
// supplies the timeout, unless --timeout is given.
func (opts *rootOpts) endpoint(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("url") {
		return opts.URL, nil
	}
	if url := os.Getenv(EnvVariableURL); url != "" {
		return url, nil
	}
	if opts.ConfigPath == "" {
		return opts.URL, nil
	}
	if _, err := os.Stat(opts.ConfigPath); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		return opts.URL, nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return "", err
	}
	if !cmd.Flags().Changed("timeout") {
		opts.Timeout = cfg.Timeout()
	}
	return cfg.Endpoint(), nil
}

func (opts *rootOpts) json() bool {
	return opts.OutputFormat == outputFormatJSON
}
