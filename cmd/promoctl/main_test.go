package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/promoter/pkg/cluster"
	clustermock "github.com/fluxcd/promoter/pkg/cluster/mock"
	"github.com/fluxcd/promoter/pkg/config"
	"github.com/fluxcd/promoter/pkg/dispatch"
	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/pipeline"
	registrymock "github.com/fluxcd/promoter/pkg/registry/mock"
	"github.com/fluxcd/promoter/pkg/remote"
)

func newServer(t *testing.T) *httptest.Server {
	clusters := &clustermock.Mock{
		ClustersFunc: func(context.Context) ([]string, error) {
			return []string{"develop", "prod"}, nil
		},
		DeploymentsFunc: func(context.Context, cluster.ServerGroup) ([]cluster.Deployment, error) {
			return []cluster.Deployment{{Name: "api", Image: &image.Image{URL: "registry/api:v1", Name: "api"}}}, nil
		},
		UpdateDeploymentFunc: func(_ context.Context, _ cluster.ServerGroup, name string, img image.Image) (cluster.Deployment, error) {
			return cluster.Deployment{Name: name, Image: &img}, nil
		},
		TakeSnapshotFunc: func(_ context.Context, g cluster.ServerGroup) (cluster.Snapshot, error) {
			return cluster.Snapshot{Deployments: []cluster.SnapshotEntry{
				{Name: "api", Data: json.RawMessage(`{"metadata":{"name":"api"}}`)},
			}}, nil
		},
		ApplySnapshotFunc: func(_ context.Context, _ cluster.ServerGroup, s cluster.Snapshot, ignoreImage bool) (cluster.ApplyResult, error) {
			var result cluster.ApplyResult
			for _, d := range s.Deployments {
				result.Skipped = append(result.Skipped, d.Name)
			}
			return result, nil
		},
	}
	images := &registrymock.Registry{Host: "registry", Repos: map[string][]string{
		"api":      {"v1", "v2", "latest"},
		"team/web": {"1.0.0"},
	}}
	engine, err := pipeline.New([]pipeline.Description{{
		Name:    "develop-job",
		Cluster: "develop",
		From:    pipeline.Source{Type: pipeline.SourceImage, Expression: `^(?!.*latest).*$`},
	}}, clusters, images, nil, log.NewNopLogger())
	require.NoError(t, err)

	table, err := remote.NewTable(clusters, images, engine)
	require.NoError(t, err)
	d, err := dispatch.New(table, dispatch.Config{Layer: dispatch.Server})
	require.NoError(t, err)
	return httptest.NewServer(dispatch.NewHandler(d, dispatch.NewRouter(table)))
}

func execute(url, stdin string, args ...string) (string, error) {
	opts := newRoot()
	opts.stdin = strings.NewReader(stdin)
	cmd := opts.Command()
	var out bytes.Buffer
	cmd.SetOutput(&out)
	cmd.SetArgs(append([]string{"--url", url}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestListCommands(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	out, err := execute(srv.URL, "", "clusters")
	require.NoError(t, err)
	assert.Contains(t, out, "CLUSTER")
	assert.Contains(t, out, "develop")
	assert.Contains(t, out, "prod")

	out, err = execute(srv.URL, "", "clusters", "-o", "json")
	require.NoError(t, err)
	var clusters []string
	require.NoError(t, json.Unmarshal([]byte(out), &clusters))
	assert.Equal(t, []string{"develop", "prod"}, clusters)

	out, err = execute(srv.URL, "", "deployments", "develop")
	require.NoError(t, err)
	assert.Contains(t, out, "registry/api:v1")

	out, err = execute(srv.URL, "", "tags", "team/web")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")

	out, err = execute(srv.URL, "", "image", "api")
	require.NoError(t, err)
	assert.Contains(t, out, "latest")
}

func TestUsageErrors(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	for _, args := range [][]string{
		{"clusters", "extra"},
		{"pods"},
		{"pods", "/web"},
		{"image", "api", "v1", "v2"},
		{"update-deployment", "develop", "api", "registry/api:"},
		{"clusters", "-o", "yaml"},
	} {
		_, err := execute(srv.URL, "", args...)
		require.Error(t, err, "%v", args)
		_, ok := err.(*usageError)
		assert.True(t, ok, "%v: expected usage error, got %T", args, err)
	}
}

func TestPlanApplyRun(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	out, err := execute(srv.URL, "", "plan", "develop-job")
	require.NoError(t, err)
	assert.Contains(t, out, "registry/api:v1")
	assert.Contains(t, out, "registry/api:v2")

	planJSON, err := execute(srv.URL, "", "plan", "develop-job", "-o", "json")
	require.NoError(t, err)
	out, err = execute(srv.URL, planJSON, "apply")
	require.NoError(t, err)
	assert.Contains(t, out, "registry/api:v2")

	out, err = execute(srv.URL, "", "run", "develop-job")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")

	out, err = execute(srv.URL, "", "pipelines")
	require.NoError(t, err)
	assert.Contains(t, out, "develop-job")
	assert.Contains(t, out, "succeeded")

	_, err = execute(srv.URL, "", "plan", "nope")
	assert.Error(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	snapshot, err := execute(srv.URL, "", "snapshot", "develop/web")
	require.NoError(t, err)
	var s cluster.Snapshot
	require.NoError(t, json.Unmarshal([]byte(snapshot), &s))
	require.Len(t, s.Deployments, 1)

	for _, command := range []string{"apply-snapshot", "restore"} {
		out, err := execute(srv.URL, snapshot, command, "prod/web", "--ignore-image")
		require.NoError(t, err, command)
		assert.Contains(t, out, "unchanged", command)
	}
}

func TestOverview(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	out, err := execute(srv.URL, "", "overview")
	require.NoError(t, err)
	assert.Contains(t, out, "develop, prod")
	assert.Contains(t, out, "develop-job (idle)")
	assert.Contains(t, out, "2")
}

func TestEndpointFromConfig(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()
	t.Setenv(EnvVariableURL, "")

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	dir, err := ioutil.TempDir("", "promoctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "promoter.yaml")
	cfg := fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %s\ntimeoutSeconds: 7\n", port)
	require.NoError(t, ioutil.WriteFile(path, []byte(cfg), 0600))

	opts := newRoot()
	cmd := opts.Command()
	var out bytes.Buffer
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"clusters", "--config", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "develop")
	assert.Equal(t, "http://127.0.0.1:"+port, opts.URL)
	assert.Equal(t, 7*time.Second, opts.Timeout)

	// --url wins over the configuration file
	opts = newRoot()
	cmd = opts.Command()
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"clusters", "--config", path, "--url", srv.URL, "--timeout", "3s"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, srv.URL, opts.URL)
	assert.Equal(t, 3*time.Second, opts.Timeout)

	// so does the environment
	t.Setenv(EnvVariableURL, srv.URL)
	opts = newRoot()
	cmd = opts.Command()
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"clusters", "--config", filepath.Join(dir, "missing.yaml")})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, srv.URL, opts.URL)

	t.Setenv(EnvVariableURL, "")
	opts = newRoot()
	cmd = opts.Command()
	cmd.SetOutput(&out)
	cmd.SetArgs([]string{"clusters", "--config", filepath.Join(dir, "missing.yaml")})
	err = cmd.Execute()
	assert.IsType(t, &config.Error{}, err)
}
