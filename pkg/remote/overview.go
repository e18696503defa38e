package remote

import (
	"context"
	"sync"

	"github.com/fluxcd/promoter/pkg/cluster"
	"github.com/fluxcd/promoter/pkg/pipeline"
	"github.com/fluxcd/promoter/pkg/registry"
)

// Overview is a summary of everything the promoter looks after. Each
// section is fetched independently; one that fails carries its error
// and doesn't stop the others.
type Overview struct {
	Clusters       []string          `json:"clusters,omitempty"`
	ClustersError  string            `json:"clustersError,omitempty"`
	Pipelines      []pipeline.Status `json:"pipelines,omitempty"`
	PipelinesError string            `json:"pipelinesError,omitempty"`
	Images         []string          `json:"images,omitempty"`
	ImagesError    string            `json:"imagesError,omitempty"`
}

func GetOverview(ctx context.Context, clusters cluster.Gateway, images registry.Gateway, pipelines PipelineServer) Overview {
	var (
		o  Overview
		wg sync.WaitGroup
	)
	errString := func(err error) string {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		o.Clusters, err = clusters.Clusters(ctx)
		o.ClustersError = errString(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		o.Pipelines, err = pipelines.Pipelines(ctx)
		o.PipelinesError = errString(err)
	}()
	go func() {
		defer wg.Done()
		var err error
		o.Images, err = images.List(ctx)
		o.ImagesError = errString(err)
	}()
	wg.Wait()
	return o
}
