package pipeline

import (
	"context"
	"path"

	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/cluster"
	fluxerr "github.com/fluxcd/promoter/pkg/errors"
	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/policy"
)

// fromImages plans to move each deployment in the target to the
// newest tag matching the expression, from the repository of the same
// name.
func (e *Engine) fromImages(ctx context.Context, desc Description) ([]Action, error) {
	if e.images == nil {
		return nil, fluxerr.UserError("pipeline %s takes images from the registry, but no registry is configured", desc.Name)
	}
	pattern := policy.NewPattern(desc.From.Expression)

	deployments, err := e.clusters.Deployments(ctx, desc.Target())
	if err != nil {
		return nil, err
	}
	repos, err := e.images.List(ctx)
	if err != nil {
		return nil, err
	}

	var actions []Action
	for _, d := range deployments {
		if d.Image == nil {
			continue
		}
		repo, ok := matchRepository(repos, d.Image.Name)
		if !ok {
			continue
		}
		tags, err := e.images.Tags(ctx, repo)
		if err != nil {
			return nil, errors.Wrapf(err, "tags for %s", repo)
		}
		candidates := policy.Filter(pattern, tags)
		latest := image.Latest(candidates)
		if latest == "" || latest == d.Image.Version() {
			continue
		}
		target, err := e.images.Image(ctx, repo, latest)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s:%s", repo, latest)
		}
		actions = append(actions, Action{
			Deployment:  d.Name,
			Current:     d.Image,
			TargetImage: target,
			Candidates:  candidates,
		})
	}
	return actions, nil
}

// matchRepository finds the repository for an image name: one with
// exactly that name, or failing that the first whose last path
// element is the name.
func matchRepository(repos []string, name string) (string, bool) {
	for _, repo := range repos {
		if repo == name {
			return repo, true
		}
	}
	for _, repo := range repos {
		if path.Base(repo) == name {
			return repo, true
		}
	}
	return "", false
}

// fromCluster plans to bring each deployment in the target up to the
// image running in the source cluster, where that is newer.
func (e *Engine) fromCluster(ctx context.Context, desc Description) ([]Action, error) {
	source, err := cluster.ParseServerGroup(desc.From.Expression)
	if err != nil {
		return nil, err
	}
	sourceDeployments, err := e.clusters.Deployments(ctx, source)
	if err != nil {
		return nil, err
	}
	targetDeployments, err := e.clusters.Deployments(ctx, desc.Target())
	if err != nil {
		return nil, err
	}

	running := map[string]*image.Image{}
	for _, d := range sourceDeployments {
		running[d.Name] = d.Image
	}
	var actions []Action
	for _, d := range targetDeployments {
		candidate := running[d.Name]
		if candidate == nil || d.Image == nil {
			continue
		}
		if image.Newer(*candidate, *d.Image) {
			actions = append(actions, Action{
				Deployment:  d.Name,
				Current:     d.Image,
				TargetImage: *candidate,
			})
		}
	}
	return actions, nil
}
