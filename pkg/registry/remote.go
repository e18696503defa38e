package registry

import (
	"context"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/registry/middleware"
)

// Remote is a Gateway talking to a single registry over the
// distribution API. Credentials come from the docker config, as for
// `docker pull`.
type Remote struct {
	registry name.Registry
	limiters *middleware.RateLimiters
	options  []remote.Option
	logger   log.Logger
}

var _ Gateway = &Remote{}

// NewRemote makes a Gateway for the registry at url, which may carry
// a scheme (`http://` meaning the registry is insecure). An empty url
// means Docker Hub.
func NewRemote(url string, limiters *middleware.RateLimiters, logger log.Logger) (*Remote, error) {
	var opts []name.Option
	host := url
	switch {
	case strings.HasPrefix(host, "http://"):
		opts = append(opts, name.Insecure)
		host = strings.TrimPrefix(host, "http://")
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = name.DefaultRegistry
	}
	reg, err := name.NewRegistry(host, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing registry %q", url)
	}
	return &Remote{
		registry: reg,
		limiters: limiters,
		options: []remote.Option{
			remote.WithAuthFromKeychain(authn.DefaultKeychain),
			remote.WithTransport(limiters.Transport(http.DefaultTransport, reg.RegistryStr())),
		},
		logger: logger,
	}, nil
}

// Host is the registry host, as it appears in image URLs.
func (r *Remote) Host() string {
	return r.registry.RegistryStr()
}

func (r *Remote) opts(ctx context.Context) []remote.Option {
	return append([]remote.Option{remote.WithContext(ctx)}, r.options...)
}

// fail turns an error from the registry into a Gateway error. Not
// found (and, since registries use it to avoid revealing what exists,
// unauthorized) means missing.
func (r *Remote) fail(op, what string, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusNotFound, http.StatusUnauthorized:
			return MissingError(what, err)
		}
	}
	return GatewayError(op, r.Host(), err)
}

func (r *Remote) List(ctx context.Context) ([]string, error) {
	repos, err := remote.Catalog(ctx, r.registry, r.options...)
	if err != nil {
		return nil, r.fail("listing repositories", "catalog", err)
	}
	r.limiters.Recover(r.Host())
	sort.Strings(repos)
	return repos, nil
}

func (r *Remote) Tags(ctx context.Context, repo string) ([]string, error) {
	tags, err := remote.List(r.registry.Repo(repo), r.opts(ctx)...)
	if err != nil {
		return nil, r.fail("listing tags", repo, err)
	}
	r.limiters.Recover(r.Host())
	sort.Strings(tags)
	return tags, nil
}

func (r *Remote) Image(ctx context.Context, repo, tag string) (image.Image, error) {
	if tag == "" {
		tag = DefaultTag
	}
	desc, err := remote.Head(r.registry.Repo(repo).Tag(tag), r.opts(ctx)...)
	if err != nil {
		return image.Image{}, r.fail("resolving tag", repo+":"+tag, err)
	}
	r.limiters.Recover(r.Host())
	return image.Image{
		URL:    r.Host() + "/" + repo + ":" + tag,
		Name:   path.Base(repo),
		Tag:    tag,
		Digest: desc.Digest.String(),
	}, nil
}
