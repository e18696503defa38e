package mock

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/image"
	"github.com/fluxcd/promoter/pkg/registry"
)

// Registry is an in-memory registry.Gateway: a map of repository to
// the tags in it. Every tag resolves to an image on Host.
type Registry struct {
	Host  string
	Repos map[string][]string
	Err   error

	mu    sync.Mutex
	calls map[string]int
}

var _ registry.Gateway = &Registry{}

func (m *Registry) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[method]++
}

// Calls reports how many times method has been called.
func (m *Registry) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// SetTags replaces the tags of a repository, safely with respect to
// concurrent calls.
func (m *Registry) SetTags(repo string, tags []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Repos == nil {
		m.Repos = map[string][]string{}
	}
	m.Repos[repo] = tags
}

func (m *Registry) List(context.Context) ([]string, error) {
	m.count("List")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var repos []string
	for repo := range m.Repos {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos, nil
}

func (m *Registry) Tags(_ context.Context, name string) ([]string, error) {
	m.count("Tags")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tags, ok := m.Repos[name]
	if !ok {
		return nil, registry.MissingError(name, errors.Errorf("no repository %q", name))
	}
	return append([]string{}, tags...), nil
}

func (m *Registry) Image(_ context.Context, name, tag string) (image.Image, error) {
	m.count("Image")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return image.Image{}, m.Err
	}
	if tag == "" {
		tag = registry.DefaultTag
	}
	for _, t := range m.Repos[name] {
		if t == tag {
			return image.Image{
				URL:  m.Host + "/" + name + ":" + tag,
				Name: path.Base(name),
				Tag:  tag,
			}, nil
		}
	}
	return image.Image{}, registry.MissingError(name+":"+tag, errors.Errorf("no tag %q in %q", tag, name))
}
