package registry

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Warmer keeps the tags of every repository in the registry fresh in
// the cache, so that plans don't wait on the registry.
type Warmer struct {
	cache    *Cached
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger

	// Notify, if set, is called with the tags that have appeared in
	// a repository since it was last warmed.
	Notify func(repo string, added []string)

	seen map[string]map[string]struct{}
}

func NewWarmer(c *Cached, interval, timeout time.Duration, logger log.Logger) (*Warmer, error) {
	if c == nil || interval <= 0 {
		return nil, errors.New("a cache and a positive interval are required")
	}
	return &Warmer{
		cache:    c,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		seen:     map[string]map[string]struct{}{},
	}, nil
}

// Loop warms the cache every interval until stop is closed.
func (w *Warmer) Loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.warmAll()
		select {
		case <-stop:
			w.logger.Log("stopping", "true")
			return
		case <-ticker.C:
		}
	}
}

func (w *Warmer) warmAll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	repos, err := w.cache.next.List(ctx)
	if err != nil {
		w.logger.Log("err", errors.Wrap(err, "listing repositories"))
		return
	}
	for _, repo := range repos {
		if ctx.Err() != nil {
			w.logger.Log("err", errors.Wrap(ctx.Err(), "warming tags"), "remaining", repo)
			return
		}
		w.warm(ctx, repo)
	}
}

func (w *Warmer) warm(ctx context.Context, repo string) {
	tags, err := w.cache.Refresh(ctx, repo)
	if err != nil {
		w.logger.Log("err", errors.Wrap(err, "refreshing tags"), "repo", repo)
		return
	}
	prev, known := w.seen[repo]
	current := make(map[string]struct{}, len(tags))
	var added []string
	for _, tag := range tags {
		current[tag] = struct{}{}
		if _, ok := prev[tag]; !ok {
			added = append(added, tag)
		}
	}
	w.seen[repo] = current
	// The first sighting of a repository isn't news.
	if known && len(added) > 0 && w.Notify != nil {
		w.Notify(repo, added)
	}
}
