package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/cache"
	"github.com/fluxcd/promoter/pkg/image"
	regcache "github.com/fluxcd/promoter/pkg/registry/cache"
)

// Cached answers from memory when it can, then from the shared cache
// (if there is one), and only then asks the registry. What it gets
// from the registry it writes back to the shared cache, with a
// refresh deadline.
type Cached struct {
	next    Gateway
	host    string
	local   *cache.Cache
	shared  regcache.Client
	refresh time.Duration
	logger  log.Logger
	now     func() time.Time
}

var _ Gateway = &Cached{}

// NewCached wraps next; host is used to key the shared cache, which
// may be nil.
func NewCached(next Gateway, host string, local *cache.Cache, shared regcache.Client, refresh time.Duration, logger log.Logger) *Cached {
	return &Cached{
		next:    next,
		host:    host,
		local:   local,
		shared:  shared,
		refresh: refresh,
		logger:  logger,
		now:     time.Now,
	}
}

func decodeStrings(data []byte) (interface{}, error) {
	var ss []string
	err := json.Unmarshal(data, &ss)
	return ss, err
}

func decodeImage(data []byte) (interface{}, error) {
	var img image.Image
	err := json.Unmarshal(data, &img)
	return img, err
}

func (c *Cached) List(ctx context.Context) ([]string, error) {
	v, err := c.lookup(regcache.NewCatalogKey(c.host), decodeStrings, func() (interface{}, error) {
		return c.next.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cached) Tags(ctx context.Context, name string) ([]string, error) {
	v, err := c.lookup(regcache.NewTagsKey(c.host, name), decodeStrings, func() (interface{}, error) {
		return c.next.Tags(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cached) Image(ctx context.Context, name, tag string) (image.Image, error) {
	if tag == "" {
		tag = DefaultTag
	}
	v, err := c.lookup(regcache.NewImageKey(c.host, name, tag), decodeImage, func() (interface{}, error) {
		return c.next.Image(ctx, name, tag)
	})
	if err != nil {
		return image.Image{}, err
	}
	return v.(image.Image), nil
}

// Refresh fetches the tags of a repository from the registry,
// regardless of what is cached, and stores them.
func (c *Cached) Refresh(ctx context.Context, name string) ([]string, error) {
	k := regcache.NewTagsKey(c.host, name)
	tags, err := c.next.Tags(ctx, name)
	if err != nil {
		return nil, err
	}
	c.store(k, tags)
	c.local.Forget(k.Key())
	return tags, nil
}

func (c *Cached) lookup(k regcache.Keyer, decode func([]byte) (interface{}, error), fetch func() (interface{}, error)) (interface{}, error) {
	return c.local.Calculate(k.Key(), func() (interface{}, error) {
		if v, ok := c.load(k, decode); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store(k, v)
		return v, nil
	})
}

// load returns the value from the shared cache if it is there and
// not yet due for a refresh.
func (c *Cached) load(k regcache.Keyer, decode func([]byte) (interface{}, error)) (interface{}, bool) {
	if c.shared == nil {
		return nil, false
	}
	data, deadline, err := c.shared.GetKey(k)
	if err != nil {
		return nil, false
	}
	if c.now().After(deadline) {
		return nil, false
	}
	v, err := decode(data)
	if err != nil {
		c.logger.Log("err", errors.Wrap(err, "decoding cached registry data"), "key", k.Key())
		return nil, false
	}
	return v, true
}

func (c *Cached) store(k regcache.Keyer, v interface{}) {
	if c.shared == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Log("err", errors.Wrap(err, "encoding registry data"), "key", k.Key())
		return
	}
	// the client logs its own failures
	_ = c.shared.SetKey(k, c.now().Add(c.refresh), data)
}
