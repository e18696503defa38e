//go:build integration
// +build integration

package memcached

import (
	"flag"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/promoter/pkg/registry/cache"
)

var (
	memcachedIPs = flag.String("memcached-ips", "127.0.0.1:11211", "space-separated host:port values for memcached to connect to")
)

func TestMemcache_ExpiryReadWrite(t *testing.T) {
	mc, err := NewFixedServerMemcacheClient(MemcacheConfig{
		Timeout: time.Second,
		Logger:  log.With(log.NewLogfmtLogger(os.Stderr), "component", "memcached"),
	}, strings.Fields(*memcachedIPs)...)
	if err != nil {
		t.Fatal(err)
	}
	key := cache.NewTagsKey("registry.test", "team/api")
	val := []byte(`["v1","v2"]`)

	now := time.Now().Round(time.Second)
	if err := mc.SetKey(key, now, val); err != nil {
		t.Fatal(err)
	}

	cached, deadline, err := mc.GetKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if !deadline.Equal(now) {
		t.Fatalf("Deadline should be %s, but is %s", now.String(), deadline.String())
	}
	if string(cached) != string(val) {
		t.Fatalf("Should have returned %q, but got %q", string(val), string(cached))
	}
}

func TestMemcache_Miss(t *testing.T) {
	mc, err := NewFixedServerMemcacheClient(MemcacheConfig{
		Timeout: time.Second,
		Logger:  log.NewNopLogger(),
	}, strings.Fields(*memcachedIPs)...)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := mc.GetKey(cache.NewTagsKey("registry.test", "never/stored")); err != cache.ErrNotCached {
		t.Fatalf("expected a cache miss, got %v", err)
	}
}
