//go:build integration
// +build integration

package cache

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
)

var redisAddr = flag.String("redis-addr", "127.0.0.1:6379", "host:port of redis to connect to")

func newRedisClient() *RedisClient {
	return NewRedisClient(RedisConfig{
		Addr:    *redisAddr,
		Timeout: time.Second,
		Logger:  log.NewLogfmtLogger(os.Stderr),
	})
}

func TestRedisClient_CacheMiss(t *testing.T) {
	c := newRedisClient()
	defer c.Stop()
	k := NewTagsKey("registry.test", fmt.Sprintf("random-%d", rand.Int31()))

	_, _, err := c.GetKey(k)
	assert.Equal(t, ErrNotCached, err)
}

func TestRedisClient_ExpiryReadWrite(t *testing.T) {
	c := newRedisClient()
	defer c.Stop()
	k := NewTagsKey("registry.test", "team/api")
	val := []byte(`["v1","v2"]`)
	defer c.client.Del(k.Key())

	now := time.Now().Round(time.Second)
	assert.NoError(t, c.SetKey(k, now, val))

	cached, deadline, err := c.GetKey(k)
	assert.NoError(t, err)
	assert.True(t, now.Equal(deadline))
	assert.Equal(t, string(val), string(cached))
}
