/*
	This package implements the shared registry cache using memcached.

Items are given an expiry of twice their refresh deadline (and at
least an hour), so a stale value is still around while it is being
refreshed. memcached will still evict things when under memory
pressure; that's just a cache miss.
*/
package memcached

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/promoter/pkg/registry/cache"
)

// MemcacheClient is a memcache client whose server list is either
// fixed, or taken from SRV records and updated periodically.
type MemcacheClient struct {
	client     *memcache.Client
	serverList *memcache.ServerList
	logger     log.Logger

	quit chan struct{}
	wait sync.WaitGroup
}

var _ cache.Client = &MemcacheClient{}

// MemcacheConfig defines how a MemcacheClient should be constructed.
type MemcacheConfig struct {
	Timeout        time.Duration
	UpdateInterval time.Duration
	MaxIdleConns   int
	Logger         log.Logger
}

func newClient(config MemcacheConfig, servers *memcache.ServerList) *MemcacheClient {
	client := memcache.NewFromSelector(servers)
	client.Timeout = config.Timeout
	client.MaxIdleConns = config.MaxIdleConns
	return &MemcacheClient{
		client:     client,
		serverList: servers,
		logger:     config.Logger,
		quit:       make(chan struct{}),
	}
}

// NewSRVMemcacheClient looks up the servers in the SRV records for
// service on host, and keeps looking them up every UpdateInterval.
func NewSRVMemcacheClient(config MemcacheConfig, host, service string) *MemcacheClient {
	var servers memcache.ServerList
	c := newClient(config, &servers)
	update := func() error {
		return c.updateFromSRVRecords(host, service)
	}
	if err := update(); err != nil {
		config.Logger.Log("err", errors.Wrapf(err, "setting memcache servers from SRV records for %s", host))
	}
	c.wait.Add(1)
	go c.updateLoop(config.UpdateInterval, update)
	return c
}

// NewFixedServerMemcacheClient uses the given addresses, and does not
// use DNS.
func NewFixedServerMemcacheClient(config MemcacheConfig, addresses ...string) (*MemcacheClient, error) {
	var servers memcache.ServerList
	if err := servers.SetServers(addresses...); err != nil {
		return nil, errors.Wrap(err, "setting memcache servers")
	}
	return newClient(config, &servers), nil
}

// GetKey gets the value and its refresh deadline from the cache.
func (c *MemcacheClient) GetKey(k cache.Keyer) ([]byte, time.Time, error) {
	item, err := c.client.Get(k.Key())
	if err == memcache.ErrCacheMiss {
		return nil, time.Time{}, cache.ErrNotCached
	} else if err != nil {
		c.logger.Log("err", errors.Wrap(err, "fetching from memcache"), "key", k.Key())
		return nil, time.Time{}, err
	}
	return cache.EndianGet(item.Value)
}

// SetKey sets the value and its refresh deadline at a key.
func (c *MemcacheClient) SetKey(k cache.Keyer, refreshDeadline time.Time, v []byte) error {
	if err := c.client.Set(&memcache.Item{
		Key:        k.Key(),
		Value:      cache.EndianCompose(cache.EndianPut(refreshDeadline), v),
		Expiration: int32(cache.GracePeriodDeadline(refreshDeadline).Seconds()),
	}); err != nil {
		c.logger.Log("err", errors.Wrap(err, "storing in memcache"), "key", k.Key())
		return err
	}
	return nil
}

// Stop the memcache client.
func (c *MemcacheClient) Stop() {
	close(c.quit)
	c.wait.Wait()
}

func (c *MemcacheClient) updateLoop(updateInterval time.Duration, update func() error) {
	defer c.wait.Done()
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := update(); err != nil {
				c.logger.Log("err", errors.Wrap(err, "updating memcache servers"))
			}
		case <-c.quit:
			return
		}
	}
}

// updateFromSRVRecords sets the server list from SRV records. Priority
// and weight are ignored.
func (c *MemcacheClient) updateFromSRVRecords(host, service string) error {
	_, addrs, err := net.LookupSRV(service, "tcp", host)
	if err != nil {
		return err
	}
	var servers []string
	for _, srv := range addrs {
		servers = append(servers, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
	}
	// The server list maps keys to an _index_, and DNS returns the
	// records in a different order each time.
	sort.Strings(servers)
	return c.serverList.SetServers(servers...)
}
