package cache

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
)

// RedisClient keeps registry data in redis. Items expire on their own
// after GracePeriodDeadline.
type RedisClient struct {
	logger log.Logger
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Timeout  time.Duration
	MaxConns int
	Logger   log.Logger
}

func NewRedisClient(config RedisConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     config.MaxConns,
	})
	return &RedisClient{
		logger: config.Logger,
		client: client,
	}
}

func (r *RedisClient) GetKey(k Keyer) ([]byte, time.Time, error) {
	item, err := r.client.Get(k.Key()).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, ErrNotCached
	} else if err != nil {
		r.logger.Log("err", errors.Wrap(err, "fetching from redis"), "key", k.Key())
		return nil, time.Time{}, err
	}
	return EndianGet(item)
}

func (r *RedisClient) SetKey(k Keyer, deadline time.Time, v []byte) error {
	item := EndianCompose(EndianPut(deadline), v)
	if err := r.client.Set(k.Key(), item, GracePeriodDeadline(deadline)).Err(); err != nil {
		r.logger.Log("err", errors.Wrap(err, "storing in redis"), "key", k.Key())
		return err
	}
	return nil
}

// Stop closes the connections to redis.
func (r *RedisClient) Stop() {
	if err := r.client.Close(); err != nil {
		r.logger.Log("err", errors.Wrap(err, "closing redis client"))
	}
}
