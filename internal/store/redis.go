package store

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects and pings. dialTimeout bounds both, so an unreachable
// server fails fast instead of stalling startup.
func NewRedisKV(ctx context.Context, redisURL string, dialTimeout time.Duration) (*RedisKV, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if dialTimeout > 0 {
		opt.DialTimeout = dialTimeout
	}
	opt.MaxRetries = -1
	c := redis.NewClient(opt)

	pingCtx := ctx
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &RedisKV{client: c}, nil
}

func (s *RedisKV) Close() error { return s.client.Close() }

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
