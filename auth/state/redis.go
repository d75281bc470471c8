package state

import (
	"context"
	"errors"

	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares credentials between processes through Redis.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store writing keys as "<prefix>:<name>".
func NewRedisStore(rdb redis.UniversalClient, prefix string) (*RedisStore, error) {
	if rdb == nil {
		return nil, trace.BadParameter("missing redis client")
	}
	if prefix == "" {
		prefix = "authclient"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisStore) key(name string) string {
	return r.prefix + ":" + name
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, name string) (string, error) {
	value, err := r.rdb.Get(ctx, r.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", trace.ConnectionProblem(err, "reading %q from redis", name)
	}
	return value, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, name, value string) error {
	if err := r.rdb.Set(ctx, r.key(name), value, 0).Err(); err != nil {
		return trace.ConnectionProblem(err, "writing %q to redis", name)
	}
	return nil
}

// Remove implements Store.
func (r *RedisStore) Remove(ctx context.Context, name string) error {
	if err := r.rdb.Del(ctx, r.key(name)).Err(); err != nil {
		return trace.ConnectionProblem(err, "removing %q from redis", name)
	}
	return nil
}
