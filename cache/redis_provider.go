package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisProvider is a Provider backed directly by a redis.UniversalClient,
// for deployments that want a shared cache across gateway instances rather
// than the in-memory MemoryProvider.
type RedisProvider struct {
	client goredis.UniversalClient
}

// NewRedisProvider wraps client as a cache Provider.
func NewRedisProvider(client goredis.UniversalClient) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := p.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.client.Set(ctx, key, value, ttl).Err()
}

func (p *RedisProvider) Delete(ctx context.Context, key string) error {
	return p.client.Del(ctx, key).Err()
}

func (p *RedisProvider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (p *RedisProvider) Clear(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}
