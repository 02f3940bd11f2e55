package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket implements spec §4.3's token-bucket algorithm. State is
// (lastRefill, tokens); refill is floor-quantized to whole tokens, which
// is deliberate for determinism in tests.
type TokenBucket struct {
	mu     sync.Mutex
	states map[string]*tokenBucketState
	clock  Clock
}

type tokenBucketState struct {
	lastRefill time.Time
	tokens     float64
}

// NewTokenBucket creates an in-memory token-bucket limiter.
func NewTokenBucket() *TokenBucket {
	return &TokenBucket{states: make(map[string]*tokenBucketState), clock: SystemClock{}}
}

// WithClock overrides the limiter's clock, for deterministic tests.
func (tb *TokenBucket) WithClock(c Clock) *TokenBucket {
	tb.clock = c
	return tb
}

func (tb *TokenBucket) Countdown(_ context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	t := tb.clock.Now()
	refillRate := float64(quota) / durationSeconds

	s, ok := tb.states[key]
	if !ok {
		s = &tokenBucketState{lastRefill: t, tokens: float64(quota)}
		tb.states[key] = s
	}

	elapsed := t.Sub(s.lastRefill).Seconds()
	newTokens := math.Min(float64(quota), s.tokens+math.Floor(elapsed*refillRate))

	if newTokens < 1 {
		return (1 - newTokens) / refillRate, nil
	}

	s.lastRefill = t
	s.tokens = newTokens - 1
	return Admitted, nil
}

// Reset clears all state for key.
func (tb *TokenBucket) Reset(key string) {
	tb.mu.Lock()
	delete(tb.states, key)
	tb.mu.Unlock()
}

// TokenBucketRedis is the Redis-backed variant, atomic via Lua.
type TokenBucketRedis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewTokenBucketRedis creates a Redis-backed token-bucket limiter.
func NewTokenBucketRedis(client redis.UniversalClient, keyPrefix string) *TokenBucketRedis {
	return &TokenBucketRedis{client: client, keyPrefix: keyPrefix}
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local quota = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local refill_rate = quota / duration

local data = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(data[1])
local tokens = tonumber(data[2])

if not last_refill then
  last_refill = now
  tokens = quota
end

local elapsed = now - last_refill
local new_tokens = math.min(quota, tokens + math.floor(elapsed * refill_rate))

if new_tokens < 1 then
  redis.call('HSET', key, 'last_refill', last_refill, 'tokens', new_tokens)
  redis.call('EXPIRE', key, math.ceil(duration) * 2)
  return (1 - new_tokens) / refill_rate
end

redis.call('HSET', key, 'last_refill', now, 'tokens', new_tokens - 1)
redis.call('EXPIRE', key, math.ceil(duration) * 2)
return -1
`)

func (tb *TokenBucketRedis) Countdown(ctx context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	fullKey := tb.keyPrefix + ":tb:" + key
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := tokenBucketScript.Run(ctx, tb.client, []string{fullKey}, quota, durationSeconds, now).Float64()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: token bucket redis error: %w", err)
	}
	return res, nil
}

func (tb *TokenBucketRedis) Reset(ctx context.Context, key string) error {
	return tb.client.Del(ctx, tb.keyPrefix+":tb:"+key).Err()
}
