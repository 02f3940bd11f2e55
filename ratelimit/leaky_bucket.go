package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeakyBucket implements spec §4.3's leaky-bucket algorithm in admission
// form. State is (lastLeak, count); count never exceeds bucketSize. The
// caller MAY sleep for a returned positive countdown, or MAY treat any
// nonzero delay as an admission failure — both are conformant.
type LeakyBucket struct {
	mu         sync.Mutex
	states     map[string]*leakyBucketState
	bucketSize int64
	clock      Clock
}

type leakyBucketState struct {
	lastLeak time.Time
	count    int64
}

// NewLeakyBucket creates an in-memory leaky-bucket limiter with the given
// queue capacity.
func NewLeakyBucket(bucketSize int64) *LeakyBucket {
	return &LeakyBucket{
		states:     make(map[string]*leakyBucketState),
		bucketSize: bucketSize,
		clock:      SystemClock{},
	}
}

// WithClock overrides the limiter's clock, for deterministic tests.
func (lb *LeakyBucket) WithClock(c Clock) *LeakyBucket {
	lb.clock = c
	return lb
}

func (lb *LeakyBucket) Countdown(_ context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	t := lb.clock.Now()
	leakRate := float64(quota) / durationSeconds

	s, ok := lb.states[key]
	if !ok {
		s = &leakyBucketState{lastLeak: t, count: 0}
		lb.states[key] = s
	}

	elapsed := t.Sub(s.lastLeak).Seconds()
	leaked := int64(math.Floor(elapsed * leakRate))
	count := s.count - leaked
	if count < 0 {
		count = 0
	}

	if count >= lb.bucketSize {
		s.lastLeak = t
		s.count = count
		return 0, &BucketFullError{Key: key}
	}

	if count == 0 {
		s.lastLeak = t
		s.count = 1
		return Admitted, nil
	}

	s.lastLeak = t
	s.count = count + 1
	return float64(count) / leakRate, nil
}

// Reset clears all state for key.
func (lb *LeakyBucket) Reset(key string) {
	lb.mu.Lock()
	delete(lb.states, key)
	lb.mu.Unlock()
}

// LeakyBucketRedis is the Redis-backed variant, atomic via Lua.
type LeakyBucketRedis struct {
	client     redis.UniversalClient
	keyPrefix  string
	bucketSize int64
}

// NewLeakyBucketRedis creates a Redis-backed leaky-bucket limiter.
func NewLeakyBucketRedis(client redis.UniversalClient, keyPrefix string, bucketSize int64) *LeakyBucketRedis {
	return &LeakyBucketRedis{client: client, keyPrefix: keyPrefix, bucketSize: bucketSize}
}

var leakyBucketScript = redis.NewScript(`
local key = KEYS[1]
local quota = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket_size = tonumber(ARGV[4])
local leak_rate = quota / duration

local data = redis.call('HMGET', key, 'last_leak', 'count')
local last_leak = tonumber(data[1])
local count = tonumber(data[2])

if not last_leak then
  last_leak = now
  count = 0
end

local elapsed = now - last_leak
local leaked = math.floor(elapsed * leak_rate)
count = count - leaked
if count < 0 then count = 0 end

if count >= bucket_size then
  redis.call('HSET', key, 'last_leak', now, 'count', count)
  redis.call('EXPIRE', key, math.ceil(duration) * 2)
  return { 1, 0 }
end

if count == 0 then
  redis.call('HSET', key, 'last_leak', now, 'count', 1)
  redis.call('EXPIRE', key, math.ceil(duration) * 2)
  return { 0, -1 }
end

redis.call('HSET', key, 'last_leak', now, 'count', count + 1)
redis.call('EXPIRE', key, math.ceil(duration) * 2)
return { 0, count / leak_rate }
`)

func (lb *LeakyBucketRedis) Countdown(ctx context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	fullKey := lb.keyPrefix + ":lb:" + key
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := leakyBucketScript.Run(ctx, lb.client, []string{fullKey}, quota, durationSeconds, now, lb.bucketSize).Float64Slice()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: leaky bucket redis error: %w", err)
	}
	if res[0] == 1 {
		return 0, &BucketFullError{Key: key}
	}
	return res[1], nil
}

func (lb *LeakyBucketRedis) Reset(ctx context.Context, key string) error {
	return lb.client.Del(ctx, lb.keyPrefix+":lb:"+key).Err()
}
