package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow implements the fixed-window algorithm of spec §4.3: state is
// (windowEnd, count); admissions at the window boundary tie-break to the
// new window.
type FixedWindow struct {
	mu     sync.Mutex
	states map[string]*fixedWindowState
	clock  Clock
}

type fixedWindowState struct {
	windowEnd time.Time
	count     int64
}

// NewFixedWindow creates an in-memory fixed-window limiter.
func NewFixedWindow() *FixedWindow {
	return &FixedWindow{states: make(map[string]*fixedWindowState), clock: SystemClock{}}
}

// WithClock overrides the limiter's clock, for deterministic tests.
func (f *FixedWindow) WithClock(c Clock) *FixedWindow {
	f.clock = c
	return f
}

func (f *FixedWindow) Countdown(_ context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.clock.Now()
	duration := time.Duration(durationSeconds * float64(time.Second))

	s, ok := f.states[key]
	if !ok {
		if quota >= 1 {
			f.states[key] = &fixedWindowState{windowEnd: t.Add(duration), count: 1}
			return Admitted, nil
		}
		f.states[key] = &fixedWindowState{windowEnd: t.Add(duration), count: 0}
		return durationSeconds, nil
	}

	if !t.Before(s.windowEnd) {
		if quota >= 1 {
			s.windowEnd = t.Add(duration)
			s.count = 1
			return Admitted, nil
		}
		s.windowEnd = t.Add(duration)
		s.count = 0
		return durationSeconds, nil
	}

	if s.count >= quota {
		return s.windowEnd.Sub(t).Seconds(), nil
	}

	s.count++
	return Admitted, nil
}

// Reset clears all state for key.
func (f *FixedWindow) Reset(key string) {
	f.mu.Lock()
	delete(f.states, key)
	f.mu.Unlock()
}

// FixedWindowRedis is the Redis-backed variant, made atomic via a Lua
// script so the read-check-write sequence never races across gateway
// instances (windowEnd stored as a unix-seconds float).
type FixedWindowRedis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewFixedWindowRedis creates a Redis-backed fixed-window limiter.
func NewFixedWindowRedis(client redis.UniversalClient, keyPrefix string) *FixedWindowRedis {
	return &FixedWindowRedis{client: client, keyPrefix: keyPrefix}
}

var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local quota = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'window_end', 'count')
local window_end = tonumber(data[1])
local count = tonumber(data[2])

if not window_end then
  if quota >= 1 then
    redis.call('HSET', key, 'window_end', now + duration, 'count', 1)
    redis.call('EXPIRE', key, math.ceil(duration))
    return -1
  else
    redis.call('HSET', key, 'window_end', now + duration, 'count', 0)
    redis.call('EXPIRE', key, math.ceil(duration))
    return duration
  end
end

if now >= window_end then
  if quota >= 1 then
    redis.call('HSET', key, 'window_end', now + duration, 'count', 1)
    redis.call('EXPIRE', key, math.ceil(duration))
    return -1
  else
    redis.call('HSET', key, 'window_end', now + duration, 'count', 0)
    redis.call('EXPIRE', key, math.ceil(duration))
    return duration
  end
end

if count >= quota then
  return window_end - now
end

redis.call('HSET', key, 'count', count + 1)
return -1
`)

func (f *FixedWindowRedis) Countdown(ctx context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	fullKey := f.keyPrefix + ":fw:" + key
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := fixedWindowScript.Run(ctx, f.client, []string{fullKey}, quota, durationSeconds, now).Float64()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: fixed window redis error: %w", err)
	}
	return res, nil
}

func (f *FixedWindowRedis) Reset(ctx context.Context, key string) error {
	return f.client.Del(ctx, f.keyPrefix+":fw:"+key).Err()
}
