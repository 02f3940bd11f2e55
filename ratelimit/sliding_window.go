package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow implements spec §4.3's sliding-window algorithm: a
// leaky-count approximation of a true sliding window, not per-event
// history. State is (anchor, count).
type SlidingWindow struct {
	mu     sync.Mutex
	states map[string]*slidingWindowState
	clock  Clock
}

type slidingWindowState struct {
	anchor time.Time
	count  int64
}

// NewSlidingWindow creates an in-memory sliding-window limiter.
func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{states: make(map[string]*slidingWindowState), clock: SystemClock{}}
}

// WithClock overrides the limiter's clock, for deterministic tests.
func (s *SlidingWindow) WithClock(c Clock) *SlidingWindow {
	s.clock = c
	return s
}

func (s *SlidingWindow) Countdown(_ context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.clock.Now()

	st, ok := s.states[key]
	if !ok {
		s.states[key] = &slidingWindowState{anchor: t, count: 1}
		return Admitted, nil
	}

	elapsed := t.Sub(st.anchor).Seconds()
	if elapsed >= durationSeconds {
		st.anchor = t
		st.count = 1
		return Admitted, nil
	}

	progress := math.Mod(elapsed, durationSeconds)
	effectiveCount := st.count - int64(math.Floor(elapsed/durationSeconds))*quota
	if effectiveCount < 0 {
		effectiveCount = 0
	}

	if effectiveCount >= quota {
		wait := (durationSeconds - progress) + (float64(effectiveCount-quota+1)/float64(quota))*durationSeconds
		return wait, nil
	}

	st.anchor = t.Add(-time.Duration(progress * float64(time.Second)))
	st.count = effectiveCount + 1
	return Admitted, nil
}

// Reset clears all state for key.
func (s *SlidingWindow) Reset(key string) {
	s.mu.Lock()
	delete(s.states, key)
	s.mu.Unlock()
}

// SlidingWindowRedis is the Redis-backed variant, atomic via Lua.
type SlidingWindowRedis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewSlidingWindowRedis creates a Redis-backed sliding-window limiter.
func NewSlidingWindowRedis(client redis.UniversalClient, keyPrefix string) *SlidingWindowRedis {
	return &SlidingWindowRedis{client: client, keyPrefix: keyPrefix}
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local quota = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'anchor', 'count')
local anchor = tonumber(data[1])
local count = tonumber(data[2])

if not anchor then
  redis.call('HSET', key, 'anchor', now, 'count', 1)
  redis.call('EXPIRE', key, math.ceil(duration))
  return -1
end

local elapsed = now - anchor
if elapsed >= duration then
  redis.call('HSET', key, 'anchor', now, 'count', 1)
  redis.call('EXPIRE', key, math.ceil(duration))
  return -1
end

local progress = elapsed % duration
local effective_count = count - math.floor(elapsed / duration) * quota
if effective_count < 0 then effective_count = 0 end

if effective_count >= quota then
  return (duration - progress) + ((effective_count - quota + 1) / quota) * duration
end

redis.call('HSET', key, 'anchor', now - progress, 'count', effective_count + 1)
redis.call('EXPIRE', key, math.ceil(duration))
return -1
`)

func (s *SlidingWindowRedis) Countdown(ctx context.Context, key string, quota int64, durationSeconds float64) (float64, error) {
	fullKey := s.keyPrefix + ":sw:" + key
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := slidingWindowScript.Run(ctx, s.client, []string{fullKey}, quota, durationSeconds, now).Float64()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: sliding window redis error: %w", err)
	}
	return res, nil
}

func (s *SlidingWindowRedis) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.keyPrefix+":sw:"+key).Err()
}
