package ratelimit

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

type algorithmKind int

const (
	kindNone algorithmKind = iota
	kindFixedWindow
	kindSlidingWindow
	kindTokenBucket
	kindLeakyBucket
)

// Builder constructs an Algorithm with a fluent, chainable API, selecting
// among the gateway's four countdown-based algorithms and, optionally, a
// Redis-backed implementation of the selected one. quota and
// durationSeconds are NOT configured here: every Algorithm takes them per
// Countdown call, so the same built instance can serve many distinct
// per-path or per-key limits.
type Builder struct {
	kind       algorithmKind
	bucketSize int64

	redis     redis.UniversalClient
	keyPrefix string
}

// NewBuilder creates an empty Builder. One of the algorithm-selecting
// methods must be called before Build.
func NewBuilder() *Builder {
	return &Builder{keyPrefix: "gateway"}
}

// FixedWindow selects the fixed-window algorithm.
func (b *Builder) FixedWindow() *Builder {
	b.kind = kindFixedWindow
	return b
}

// SlidingWindow selects the sliding-window algorithm.
func (b *Builder) SlidingWindow() *Builder {
	b.kind = kindSlidingWindow
	return b
}

// TokenBucket selects the token-bucket algorithm.
func (b *Builder) TokenBucket() *Builder {
	b.kind = kindTokenBucket
	return b
}

// LeakyBucket selects the leaky-bucket (admission form) algorithm.
// bucketSize bounds the queue depth; quota and duration are still
// supplied per Countdown call.
func (b *Builder) LeakyBucket(bucketSize int64) *Builder {
	b.kind = kindLeakyBucket
	b.bucketSize = bucketSize
	return b
}

// Redis switches the built algorithm to a Redis-backed implementation.
func (b *Builder) Redis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// KeyPrefix sets the storage key prefix for Redis-backed algorithms.
func (b *Builder) KeyPrefix(prefix string) *Builder {
	b.keyPrefix = prefix
	return b
}

// Build constructs the selected Algorithm.
func (b *Builder) Build() (Algorithm, error) {
	switch b.kind {
	case kindFixedWindow:
		if b.redis != nil {
			return NewFixedWindowRedis(b.redis, b.keyPrefix), nil
		}
		return NewFixedWindow(), nil
	case kindSlidingWindow:
		if b.redis != nil {
			return NewSlidingWindowRedis(b.redis, b.keyPrefix), nil
		}
		return NewSlidingWindow(), nil
	case kindTokenBucket:
		if b.redis != nil {
			return NewTokenBucketRedis(b.redis, b.keyPrefix), nil
		}
		return NewTokenBucket(), nil
	case kindLeakyBucket:
		if b.bucketSize <= 0 {
			return nil, fmt.Errorf("ratelimit: bucketSize must be positive")
		}
		if b.redis != nil {
			return NewLeakyBucketRedis(b.redis, b.keyPrefix, b.bucketSize), nil
		}
		return NewLeakyBucket(b.bucketSize), nil
	default:
		return nil, fmt.Errorf("ratelimit: no algorithm selected")
	}
}
