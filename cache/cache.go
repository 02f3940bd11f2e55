// Package cache provides the gateway's cache engine: a decorator-style
// memoizer over a CacheProvider (spec §4.4), plus an HTTP middleware that
// captures and replays full responses for a configured path.
//
// Entries expire by TTL only: MemoryProvider drops an expired entry when
// it is next read, and there is no size bound or background eviction.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider abstracts the cache backend: get/set/delete/exists/clear, with
// TTL semantics on Set. Implementations must be safe for concurrent use.
type Provider interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, prefix string) error
	Close() error
}

// KeyDeriver builds a cache key from a function's arguments. When nil, the
// default derivation is used: "keyspace:module.func:posArgsJoined".
type KeyDeriver func(args ...any) string

// Encoder converts a function's result to bytes. Identity (fmt.Sprint +
// []byte) is used when nil.
type Encoder func(value any) ([]byte, error)

// Decoder is the inverse of Encoder, used to materialize a cache hit back
// into the caller's expected type.
type Decoder func(data []byte) (any, error)

// Memoizer wraps an arbitrary keyed function with a TTL cache. It does not
// deduplicate concurrent misses for the same key — two concurrent callers
// may both invoke the wrapped function; this is documented behavior, not a
// bug (spec §4.4). Single-flight is a permitted extension, not provided
// here.
type Memoizer struct {
	provider Provider
	keyspace string
	ttl      time.Duration
	deriver  KeyDeriver
	encode   Encoder
	decode   Decoder
}

// Option configures a Memoizer.
type Option func(*Memoizer)

// WithKeyspace sets the prefix prepended to every derived cache key.
func WithKeyspace(keyspace string) Option {
	return func(m *Memoizer) { m.keyspace = keyspace }
}

// WithTTL sets the entry lifetime. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memoizer) { m.ttl = ttl }
}

// WithKeyDeriver overrides the default key-derivation strategy.
func WithKeyDeriver(fn KeyDeriver) Option {
	return func(m *Memoizer) { m.deriver = fn }
}

// WithCodec overrides the default identity encode/decode pair.
func WithCodec(enc Encoder, dec Decoder) Option {
	return func(m *Memoizer) {
		m.encode = enc
		m.decode = dec
	}
}

// New creates a Memoizer backed by provider.
func New(provider Provider, opts ...Option) *Memoizer {
	m := &Memoizer{provider: provider, keyspace: "gateway"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Memoize wraps fn (identified by name, for key derivation) so that
// repeated calls with the same args within the TTL return the cached
// result instead of re-invoking fn.
func (m *Memoizer) Memoize(ctx context.Context, funcName string, args []any, fn func() (any, error)) (any, error) {
	key := m.deriveKey(funcName, args)

	if raw, ok, err := m.provider.Get(ctx, key); err == nil && ok {
		return m.decodeValue(raw)
	}

	result, err := fn()
	if err != nil {
		return nil, err
	}

	encoded, err := m.encodeValue(result)
	if err == nil {
		_ = m.provider.Set(ctx, key, encoded, m.ttl)
	}
	return result, nil
}

func (m *Memoizer) deriveKey(funcName string, args []any) string {
	if m.deriver != nil {
		return m.keyspace + ":" + m.deriver(args...)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = toString(a)
	}
	return m.keyspace + ":" + funcName + ":" + strings.Join(parts, ":")
}

func (m *Memoizer) encodeValue(v any) ([]byte, error) {
	if m.encode != nil {
		return m.encode(v)
	}
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return []byte(toString(v)), nil
}

func (m *Memoizer) decodeValue(data []byte) (any, error) {
	if m.decode != nil {
		return m.decode(data)
	}
	return data, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}
