package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoizer_HitReturnsCachedResult(t *testing.T) {
	provider := NewMemoryProvider()
	m := New(provider, WithTTL(time.Minute))
	ctx := context.Background()

	calls := 0
	fn := func() (any, error) {
		calls++
		return []byte("result"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := m.Memoize(ctx, "f", []any{"a"}, fn)
		if err != nil {
			t.Fatal(err)
		}
		if string(v.([]byte)) != "result" {
			t.Fatalf("unexpected value: %v", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected fn invoked once, got %d", calls)
	}
}

func TestMemoizer_ExpiredEntryRefetches(t *testing.T) {
	provider := NewMemoryProvider()
	m := New(provider, WithTTL(10*time.Millisecond))
	ctx := context.Background()

	calls := 0
	fn := func() (any, error) {
		calls++
		return []byte("v"), nil
	}

	m.Memoize(ctx, "f", nil, fn)
	time.Sleep(20 * time.Millisecond)
	m.Memoize(ctx, "f", nil, fn)

	if calls != 2 {
		t.Fatalf("expected fn invoked twice after expiry, got %d", calls)
	}
}

func TestMemoryProvider_SetThenGet(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("unexpected get result: %v %v %v", v, ok, err)
	}
}

func TestMemoryProvider_ClearByPrefix(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()
	p.Set(ctx, "a:1", []byte("1"), 0)
	p.Set(ctx, "a:2", []byte("2"), 0)
	p.Set(ctx, "b:1", []byte("3"), 0)

	if err := p.Clear(ctx, "a:"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "a:1"); ok {
		t.Fatal("expected a:1 cleared")
	}
	if _, ok, _ := p.Get(ctx, "b:1"); !ok {
		t.Fatal("expected b:1 to survive prefix clear")
	}
}
