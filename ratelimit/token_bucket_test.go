package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket_DrainsThenRefills(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tb := NewTokenBucket().WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if cd, _ := tb.Countdown(ctx, "k", 10, 10); cd != Admitted {
			t.Fatalf("request %d: expected admitted, got %v", i, cd)
		}
	}
	if cd, _ := tb.Countdown(ctx, "k", 10, 10); cd <= 0 {
		t.Fatalf("expected denial once bucket is empty, got %v", cd)
	}

	clock.Advance(1 * time.Second)
	if cd, _ := tb.Countdown(ctx, "k", 10, 10); cd != Admitted {
		t.Fatalf("expected refill of 1 token to admit, got %v", cd)
	}
}

func TestTokenBucket_RefillIsFloorQuantized(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	tb := NewTokenBucket().WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		tb.Countdown(ctx, "k", 10, 10)
	}
	clock.Advance(500 * time.Millisecond)
	if cd, _ := tb.Countdown(ctx, "k", 10, 10); cd <= 0 {
		t.Fatalf("expected half a second (< 1 token at rate 1/s) to still deny, got %v", cd)
	}
}
