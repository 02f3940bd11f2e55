package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLeakyBucket_FirstCallAdmitsImmediately(t *testing.T) {
	lb := NewLeakyBucket(5)
	cd, err := lb.Countdown(context.Background(), "k", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if cd != Admitted {
		t.Fatalf("expected admitted, got %v", cd)
	}
}

func TestLeakyBucket_FillsToCapacityThenFails(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	lb := NewLeakyBucket(2).WithClock(clock)
	ctx := context.Background()

	if cd, _ := lb.Countdown(ctx, "k", 1, 100); cd != Admitted {
		t.Fatalf("expected first admit")
	}
	if cd, err := lb.Countdown(ctx, "k", 1, 100); err != nil || cd == Admitted {
		t.Fatalf("expected queued delay, got cd=%v err=%v", cd, err)
	}

	_, err := lb.Countdown(ctx, "k", 1, 100)
	var full *BucketFullError
	if !errors.As(err, &full) {
		t.Fatalf("expected BucketFullError, got %v", err)
	}
}

func TestLeakyBucket_CountNeverExceedsBucketSize(t *testing.T) {
	lb := NewLeakyBucket(3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		lb.Countdown(ctx, "k", 1, 1000)
	}
	s := lb.states["k"]
	if s.count > 3 {
		t.Fatalf("expected count <= bucketSize, got %d", s.count)
	}
}
