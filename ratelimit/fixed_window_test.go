package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedWindow_AdmitsUpToQuota(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	fw := NewFixedWindow().WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cd, err := fw.Countdown(ctx, "k", 3, 60)
		if err != nil {
			t.Fatal(err)
		}
		if cd != Admitted {
			t.Fatalf("request %d: expected admitted, got %v", i, cd)
		}
	}

	cd, err := fw.Countdown(ctx, "k", 3, 60)
	if err != nil {
		t.Fatal(err)
	}
	if cd <= 0 {
		t.Fatalf("expected positive countdown once quota exhausted, got %v", cd)
	}
}

func TestFixedWindow_ZeroQuotaAlwaysDenies(t *testing.T) {
	fw := NewFixedWindow()
	ctx := context.Background()

	cd, err := fw.Countdown(ctx, "k", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if cd != 5 {
		t.Fatalf("expected countdown == duration for zero quota, got %v", cd)
	}
}

func TestFixedWindow_BoundaryTieBreaksToNewWindow(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	fw := NewFixedWindow().WithClock(clock)
	ctx := context.Background()

	if cd, _ := fw.Countdown(ctx, "k", 1, 10); cd != Admitted {
		t.Fatalf("expected first admit")
	}
	if cd, _ := fw.Countdown(ctx, "k", 1, 10); cd == Admitted {
		t.Fatalf("expected quota exhausted before window rolls")
	}

	clock.Advance(10 * time.Second)
	if cd, _ := fw.Countdown(ctx, "k", 1, 10); cd != Admitted {
		t.Fatalf("expected new window to admit, got %v", cd)
	}
}
