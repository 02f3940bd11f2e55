package timeout

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_CompletesBeforeDeadline(t *testing.T) {
	err := Run(context.Background(), 1, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRun_ExpiresAndCancelsContext(t *testing.T) {
	var sawCancel bool
	err := Run(context.Background(), 0.01, func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel = true
		return ctx.Err()
	})
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if !sawCancel {
		t.Fatal("expected the inner context to be cancelled")
	}
}

func TestRun_NonPositiveSecondsAlwaysFires(t *testing.T) {
	err := Run(context.Background(), 0, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected immediate timeout, got %v", err)
	}
}
