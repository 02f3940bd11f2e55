package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, WithMaxAttempts(3))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestDo_RetriesUpToMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	}, WithMaxAttempts(3), WithWait(Constant(0)))

	if !IsExhausted(err) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_MaxAttemptsOneInvokesExactlyOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	}, WithMaxAttempts(1))

	if calls != 1 {
		t.Fatalf("expected exactly one invocation, got %d", calls)
	}
}

func TestDo_NonRetryableErrorReturnsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("fatal")
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	}, WithMaxAttempts(5), WithRetryable(func(error) bool { return false }))

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error returned unwrapped, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries for non-retryable error, got %d calls", calls)
	}
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		return errors.New("boom")
	}, WithMaxAttempts(5), WithWait(Constant(time.Hour)))

	if err == nil {
		t.Fatal("expected an error once context is cancelled")
	}
	if calls != 1 {
		t.Fatalf("expected the wait to abort before a second attempt, got %d calls", calls)
	}
}

func TestSequence_HoldsLastValueBeyondLength(t *testing.T) {
	w := Sequence([]time.Duration{time.Second, 2 * time.Second})
	if w(0) != time.Second || w(1) != 2*time.Second || w(5) != 2*time.Second {
		t.Fatal("expected sequence to hold its last value beyond its length")
	}
}
