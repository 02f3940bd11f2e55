package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		b.Call(func() error { return errors.New("boom") }, nil)
	}
	if b.State() != Open {
		t.Fatalf("expected Open, got %v", b.State())
	}
}

func TestBreaker_OpenRejectsWithoutInvokingBody(t *testing.T) {
	b := New(1, time.Minute)
	b.Call(func() error { return errors.New("boom") }, nil)

	invoked := false
	err := b.Call(func() error { invoked = true; return nil }, nil)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if invoked {
		t.Fatal("body must not be invoked while circuit is open")
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.Call(func() error { return errors.New("boom") }, nil)
	time.Sleep(15 * time.Millisecond)

	if err := b.Call(func() error { return nil }, nil); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected Closed after successful probe, got %v", b.State())
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.Call(func() error { return errors.New("boom") }, nil)
	time.Sleep(15 * time.Millisecond)

	b.Call(func() error { return errors.New("still broken") }, nil)
	if b.State() != Open {
		t.Fatalf("expected Open after failed probe, got %v", b.State())
	}
}

func TestBreaker_UnrecognizedErrorDoesNotOpen(t *testing.T) {
	b := New(1, time.Minute)
	sentinel := errors.New("ignored")
	isRecognized := func(err error) bool { return !errors.Is(err, sentinel) }

	b.Call(func() error { return sentinel }, isRecognized)
	if b.State() != Closed {
		t.Fatalf("expected Closed, unrecognized error should not trip breaker, got %v", b.State())
	}
}
