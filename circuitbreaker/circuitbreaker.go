// Package circuitbreaker implements the gateway's three-state circuit
// breaker (spec §4.6): CLOSED (normal), OPEN (fail-fast), HALF_OPEN
// (probe). A single mutex covers the check-and-act sequence so the state
// machine is linearizable per breaker instance, matching the mutex-guarded
// algorithm state idiom used throughout the rate limiter.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is one of the breaker's three states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow (and by Call) when the breaker is OPEN and
// the recovery timeout has not yet elapsed.
var ErrOpen = errors.New("circuitbreaker: circuit open")

// Breaker is a circuit breaker for a single protected operation. A
// compiled feature owns one instance shared across concurrent requests to
// its path, per spec §4.6.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	failureThreshold int
	recoveryTimeout  time.Duration
	lastFailureTime  time.Time
	clock            func() time.Time
}

// New creates a Breaker that opens after failureThreshold consecutive
// recognized failures and probes again after recoveryTimeout.
func New(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		clock:            time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning OPEN→HALF_OPEN
// when the recovery timeout has elapsed. It does not invoke any body;
// callers must report the outcome via Success or Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if b.clock().Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = HalfOpen
			return nil
		}
		return ErrOpen
	}
	return nil
}

// Success records a successful call, resetting the breaker to CLOSED.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
}

// Failure records a recognized failure. From CLOSED it may open the
// circuit; from HALF_OPEN it reopens immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.clock()
	switch b.state {
	case HalfOpen:
		b.state = Open
	case Closed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = Open
		}
	}
}

// State returns the breaker's current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs fn if the breaker allows it, recording the outcome. Only err
// matching isRecognized (or isRecognized == nil, meaning "all errors
// recognized") counts toward the failure threshold; other errors pass
// through without changing breaker state, per spec §4.6.
func (b *Breaker) Call(fn func() error, isRecognized func(error) bool) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	if err == nil {
		b.Success()
		return nil
	}
	if isRecognized == nil || isRecognized(err) {
		b.Failure()
	}
	return err
}
