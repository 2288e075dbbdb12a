package relay

import (
	"sync"
	"time"
)

// BreakerState is the three-state failure gate (spec.md §4.6, §GLOSSARY
// Circuit Breaker).
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker gates connection attempts to a single endpoint: it opens
// after FailureThreshold consecutive failures, stays open for CoolDown,
// then half-opens; while half-open every attempt is allowed,
// SuccessThreshold consecutive successes close it again, and any failure
// reopens it.
//
// Grounded on the usage pattern in
// original_source/crates/nostr/client/src/connection_pool.rs
// (CircuitBreaker::new(5, 2, Duration::from_secs(30))), which names the
// constructor arguments but ships no body in the retrieved pack; the
// state machine here follows spec.md §4.6/§GLOSSARY directly.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	coolDown         time.Duration

	state              BreakerState
	consecutiveFails   int
	consecutiveSuccess int
	openedAt           time.Time

	now func() time.Time
}

// NewCircuitBreaker constructs a breaker in the Closed state.
func NewCircuitBreaker(failureThreshold, successThreshold int, coolDown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		coolDown:         coolDown,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// IsAllowed reports whether a new connection attempt may proceed,
// transitioning Open -> HalfOpen once CoolDown has elapsed.
func (b *CircuitBreaker) IsAllowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.coolDown {
			b.state = BreakerHalfOpen
			b.consecutiveSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful operation.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= b.successThreshold {
			b.state = BreakerClosed
			b.consecutiveFails = 0
			b.consecutiveSuccess = 0
		}
	case BreakerClosed:
		b.consecutiveFails = 0
	}
}

// RecordFailure registers a failed operation, opening the breaker once
// the configured threshold of consecutive failures is reached, or
// immediately on any half-open failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.consecutiveSuccess = 0
	case BreakerClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
