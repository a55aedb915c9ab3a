package marketdata

import (
	"log"
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // normal operation
	CircuitOpen                         // failing, reject requests
	CircuitHalfOpen                     // cooldown elapsed, allow one trial call
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards one provider endpoint class against cascading
// latency. After FailureThreshold consecutive failures the circuit opens
// for Cooldown; the first call after the cooldown runs as a trial, and its
// outcome decides whether the circuit closes again or reopens.
// Safe for concurrent use.
type CircuitBreaker struct {
	name string
	mu   sync.Mutex

	state        CircuitState
	failureCount int
	openedAt     time.Time
	trialActive  bool

	failureThreshold int
	cooldown         time.Duration
}

// CircuitBreakerConfig holds configuration for creating a circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultCircuitBreakerConfig returns the default breaker policy:
// 3 consecutive failures open the circuit for one minute.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	}
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            CircuitClosed,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
	}
}

// Allow reports whether a call may proceed. While open it returns false
// until the cooldown elapses, then admits a single trial call (half-open);
// further calls are rejected until the trial reports its outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if time.Since(cb.openedAt) >= cb.cooldown {
			cb.state = CircuitHalfOpen
			cb.trialActive = true
			log.Printf("Circuit breaker %s: cooldown elapsed, allowing trial call", cb.name)
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.trialActive {
			return false
		}
		cb.trialActive = true
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful call. In half-open state it closes
// the circuit and resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.trialActive = false
	if cb.state != CircuitClosed {
		cb.state = CircuitClosed
		log.Printf("Circuit breaker %s: closed (recovered)", cb.name)
	}
}

// RecordFailure records a failed call. In closed state it opens the circuit
// once the consecutive-failure threshold is reached; in half-open state the
// failed trial reopens it and restarts the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialActive = false

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = CircuitOpen
			cb.openedAt = time.Now()
			log.Printf("Circuit breaker %s: opened after %d consecutive failures", cb.name, cb.failureCount)
		}

	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		log.Printf("Circuit breaker %s: trial call failed, reopening", cb.name)
	}
}

// State returns the current state (for monitoring).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
