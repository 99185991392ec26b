package data

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	// CircuitClosed lets calls through
	CircuitClosed CircuitBreakerState = iota
	// CircuitOpen rejects calls until the recovery timeout has passed
	CircuitOpen
	// CircuitHalfOpen lets calls through to test for recovery
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s CircuitBreakerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int
	// Timeout bounds each protected call
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns the configuration used by the API.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		Timeout:          5 * time.Second,
	}
}

// Circuit breaker errors.
var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// CircuitBreaker guards calls to the statistics database.
type CircuitBreaker struct {
	config       CircuitBreakerConfig
	mu           sync.RWMutex
	state        CircuitBreakerState
	failures     int
	successes    int
	lastFailTime time.Time
	now          func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
		now:    time.Now,
	}
}

// Call runs fn unless the circuit is open, in which case it returns
// ErrCircuitBreakerOpen without calling fn. An open circuit moves to
// half-open once the recovery timeout has elapsed.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitBreakerOpen
	}

	if cb.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.config.Timeout)
		defer cancel()
	}

	if err := fn(ctx); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailTime) >= cb.config.RecoveryTimeout {
		cb.state = CircuitHalfOpen
		cb.successes = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	cb.lastFailTime = cb.now()

	// A single failure while probing reopens the circuit.
	if cb.state == CircuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes++
	cb.failures = 0

	if cb.state == CircuitHalfOpen && cb.successes >= cb.config.SuccessThreshold {
		cb.state = CircuitClosed
		cb.successes = 0
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns a snapshot for monitoring.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:        cb.state,
		Failures:     cb.failures,
		Successes:    cb.successes,
		LastFailTime: cb.lastFailTime,
	}
}

// CircuitBreakerStats provides statistics about the circuit breaker
type CircuitBreakerStats struct {
	State        CircuitBreakerState `json:"state"`
	Failures     int                 `json:"failures"`
	Successes    int                 `json:"successes"`
	LastFailTime time.Time           `json:"last_fail_time,omitempty"`
}
