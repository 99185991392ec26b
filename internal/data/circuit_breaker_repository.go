package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"regform/internal/jsonlog"
)

// CircuitBreakerRepository protects a database-backed StatisticsRepository.
// While the circuit is open, writes and reads go to an in-memory fallback,
// which only holds what was recorded during the outage.
type CircuitBreakerRepository struct {
	repository     StatisticsRepository
	circuitBreaker *CircuitBreaker
	fallback       *MemoryStatisticsRepository
	logger         *jsonlog.Logger
}

// NewCircuitBreakerRepository wraps repository with the default breaker configuration.
func NewCircuitBreakerRepository(repository StatisticsRepository, logger *jsonlog.Logger) *CircuitBreakerRepository {
	return NewCircuitBreakerRepositoryWithConfig(repository, logger, DefaultCircuitBreakerConfig())
}

// NewCircuitBreakerRepositoryWithConfig wraps repository with a custom breaker.
func NewCircuitBreakerRepositoryWithConfig(repository StatisticsRepository, logger *jsonlog.Logger, config CircuitBreakerConfig) *CircuitBreakerRepository {
	return &CircuitBreakerRepository{
		repository:     repository,
		circuitBreaker: NewCircuitBreaker(config),
		fallback:       NewMemoryStatisticsRepository(),
		logger:         logger,
	}
}

func (cbr *CircuitBreakerRepository) logFailure(ctx context.Context, operation string, err error) {
	state := cbr.circuitBreaker.GetStats()
	if errors.Is(err, ErrCircuitBreakerOpen) {
		cbr.logger.DebugWithContext(ctx, "statistics served from fallback",
			"operation", operation,
			"circuit_breaker_state", state.State.String())
		return
	}
	cbr.logger.WarnWithContext(ctx, "database statistics operation failed",
		"error", err,
		"circuit_breaker_state", state.State.String(),
		"failures", state.Failures,
		"operation", operation)
}

// RecordFailure records through the database, or into the fallback while the circuit is open.
func (cbr *CircuitBreakerRepository) RecordFailure(ctx context.Context, failure ValidationFailure) (*StatisticsEntry, error) {
	var entry *StatisticsEntry
	err := cbr.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		entry, err = cbr.repository.RecordFailure(ctx, failure)
		return err
	})
	if err != nil {
		cbr.logFailure(ctx, "RecordFailure", err)
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return cbr.fallback.RecordFailure(ctx, failure)
		}
		return nil, err
	}
	return entry, nil
}

// RecordSubmission records through the database, or into the fallback while the circuit is open.
func (cbr *CircuitBreakerRepository) RecordSubmission(ctx context.Context, accepted bool) error {
	err := cbr.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		return cbr.repository.RecordSubmission(ctx, accepted)
	})
	if err != nil {
		cbr.logFailure(ctx, "RecordSubmission", err)
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return cbr.fallback.RecordSubmission(ctx, accepted)
		}
		return err
	}
	return nil
}

// GetMostFrequent reads through the breaker.
func (cbr *CircuitBreakerRepository) GetMostFrequent(ctx context.Context) (*StatisticsEntry, error) {
	var entry *StatisticsEntry
	err := cbr.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		entry, err = cbr.repository.GetMostFrequent(ctx)
		return err
	})
	if err != nil {
		cbr.logFailure(ctx, "GetMostFrequent", err)
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return cbr.fallback.GetMostFrequent(ctx)
		}
		return nil, err
	}
	return entry, nil
}

// GetTopN reads through the breaker.
func (cbr *CircuitBreakerRepository) GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error) {
	var entries []*StatisticsEntry
	err := cbr.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		entries, err = cbr.repository.GetTopN(ctx, n)
		return err
	})
	if err != nil {
		cbr.logFailure(ctx, "GetTopN", err)
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return cbr.fallback.GetTopN(ctx, n)
		}
		return nil, err
	}
	return entries, nil
}

// GetStats reads through the breaker.
func (cbr *CircuitBreakerRepository) GetStats(ctx context.Context) (StatsSummary, error) {
	var summary StatsSummary
	err := cbr.circuitBreaker.Call(ctx, func(ctx context.Context) error {
		var err error
		summary, err = cbr.repository.GetStats(ctx)
		return err
	})
	if err != nil {
		cbr.logFailure(ctx, "GetStats", err)
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return cbr.fallback.GetStats(ctx)
		}
		return StatsSummary{}, err
	}
	return summary, nil
}

// Health reports the wrapped database's health plus the breaker state.
func (cbr *CircuitBreakerRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	hr, ok := cbr.repository.(healthReporter)
	if !ok {
		return map[string]interface{}{"status": "not_configured"}, ErrNoDatabase
	}

	health, err := hr.Health(ctx)
	if health == nil {
		health = map[string]interface{}{}
	}
	health["circuit_breaker_state"] = cbr.circuitBreaker.State().String()
	return health, err
}

// Close closes the wrapped repository.
func (cbr *CircuitBreakerRepository) Close() error {
	return cbr.repository.Close()
}

// GetCircuitBreakerStats returns current circuit breaker statistics for monitoring
func (cbr *CircuitBreakerRepository) GetCircuitBreakerStats() CircuitBreakerStats {
	return cbr.circuitBreaker.GetStats()
}

// String implements fmt.Stringer for debugging
func (cbr *CircuitBreakerRepository) String() string {
	stateJSON, _ := json.Marshal(cbr.circuitBreaker.GetStats())
	return fmt.Sprintf("CircuitBreakerRepository{state=%s}", string(stateJSON))
}

var _ StatisticsRepository = (*CircuitBreakerRepository)(nil)
