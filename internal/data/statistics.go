package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStatisticsRepository keeps outcome counts in process memory.
// It backs the service when no database is configured and serves as the
// fallback store while the database circuit is open.
type MemoryStatisticsRepository struct {
	mu       sync.RWMutex
	entries  map[string]*StatisticsEntry
	accepted int64
	rejected int64
	now      func() time.Time
}

// NewMemoryStatisticsRepository returns an empty repository.
func NewMemoryStatisticsRepository() *MemoryStatisticsRepository {
	return &MemoryStatisticsRepository{
		entries: make(map[string]*StatisticsEntry),
		now:     time.Now,
	}
}

// RecordFailure increments the pair's count under the write lock.
func (m *MemoryStatisticsRepository) RecordFailure(ctx context.Context, failure ValidationFailure) (*StatisticsEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := failure.Key()
	entry, exists := m.entries[key]
	if !exists {
		entry = &StatisticsEntry{
			Field:     failure.Field,
			Kind:      failure.Kind,
			CreatedAt: now,
		}
		m.entries[key] = entry
	}
	input, submit := failure.Trigger.increments()
	entry.Hits++
	entry.InputHits += input
	entry.SubmitHits += submit
	entry.UpdatedAt = now

	entryCopy := *entry
	return &entryCopy, nil
}

// RecordSubmission counts one submit.
func (m *MemoryStatisticsRepository) RecordSubmission(ctx context.Context, accepted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if accepted {
		m.accepted++
	} else {
		m.rejected++
	}
	return nil
}

// GetMostFrequent returns a copy of the entry with the most hits, or nil.
func (m *MemoryStatisticsRepository) GetMostFrequent(ctx context.Context) (*StatisticsEntry, error) {
	entries, err := m.GetTopN(ctx, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// GetTopN returns copies of up to n entries ordered like the PostgreSQL query.
func (m *MemoryStatisticsRepository) GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []*StatisticsEntry{}, nil
	}

	m.mu.RLock()
	entries := make([]*StatisticsEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Field < b.Field
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// GetStats aggregates the in-memory counts.
func (m *MemoryStatisticsRepository) GetStats(ctx context.Context) (StatsSummary, error) {
	if err := ctx.Err(); err != nil {
		return StatsSummary{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatsSummary{
		UniqueFailures:      int64(len(m.entries)),
		AcceptedSubmissions: m.accepted,
		RejectedSubmissions: m.rejected,
	}

	for _, entry := range m.entries {
		hits := int64(entry.Hits)
		summary.TotalFailures += hits
		summary.InputFailures += int64(entry.InputHits)
		summary.SubmitFailures += int64(entry.SubmitHits)
		if hits > summary.MaxHits {
			summary.MaxHits = hits
		}
		if summary.FirstFailureTime == nil || entry.CreatedAt.Before(*summary.FirstFailureTime) {
			t := entry.CreatedAt
			summary.FirstFailureTime = &t
		}
		if summary.LastFailureTime == nil || entry.UpdatedAt.After(*summary.LastFailureTime) {
			t := entry.UpdatedAt
			summary.LastFailureTime = &t
		}
	}

	return summary, nil
}

// EntryCount returns the number of distinct (field, kind) pairs.
func (m *MemoryStatisticsRepository) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Close is a no-op.
func (m *MemoryStatisticsRepository) Close() error {
	return nil
}

var _ StatisticsRepository = (*MemoryStatisticsRepository)(nil)

// ============================================================================
// StatisticsService
// ============================================================================

// StatisticsService is what HTTP handlers talk to. It records outcomes
// through a repository and reports database health.
type StatisticsService struct {
	repository StatisticsRepository
}

// NewStatisticsService creates a service over repository.
func NewStatisticsService(repository StatisticsRepository) *StatisticsService {
	return &StatisticsService{
		repository: repository,
	}
}

// RecordFailures records each failure, continuing past errors, and returns
// all errors joined.
func (ss *StatisticsService) RecordFailures(ctx context.Context, failures []ValidationFailure) error {
	var errs []error
	for _, failure := range failures {
		if _, err := ss.repository.RecordFailure(ctx, failure); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", failure, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("statistics service record failed: %w", err)
	}
	return nil
}

// RecordSubmission records one submit outcome.
func (ss *StatisticsService) RecordSubmission(ctx context.Context, accepted bool) error {
	if err := ss.repository.RecordSubmission(ctx, accepted); err != nil {
		return fmt.Errorf("statistics service record submission failed: %w", err)
	}
	return nil
}

// GetMostFrequent returns the most frequent failure, or nil.
func (ss *StatisticsService) GetMostFrequent(ctx context.Context) (*StatisticsEntry, error) {
	entry, err := ss.repository.GetMostFrequent(ctx)
	if err != nil {
		return nil, fmt.Errorf("statistics service get most frequent failed: %w", err)
	}
	return entry, nil
}

// GetTopN returns up to n failures ordered by hits.
func (ss *StatisticsService) GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error) {
	entries, err := ss.repository.GetTopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("statistics service get top %d failed: %w", n, err)
	}
	return entries, nil
}

// GetStats returns the aggregate summary.
func (ss *StatisticsService) GetStats(ctx context.Context) (StatsSummary, error) {
	summary, err := ss.repository.GetStats(ctx)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("statistics service get stats failed: %w", err)
	}
	return summary, nil
}

// Close closes the repository.
func (ss *StatisticsService) Close() error {
	if ss.repository != nil {
		return ss.repository.Close()
	}
	return nil
}

// healthReporter is implemented by repositories that can describe their database.
type healthReporter interface {
	Health(ctx context.Context) (map[string]interface{}, error)
}

// ErrNoDatabase is returned by GetDatabaseHealth when statistics live in memory only.
var ErrNoDatabase = errors.New("no database configured")

// GetDatabaseHealth reports database connectivity. In-memory repositories
// return ErrNoDatabase with status "not_configured".
func (ss *StatisticsService) GetDatabaseHealth(ctx context.Context) (map[string]interface{}, error) {
	if ss.repository == nil {
		return map[string]interface{}{
			"status": "unavailable",
			"error":  "repository not initialized",
		}, fmt.Errorf("repository not initialized")
	}

	if hr, ok := ss.repository.(healthReporter); ok {
		return hr.Health(ctx)
	}

	return map[string]interface{}{
		"status": "not_configured",
	}, ErrNoDatabase
}
