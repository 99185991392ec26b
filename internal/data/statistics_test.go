package data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regform/internal/form"
)

// fakeClock hands out strictly increasing times.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func failure(field string, kind form.Kind) ValidationFailure {
	return ValidationFailure{Field: field, Kind: kind, Trigger: TriggerInput}
}

func TestMemoryStatisticsRepository_Empty(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	ctx := context.Background()

	entry, err := repo.GetMostFrequent(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, err := repo.GetTopN(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)

	summary, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatsSummary{}, summary)
}

func TestMemoryStatisticsRepository_RecordFailure(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	repo.now = newFakeClock().Now
	ctx := context.Background()

	first, err := repo.RecordFailure(ctx, failure("phone", form.KindInvalidPhone))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Hits)

	second, err := repo.RecordFailure(ctx, ValidationFailure{Field: "phone", Kind: form.KindInvalidPhone, Trigger: TriggerSubmit})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Hits)
	assert.Equal(t, 1, second.InputHits)
	assert.Equal(t, 1, second.SubmitHits)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	// Returned entries are copies.
	second.Hits = 100
	entry, err := repo.GetMostFrequent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Hits)
	assert.Equal(t, 1, repo.EntryCount())
}

func TestMemoryStatisticsRepository_Ordering(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	repo.now = newFakeClock().Now
	ctx := context.Background()

	record := func(f ValidationFailure, n int) {
		for i := 0; i < n; i++ {
			_, err := repo.RecordFailure(ctx, f)
			require.NoError(t, err)
		}
	}

	record(failure("email", form.KindMissingAtSign), 2)
	record(failure("password", form.KindWeakPassword), 3)
	record(failure("fullName", form.KindTooShort), 2)

	entries, err := repo.GetTopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "password", entries[0].Field)
	// Ties go to the pair seen first.
	assert.Equal(t, "email", entries[1].Field)
	assert.Equal(t, "fullName", entries[2].Field)

	top, err := repo.GetTopN(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	none, err := repo.GetTopN(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStatisticsRepository_GetStats(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	repo.now = newFakeClock().Now
	ctx := context.Background()

	_, _ = repo.RecordFailure(ctx, failure("email", form.KindMissingAtSign))
	_, _ = repo.RecordFailure(ctx, failure("email", form.KindMissingAtSign))
	_, _ = repo.RecordFailure(ctx, ValidationFailure{Field: "phone", Kind: form.KindInvalidPhone, Trigger: TriggerSubmit})
	require.NoError(t, repo.RecordSubmission(ctx, true))
	require.NoError(t, repo.RecordSubmission(ctx, false))
	require.NoError(t, repo.RecordSubmission(ctx, false))

	summary, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.UniqueFailures)
	assert.Equal(t, int64(3), summary.TotalFailures)
	assert.Equal(t, int64(2), summary.MaxHits)
	assert.Equal(t, int64(2), summary.InputFailures)
	assert.Equal(t, int64(1), summary.SubmitFailures)
	assert.Equal(t, int64(1), summary.AcceptedSubmissions)
	assert.Equal(t, int64(2), summary.RejectedSubmissions)
	require.NotNil(t, summary.FirstFailureTime)
	require.NotNil(t, summary.LastFailureTime)
	assert.True(t, summary.LastFailureTime.After(*summary.FirstFailureTime))
}

func TestMemoryStatisticsRepository_UnknownTriggerCountsOnlyTotal(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	ctx := context.Background()

	entry, err := repo.RecordFailure(ctx, ValidationFailure{Field: "email", Kind: form.KindMissingAtSign})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Hits)
	assert.Zero(t, entry.InputHits)
	assert.Zero(t, entry.SubmitHits)
}

func TestMemoryStatisticsRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.RecordFailure(ctx, failure("email", form.KindMissingAtSign))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.EntryCount())
}

func TestMemoryStatisticsRepository_ConcurrentRecords(t *testing.T) {
	repo := NewMemoryStatisticsRepository()
	ctx := context.Background()

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = repo.RecordFailure(ctx, failure("email", form.KindMissingAtSign))
				_ = repo.RecordSubmission(ctx, i%2 == 0)
				_, _ = repo.GetTopN(ctx, 3)
			}
		}()
	}
	wg.Wait()

	summary, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), summary.TotalFailures)
	assert.Equal(t, int64(workers*perWorker), summary.AcceptedSubmissions+summary.RejectedSubmissions)
}

// stubRepository lets a test decide what each call returns.
type stubRepository struct {
	*MemoryStatisticsRepository
	recordErr error
	readErr   error
	calls     int
}

func newStubRepository() *stubRepository {
	return &stubRepository{MemoryStatisticsRepository: NewMemoryStatisticsRepository()}
}

func (s *stubRepository) RecordFailure(ctx context.Context, f ValidationFailure) (*StatisticsEntry, error) {
	s.calls++
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return s.MemoryStatisticsRepository.RecordFailure(ctx, f)
}

func (s *stubRepository) RecordSubmission(ctx context.Context, accepted bool) error {
	s.calls++
	if s.recordErr != nil {
		return s.recordErr
	}
	return s.MemoryStatisticsRepository.RecordSubmission(ctx, accepted)
}

func (s *stubRepository) GetMostFrequent(ctx context.Context) (*StatisticsEntry, error) {
	s.calls++
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.MemoryStatisticsRepository.GetMostFrequent(ctx)
}

func (s *stubRepository) GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error) {
	s.calls++
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.MemoryStatisticsRepository.GetTopN(ctx, n)
}

func (s *stubRepository) GetStats(ctx context.Context) (StatsSummary, error) {
	s.calls++
	if s.readErr != nil {
		return StatsSummary{}, s.readErr
	}
	return s.MemoryStatisticsRepository.GetStats(ctx)
}

func TestStatisticsService_RecordFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("records every failure", func(t *testing.T) {
		repo := NewMemoryStatisticsRepository()
		svc := NewStatisticsService(repo)

		err := svc.RecordFailures(ctx, []ValidationFailure{
			failure("email", form.KindMissingAtSign),
			failure("phone", form.KindInvalidPhone),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, repo.EntryCount())
	})

	t.Run("keeps going after an error", func(t *testing.T) {
		repo := newStubRepository()
		repo.recordErr = errors.New("connection refused")
		svc := NewStatisticsService(repo)

		err := svc.RecordFailures(ctx, []ValidationFailure{
			failure("email", form.KindMissingAtSign),
			failure("phone", form.KindInvalidPhone),
		})
		require.Error(t, err)
		assert.Equal(t, 2, repo.calls)
		assert.Contains(t, err.Error(), "record email/MissingAtSign (input)")
		assert.Contains(t, err.Error(), "record phone/InvalidPhoneFormat (input)")
		assert.ErrorIs(t, err, repo.recordErr)
	})

	t.Run("nothing to record", func(t *testing.T) {
		svc := NewStatisticsService(NewMemoryStatisticsRepository())
		assert.NoError(t, svc.RecordFailures(ctx, nil))
	})
}

func TestStatisticsService_Reads(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepository()
	svc := NewStatisticsService(repo)

	require.NoError(t, svc.RecordFailures(ctx, []ValidationFailure{failure("email", form.KindMissingAtSign)}))
	require.NoError(t, svc.RecordSubmission(ctx, false))

	entry, err := svc.GetMostFrequent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "email", entry.Field)

	summary, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.RejectedSubmissions)

	repo.readErr = errors.New("timeout")
	_, err = svc.GetMostFrequent(ctx)
	assert.ErrorIs(t, err, repo.readErr)
	_, err = svc.GetTopN(ctx, 3)
	assert.ErrorIs(t, err, repo.readErr)
	_, err = svc.GetStats(ctx)
	assert.ErrorIs(t, err, repo.readErr)
}

func TestStatisticsService_GetDatabaseHealth(t *testing.T) {
	svc := NewStatisticsService(NewMemoryStatisticsRepository())

	health, err := svc.GetDatabaseHealth(context.Background())
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.Equal(t, "not_configured", health["status"])

	var nilSvc StatisticsService
	_, err = nilSvc.GetDatabaseHealth(context.Background())
	assert.Error(t, err)
}
