package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regform/internal/form"
)

// StatisticsRepository stores validation outcome counts.
type StatisticsRepository interface {
	// RecordFailure increments the hit count of the failure's (field, kind) pair
	// and returns the updated entry.
	RecordFailure(ctx context.Context, failure ValidationFailure) (*StatisticsEntry, error)

	// RecordSubmission counts one submit request.
	RecordSubmission(ctx context.Context, accepted bool) error

	// GetMostFrequent returns the pair with the most hits, or nil when nothing was recorded.
	GetMostFrequent(ctx context.Context) (*StatisticsEntry, error)

	// GetTopN returns up to n pairs ordered by hits descending, then first seen ascending.
	GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error)

	// GetStats returns aggregate counts.
	GetStats(ctx context.Context) (StatsSummary, error)

	// Close releases the repository's resources.
	Close() error
}

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
)

func outcome(accepted bool) string {
	if accepted {
		return outcomeAccepted
	}
	return outcomeRejected
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS validation_failures (
		field       TEXT        NOT NULL,
		kind        TEXT        NOT NULL,
		hits        BIGINT      NOT NULL DEFAULT 0,
		input_hits  BIGINT      NOT NULL DEFAULT 0,
		submit_hits BIGINT      NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (field, kind)
	)`,
	`ALTER TABLE validation_failures
		ADD COLUMN IF NOT EXISTS input_hits  BIGINT NOT NULL DEFAULT 0,
		ADD COLUMN IF NOT EXISTS submit_hits BIGINT NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_validation_failures_hits
		ON validation_failures (hits DESC, created_at ASC)`,
	`CREATE TABLE IF NOT EXISTS form_submissions (
		outcome    TEXT        PRIMARY KEY,
		hits       BIGINT      NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// OpenPostgreSQLPool creates a connection pool for dsn and verifies it with a ping.
func OpenPostgreSQLPool(ctx context.Context, dsn string, maxConns int32, maxIdle time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if maxIdle > 0 {
		cfg.MaxConnIdleTime = maxIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// PostgreSQLStatisticsRepository implements StatisticsRepository on PostgreSQL.
type PostgreSQLStatisticsRepository struct {
	pool *pgxpool.Pool
	// timeout bounds every query
	timeout time.Duration
}

// NewPostgreSQLStatisticsRepository wraps an open pool. A non-positive timeout means 5s.
func NewPostgreSQLStatisticsRepository(pool *pgxpool.Pool, timeout time.Duration) *PostgreSQLStatisticsRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PostgreSQLStatisticsRepository{
		pool:    pool,
		timeout: timeout,
	}
}

// EnsureSchema creates the statistics tables when they do not exist yet.
func (r *PostgreSQLStatisticsRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// RecordFailure upserts the (field, kind) row and returns its new counts.
func (r *PostgreSQLStatisticsRepository) RecordFailure(ctx context.Context, failure ValidationFailure) (*StatisticsEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	input, submit := failure.Trigger.increments()

	entry := &StatisticsEntry{Field: failure.Field, Kind: failure.Kind}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO validation_failures (field, kind, hits, input_hits, submit_hits)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (field, kind)
		DO UPDATE SET
			hits = validation_failures.hits + 1,
			input_hits = validation_failures.input_hits + EXCLUDED.input_hits,
			submit_hits = validation_failures.submit_hits + EXCLUDED.submit_hits,
			updated_at = now()
		RETURNING hits, input_hits, submit_hits, created_at, updated_at
	`, failure.Field, string(failure.Kind), input, submit).Scan(
		&entry.Hits,
		&entry.InputHits,
		&entry.SubmitHits,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	return entry, nil
}

// RecordSubmission upserts the outcome counter.
func (r *PostgreSQLStatisticsRepository) RecordSubmission(ctx context.Context, accepted bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO form_submissions (outcome, hits)
		VALUES ($1, 1)
		ON CONFLICT (outcome)
		DO UPDATE SET hits = form_submissions.hits + 1, updated_at = now()
	`, outcome(accepted))
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// GetMostFrequent returns the top row, or nil on an empty table.
func (r *PostgreSQLStatisticsRepository) GetMostFrequent(ctx context.Context) (*StatisticsEntry, error) {
	entries, err := r.GetTopN(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query most frequent: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// GetTopN returns up to n rows ordered by hits.
func (r *PostgreSQLStatisticsRepository) GetTopN(ctx context.Context, n int) ([]*StatisticsEntry, error) {
	if n <= 0 {
		return []*StatisticsEntry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT field, kind, hits, input_hits, submit_hits, created_at, updated_at
		FROM validation_failures
		ORDER BY hits DESC, created_at ASC, field ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top %d failures: %w", n, err)
	}
	defer rows.Close()

	entries := []*StatisticsEntry{}
	for rows.Next() {
		entry, err := scanStatisticsEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return entries, nil
}

// GetStats aggregates both tables.
func (r *PostgreSQLStatisticsRepository) GetStats(ctx context.Context) (StatsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var summary StatsSummary
	var first, last sql.NullTime

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(hits), 0)::BIGINT,
			COALESCE(MAX(hits), 0)::BIGINT,
			COALESCE(SUM(input_hits), 0)::BIGINT,
			COALESCE(SUM(submit_hits), 0)::BIGINT,
			MIN(created_at),
			MAX(updated_at)
		FROM validation_failures
	`).Scan(
		&summary.UniqueFailures,
		&summary.TotalFailures,
		&summary.MaxHits,
		&summary.InputFailures,
		&summary.SubmitFailures,
		&first,
		&last,
	)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("failed to query failure summary: %w", err)
	}

	if first.Valid {
		summary.FirstFailureTime = &first.Time
	}
	if last.Valid {
		summary.LastFailureTime = &last.Time
	}

	rows, err := r.pool.Query(ctx, `SELECT outcome, hits FROM form_submissions`)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var hits int64
		if err := rows.Scan(&name, &hits); err != nil {
			return StatsSummary{}, fmt.Errorf("failed to scan submission row: %w", err)
		}
		switch name {
		case outcomeAccepted:
			summary.AcceptedSubmissions = hits
		case outcomeRejected:
			summary.RejectedSubmissions = hits
		}
	}
	if err := rows.Err(); err != nil {
		return StatsSummary{}, fmt.Errorf("error during row iteration: %w", err)
	}

	return summary, nil
}

// Close closes the pool.
func (r *PostgreSQLStatisticsRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Health checks connectivity and reports pool metrics.
func (r *PostgreSQLStatisticsRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := r.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return map[string]interface{}{
			"status":      "unhealthy",
			"error":       err.Error(),
			"connections": "unknown",
		}, err
	}

	stat := r.pool.Stat()

	return map[string]interface{}{
		"status":               "healthy",
		"total_connections":    stat.TotalConns(),
		"idle_connections":     stat.IdleConns(),
		"acquired_connections": stat.AcquiredConns(),
		"max_connections":      stat.MaxConns(),
		"acquire_count":        stat.AcquireCount(),
		"acquire_duration_ns":  stat.AcquireDuration().Nanoseconds(),
	}, nil
}

func scanStatisticsEntry(rows pgx.Rows) (*StatisticsEntry, error) {
	var entry StatisticsEntry
	var kind string

	err := rows.Scan(
		&entry.Field,
		&kind,
		&entry.Hits,
		&entry.InputHits,
		&entry.SubmitHits,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Kind = form.Kind(kind)
	return &entry, nil
}

var _ StatisticsRepository = (*PostgreSQLStatisticsRepository)(nil)
