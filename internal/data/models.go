// Package data provides the service-side models for the registration form bridge:
// form sessions, validation-outcome statistics and their storage, and health check payloads.
// Field values never enter this package's storage; only rule outcomes are counted.
package data

import (
	"fmt"
	"time"

	"regform/internal/form"
)

// Trigger tells whether a rule ran because a value changed or because of a submit.
type Trigger string

const (
	TriggerInput  Trigger = "input"
	TriggerSubmit Trigger = "submit"
)

// increments returns how much a failure with this trigger adds to the input
// and submit counters.
func (t Trigger) increments() (input, submit int) {
	switch t {
	case TriggerInput:
		return 1, 0
	case TriggerSubmit:
		return 0, 1
	default:
		return 0, 0
	}
}

// ValidationFailure is one failed rule evaluation, stripped of the value that failed.
type ValidationFailure struct {
	Field   string    `json:"field"`
	Kind    form.Kind `json:"kind"`
	Trigger Trigger   `json:"trigger"`
}

// FailuresFromStates converts the failing states among states into ValidationFailures.
func FailuresFromStates(states []form.FieldState, trigger Trigger) []ValidationFailure {
	var failures []ValidationFailure
	for _, st := range states {
		if st.Evaluated && !st.IsValid {
			failures = append(failures, ValidationFailure{
				Field:   st.Field.String(),
				Kind:    st.Kind,
				Trigger: trigger,
			})
		}
	}
	return failures
}

// Key identifies the (field, kind) pair a failure is counted under.
func (f ValidationFailure) Key() string {
	return f.Field + "/" + string(f.Kind)
}

// String formats the failure as its key followed by the trigger, for
// errors and logs.
func (f ValidationFailure) String() string {
	return fmt.Sprintf("%s (%s)", f.Key(), f.Trigger)
}

// StatisticsEntry is the hit count of one (field, kind) pair. Hits counts
// every failure; InputHits and SubmitHits split it by trigger.
type StatisticsEntry struct {
	Field      string    `db:"field" json:"field"`
	Kind       form.Kind `db:"kind" json:"kind"`
	Hits       int       `db:"hits" json:"hits"`
	InputHits  int       `db:"input_hits" json:"input_hits"`
	SubmitHits int       `db:"submit_hits" json:"submit_hits"`
	CreatedAt  time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// StatsSummary aggregates all recorded outcomes.
type StatsSummary struct {
	// UniqueFailures is the number of distinct (field, kind) pairs seen
	UniqueFailures int64 `json:"unique_failures"`
	// TotalFailures is the sum of all failure hits
	TotalFailures int64 `json:"total_failures"`
	// MaxHits is the highest hit count of any pair
	MaxHits int64 `json:"max_hits"`
	// InputFailures counts failures raised while a value was being edited
	InputFailures int64 `json:"input_failures"`
	// SubmitFailures counts failures raised by submit requests
	SubmitFailures int64 `json:"submit_failures"`
	// AcceptedSubmissions counts submits that passed every rule
	AcceptedSubmissions int64 `json:"accepted_submissions"`
	// RejectedSubmissions counts submits with at least one failing rule
	RejectedSubmissions int64      `json:"rejected_submissions"`
	FirstFailureTime    *time.Time `json:"first_failure_time,omitempty"`
	LastFailureTime     *time.Time `json:"last_failure_time,omitempty"`
}

// HealthCheckResponse represents the comprehensive health check response structure.
// Provides system status, version information, and optional database connectivity details.
type HealthCheckResponse struct {
	Status     string              `json:"status"`
	SystemInfo SystemInfo          `json:"system_info"`
	Sessions   int                 `json:"active_sessions"`
	Database   *DatabaseHealthInfo `json:"database,omitempty"`
}

// SystemInfo contains basic application information for health checks.
type SystemInfo struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Timestamp   string `json:"timestamp"`
}

// DatabaseHealthInfo provides database connectivity and connection pool status.
type DatabaseHealthInfo struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ActiveConns    int32  `json:"active_connections"`
	IdleConns      int32  `json:"idle_connections"`
	MaxConns       int32  `json:"max_connections"`
}
