package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"regform/internal/data"
	"regform/internal/form"
	"regform/internal/jsonlog"
)

// newTestApplication returns an application with in-memory statistics,
// rate limiting disabled and a discarded log.
func newTestApplication(t *testing.T) *application {
	t.Helper()

	logger := jsonlog.New(io.Discard, jsonlog.LevelError, "test")

	var cfg config
	cfg.port = 4000
	cfg.env = "test"
	cfg.limiter.rps = 10
	cfg.limiter.burst = 20
	cfg.limiter.inputRPS = 20
	cfg.limiter.inputBurst = 40
	cfg.sessions.ttl = time.Minute

	return &application{
		config:       cfg,
		logger:       logger,
		statistics:   data.NewStatisticsService(data.NewMemoryStatisticsRepository()),
		rateLimiter:  newRateLimiterMap(cfg.limiter.rps, cfg.limiter.burst),
		inputLimiter: newRateLimiterMap(cfg.limiter.inputRPS, cfg.limiter.inputBurst),
		sessions:     data.NewSessionStore(cfg.sessions.ttl, logger),
	}
}

// send runs one request through the full route stack. A non-empty body is
// sent as JSON.
func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type formBody struct {
	Data struct {
		SessionID string            `json:"session_id"`
		Valid     bool              `json:"valid"`
		Fields    []form.FieldState `json:"fields"`
		Errors    map[string]string `json:"errors"`
	} `json:"data"`
	Updated []form.FieldState `json:"updated"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

// createSession starts a form session and returns its ID.
func createSession(t *testing.T, h http.Handler) string {
	t.Helper()

	rr := send(t, h, http.MethodPost, "/v1/forms", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	return decode[formBody](t, rr).Data.SessionID
}

func fieldByName(t *testing.T, states []form.FieldState, field form.Field) form.FieldState {
	t.Helper()

	for _, st := range states {
		if st.Field == field {
			return st
		}
	}
	t.Fatalf("no state for field %s", field)
	return form.FieldState{}
}

const validValuesJSON = `{"values": {
	"fullName": "Alice Smith",
	"email": "alice@example.com",
	"phone": "5551234567",
	"password": "s3cret-pass",
	"confirmPassword": "s3cret-pass"
}}`
