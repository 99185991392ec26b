package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"regform/internal/data"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	// Field value events arrive per keystroke and get their own budget.
	standard := app.rateLimit(app.rateLimiter)
	input := app.rateLimit(app.inputLimiter)

	router.Handler(http.MethodGet, "/v1/healthcheck", standard(http.HandlerFunc(app.healthcheckHandler)))

	router.Handler(http.MethodPost, "/v1/forms", standard(http.HandlerFunc(app.createFormHandler)))
	router.Handler(http.MethodGet, "/v1/forms/:id", standard(http.HandlerFunc(app.showFormHandler)))
	router.Handler(http.MethodDelete, "/v1/forms/:id", standard(http.HandlerFunc(app.deleteFormHandler)))
	router.Handler(http.MethodPut, "/v1/forms/:id/fields/:field", input(http.HandlerFunc(app.updateFieldHandler)))
	router.Handler(http.MethodPost, "/v1/forms/:id/submit", standard(http.HandlerFunc(app.submitFormHandler)))
	router.Handler(http.MethodPost, "/v1/forms/:id/reset", standard(http.HandlerFunc(app.resetFormHandler)))

	router.Handler(http.MethodGet, "/v1/statistics", standard(http.HandlerFunc(app.statisticsHandler)))

	return app.correlationID(app.logRequest(app.recoverPanic(router)))
}

func (app *application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	app.logger.DebugWithContext(r.Context(), "health check requested")

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	healthResponse := data.HealthCheckResponse{
		Status: "available",
		SystemInfo: data.SystemInfo{
			Environment: app.config.env,
			Version:     version,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
		Sessions: app.sessions.Len(),
	}

	dbHealth, err := app.statistics.GetDatabaseHealth(ctx)
	switch {
	case errors.Is(err, data.ErrNoDatabase):
		// Statistics live in memory; there is no database to report on.
	case err != nil:
		app.logger.WarnWithContext(ctx, "database health check failed",
			"error", err,
			"response_time_ms", time.Since(start).Milliseconds())

		healthResponse.Status = "degraded"
		healthResponse.Database = &data.DatabaseHealthInfo{
			Status:         "disconnected",
			ResponseTimeMs: -1,
		}
	default:
		healthResponse.Database = &data.DatabaseHealthInfo{
			Status:         "connected",
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}

		if status, ok := dbHealth["status"].(string); ok && status == "healthy" {
			if maxConns, ok := dbHealth["max_connections"].(int32); ok {
				healthResponse.Database.MaxConns = maxConns
			}
			if idleConns, ok := dbHealth["idle_connections"].(int32); ok {
				healthResponse.Database.IdleConns = idleConns
			}
			if acquiredConns, ok := dbHealth["acquired_connections"].(int32); ok {
				healthResponse.Database.ActiveConns = acquiredConns
			}
		}
	}

	statusCode := http.StatusOK
	if healthResponse.Status != "available" {
		statusCode = http.StatusServiceUnavailable
	}

	err = app.writeJSON(w, statusCode, envelope{"data": healthResponse}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logger.DebugWithContext(ctx, "health check completed",
		"status", healthResponse.Status,
		"response_time_ms", time.Since(start).Milliseconds())
}
