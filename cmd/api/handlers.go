package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"regform/internal/data"
	"regform/internal/form"
	"regform/internal/jsonlog"
	"regform/internal/validator"
)

// formResponse is the body returned for every form session operation.
type formResponse struct {
	SessionID string            `json:"session_id"`
	Valid     bool              `json:"valid"`
	Fields    []fieldResponse   `json:"fields"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func newFormResponse(id string, fv *form.FormValidator) formResponse {
	state := fv.State()
	return formResponse{
		SessionID: id,
		Valid:     state.Valid(),
		Fields:    responseStates(state.Fields),
		Errors:    fv.Errors(),
	}
}

// session looks up the :id session and writes a 404 when it is unknown or expired.
// The returned request carries the session ID for logging.
func (app *application) session(w http.ResponseWriter, r *http.Request) (*data.Session, *http.Request, bool) {
	session, err := app.sessions.Get(app.readParam(r, "id"))
	if err != nil {
		if errors.Is(err, data.ErrSessionNotFound) {
			app.sessionNotFoundResponse(w, r)
		} else {
			app.serverErrorResponse(w, r, err)
		}
		return nil, r, false
	}
	return session, r.WithContext(jsonlog.WithSessionID(r.Context(), session.ID)), true
}

// createFormHandler starts a form session. The body may carry initial values,
// which are stored without being evaluated.
func (app *application) createFormHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Values *form.FormValues `json:"values"`
	}

	if _, err := app.readOptionalJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var opts []form.Option
	if input.Values != nil {
		opts = append(opts, form.WithValues(*input.Values))
	}

	session := app.sessions.Create(opts...)

	var resp formResponse
	session.Do(func(fv *form.FormValidator) {
		resp = newFormResponse(session.ID, fv)
	})

	app.logger.InfoWithContext(jsonlog.WithSessionID(r.Context(), session.ID), "form session created",
		"active_sessions", app.sessions.Len())

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/forms/%s", session.ID))

	err := app.writeJSON(w, http.StatusCreated, envelope{"data": resp}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showFormHandler(w http.ResponseWriter, r *http.Request) {
	session, r, ok := app.session(w, r)
	if !ok {
		return
	}

	var resp formResponse
	session.Do(func(fv *form.FormValidator) {
		resp = newFormResponse(session.ID, fv)
	})

	err := app.writeJSON(w, http.StatusOK, envelope{"data": resp}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateFieldHandler applies a "value changed" event to one field. The
// response holds the states that were re-evaluated by the event.
func (app *application) updateFieldHandler(w http.ResponseWriter, r *http.Request) {
	session, r, ok := app.session(w, r)
	if !ok {
		return
	}

	var input struct {
		Value *string `json:"value"`
	}

	if err := app.readJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Value == nil {
		app.failedValidationResponse(w, r, map[string]string{"value": "must be provided"})
		return
	}

	var (
		updated []form.FieldState
		resp    formResponse
		err     error
	)
	session.Do(func(fv *form.FormValidator) {
		updated, err = fv.Dispatch(app.readParam(r, "field"), *input.Value)
		if err == nil {
			resp = newFormResponse(session.ID, fv)
		}
	})
	if err != nil {
		if errors.Is(err, form.ErrUnknownField) {
			app.unknownFieldResponse(w, r, err)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	if failures := data.FailuresFromStates(updated, data.TriggerInput); len(failures) > 0 {
		app.recordStatistics(r.Context(), "RecordFailures", func(ctx context.Context) error {
			return app.statistics.RecordFailures(ctx, failures)
		})
	}

	err = app.writeJSON(w, http.StatusOK, envelope{
		"data":    resp,
		"updated": responseStates(updated),
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// submitFormHandler applies a "submit requested" event. A body with values
// replaces every value first. Accepted forms are reset.
func (app *application) submitFormHandler(w http.ResponseWriter, r *http.Request) {
	session, r, ok := app.session(w, r)
	if !ok {
		return
	}

	var input struct {
		Values *form.FormValues `json:"values"`
	}

	if _, err := app.readOptionalJSON(w, r, &input); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var (
		accepted bool
		states   []form.FieldState
		errs     map[string]string
	)
	session.Do(func(fv *form.FormValidator) {
		if input.Values != nil {
			fv.SetValues(*input.Values)
		}
		accepted = fv.Submit()
		if !accepted {
			states = fv.State().Fields
			errs = fv.Errors()
		}
	})

	failures := data.FailuresFromStates(states, data.TriggerSubmit)
	app.recordStatistics(r.Context(), "RecordSubmission", func(ctx context.Context) error {
		return errors.Join(
			app.statistics.RecordFailures(ctx, failures),
			app.statistics.RecordSubmission(ctx, accepted),
		)
	})

	if !accepted {
		app.logger.InfoWithContext(r.Context(), "form submission rejected",
			"failing_fields", len(errs))
		app.formRejectedResponse(w, r, errs, responseStates(states))
		return
	}

	app.logger.InfoWithContext(r.Context(), "form submission accepted")

	err := app.writeJSON(w, http.StatusOK, envelope{"data": envelope{
		"session_id": session.ID,
		"accepted":   true,
		"reset":      true,
	}}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) resetFormHandler(w http.ResponseWriter, r *http.Request) {
	session, r, ok := app.session(w, r)
	if !ok {
		return
	}

	var resp formResponse
	session.Do(func(fv *form.FormValidator) {
		fv.Reset()
		resp = newFormResponse(session.ID, fv)
	})

	err := app.writeJSON(w, http.StatusOK, envelope{"data": resp}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteFormHandler(w http.ResponseWriter, r *http.Request) {
	id := app.readParam(r, "id")

	if !app.sessions.Delete(id) {
		app.sessionNotFoundResponse(w, r)
		return
	}

	app.logger.InfoWithContext(jsonlog.WithSessionID(r.Context(), id), "form session ended")

	err := app.writeJSON(w, http.StatusOK, envelope{"message": "form session ended"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

const (
	defaultTopFailures = 5
	maxTopFailures     = 100
)

// statisticsHandler reports which rules fail most often and how many
// submits were accepted or rejected. The optional field query narrows the
// top failures to one field.
func (app *application) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()

	top, err := app.readIntQuery(r, "top", defaultTopFailures)
	if err != nil {
		v.AddError("top", err.Error())
	} else {
		v.Check(top >= 1, "top", "must be at least 1")
		v.Check(top <= maxTopFailures, "top", fmt.Sprintf("must not be more than %d", maxTopFailures))
	}

	var field form.Field
	filter := r.URL.Query().Get("field")
	if filter != "" {
		if err := field.UnmarshalText([]byte(filter)); err != nil {
			v.AddError("field", err.Error())
		}
	}

	if !v.Valid() {
		app.failedValidationResponse(w, r, v.ErrorMap())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit := top
	if filter != "" {
		limit = maxTopFailures
	}
	topFailures, err := app.statistics.GetTopN(ctx, limit)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if filter != "" {
		topFailures = failuresFor(topFailures, field, top)
	}

	summary, err := app.statistics.GetStats(ctx)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	mostFrequent, err := app.statistics.GetMostFrequent(ctx)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	hits := 0
	if mostFrequent != nil {
		hits = mostFrequent.Hits
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"data": envelope{
		"most_frequent_failure": mostFrequent,
		"hits":                  hits,
		"top_failures":          topFailures,
		"summary":               summary,
	}}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// failuresFor keeps the entries of one field, at most n of them, in their
// original order.
func failuresFor(entries []*data.StatisticsEntry, field form.Field, n int) []*data.StatisticsEntry {
	kept := make([]*data.StatisticsEntry, 0, n)
	for _, e := range entries {
		if e.Field != field.String() {
			continue
		}
		kept = append(kept, e)
		if len(kept) == n {
			break
		}
	}
	return kept
}
