package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

func (app *application) logError(r *http.Request, err error) {
	app.logger.ErrorWithContext(r.Context(), err.Error(),
		"method", r.Method,
		"uri", r.URL.RequestURI())
}

func (app *application) errorJSON(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := envelope{"error": message}

	err := app.writeJSON(w, status, env, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "the server encountered a problem and could not process your request"
	app.errorJSON(w, r, http.StatusInternalServerError, message)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	app.errorJSON(w, r, http.StatusNotFound, message)
}

func (app *application) sessionNotFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the form session could not be found or has expired"
	app.errorJSON(w, r, http.StatusNotFound, message)
}

func (app *application) unknownFieldResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorJSON(w, r, http.StatusNotFound, err.Error())
}

func (app *application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("the %s method is not supported for this resource", r.Method)
	app.errorJSON(w, r, http.StatusMethodNotAllowed, message)
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorJSON(w, r, http.StatusBadRequest, err.Error())
}

func (app *application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	app.errorJSON(w, r, http.StatusUnprocessableEntity, errors)
}

// formRejectedResponse answers a submit that did not pass every rule. The
// field states travel with the errors so the host can redraw the form.
func (app *application) formRejectedResponse(w http.ResponseWriter, r *http.Request, errors map[string]string, fields []fieldResponse) {
	env := envelope{"error": errors, "fields": fields}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	headers := http.Header{}
	headers.Set("Retry-After", strconv.Itoa(seconds))

	err := app.writeJSON(w, http.StatusTooManyRequests, envelope{"error": "rate limit exceeded"}, headers)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
