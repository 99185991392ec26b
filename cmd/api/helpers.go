package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/microcosm-cc/bluemonday"

	"regform/internal/form"
)

type envelope map[string]any

const maxBodyBytes = 1_048_576

var (
	errMissingContentType = errors.New("missing Content-Type header")
	errEmptyBody          = errors.New("body must not be empty")
)

func (app *application) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)

	return nil
}

// readJSON decodes a single JSON value from the request body into dst and
// turns decoder errors into messages fit for the client.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return errMissingContentType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return errors.New("Content-Type header must be application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err = dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("the request body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("the request body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errEmptyBody

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(err)

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readOptionalJSON is readJSON for endpoints whose body may be left out.
// It reports whether a body was decoded.
func (app *application) readOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) (bool, error) {
	if r.ContentLength == 0 {
		return false, nil
	}
	err := app.readJSON(w, r, dst)
	if errors.Is(err, errEmptyBody) {
		return false, nil
	}
	return err == nil, err
}

func (app *application) readParam(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}

// readIntQuery returns the named query parameter as an int, or def when it is absent.
func (app *application) readIntQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}

	i, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("must be an integer value")
	}
	return i, nil
}

var (
	sanitizerOnce sync.Once
	sanitizer     *bluemonday.Policy
)

func sanitizePolicy() *bluemonday.Policy {
	sanitizerOnce.Do(func() {
		sanitizer = bluemonday.StrictPolicy()
	})
	return sanitizer
}

// fieldResponse is a field state as sent to the host. Values are echoed
// unchanged; DisplayValue is the trimmed value with all markup stripped, for
// hosts that render it as HTML.
type fieldResponse struct {
	form.FieldState
	DisplayValue string `json:"displayValue"`
}

// responseStates prepares field states for the response body. Secret values
// are never echoed.
func responseStates(states []form.FieldState) []fieldResponse {
	out := make([]fieldResponse, len(states))
	p := sanitizePolicy()
	for i, st := range states {
		if st.Field.Secret() {
			st.RawValue = ""
			st.TrimmedValue = ""
		}
		out[i] = fieldResponse{
			FieldState:   st,
			DisplayValue: p.Sanitize(st.TrimmedValue),
		}
	}
	return out
}

// recordStatistics runs fn with a two second budget that survives the client
// going away. Errors and panics are logged, never returned.
func (app *application) recordStatistics(ctx context.Context, operation string, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			app.logger.ErrorWithContext(ctx, "statistics recording panicked",
				"panic", rec,
				"operation", operation)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := fn(ctx); err != nil {
		app.logger.WarnWithContext(ctx, "statistics recording failed",
			"error", err,
			"operation", operation)
	}
}
