package form

import (
	"regform/internal/validator"
)

// FormValidator owns the state of one form and evaluates its rules. It is
// driven by one logical thread of UI events and is not safe for concurrent
// use; callers serialize access.
type FormValidator struct {
	values   FormValues
	states   [len(fieldNames)]FieldState
	view     View
	dispatch map[Field]func(value string) []FieldState
	errs     *validator.Validator
}

// Option configures a FormValidator.
type Option func(*FormValidator)

// WithView routes error display notifications to view.
func WithView(view View) Option {
	return func(fv *FormValidator) {
		if view != nil {
			fv.view = view
		}
	}
}

// WithValues seeds the form with initial values. Nothing is evaluated.
func WithValues(values FormValues) Option {
	return func(fv *FormValidator) {
		fv.values = values
	}
}

// New returns a FormValidator with every field pristine.
func New(opts ...Option) *FormValidator {
	fv := &FormValidator{view: NopView{}, errs: validator.New()}
	for _, opt := range opts {
		opt(fv)
	}
	fv.resetStates()

	fv.dispatch = make(map[Field]func(string) []FieldState, len(Fields))
	for _, field := range Fields {
		fv.dispatch[field] = func(value string) []FieldState {
			fv.values.Set(field, value)
			return fv.revalidate(field)
		}
	}

	return fv
}

func (fv *FormValidator) resetStates() {
	for _, field := range Fields {
		fv.states[field] = pristine(field, fv.values.Get(field))
	}
}

// HandleInput records a "value changed" event for field and returns the
// states it re-evaluated: the field itself, followed by any dependent
// field that was already showing a result.
func (fv *FormValidator) HandleInput(field Field, value string) []FieldState {
	handler, ok := fv.dispatch[field]
	if !ok {
		return nil
	}
	return handler(value)
}

// Dispatch is HandleInput keyed by the field's wire name.
func (fv *FormValidator) Dispatch(name, value string) ([]FieldState, error) {
	field, err := ParseField(name)
	if err != nil {
		return nil, err
	}
	return fv.HandleInput(field, value), nil
}

func (fv *FormValidator) revalidate(field Field) []FieldState {
	states := []FieldState{fv.Validate(field)}
	for _, dep := range dependents[field] {
		if fv.states[dep].Evaluated {
			states = append(states, fv.Validate(dep))
		}
	}
	return states
}

// Validate runs field's rule against the current values and updates the view.
func (fv *FormValidator) Validate(field Field) FieldState {
	rule, ok := Rules[field]
	if !ok {
		return FieldState{Field: field}
	}

	r := rule(fv.values)
	st := newFieldState(field, fv.values.Get(field), r)
	fv.states[field] = st

	if r.Valid {
		fv.view.ClearError(field)
	} else {
		fv.view.ShowError(field, r.Message)
	}
	return st
}

// ValidateForm evaluates every rule, without stopping at the first failure,
// and reports whether all of them passed.
func (fv *FormValidator) ValidateForm() bool {
	ok := true
	for _, field := range Fields {
		if !fv.Validate(field).IsValid {
			ok = false
		}
	}
	return ok
}

// Submit gates a submit request. When every rule passes the form is reset
// and Submit returns true; otherwise values and error states are kept.
func (fv *FormValidator) Submit() bool {
	if !fv.ValidateForm() {
		return false
	}
	fv.Reset()
	return true
}

// Reset clears all values and returns every field to pristine.
func (fv *FormValidator) Reset() {
	fv.values = FormValues{}
	fv.resetStates()
	fv.view.Reset()
}

// SetValues replaces every value without evaluating anything. Field states
// keep describing the values they were last evaluated against.
func (fv *FormValidator) SetValues(values FormValues) {
	fv.values = values
}

// Values returns the current raw values.
func (fv *FormValidator) Values() FormValues {
	return fv.values
}

// Field returns the current state of one field.
func (fv *FormValidator) Field(field Field) FieldState {
	if int(field) < 0 || int(field) >= len(fv.states) {
		return FieldState{Field: field}
	}
	return fv.states[field]
}

// State returns a snapshot of the whole form.
func (fv *FormValidator) State() FormState {
	fields := make([]FieldState, len(Fields))
	for i, field := range Fields {
		fields[i] = fv.states[field]
	}
	return FormState{Values: fv.values, Fields: fields}
}

// Errors returns the message of every field currently failing, keyed by
// wire name, or nil when none is.
func (fv *FormValidator) Errors() map[string]string {
	fv.errs.Clear()
	for _, field := range Fields {
		st := fv.states[field]
		fv.errs.Check(!st.Evaluated || st.IsValid, field.String(), st.ErrorMessage)
	}
	return fv.errs.ErrorMap()
}
