// Package validator collects field-keyed validation messages for the registration form.
// A Validator is filled during one evaluation pass and then read back as a map for
// display or for the JSON error envelope.
package validator

import (
	"regexp"
	"slices"
)

// Validator holds one message per failing field.
// It is meant for a single evaluation pass and is not safe for concurrent use.
type Validator struct {
	errors map[string]string
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{
		errors: make(map[string]string),
	}
}

// Valid returns true if no field has failed.
func (v *Validator) Valid() bool {
	return len(v.errors) == 0
}

// AddError records message for key, replacing any earlier message.
func (v *Validator) AddError(key, message string) {
	if v.errors == nil {
		v.errors = make(map[string]string)
	}
	v.errors[key] = message
}

// Check adds message for key when condition is false.
func (v *Validator) Check(condition bool, key, message string) {
	if !condition {
		v.AddError(key, message)
	}
}

// ErrorMap returns a copy of the collected messages, or nil when there are none.
func (v *Validator) ErrorMap() map[string]string {
	if len(v.errors) == 0 {
		return nil
	}

	errorsCopy := make(map[string]string, len(v.errors))
	for key, message := range v.errors {
		errorsCopy[key] = message
	}
	return errorsCopy
}

// Clear drops every collected message so the Validator can be reused.
func (v *Validator) Clear() {
	v.errors = make(map[string]string)
}

// PermittedValue returns true if value is one of permittedValues.
func PermittedValue[T comparable](value T, permittedValues ...T) bool {
	return slices.Contains(permittedValues, value)
}

// Matches returns true if value matches pattern. A nil pattern never matches.
func Matches(value string, pattern *regexp.Regexp) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(value)
}
