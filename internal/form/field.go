// Package form implements the registration form rules and the FormValidator
// that applies them to explicit form state in response to input and submit events.
package form

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Field identifies one named input slot of the registration form.
type Field int

const (
	FullName Field = iota
	Email
	Phone
	Password
	ConfirmPassword
)

// Fields lists every field in form order.
var Fields = []Field{FullName, Email, Phone, Password, ConfirmPassword}

var fieldNames = [...]string{
	FullName:        "fullName",
	Email:           "email",
	Phone:           "phone",
	Password:        "password",
	ConfirmPassword: "confirmPassword",
}

// String returns the field's wire name, e.g. "confirmPassword".
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Label returns a human readable label used by prompts.
func (f Field) Label() string {
	switch f {
	case FullName:
		return "Full name"
	case Email:
		return "Email"
	case Phone:
		return "Phone"
	case Password:
		return "Password"
	case ConfirmPassword:
		return "Confirm password"
	default:
		return f.String()
	}
}

// Secret reports whether the field's value should be masked when displayed.
func (f Field) Secret() bool {
	return f == Password || f == ConfirmPassword
}

// MarshalText implements encoding.TextMarshaler so fields can key JSON maps.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// UnknownFieldError is returned by ParseField for names outside the form.
type UnknownFieldError struct {
	Name       string
	Suggestion string
}

func (e *UnknownFieldError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("unknown field %q", e.Name)
	}
	return fmt.Sprintf("unknown field %q, did you mean %q?", e.Name, e.Suggestion)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

// ParseField resolves a wire name to a Field. Matching is exact; on failure
// the error carries the closest known name when one is reasonably near.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, &UnknownFieldError{Name: name, Suggestion: suggest(name)}
}

// suggest returns the known field name with the smallest edit distance to
// name, or "" when every candidate is further than half the name's length.
func suggest(name string) string {
	lower := strings.ToLower(name)
	best, bestDist := "", -1
	for _, n := range fieldNames {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(n))
		if bestDist < 0 || d < bestDist {
			best, bestDist = n, d
		}
	}
	if bestDist > max(len(lower), 1)/2 {
		return ""
	}
	return best
}
