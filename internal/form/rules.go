package form

import (
	"errors"
	"regexp"
	"strings"

	"regform/internal/validator"
)

// Kind classifies a rule failure.
type Kind string

const (
	KindNone             Kind = ""
	KindTooShort         Kind = "TooShort"
	KindMissingAtSign    Kind = "MissingAtSign"
	KindInvalidPhone     Kind = "InvalidPhoneFormat"
	KindWeakPassword     Kind = "WeakPassword"
	KindPasswordMismatch Kind = "PasswordMismatch"
)

// Sentinel errors, one per failure kind.
var (
	ErrTooShort         = errors.New("too short")
	ErrMissingAtSign    = errors.New("missing @ sign")
	ErrInvalidPhone     = errors.New("invalid phone format")
	ErrWeakPassword     = errors.New("weak password")
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrUnknownField     = errors.New("unknown field")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTooShort:
		return ErrTooShort
	case KindMissingAtSign:
		return ErrMissingAtSign
	case KindInvalidPhone:
		return ErrInvalidPhone
	case KindWeakPassword:
		return ErrWeakPassword
	case KindPasswordMismatch:
		return ErrPasswordMismatch
	default:
		return nil
	}
}

const (
	minNameLength     = 5
	phoneLength       = 10
	minPasswordLength = 8

	// rejectedPhone is the placeholder people type instead of a real number.
	rejectedPhone = "123456789"
)

// Messages shown next to a failing field.
const (
	MsgTooShort         = "Name must be at least 5 characters long"
	MsgMissingAtSign    = "Please enter a valid email address"
	MsgInvalidPhone     = "Please enter a valid 10-digit phone number"
	MsgWeakPassword     = `Password must be at least 8 characters and not be "password" or your name`
	MsgPasswordMismatch = "Passwords do not match"
)

var (
	digitsRX      = regexp.MustCompile(`^\d+$`)
	weakPasswords = []string{"password"}
)

// Result is the outcome of one rule evaluation.
type Result struct {
	Valid   bool   `json:"valid"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func pass() Result {
	return Result{Valid: true}
}

func fail(kind Kind, message string) Result {
	return Result{Kind: kind, Message: message}
}

// Err returns a *FieldError describing the failure, or nil if r is valid.
func (r Result) Err(field Field) error {
	if r.Valid {
		return nil
	}
	return &FieldError{Field: field, Kind: r.Kind, Message: r.Message}
}

// FieldError is a rule failure bound to the field it was evaluated for.
// It matches the kind's sentinel with errors.Is.
type FieldError struct {
	Field   Field
	Kind    Kind
	Message string
}

func (e *FieldError) Error() string {
	return e.Field.String() + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Kind.sentinel()
}

// ValidateFullName fails when the trimmed name is shorter than five
// characters, counted in UTF-16 code units.
func ValidateFullName(value string) Result {
	if length(trim(value)) < minNameLength {
		return fail(KindTooShort, MsgTooShort)
	}
	return pass()
}

// ValidateEmail only checks for an @ sign.
func ValidateEmail(value string) Result {
	if !strings.Contains(trim(value), "@") {
		return fail(KindMissingAtSign, MsgMissingAtSign)
	}
	return pass()
}

// ValidatePhone accepts exactly ten digits, other than the placeholder number.
func ValidatePhone(value string) Result {
	value = trim(value)
	if value == rejectedPhone || length(value) != phoneLength || !validator.Matches(value, digitsRX) {
		return fail(KindInvalidPhone, MsgInvalidPhone)
	}
	return pass()
}

// ValidatePassword rejects "password", the user's own name (both compared
// case-insensitively) and anything shorter than eight characters. Neither
// value is trimmed.
func ValidatePassword(value, fullName string) Result {
	lower := strings.ToLower(value)
	if validator.PermittedValue(lower, weakPasswords...) ||
		lower == strings.ToLower(fullName) ||
		length(value) < minPasswordLength {
		return fail(KindWeakPassword, MsgWeakPassword)
	}
	return pass()
}

// ValidateConfirmPassword requires an exact, case-sensitive match.
func ValidateConfirmPassword(confirmValue, passwordValue string) Result {
	if confirmValue != passwordValue {
		return fail(KindPasswordMismatch, MsgPasswordMismatch)
	}
	return pass()
}

// Rule evaluates one field against the whole set of current values.
type Rule func(FormValues) Result

// Rules maps every field to its rule.
var Rules = map[Field]Rule{
	FullName:        func(v FormValues) Result { return ValidateFullName(v.FullName) },
	Email:           func(v FormValues) Result { return ValidateEmail(v.Email) },
	Phone:           func(v FormValues) Result { return ValidatePhone(v.Phone) },
	Password:        func(v FormValues) Result { return ValidatePassword(v.Password, v.FullName) },
	ConfirmPassword: func(v FormValues) Result { return ValidateConfirmPassword(v.ConfirmPassword, v.Password) },
}

// dependents lists the fields whose rule reads the key field's value.
var dependents = map[Field][]Field{
	FullName: {Password},
	Password: {ConfirmPassword},
}
