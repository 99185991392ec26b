package form

// FormValues holds the raw value of every field.
type FormValues struct {
	FullName        string `json:"fullName" yaml:"fullName"`
	Email           string `json:"email" yaml:"email"`
	Phone           string `json:"phone" yaml:"phone"`
	Password        string `json:"password" yaml:"password"`
	ConfirmPassword string `json:"confirmPassword" yaml:"confirmPassword"`
}

// Get returns the raw value of field.
func (v FormValues) Get(field Field) string {
	switch field {
	case FullName:
		return v.FullName
	case Email:
		return v.Email
	case Phone:
		return v.Phone
	case Password:
		return v.Password
	case ConfirmPassword:
		return v.ConfirmPassword
	default:
		return ""
	}
}

// Set replaces the raw value of field.
func (v *FormValues) Set(field Field, value string) {
	switch field {
	case FullName:
		v.FullName = value
	case Email:
		v.Email = value
	case Phone:
		v.Phone = value
	case Password:
		v.Password = value
	case ConfirmPassword:
		v.ConfirmPassword = value
	}
}

// FieldState is the validity shown for one field. Evaluated is false until
// the field's rule has run since the form was created or last reset.
type FieldState struct {
	Field        Field  `json:"field"`
	RawValue     string `json:"rawValue"`
	TrimmedValue string `json:"trimmedValue"`
	IsValid      bool   `json:"isValid"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Kind         Kind   `json:"kind,omitempty"`
	Evaluated    bool   `json:"evaluated"`
}

func newFieldState(field Field, raw string, r Result) FieldState {
	return FieldState{
		Field:        field,
		RawValue:     raw,
		TrimmedValue: trim(raw),
		IsValid:      r.Valid,
		ErrorMessage: r.Message,
		Kind:         r.Kind,
		Evaluated:    true,
	}
}

// Err returns the *FieldError of an evaluated failing field, or nil.
func (s FieldState) Err() error {
	if !s.Evaluated {
		return nil
	}
	return Result{Valid: s.IsValid, Kind: s.Kind, Message: s.ErrorMessage}.Err(s.Field)
}

// pristine is the state of a field nobody has validated yet. It shows no
// error, so it counts as valid for display.
func pristine(field Field, raw string) FieldState {
	return FieldState{
		Field:        field,
		RawValue:     raw,
		TrimmedValue: trim(raw),
		IsValid:      true,
	}
}

// FormState is the explicit state of the whole form.
type FormState struct {
	Values FormValues   `json:"-"`
	Fields []FieldState `json:"fields"`
}

// Valid reports whether every field has been evaluated and passed.
func (s FormState) Valid() bool {
	for _, fs := range s.Fields {
		if !fs.Evaluated || !fs.IsValid {
			return false
		}
	}
	return len(s.Fields) == len(Fields)
}
