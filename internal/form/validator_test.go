package form

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingView remembers every notification in order.
type recordingView struct {
	events []string
	shown  map[Field]string
	resets int
}

func newRecordingView() *recordingView {
	return &recordingView{shown: make(map[Field]string)}
}

func (v *recordingView) ShowError(field Field, message string) {
	v.events = append(v.events, fmt.Sprintf("show %s", field))
	v.shown[field] = message
}

func (v *recordingView) ClearError(field Field) {
	v.events = append(v.events, fmt.Sprintf("clear %s", field))
	delete(v.shown, field)
}

func (v *recordingView) Reset() {
	v.events = append(v.events, "reset")
	v.shown = make(map[Field]string)
	v.resets++
}

func validValues() FormValues {
	return FormValues{
		FullName:        "Alice Smith",
		Email:           "a@b.com",
		Phone:           "5551234567",
		Password:        "Secur3Pass",
		ConfirmPassword: "Secur3Pass",
	}
}

func TestNew_FieldsStartPristine(t *testing.T) {
	fv := New()

	state := fv.State()
	require.Len(t, state.Fields, len(Fields))
	for i, st := range state.Fields {
		assert.Equal(t, Fields[i], st.Field)
		assert.True(t, st.IsValid, "pristine field shows no error")
		assert.False(t, st.Evaluated)
	}
	assert.False(t, state.Valid(), "an unevaluated form is not submittable")
	assert.Nil(t, fv.Errors())
}

func TestValidateForm_EndToEnd(t *testing.T) {
	t.Run("all fields valid", func(t *testing.T) {
		view := newRecordingView()
		fv := New(WithView(view), WithValues(validValues()))

		assert.True(t, fv.ValidateForm())
		assert.Empty(t, view.shown)
		assert.Nil(t, fv.Errors())
		assert.True(t, fv.State().Valid())
	})

	t.Run("short name reports TooShort", func(t *testing.T) {
		values := validValues()
		values.FullName = "Al"
		fv := New(WithValues(values))

		assert.False(t, fv.ValidateForm())
		st := fv.Field(FullName)
		assert.Equal(t, KindTooShort, st.Kind)
		assert.Equal(t, MsgTooShort, st.ErrorMessage)
	})

	t.Run("password literal is WeakPassword regardless of other fields", func(t *testing.T) {
		for _, values := range []FormValues{
			{Password: "password", ConfirmPassword: "password"},
			{FullName: "Alice Smith", Email: "a@b.com", Phone: "5551234567", Password: "password", ConfirmPassword: "password"},
		} {
			fv := New(WithValues(values))
			assert.False(t, fv.ValidateForm())
			assert.Equal(t, KindWeakPassword, fv.Field(Password).Kind)
		}
	})
}

func TestValidateForm_EvaluatesEveryField(t *testing.T) {
	view := newRecordingView()
	fv := New(WithView(view))

	assert.False(t, fv.ValidateForm())

	want := map[Field]string{
		FullName: MsgTooShort,
		Email:    MsgMissingAtSign,
		Phone:    MsgInvalidPhone,
		Password: MsgWeakPassword,
	}
	if diff := cmp.Diff(want, view.shown); diff != "" {
		t.Errorf("shown errors mismatch (-want +got):\n%s", diff)
	}
	// Empty confirmation matches the empty password.
	assert.Equal(t, "clear confirmPassword", view.events[len(view.events)-1])

	for _, st := range fv.State().Fields {
		assert.True(t, st.Evaluated, "%s not evaluated", st.Field)
	}

	assert.Equal(t, map[string]string{
		"fullName": MsgTooShort,
		"email":    MsgMissingAtSign,
		"phone":    MsgInvalidPhone,
		"password": MsgWeakPassword,
	}, fv.Errors())
}

func TestHandleInput_NoStaleErrors(t *testing.T) {
	view := newRecordingView()
	fv := New(WithView(view))

	states := fv.HandleInput(Email, "alice")
	require.Len(t, states, 1)
	assert.False(t, states[0].IsValid)
	assert.Equal(t, MsgMissingAtSign, view.shown[Email])

	states = fv.HandleInput(Email, "alice@example.com")
	require.Len(t, states, 1)
	assert.True(t, states[0].IsValid)
	assert.Empty(t, states[0].ErrorMessage)
	assert.NotContains(t, view.shown, Email)
	assert.Nil(t, fv.Errors())
}

func TestFieldState_Err(t *testing.T) {
	fv := New()
	assert.NoError(t, fv.Field(Phone).Err())

	err := fv.HandleInput(Phone, "123456789")[0].Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Equal(t, "phone: "+MsgInvalidPhone, err.Error())

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, Phone, fe.Field)
	assert.Equal(t, KindInvalidPhone, fe.Kind)

	assert.NoError(t, fv.HandleInput(Phone, "0123456789")[0].Err())
}

func TestHandleInput_TrimmedValue(t *testing.T) {
	fv := New()

	st := fv.HandleInput(FullName, "  Alice  ")[0]

	want := FieldState{
		Field:        FullName,
		RawValue:     "  Alice  ",
		TrimmedValue: "Alice",
		IsValid:      true,
		Evaluated:    true,
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "  Alice  ", fv.Values().FullName)
}

func TestHandleInput_Dependents(t *testing.T) {
	t.Run("untouched dependents are left alone", func(t *testing.T) {
		fv := New()

		states := fv.HandleInput(Password, "Secur3Pass")
		require.Len(t, states, 1)
		assert.False(t, fv.Field(ConfirmPassword).Evaluated)
	})

	t.Run("evaluated confirmation follows password changes", func(t *testing.T) {
		fv := New()
		fv.HandleInput(Password, "Secur3Pass")
		st := fv.HandleInput(ConfirmPassword, "Secur3Pass")[0]
		require.True(t, st.IsValid)

		states := fv.HandleInput(Password, "Different1")
		require.Len(t, states, 2)
		assert.Equal(t, ConfirmPassword, states[1].Field)
		assert.False(t, states[1].IsValid)
		assert.Equal(t, KindPasswordMismatch, fv.Field(ConfirmPassword).Kind)
	})

	t.Run("evaluated password follows name changes", func(t *testing.T) {
		fv := New()
		fv.HandleInput(Password, "Bartholomew")
		require.True(t, fv.Field(Password).IsValid)

		states := fv.HandleInput(FullName, "bartholomew")
		require.Len(t, states, 2)
		assert.Equal(t, Password, states[1].Field)
		assert.Equal(t, KindWeakPassword, states[1].Kind)
	})
}

func TestDispatch(t *testing.T) {
	fv := New()

	states, err := fv.Dispatch("phone", "123456789")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, KindInvalidPhone, states[0].Kind)

	_, err = fv.Dispatch("phon", "5551234567")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))

	var ufe *UnknownFieldError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, "phone", ufe.Suggestion)
}

func TestSubmit(t *testing.T) {
	t.Run("accepted submit resets the form", func(t *testing.T) {
		view := newRecordingView()
		fv := New(WithView(view), WithValues(validValues()))

		assert.True(t, fv.Submit())
		assert.Equal(t, 1, view.resets)
		assert.Equal(t, FormValues{}, fv.Values())
		for _, st := range fv.State().Fields {
			assert.False(t, st.Evaluated)
			assert.Empty(t, st.RawValue)
		}
	})

	t.Run("rejected submit keeps values and errors", func(t *testing.T) {
		view := newRecordingView()
		values := validValues()
		values.ConfirmPassword = "secur3pass"
		fv := New(WithView(view), WithValues(values))

		assert.False(t, fv.Submit())
		assert.Zero(t, view.resets)
		assert.Equal(t, values, fv.Values())
		assert.Equal(t, map[string]string{"confirmPassword": MsgPasswordMismatch}, fv.Errors())
	})

	t.Run("fixing the failing field lets the next submit through", func(t *testing.T) {
		values := validValues()
		values.Phone = "123456789"
		fv := New(WithValues(values))

		require.False(t, fv.Submit())
		fv.HandleInput(Phone, "5551234567")
		assert.True(t, fv.Submit())
	})
}

func TestSetValues_DoesNotEvaluate(t *testing.T) {
	view := newRecordingView()
	fv := New(WithView(view))

	fv.SetValues(validValues())

	assert.Empty(t, view.events)
	assert.Equal(t, validValues(), fv.Values())
	assert.False(t, fv.Field(Email).Evaluated)
}

func TestValidateForm_Idempotent(t *testing.T) {
	values := validValues()
	values.Email = "nope"
	fv := New(WithValues(values))

	first := fv.ValidateForm()
	firstState := fv.State()
	second := fv.ValidateForm()

	assert.Equal(t, first, second)
	if diff := cmp.Diff(firstState, fv.State()); diff != "" {
		t.Errorf("state changed between identical evaluations (-first +second):\n%s", diff)
	}
}
