package form

// View is the UI side of the form. FormValidator calls it after every
// evaluation so the host can mark fields and show or hide messages.
type View interface {
	ShowError(field Field, message string)
	ClearError(field Field)
	Reset()
}

// NopView ignores every notification.
type NopView struct{}

func (NopView) ShowError(Field, string) {}
func (NopView) ClearError(Field)        {}
func (NopView) Reset()                  {}
