package main

import (
	"fmt"
	"io"

	"regform/internal/form"
)

// terminalView prints error display changes as they happen.
type terminalView struct {
	out io.Writer
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) ShowError(field form.Field, message string) {
	fmt.Fprintf(v.out, "  ✗ %s: %s\n", field.Label(), message)
}

func (v *terminalView) ClearError(field form.Field) {
	fmt.Fprintf(v.out, "  ✓ %s\n", field.Label())
}

func (v *terminalView) Reset() {
	fmt.Fprintln(v.out, "  form cleared")
}

var _ form.View = (*terminalView)(nil)

// printState writes one line per field. Secret values are masked.
func printState(out io.Writer, state form.FormState) {
	for _, st := range state.Fields {
		value := st.TrimmedValue
		if st.Field.Secret() && value != "" {
			value = "********"
		}

		switch {
		case !st.Evaluated:
			fmt.Fprintf(out, "  - %-18s %q\n", st.Field.Label(), value)
		case st.IsValid:
			fmt.Fprintf(out, "  ✓ %-18s %q\n", st.Field.Label(), value)
		default:
			fmt.Fprintf(out, "  ✗ %-18s %q %s (%s)\n", st.Field.Label(), value, st.ErrorMessage, st.Kind)
		}
	}
}
