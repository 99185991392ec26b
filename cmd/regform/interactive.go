package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"regform/internal/form"
)

var fieldHelp = map[form.Field]string{
	form.FullName:        "At least 5 characters",
	form.Email:           "Must contain an @ sign",
	form.Phone:           "Exactly 10 digits",
	form.Password:        `At least 8 characters, not "password" and not your name`,
	form.ConfirmPassword: "Repeat the password exactly",
}

// runInteractive prompts for every field in form order, re-asking until the
// field's rule passes or the answer is blank, then submits. A rejected submission offers to start
// over. It reports whether the registration was accepted.
func runInteractive(ctx context.Context, driver PromptDriver, view form.View, out io.Writer) (bool, error) {
	fv := form.New(form.WithView(view))

	for {
		for _, field := range form.Fields {
			if err := promptField(ctx, driver, fv, field); err != nil {
				return false, err
			}
		}

		values := fv.Values()
		if fv.Submit() {
			msg := fmt.Sprintf("Registration accepted for %s <%s>",
				strings.TrimSpace(values.FullName), strings.TrimSpace(values.Email))
			return true, driver.Info(ctx, msg)
		}

		fmt.Fprintln(out, "Registration rejected:")
		printState(out, fv.State())

		again, err := driver.Confirm(ctx, ConfirmConfig{Message: "Start over?", Default: true})
		if err != nil {
			return false, err
		}
		if !again {
			return false, nil
		}
		fv.Reset()
	}
}

// promptField asks for one field. Every answer goes through HandleInput, so
// the form state always holds the last value typed. A blank answer is taken
// as is and leaves the field failing until submit.
func promptField(ctx context.Context, driver PromptDriver, fv *form.FormValidator, field form.Field) error {
	cfg := InputConfig{
		Message: field.Label(),
		Help:    fieldHelp[field] + "; leave blank to skip",
		Validator: func(value string) error {
			err := fv.HandleInput(field, value)[0].Err()
			if strings.TrimSpace(value) == "" {
				return nil
			}
			return err
		},
	}

	var err error
	if field.Secret() {
		_, err = driver.Password(ctx, cfg)
	} else {
		_, err = driver.Input(ctx, cfg)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
