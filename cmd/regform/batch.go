package main

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"regform/internal/form"
)

// batchResult counts the documents validated by runBatch.
type batchResult struct {
	Documents int
	Rejected  int
}

// runBatch validates every YAML document in r as one complete form and
// prints the per-field outcome of each. Unknown keys are an error.
func runBatch(r io.Reader, out io.Writer) (batchResult, error) {
	var res batchResult

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	for {
		var values form.FormValues
		err := dec.Decode(&values)
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("document %d: %w", res.Documents+1, err)
		}

		res.Documents++

		fv := form.New(form.WithValues(values))
		status := "accepted"
		if !fv.ValidateForm() {
			status = "rejected"
			res.Rejected++
		}

		fmt.Fprintf(out, "document %d: %s\n", res.Documents, status)
		printState(out, fv.State())
	}
}
