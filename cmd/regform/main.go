// Command regform runs the registration form in a terminal. Without flags it
// prompts for each field; with -values it validates YAML documents instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"regform/internal/jsonlog"
)

const (
	exitAccepted = 0
	exitRejected = 1
	exitFailure  = 2
	exitAborted  = 130
)

type options struct {
	valuesFile string
	env        string
	logLevel   string
}

func main() {
	var opts options

	flag.StringVar(&opts.valuesFile, "values", "", "YAML file of form values to validate without prompting (- reads stdin)")
	flag.StringVar(&opts.env, "env", "development", "Environment (development|staging|production)")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "Minimum log level (debug|info|warn|error)")
	flag.Parse()

	logger := jsonlog.New(os.Stderr, jsonlog.ParseLevel(opts.logLevel), opts.env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, opts, os.Stdin, os.Stdout, logger, newSurveyDriver(os.Stdout))
	stop()

	os.Exit(code)
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer, logger *jsonlog.Logger, driver PromptDriver) int {
	if opts.valuesFile != "" {
		return runBatchFile(opts.valuesFile, stdin, stdout, logger)
	}

	accepted, err := runInteractive(ctx, driver, newTerminalView(stdout), stdout)
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		fmt.Fprintln(stdout, "aborted")
		return exitAborted
	case err != nil:
		logger.Error("interactive session failed", "error", err)
		return exitFailure
	case !accepted:
		return exitRejected
	default:
		return exitAccepted
	}
}

func runBatchFile(name string, stdin io.Reader, stdout io.Writer, logger *jsonlog.Logger) int {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			logger.Error("failed to open values file", "error", err, "file", name)
			return exitFailure
		}
		defer f.Close()
		r = f
	}

	res, err := runBatch(r, stdout)
	if err != nil {
		logger.Error("failed to read values", "error", err, "file", name)
		return exitFailure
	}

	logger.Info("batch validation completed",
		"file", name,
		"documents", res.Documents,
		"rejected", res.Rejected)

	if res.Rejected > 0 {
		return exitRejected
	}
	return exitAccepted
}
