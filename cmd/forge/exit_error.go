// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/internal/orchestrator"
)

// Process exit codes.
const (
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitGraph         = 3
	ExitBuild         = 4
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case issue.IsGraphError(err):
		return ExitGraph
	case issue.KindOf(err) == issue.KindConfiguration:
		return ExitConfiguration
	}
	var berr *orchestrator.BuildError
	if errors.As(err, &berr) {
		return ExitBuild
	}
	return ExitFailure
}

// formatErrorForDisplay formats an error for user display. Errors without
// their own context get the default suggestions of their kind.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		ae = &issue.ActionableError{Operation: operationFor(err), Cause: err, Suggestions: issue.SuggestionsFor(err)}
	}
	return ae.Format(verboseMode)
}

func operationFor(err error) string {
	switch {
	case issue.IsGraphError(err):
		return "resolve dependencies"
	case issue.KindOf(err) == issue.KindConfiguration:
		return "configure build"
	default:
		var berr *orchestrator.BuildError
		if errors.As(err, &berr) {
			return "build " + berr.Recipe + "/" + berr.Version
		}
		return "run command"
	}
}

// renderError prints err and, in verbose mode, the help text of its kind.
// It returns the ExitError the command should return.
func renderError(stderr io.Writer, err error, verboseMode bool) error {
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verboseMode))
	if verboseMode {
		if entry := issue.ForError(err); entry != nil {
			rendered, renderErr := entry.Render("notty")
			if renderErr != nil {
				slog.Warn("failed to render issue help", "kind", entry.Kind(), "error", renderErr)
			} else {
				fmt.Fprint(stderr, rendered)
			}
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
