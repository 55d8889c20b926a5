// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is what the forge CLI prints for a failed command: the
	// step that failed, the recipe, file or artifact it was working on, and
	// the commands worth running next.
	//
	// Build one with ErrorContext:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load recipe").
	//		WithResource("recipes/zlib/recipe.cue").
	//		WithSuggestion("Run 'forge recipe validate' on the file").
	//		Wrap(originalErr).
	//		Build()
	ActionableError struct {
		// Operation is the failed step as a verb phrase, e.g. "resolve zlib/1.3".
		Operation string

		// Resource is a recipe ref, recipe file or artifact identity.
		Resource string

		// Suggestions are printed as bullets below the message.
		Suggestions []string

		// Cause keeps the graph, option or build error for errors.Is/As and
		// for KindOf.
		Cause error
	}

	// ErrorContext accumulates the fields of an ActionableError.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext attaches the failed step and its recipe or file to err.
// A nil err stays nil.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation: operation,
		Resource:  resource,
		Cause:     err,
	}
}

// Error renders "failed to <operation>: <resource>: <cause>", the line forge
// prints without --verbose.
func (e *ActionableError) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}

	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

// Unwrap returns Cause, so KindOf sees through the wrapper.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message, the suggestion bullets and, with --verbose,
// every error in the Cause chain.
//
//	failed to <operation>: <resource>: <cause message>
//
//	  • <suggestion 1>
//	  • <suggestion 2>
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// WithOperation sets the failed step, e.g. "build recipe".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the recipe ref, file or identity involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions appends hints, typically from SuggestionsFor.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns the ActionableError, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// SuggestionsFor returns the default remediation hints for the kind of err.
func SuggestionsFor(err error) []string {
	switch KindOf(err) {
	case KindUnknownRecipe:
		return []string{
			"Check the recipe name and version constraint",
			"Add the directory holding the recipe to recipe_paths ('forge config show')",
		}
	case KindCycleDetected:
		return []string{"Remove one of the requirements on the reported cycle"}
	case KindVersionConflict:
		return []string{
			"Relax one of the conflicting constraints",
			"Run 'forge plan' to see which recipes impose them",
		}
	case KindConfiguration:
		return []string{"Run 'forge recipe show' to list the options valid for this platform"}
	case KindFetchFailure:
		return []string{
			"Check the source url and ref of the recipe",
			"If the recipe declares sha256, make sure it matches the fetched tree",
		}
	case KindToolchainFailure:
		return []string{"Re-run with --keep-workspaces and inspect the build directory"}
	case KindCacheCorruption:
		return []string{"Remove the entry with 'forge cache rm'"}
	default:
		return nil
	}
}
