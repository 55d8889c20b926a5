// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load recipe"},
			expected: "failed to load recipe",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load recipe", Resource: "zlib/recipe.cue"},
			expected: "failed to load recipe: zlib/recipe.cue",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "build recipe",
				Resource:  "zlib/1.3",
				Cause:     errors.New("exit status 2"),
			},
			expected: "failed to build recipe: zlib/1.3: exit status 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("exit status 2")
	err := NewErrorContext().
		WithOperation("build recipe").
		WithResource("zlib/1.3").
		WithSuggestion("first").
		WithSuggestions("second", "third").
		Wrap(fmt.Errorf("cmake: %w", inner)).
		Build()

	short := err.Format(false)
	for _, want := range []string{"• first", "• second", "• third"} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Errorf("Format(false) should not include the chain:\n%s", short)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "1. cmake: exit status 2") || !strings.Contains(verbose, "2. exit status 2") {
		t.Errorf("Format(true) missing chain entries:\n%s", verbose)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is() should see the wrapped cause")
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
}

func TestSuggestionsFor(t *testing.T) {
	t.Parallel()

	if len(SuggestionsFor(fmt.Errorf("x: %w", ErrVersionConflict))) == 0 {
		t.Error("expected suggestions for version conflicts")
	}
	if SuggestionsFor(errors.New("plain")) != nil {
		t.Error("expected no suggestions for unclassified errors")
	}
}
