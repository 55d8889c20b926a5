// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"fmt"
	"strings"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/semver"
)

type (
	// Edge is one constraint placed on a dependency.
	Edge struct {
		// Consumer is the requiring recipe ("app/1.0"), or "" for the root request.
		Consumer   string
		Constraint semver.Constraint
	}

	// UnknownRecipeError reports a requirement no indexed recipe satisfies.
	UnknownRecipeError struct {
		Name       string
		Constraint string
		// RequiredBy is the consumer reference, empty for the root request.
		RequiredBy string
		// Available lists the known versions when the name exists.
		Available []string
	}

	// VersionConflictError reports a dependency whose constraints cannot be
	// satisfied by a single version.
	VersionConflictError struct {
		Name   string
		Edges  []Edge
		Reason string
	}
)

func (e Edge) String() string {
	consumer := e.Consumer
	if consumer == "" {
		consumer = "<request>"
	}
	return fmt.Sprintf("%s requires %s", consumer, e.Constraint)
}

func (e *UnknownRecipeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unknown recipe %s/%s", e.Name, e.Constraint)
	if e.RequiredBy != "" {
		fmt.Fprintf(&b, " (required by %s)", e.RequiredBy)
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "; available versions: %s", strings.Join(e.Available, ", "))
	}
	return b.String()
}

// Unwrap returns issue.ErrUnknownRecipe.
func (e *UnknownRecipeError) Unwrap() error {
	return issue.ErrUnknownRecipe
}

func (e *VersionConflictError) Error() string {
	parts := make([]string, len(e.Edges))
	for i, edge := range e.Edges {
		parts[i] = edge.String()
	}
	msg := fmt.Sprintf("version conflict on %s: %s", e.Name, strings.Join(parts, "; "))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Unwrap returns issue.ErrVersionConflict.
func (e *VersionConflictError) Unwrap() error {
	return issue.ErrVersionConflict
}
