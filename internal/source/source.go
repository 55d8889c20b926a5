// SPDX-License-Identifier: MPL-2.0

// Package source materializes recipe source trees into build workspaces.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/internal/treehash"
	"github.com/forgepkg/forge/pkg/recipe"
)

type (
	// Fetcher places the source tree of a recipe into dest, an existing
	// empty directory.
	Fetcher interface {
		Fetch(ctx context.Context, r *recipe.Recipe, dest string) error
	}

	// Mux dispatches on the recipe's source kind and verifies the declared
	// tree digest of the result.
	Mux struct {
		Git   Fetcher
		Local Fetcher
	}

	// FetchError reports a source that could not be retrieved or verified.
	FetchError struct {
		Recipe string
		Source string
		Err    error
	}
)

// NewMux returns a Mux using the default git and local fetchers.
func NewMux(gitDepth int) *Mux {
	return &Mux{Git: NewGit(gitDepth), Local: &Local{}}
}

// Fetch implements Fetcher. Recipes without a source are a no-op.
func (m *Mux) Fetch(ctx context.Context, r *recipe.Recipe, dest string) error {
	if r.Source == nil {
		return nil
	}
	var f Fetcher
	switch {
	case r.Source.Git != nil:
		f = m.Git
	case r.Source.Local != nil:
		f = m.Local
	}
	if f == nil {
		return &FetchError{Recipe: r.Ref(), Source: r.SourceFingerprint(), Err: fmt.Errorf("no fetcher for this source kind")}
	}

	if err := f.Fetch(ctx, r, dest); err != nil {
		return wrap(r, err)
	}
	if want := r.Source.SHA256; want != "" {
		if err := treehash.Verify(dest, want); err != nil {
			return wrap(r, err)
		}
		slog.Debug("verified source digest", "recipe", r.Ref(), "sha256", want)
	}
	return nil
}

func wrap(r *recipe.Recipe, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Recipe: r.Ref(), Source: r.SourceFingerprint(), Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source of %s (%s): %v", e.Recipe, e.Source, e.Err)
}

// Unwrap returns issue.ErrFetchFailure and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{issue.ErrFetchFailure, e.Err}
}
