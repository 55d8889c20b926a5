// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"os"

	"github.com/forgepkg/forge/internal/fsutil"
	"github.com/forgepkg/forge/pkg/recipe"
)

// Local copies a directory next to the recipe file. Version-control
// metadata is left out.
type Local struct{}

// Fetch implements Fetcher.
func (l *Local) Fetch(ctx context.Context, r *recipe.Recipe, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := r.LocalSourceDir()
	if dir == "" {
		return fmt.Errorf("recipe %s has no local source", r.Ref())
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("local source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local source %s is not a directory", dir)
	}
	if err := fsutil.CopyDir(dir, dest, fsutil.SkipVCS); err != nil {
		return fmt.Errorf("copy local source: %w", err)
	}
	return nil
}
