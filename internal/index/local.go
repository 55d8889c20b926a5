// SPDX-License-Identifier: MPL-2.0

package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgepkg/forge/pkg/recipe"
	"github.com/forgepkg/forge/pkg/semver"
)

const recipeGlob = "**/" + recipe.FileName

type (
	// Local indexes every recipe.cue found below a list of directories.
	// Directories are scanned once, on first use. When the same name and
	// version is declared twice, the directory listed first wins.
	Local struct {
		paths []string

		once     sync.Once
		mem      *Memory
		problems []Problem
		scanErr  error
	}

	// Problem records a recipe file that could not be loaded.
	Problem struct {
		Path string
		Err  error
	}
)

// NewLocal returns an index over paths.
func NewLocal(paths ...string) *Local {
	return &Local{paths: paths}
}

func (l *Local) scan(ctx context.Context) error {
	l.once.Do(func() {
		l.mem = NewMemory()
		for _, root := range l.paths {
			if err := ctx.Err(); err != nil {
				l.scanErr = err
				return
			}
			if err := l.scanRoot(root); err != nil {
				l.scanErr = err
				return
			}
		}
	})
	return l.scanErr
}

func (l *Local) scanRoot(root string) error {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		slog.Debug("recipe path does not exist", "path", root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan recipe path %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("recipe path %s is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), recipeGlob, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("scan recipe path %s: %w", root, err)
	}
	for _, rel := range matches {
		path := filepath.Join(root, filepath.FromSlash(rel))
		r, err := recipe.Parse(path)
		if err != nil {
			slog.Warn("skipping invalid recipe", "path", path, "error", err)
			l.problems = append(l.problems, Problem{Path: path, Err: err})
			continue
		}
		if !l.mem.Add(r) {
			slog.Debug("recipe shadowed by an earlier path", "recipe", r.Ref(), "path", path)
		}
	}
	return nil
}

// Versions implements Index.
func (l *Local) Versions(ctx context.Context, name string) ([]semver.Version, error) {
	if err := l.scan(ctx); err != nil {
		return nil, err
	}
	return l.mem.Versions(ctx, name)
}

// Load implements Index.
func (l *Local) Load(ctx context.Context, name string, version semver.Version) (*recipe.Recipe, error) {
	if err := l.scan(ctx); err != nil {
		return nil, err
	}
	return l.mem.Load(ctx, name, version)
}

// Names returns every indexed recipe name.
func (l *Local) Names(ctx context.Context) ([]string, error) {
	if err := l.scan(ctx); err != nil {
		return nil, err
	}
	return l.mem.Names(), nil
}

// Problems returns the recipe files skipped because they failed to parse.
func (l *Local) Problems(ctx context.Context) ([]Problem, error) {
	if err := l.scan(ctx); err != nil {
		return nil, err
	}
	return append([]Problem(nil), l.problems...), nil
}
