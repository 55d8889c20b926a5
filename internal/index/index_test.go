// SPDX-License-Identifier: MPL-2.0

package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/internal/testutil"
	"github.com/forgepkg/forge/pkg/semver"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	first := testutil.Library(t, "zlib", "1.3")
	m := NewMemory(first, testutil.Library(t, "zlib", "1.2.13"), testutil.HeaderOnly(t, "catch2", "3.5"))

	if m.Add(testutil.HeaderOnly(t, "zlib", "1.3")) {
		t.Error("Add() accepted a duplicate name and version")
	}

	versions, err := m.Versions(context.Background(), "zlib")
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("Versions() = %v", versions)
	}

	got, err := m.Load(context.Background(), "zlib", semver.MustParseVersion("1.3.0"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != first {
		t.Error("Load() did not return the first registered recipe")
	}

	if !slices.Equal(m.Names(), []string{"catch2", "zlib"}) {
		t.Errorf("Names() = %v", m.Names())
	}
}

func TestMemory_NotFound(t *testing.T) {
	t.Parallel()

	m := NewMemory(testutil.Library(t, "zlib", "1.3"))

	_, err := m.Versions(context.Background(), "openssl")
	if !IsNotFound(err) || !errors.Is(err, issue.ErrUnknownRecipe) {
		t.Errorf("Versions() error = %v, want not found", err)
	}
	_, err = m.Load(context.Background(), "zlib", semver.MustParseVersion("2.0"))
	if !IsNotFound(err) {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLocal(t *testing.T) {
	t.Parallel()

	primary := t.TempDir()
	secondary := t.TempDir()
	testutil.WriteTree(t, primary, map[string]string{
		"zlib/1.3/recipe.cue":    testutil.LibrarySource("zlib", "1.3"),
		"zlib/1.2/recipe.cue":    testutil.LibrarySource("zlib", "1.2.13"),
		"nested/deep/recipe.cue": testutil.HeaderOnlySource("catch2", "3.5"),
		"broken/recipe.cue":      `name: "broken"`,
		"notes/README.md":        "not a recipe",
	})
	testutil.WriteTree(t, secondary, map[string]string{
		"zlib/recipe.cue":    testutil.HeaderOnlySource("zlib", "1.3"),
		"openssl/recipe.cue": testutil.LibrarySource("openssl", "3.0", "zlib/1.3"),
	})

	idx := NewLocal(primary, filepath.Join(t.TempDir(), "missing"), secondary)
	ctx := context.Background()

	names, err := idx.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error: %v", err)
	}
	if !slices.Equal(names, []string{"catch2", "openssl", "zlib"}) {
		t.Errorf("Names() = %v", names)
	}

	r, err := idx.Load(ctx, "zlib", semver.MustParseVersion("1.3"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if r.IsHeaderOnly() {
		t.Error("zlib/1.3 should come from the first recipe path")
	}
	if r.Path != filepath.Join(primary, "zlib", "1.3", "recipe.cue") {
		t.Errorf("Path = %q", r.Path)
	}

	versions, err := idx.Versions(ctx, "zlib")
	if err != nil || len(versions) != 2 {
		t.Errorf("Versions() = %v, %v", versions, err)
	}

	problems, err := idx.Problems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 || problems[0].Path != filepath.Join(primary, "broken", "recipe.cue") {
		t.Errorf("Problems() = %v", problems)
	}
}

func TestLocal_PathIsFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "recipes")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLocal(file).Versions(context.Background(), "zlib"); err == nil {
		t.Error("expected an error for a recipe path that is a file")
	}
}
