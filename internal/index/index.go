// SPDX-License-Identifier: MPL-2.0

// Package index discovers recipe declarations. The resolver only sees the
// Index interface; Local scans directories and Memory serves recipes that
// were parsed elsewhere.
package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/recipe"
	"github.com/forgepkg/forge/pkg/semver"
)

// ErrNotFound is returned for names or versions the index does not know. It
// unwraps to issue.ErrUnknownRecipe.
var ErrNotFound = fmt.Errorf("recipe not found in index: %w", issue.ErrUnknownRecipe)

// Index returns recipe declarations by name and version.
type Index interface {
	// Versions lists every known version of name, in no particular order.
	Versions(ctx context.Context, name string) ([]semver.Version, error)
	// Load returns the recipe declaring name at version.
	Load(ctx context.Context, name string, version semver.Version) (*recipe.Recipe, error)
}

// Memory is an in-memory Index. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	recipes map[string][]*recipe.Recipe
}

// NewMemory returns an index holding recipes. When two recipes declare the
// same name and version the first one is kept.
func NewMemory(recipes ...*recipe.Recipe) *Memory {
	m := &Memory{recipes: make(map[string][]*recipe.Recipe)}
	for _, r := range recipes {
		m.Add(r)
	}
	return m
}

// Add registers r unless the same name and version is already present.
// It reports whether r was added.
func (m *Memory) Add(r *recipe.Recipe) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.recipes[r.Name] {
		if existing.SemVersion().Equal(r.SemVersion()) {
			return false
		}
	}
	m.recipes[r.Name] = append(m.recipes[r.Name], r)
	return true
}

// Versions implements Index.
func (m *Memory) Versions(_ context.Context, name string) ([]semver.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.recipes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	versions := make([]semver.Version, len(list))
	for i, r := range list {
		versions[i] = r.SemVersion()
	}
	return versions, nil
}

// Load implements Index.
func (m *Memory) Load(_ context.Context, name string, version semver.Version) (*recipe.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.recipes[name] {
		if r.SemVersion().Equal(version) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", name, version, ErrNotFound)
}

// Names returns every recipe name in lexical order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.recipes))
	for n := range m.recipes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// IsNotFound reports whether err means the index has no such recipe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
