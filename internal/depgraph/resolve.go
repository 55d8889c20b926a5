// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/forgepkg/forge/internal/dag"
	"github.com/forgepkg/forge/internal/index"
	"github.com/forgepkg/forge/pkg/recipe"
	"github.com/forgepkg/forge/pkg/semver"
)

// DefaultMaxPasses bounds the number of selection passes before resolution
// gives up with a VersionConflictError.
const DefaultMaxPasses = 16

type (
	// Resolver turns a root requirement into a Plan.
	Resolver struct {
		index     index.Index
		maxPasses int
	}

	// pass is the state of one depth-first walk under a fixed version choice.
	pass struct {
		ctx    context.Context
		r      *Resolver
		cache  *lookupCache
		choice map[string]semver.Version
		edges  map[string][]Edge
		used   map[string]*recipe.Recipe
		color  map[string]int
		stack  []string

		// failure is the first graph error met in this pass. The walk
		// goes on after it so the edges of every reachable recipe are
		// known before deciding whether another choice avoids it.
		failure error
	}

	lookupCache struct {
		versions map[string][]semver.Version
		recipes  map[string]*recipe.Recipe
	}
)

const (
	white = iota
	gray
	black
)

// NewResolver returns a resolver reading recipes from idx.
func NewResolver(idx index.Index) *Resolver {
	return &Resolver{index: idx, maxPasses: DefaultMaxPasses}
}

// Resolve walks root's transitive requirements and returns the build plan.
//
// Every dependency name is resolved to exactly one version: the highest
// version satisfying every constraint placed on it. Because the selected
// version of one recipe decides which requirements its dependencies see,
// selection repeats until no choice changes. The walk fails with a
// dag.CycleError on a back edge, an UnknownRecipeError when a single
// requirement matches nothing, and a VersionConflictError when constraints
// cannot be satisfied together. A pass that fails under a version chosen
// from partial constraints is retried with the versions all collected
// constraints select, so only graphs without any valid choice fail. It
// never fetches sources.
func (r *Resolver) Resolve(ctx context.Context, root recipe.Requirement) (*Plan, error) {
	cache := &lookupCache{
		versions: make(map[string][]semver.Version),
		recipes:  make(map[string]*recipe.Recipe),
	}
	choice := make(map[string]semver.Version)

	var failure error
	for i := 0; i < r.maxPasses; i++ {
		p := &pass{
			ctx:    ctx,
			r:      r,
			cache:  cache,
			choice: choice,
			edges:  make(map[string][]Edge),
			used:   make(map[string]*recipe.Recipe),
			color:  make(map[string]int),
		}
		p.edges[root.Name] = []Edge{{Constraint: root.Constraint}}
		if err := p.visit(root.Name); err != nil {
			return nil, err
		}

		if p.failure != nil {
			next, _ := p.reselect(true)
			if !p.changes(next) {
				return nil, p.failure
			}
			slog.Debug("retrying resolution with revised versions", "root", root.String(), "error", p.failure)
			failure = p.failure
			choice = next
			continue
		}

		next, err := p.reselect(false)
		if err != nil {
			return nil, err
		}
		if p.stable(next) {
			slog.Debug("resolved dependency graph", "root", root.String(), "recipes", len(p.used), "passes", i+1)
			return newPlan(root.Name, p.used, p.edges)
		}
		choice = next
	}
	if failure != nil {
		return nil, failure
	}
	return nil, &VersionConflictError{Name: root.Name, Reason: fmt.Sprintf("selection did not settle after %d passes", r.maxPasses)}
}

func (p *pass) visit(name string) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.color[name] = gray
	p.stack = append(p.stack, name)

	rec, err := p.pick(name)
	if err != nil {
		if !isGraphError(err) {
			return err
		}
		p.fail(err)
		p.leave(name)
		return nil
	}
	p.used[name] = rec

	for _, req := range rec.Requirements() {
		p.edges[req.Name] = append(p.edges[req.Name], Edge{Consumer: rec.Ref(), Constraint: req.Constraint})
		switch p.color[req.Name] {
		case gray:
			p.fail(&dag.CycleError{Cycle: p.cycleTo(req.Name)})
		case white:
			if err := p.visit(req.Name); err != nil {
				return err
			}
		}
	}

	p.leave(name)
	return nil
}

func (p *pass) leave(name string) {
	p.stack = p.stack[:len(p.stack)-1]
	p.color[name] = black
}

func (p *pass) fail(err error) {
	if p.failure == nil {
		p.failure = err
	}
}

func isGraphError(err error) bool {
	var (
		unknown  *UnknownRecipeError
		conflict *VersionConflictError
	)
	return errors.As(err, &unknown) || errors.As(err, &conflict)
}

func (p *pass) cycleTo(name string) []string {
	for i, n := range p.stack {
		if n == name {
			cycle := append([]string(nil), p.stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}

// pick selects the version of name for this pass: the previous pass's
// choice when there is one, otherwise the highest version satisfying the
// edges seen so far.
func (p *pass) pick(name string) (*recipe.Recipe, error) {
	versions, err := p.cache.versionsOf(p.ctx, p.r.index, name)
	if err != nil {
		if index.IsNotFound(err) {
			last := p.edges[name][len(p.edges[name])-1]
			return nil, &UnknownRecipeError{Name: name, Constraint: last.Constraint.String(), RequiredBy: last.Consumer}
		}
		return nil, fmt.Errorf("list versions of %s: %w", name, err)
	}

	v, ok := p.choice[name]
	if !ok {
		if v, err = selectVersion(name, versions, p.edges[name]); err != nil {
			return nil, err
		}
	}
	return p.cache.load(p.ctx, p.r.index, name, v)
}

// reselect computes the version every reached name should use given all
// edges collected in this pass. With skipFailures, names that cannot be
// selected are left out instead of failing.
func (p *pass) reselect(skipFailures bool) (map[string]semver.Version, error) {
	names := make([]string, 0, len(p.edges))
	for n := range p.edges {
		names = append(names, n)
	}
	sort.Strings(names)

	next := make(map[string]semver.Version, len(names))
	for _, name := range names {
		versions, err := p.cache.versionsOf(p.ctx, p.r.index, name)
		if err == nil {
			var v semver.Version
			if v, err = selectVersion(name, versions, p.edges[name]); err == nil {
				next[name] = v
				continue
			}
		}
		if !skipFailures {
			return nil, err
		}
	}
	return next, nil
}

// changes reports whether next selects a different version for any recipe
// this pass used.
func (p *pass) changes(next map[string]semver.Version) bool {
	for name, rec := range p.used {
		if v, ok := next[name]; ok && !v.Equal(rec.SemVersion()) {
			return true
		}
	}
	return false
}

func (p *pass) stable(next map[string]semver.Version) bool {
	if len(next) != len(p.used) {
		return false
	}
	for name, rec := range p.used {
		v, ok := next[name]
		if !ok || !v.Equal(rec.SemVersion()) {
			return false
		}
	}
	return true
}

// selectVersion returns the highest version satisfying every edge.
func selectVersion(name string, versions []semver.Version, edges []Edge) (semver.Version, error) {
	for _, e := range edges {
		if _, ok := semver.Highest(versions, e.Constraint); !ok {
			available := make([]string, len(versions))
			for i, v := range versions {
				available[i] = v.String()
			}
			sort.Strings(available)
			return semver.Version{}, &UnknownRecipeError{Name: name, Constraint: e.Constraint.String(), RequiredBy: e.Consumer, Available: available}
		}
	}
	constraints := make([]semver.Constraint, len(edges))
	for i, e := range edges {
		constraints[i] = e.Constraint
	}
	v, ok := semver.Highest(versions, constraints...)
	if !ok {
		return semver.Version{}, &VersionConflictError{Name: name, Edges: append([]Edge(nil), edges...), Reason: "no single version satisfies every constraint"}
	}
	return v, nil
}

func (c *lookupCache) versionsOf(ctx context.Context, idx index.Index, name string) ([]semver.Version, error) {
	if v, ok := c.versions[name]; ok {
		return v, nil
	}
	v, err := idx.Versions(ctx, name)
	if err != nil {
		return nil, err
	}
	c.versions[name] = v
	return v, nil
}

func (c *lookupCache) load(ctx context.Context, idx index.Index, name string, v semver.Version) (*recipe.Recipe, error) {
	key := name + "/" + v.String()
	if r, ok := c.recipes[key]; ok {
		return r, nil
	}
	r, err := idx.Load(ctx, name, v)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	c.recipes[key] = r
	return r, nil
}
