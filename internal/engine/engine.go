// SPDX-License-Identifier: MPL-2.0

// Package engine wires recipe discovery, dependency resolution, identity
// computation and the build orchestrator behind the three operations
// consumers use: Build, IdentityOf and Plan.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgepkg/forge/internal/config"
	"github.com/forgepkg/forge/internal/depgraph"
	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/index"
	"github.com/forgepkg/forge/internal/orchestrator"
	"github.com/forgepkg/forge/internal/source"
	"github.com/forgepkg/forge/internal/store"
	"github.com/forgepkg/forge/internal/toolchain"
	"github.com/forgepkg/forge/internal/workspace"
	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/recipe"
)

type (
	// Engine answers build, identity and plan requests for root recipes.
	Engine struct {
		index index.Index
		store store.Store
		orch  *orchestrator.Orchestrator
	}

	// Option customizes the collaborators New wires from a configuration.
	Option func(*settings)

	settings struct {
		index    index.Index
		store    store.Store
		fetcher  source.Fetcher
		runner   toolchain.Runner
		env      map[string]string
		observer orchestrator.Observer
	}

	// Step is one entry of a build plan.
	Step struct {
		*identity.Resolved
		// Cached reports whether the store already holds the identity.
		Cached bool
	}
)

// WithIndex replaces the recipe index scanning cfg.RecipePaths.
func WithIndex(idx index.Index) Option {
	return func(s *settings) { s.index = idx }
}

// WithStore replaces the file store at cfg.CacheDir.
func WithStore(st store.Store) Option {
	return func(s *settings) { s.store = st }
}

// WithFetcher replaces the git and local source fetchers.
func WithFetcher(f source.Fetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// WithRunner replaces the subprocess runner.
func WithRunner(r toolchain.Runner) Option {
	return func(s *settings) { s.runner = r }
}

// WithEnv adds environment variables to every toolchain invocation.
func WithEnv(env map[string]string) Option {
	return func(s *settings) { s.env = env }
}

// WithObserver receives build state changes.
func WithObserver(o orchestrator.Observer) Option {
	return func(s *settings) { s.observer = o }
}

// New returns an engine for cfg.
func New(cfg *config.Config, opts ...Option) *Engine {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.index == nil {
		s.index = index.NewLocal(cfg.RecipePaths...)
	}
	if s.store == nil {
		s.store = store.NewFile(cfg.CacheDir)
	}
	if s.fetcher == nil {
		s.fetcher = source.NewMux(cfg.Git.Depth)
	}
	if s.runner == nil {
		s.runner = &toolchain.Exec{}
	}

	return &Engine{
		index: s.index,
		store: s.store,
		orch: orchestrator.New(orchestrator.Config{
			Store:        s.store,
			Workspaces:   workspace.NewManager(cfg.WorkspaceDir, cfg.KeepWorkspaces),
			Fetcher:      s.fetcher,
			Runner:       s.runner,
			Parallelism:  cfg.Parallelism,
			Jobs:         cfg.Jobs,
			Env:          s.env,
			CMakeCommand: cfg.CMakeCommand,
			Observer:     s.observer,
		}),
	}
}

// Store returns the artifact store.
func (e *Engine) Store() store.Store {
	return e.store
}

// ParseRoot parses a root reference. A bare name requests any version.
func ParseRoot(ref string) (recipe.Requirement, error) {
	if !strings.Contains(ref, "/") {
		ref += "/*"
	}
	req, err := recipe.ParseRequirement(ref)
	if err != nil {
		return recipe.Requirement{}, fmt.Errorf("root recipe: %w", err)
	}
	return req, nil
}

// Resolve returns the dependency plan of root. Graph errors are reported
// here, before any source is fetched.
func (e *Engine) Resolve(ctx context.Context, root string) (*depgraph.Plan, error) {
	req, err := ParseRoot(root)
	if err != nil {
		return nil, err
	}
	return depgraph.NewResolver(e.index).Resolve(ctx, req)
}

// Plan resolves root and reports the identity, options and cache status of
// every recipe in build order, without building anything.
func (e *Engine) Plan(ctx context.Context, root string, p platform.Descriptor, overrides platform.Overrides) ([]Step, error) {
	plan, err := e.Resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	resolved, err := identity.Plan(plan, p, overrides)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, len(resolved))
	for i, res := range resolved {
		cached, err := e.store.Exists(ctx, res.ID)
		if err != nil {
			return nil, fmt.Errorf("check store for %s: %w", res.Node.Recipe.Ref(), err)
		}
		steps[i] = Step{Resolved: res, Cached: cached}
	}
	return steps, nil
}

// IdentityOf returns the identity root would be built under, without
// building anything.
func (e *Engine) IdentityOf(ctx context.Context, root string, p platform.Descriptor, overrides platform.Overrides) (identity.ID, error) {
	plan, err := e.Resolve(ctx, root)
	if err != nil {
		return "", err
	}
	resolved, err := identity.Plan(plan, p, overrides)
	if err != nil {
		return "", err
	}
	return resolved[len(resolved)-1].ID, nil
}

// Build builds or reuses every recipe root depends on, then root itself,
// and returns root's artifact.
func (e *Engine) Build(ctx context.Context, root string, p platform.Descriptor, overrides platform.Overrides) (*store.Artifact, error) {
	artifacts, err := e.BuildAll(ctx, root, p, overrides)
	if err != nil {
		return nil, err
	}
	return artifacts[len(artifacts)-1], nil
}

// BuildAll is Build returning every artifact of the plan in build order.
func (e *Engine) BuildAll(ctx context.Context, root string, p platform.Descriptor, overrides platform.Overrides) ([]*store.Artifact, error) {
	plan, err := e.Resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	return e.orch.Execute(ctx, plan, p, overrides)
}
