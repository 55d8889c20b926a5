// SPDX-License-Identifier: MPL-2.0

// Package orchestrator executes a resolved build plan. Each recipe either
// reuses a published artifact with the same identity or is built in an
// isolated workspace and published to the store.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/forgepkg/forge/internal/depgraph"
	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/source"
	"github.com/forgepkg/forge/internal/store"
	"github.com/forgepkg/forge/internal/toolchain"
	"github.com/forgepkg/forge/internal/workspace"
	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/recipe"
)

type (
	// Config wires an Orchestrator to its collaborators.
	Config struct {
		Store      store.Store
		Workspaces *workspace.Manager
		Fetcher    source.Fetcher
		Runner     toolchain.Runner
		// Parallelism bounds concurrent recipe builds; values below 1 mean 1.
		Parallelism int
		// Jobs is the per-build job count passed to build tools. It
		// defaults to the number of CPUs.
		Jobs int
		// Env is added to every toolchain invocation.
		Env map[string]string
		// CMakeCommand overrides the cmake executable.
		CMakeCommand string
		// Observer receives state changes. It is called from builder
		// goroutines and must be safe for concurrent use.
		Observer Observer
	}

	// Orchestrator runs build plans.
	Orchestrator struct {
		cfg Config
	}

	// Event is one state change of a recipe build.
	Event struct {
		Recipe string
		ID     identity.ID
		State  recipe.State
		// Phase is the phase that completed or failed, empty for cache hits.
		Phase recipe.Phase
		// Cached is set when an existing artifact was reused.
		Cached bool
		Err    error
	}

	// Observer is notified of build events.
	Observer func(Event)

	// job is one scheduled recipe build.
	job struct {
		index    int
		resolved *identity.Resolved
		// prefix holds the artifacts of every transitive dependency.
		prefix []*store.Artifact
	}

	outcome struct {
		index    int
		artifact *store.Artifact
		err      error
	}
)

// New returns an orchestrator using cfg.
func New(cfg Config) *Orchestrator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = runtime.NumCPU()
	}
	return &Orchestrator{cfg: cfg}
}

// Execute builds or reuses every recipe of plan for platform p and returns
// the artifacts in plan order.
//
// Options and identities are computed for the whole plan before any build
// starts. A recipe is scheduled once all of its dependencies are published.
// After the first failure no further builds start; builds already running
// finish and publish their results, and the first failure is returned.
func (o *Orchestrator) Execute(ctx context.Context, plan *depgraph.Plan, p platform.Descriptor, overrides platform.Overrides) ([]*store.Artifact, error) {
	resolved, err := identity.Plan(plan, p, overrides)
	if err != nil {
		return nil, err
	}

	n := len(resolved)
	indexOf := make(map[string]int, n)
	remaining := make([]int, n)
	var ready []int
	for i, res := range resolved {
		indexOf[res.Node.Name()] = i
		remaining[i] = len(res.Node.Requires)
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}

	artifacts := make([]*store.Artifact, n)
	outcomes := make(chan outcome)
	running := 0
	var firstErr error

	for {
		for firstErr == nil && ctx.Err() == nil && running < o.cfg.Parallelism && len(ready) > 0 {
			idx := ready[0]
			ready = ready[1:]
			j := job{index: idx, resolved: resolved[idx]}
			for _, dep := range plan.Transitive(resolved[idx].Node.Name()) {
				j.prefix = append(j.prefix, artifacts[indexOf[dep.Name()]])
			}
			running++
			go func() {
				a, err := o.build(ctx, j, p)
				outcomes <- outcome{index: j.index, artifact: a, err: err}
			}()
		}
		if running == 0 {
			break
		}

		out := <-outcomes
		running--
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			} else {
				slog.Warn("additional build failure", "error", out.err)
			}
			continue
		}
		artifacts[out.index] = out.artifact
		for _, dependent := range plan.Dependents(resolved[out.index].Node.Name()) {
			i := indexOf[dependent]
			remaining[i]--
			if remaining[i] == 0 {
				ready = insertSorted(ready, i)
			}
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, a := range artifacts {
		if a == nil {
			return nil, fmt.Errorf("recipe %s was never scheduled", resolved[i].Node.Recipe.Ref())
		}
	}
	return artifacts, nil
}

// insertSorted keeps the ready queue in plan order.
func insertSorted(list []int, v int) []int {
	i := sort.SearchInts(list, v)
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

func (o *Orchestrator) emit(e Event) {
	if o.cfg.Observer != nil {
		o.cfg.Observer(e)
	}
}
