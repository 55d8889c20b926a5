// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/store"
	"github.com/forgepkg/forge/internal/workspace"
	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/recipe"
)

// anyPlatform labels artifacts that do not depend on the platform.
const anyPlatform = "any"

// builder carries the per-build context of one recipe. It is owned by a
// single goroutine.
type builder struct {
	o        *Orchestrator
	recipe   *recipe.Recipe
	res      *identity.Resolved
	platform platform.Descriptor
	prefix   []*store.Artifact
	ws       *workspace.Workspace
	tracker  *recipe.Tracker
	info     recipe.PackageInfo
}

// build returns the artifact for one job, from the store or by building it.
func (o *Orchestrator) build(ctx context.Context, j job, p platform.Descriptor) (*store.Artifact, error) {
	b := &builder{
		o:        o,
		recipe:   j.resolved.Node.Recipe,
		res:      j.resolved,
		platform: p,
		prefix:   j.prefix,
		tracker:  recipe.NewTracker(),
	}
	log := slog.With("recipe", b.recipe.Ref(), "id", identity.Short(b.res.ID))

	if a, ok := b.lookup(ctx, log); ok {
		if err := b.tracker.Advance(recipe.StatePublished); err != nil {
			return nil, err
		}
		log.Info("reusing cached artifact")
		o.emit(Event{Recipe: b.recipe.Ref(), ID: b.res.ID, State: recipe.StatePublished, Cached: true})
		return a, nil
	}

	ws, err := o.cfg.Workspaces.Allocate(b.recipe.Name, b.recipe.Version, b.res.ID, p.BuildType)
	if err != nil {
		return nil, b.fail(recipe.PhaseSource, err)
	}
	b.ws = ws
	defer func() {
		if err := o.cfg.Workspaces.Release(ws); err != nil {
			log.Warn("could not remove workspace", "error", err)
		}
	}()

	log.Info("building", "platform", b.platformLabel(), "options", b.res.Options.String())
	for _, phase := range b.recipe.Phases() {
		if err := ctx.Err(); err != nil {
			return nil, b.fail(phase, err)
		}
		if !b.recipe.IsNoop(phase) {
			log.Debug("running phase", "phase", phase)
			if err := b.run(ctx, phase); err != nil {
				return nil, b.fail(phase, err)
			}
		}
		if err := b.advance(phase); err != nil {
			return nil, b.fail(phase, err)
		}
	}

	a, err := b.publish(ctx)
	if err != nil {
		return nil, b.fail(recipe.PhasePublish, err)
	}
	if err := b.advance(recipe.PhasePublish); err != nil {
		return nil, b.fail(recipe.PhasePublish, err)
	}
	return a, nil
}

// lookup returns a verified cached artifact. A corrupt entry is evicted
// and treated as a miss.
func (b *builder) lookup(ctx context.Context, log *slog.Logger) (*store.Artifact, bool) {
	a, err := b.o.cfg.Store.Get(ctx, b.res.ID)
	switch {
	case err == nil:
		return a, true
	case errors.Is(err, store.ErrNotFound):
		return nil, false
	case store.IsCorrupt(err):
		log.Warn("evicting corrupt artifact", "error", err)
		if err := b.o.cfg.Store.Evict(ctx, b.res.ID); err != nil {
			log.Warn("could not evict corrupt artifact", "error", err)
		}
		return nil, false
	default:
		log.Warn("artifact store lookup failed, rebuilding", "error", err)
		return nil, false
	}
}

func (b *builder) advance(phase recipe.Phase) error {
	to := recipe.StateAfter(phase)
	if to == b.tracker.State() {
		return nil
	}
	if err := b.tracker.Advance(to); err != nil {
		return err
	}
	b.o.emit(Event{Recipe: b.recipe.Ref(), ID: b.res.ID, State: to, Phase: phase})
	return nil
}

func (b *builder) fail(phase recipe.Phase, err error) error {
	b.tracker.Fail()
	berr := &BuildError{
		Recipe:   b.recipe.Name,
		Version:  b.recipe.Version,
		Phase:    phase,
		Platform: b.platform.String(),
		Err:      err,
	}
	slog.Error("build failed", "recipe", b.recipe.Ref(), "phase", phase, "error", err)
	b.o.emit(Event{Recipe: b.recipe.Ref(), ID: b.res.ID, State: recipe.StateFailed, Phase: phase, Err: berr})
	return berr
}

// publish stores the package directory. Losing a publication race to
// another builder of the same identity returns the winner's artifact.
func (b *builder) publish(ctx context.Context) (*store.Artifact, error) {
	a := &store.Artifact{
		ID:       b.res.ID,
		Name:     b.recipe.Name,
		Version:  b.recipe.Version,
		Platform: b.platformLabel(),
		Options:  b.res.Options.Map(),
		Info:     b.info,
	}
	stored, err := b.o.cfg.Store.Put(ctx, a, b.ws.PackageDir)
	if err == nil {
		return stored, nil
	}
	if !store.IsWriteConflict(err) {
		return nil, err
	}
	slog.Debug("artifact published concurrently, reusing it", "recipe", b.recipe.Ref(), "id", b.res.ID)
	winner, err := b.o.cfg.Store.Get(ctx, b.res.ID)
	if err != nil {
		return nil, fmt.Errorf("read concurrently published artifact: %w", err)
	}
	return winner, nil
}

func (b *builder) platformLabel() string {
	if b.recipe.IsHeaderOnly() {
		return anyPlatform
	}
	return b.platform.String()
}
