// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"fmt"
	"sort"

	"github.com/forgepkg/forge/internal/depgraph"
	"github.com/forgepkg/forge/pkg/platform"
)

// Resolved is one plan node with its options and identity fixed.
type Resolved struct {
	Node    *depgraph.Node
	Options platform.OptionSet
	ID      ID
	// Deps holds the direct dependencies in lexical order.
	Deps []Dependency
	// Binaries is set for header-only nodes: the compiled recipes reached
	// through this node, in lexical order.
	Binaries []Dependency
}

// Plan resolves options and computes the identity of every node of plan, in
// plan order. It fails with a platform.ConfigurationError before any build
// work when an override or option value is invalid.
func Plan(plan *depgraph.Plan, p platform.Descriptor, overrides platform.Overrides) ([]*Resolved, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := make([]*Resolved, 0, plan.Len())
	byName := make(map[string]*Resolved, plan.Len())
	for _, node := range plan.Nodes {
		r := node.Recipe
		values, err := overrides.For(r.Name, node.Name() == plan.Root, r.Options)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", r.Ref(), err)
		}
		opts, err := r.ResolveOptions(p, values)
		if err != nil {
			return nil, err
		}

		deps := make([]Dependency, 0, len(node.Requires))
		for _, name := range node.Requires {
			dep, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("recipe %s: dependency %s is not ordered before its consumer", r.Ref(), name)
			}
			deps = append(deps, Dependency{
				Name:       name,
				Ref:        RecipeRef(dep.Node.Recipe),
				ID:         dep.ID,
				HeaderOnly: dep.Node.Recipe.IsHeaderOnly(),
				Binaries:   dep.Binaries,
			})
		}

		res := &Resolved{Node: node, Options: opts, Deps: deps}
		if r.IsHeaderOnly() {
			res.Binaries = binariesBehind(deps)
		}
		res.ID = Compute(r, p, opts, deps)
		byName[node.Name()] = res
		out = append(out, res)
	}
	return out, nil
}

// binariesBehind collects the compiled recipes a header-only node exposes:
// its compiled direct dependencies plus whatever its header-only direct
// dependencies expose in turn.
func binariesBehind(deps []Dependency) []Dependency {
	seen := make(map[string]Dependency)
	for _, dep := range deps {
		if dep.HeaderOnly {
			for _, bin := range dep.Binaries {
				seen[bin.Name] = Dependency{Name: bin.Name, Ref: bin.Ref, ID: bin.ID}
			}
			continue
		}
		seen[dep.Name] = Dependency{Name: dep.Name, Ref: dep.Ref, ID: dep.ID}
	}
	out := make([]Dependency, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
