// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"sort"

	"github.com/forgepkg/forge/internal/dag"
	"github.com/forgepkg/forge/pkg/recipe"
)

type (
	// Node is one recipe of a plan.
	Node struct {
		Recipe *recipe.Recipe
		// Requires holds the names of the direct dependencies, in lexical order.
		Requires []string
		// Edges holds every constraint placed on this recipe.
		Edges []Edge
	}

	// Plan is a resolved dependency graph in build order: every node appears
	// after all of its direct and transitive dependencies, and nodes that
	// become ready together are ordered by name.
	Plan struct {
		Root  string
		Nodes []*Node

		byName map[string]*Node
		graph  *dag.Graph
	}
)

func newPlan(root string, used map[string]*recipe.Recipe, edges map[string][]Edge) (*Plan, error) {
	g := dag.New()
	byName := make(map[string]*Node, len(used))
	for name, r := range used {
		g.AddNode(name)
		node := &Node{Recipe: r, Edges: edges[name]}
		for _, req := range r.Requirements() {
			g.AddEdge(req.Name, name)
			node.Requires = append(node.Requires, req.Name)
		}
		sort.Strings(node.Requires)
		byName[name] = node
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	p := &Plan{Root: root, byName: byName, graph: g}
	for _, name := range order {
		p.Nodes = append(p.Nodes, byName[name])
	}
	return p, nil
}

// Name returns the recipe name of the node.
func (n *Node) Name() string {
	return n.Recipe.Name
}

// Len returns the number of recipes in the plan.
func (p *Plan) Len() int {
	return len(p.Nodes)
}

// Node returns the node for name, or nil.
func (p *Plan) Node(name string) *Node {
	return p.byName[name]
}

// RootNode returns the node of the requested recipe.
func (p *Plan) RootNode() *Node {
	return p.byName[p.Root]
}

// Names returns recipe names in plan order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name()
	}
	return names
}

// Dependencies returns the direct dependencies of name, in lexical order.
func (p *Plan) Dependencies(name string) []*Node {
	node := p.byName[name]
	if node == nil {
		return nil
	}
	deps := make([]*Node, len(node.Requires))
	for i, dep := range node.Requires {
		deps[i] = p.byName[dep]
	}
	return deps
}

// Transitive returns every direct and indirect dependency of name, in plan order.
func (p *Plan) Transitive(name string) []*Node {
	ancestors := make(map[string]bool)
	for _, a := range p.graph.Ancestors(name) {
		ancestors[a] = true
	}
	var out []*Node
	for _, n := range p.Nodes {
		if ancestors[n.Name()] {
			out = append(out, n)
		}
	}
	return out
}

// Dependents returns the recipes that directly require name, in lexical order.
func (p *Plan) Dependents(name string) []string {
	return p.graph.Successors(name)
}
