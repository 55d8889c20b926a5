// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed graph ordering and cycle detection. It is
// used to order a resolved recipe graph so that every recipe follows all of
// its dependencies.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/forgepkg/forge/internal/issue"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle is the closed path around the cycle: its first and last
		// entries are the same node, e.g. [A B A].
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// An edge from A to B means A must complete before B starts.
	Graph struct {
		adjacency map[string]map[string]bool
		incoming  map[string]map[string]bool
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns issue.ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return issue.ErrCycleDetected
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string]map[string]bool),
		incoming:  make(map[string]map[string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.adjacency[name] = make(map[string]bool)
	g.incoming[name] = make(map[string]bool)
}

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Both nodes are implicitly added. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from][to] = true
	g.incoming[to][from] = true
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodeSet)
}

// Nodes returns every node in lexical order.
func (g *Graph) Nodes() []string {
	return sortedKeys(g.nodeSet)
}

// Successors returns the nodes that must run after name, in lexical order.
func (g *Graph) Successors(name string) []string {
	return sortedKeys(g.adjacency[name])
}

// Predecessors returns the nodes that must run before name, in lexical order.
func (g *Graph) Predecessors(name string) []string {
	return sortedKeys(g.incoming[name])
}

// Ancestors returns every node from which name is reachable, in lexical order.
func (g *Graph) Ancestors(name string) []string {
	seen := make(map[string]bool)
	stack := g.Predecessors(name)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.Predecessors(n)...)
	}
	return sortedKeys(seen)
}

// TopologicalSort returns an execution order using Kahn's algorithm.
// Among nodes that are ready at the same time the lexically smallest goes
// first, so the order depends only on the graph's contents.
// Returns CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodeSet) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodeSet))
	var ready []string
	for node := range g.nodeSet {
		inDegree[node] = len(g.incoming[node])
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(g.nodeSet))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		for _, next := range g.Successors(node) {
			inDegree[next]--
			if inDegree[next] == 0 {
				i, _ := slices.BinarySearch(ready, next)
				ready = slices.Insert(ready, i, next)
			}
		}
	}

	if len(result) != len(g.nodeSet) {
		return nil, &CycleError{Cycle: g.FindCycle()}
	}
	return result, nil
}

// FindCycle returns a closed cycle path, or nil when the graph is acyclic.
// Traversal visits nodes and neighbors in lexical order, so the reported
// cycle is stable.
func (g *Graph) FindCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodeSet))
	var stack []string

	var visit func(string) []string
	visit = func(n string) []string {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range g.Successors(n) {
			switch color[next] {
			case gray:
				start := slices.Index(stack, next)
				cycle := append([]string(nil), stack[start:]...)
				return append(cycle, next)
			case white:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for _, n := range g.Nodes() {
		if color[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
