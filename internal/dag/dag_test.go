// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"

	"github.com/forgepkg/forge/internal/issue"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	order, err := New().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("zlib", "openssl")
	g.AddEdge("openssl", "app")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"zlib", "openssl", "app"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_LexicalTieBreak(t *testing.T) {
	t.Parallel()

	// Insertion order must not matter.
	build := func(edges [][2]string) []string {
		g := New()
		for _, e := range edges {
			g.AddEdge(e[0], e[1])
		}
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return order
	}
	a := build([][2]string{{"sqlite_modern_cpp", "app"}, {"geohash", "app"}, {"zlib", "geohash"}})
	b := build([][2]string{{"zlib", "geohash"}, {"geohash", "app"}, {"sqlite_modern_cpp", "app"}})

	expected := []string{"sqlite_modern_cpp", "zlib", "geohash", "app"}
	if !slices.Equal(a, expected) || !slices.Equal(b, expected) {
		t.Errorf("expected %v, got %v and %v", expected, a, b)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")
	g.AddEdge("A", "B") // duplicate

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B", "C", "D"}) {
		t.Errorf("got %v", order)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges [][2]string
		cycle []string
	}{
		{"two nodes", [][2]string{{"A", "B"}, {"B", "A"}}, []string{"A", "B", "A"}},
		{"self loop", [][2]string{{"A", "A"}}, []string{"A", "A"}},
		{"three nodes", [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}, {"X", "A"}}, []string{"A", "B", "C", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T: %v", err, err)
			}
			if !slices.Equal(cycleErr.Cycle, tt.cycle) {
				t.Errorf("Cycle = %v, want %v", cycleErr.Cycle, tt.cycle)
			}
			if !errors.Is(err, issue.ErrCycleDetected) {
				t.Error("CycleError should unwrap to ErrCycleDetected")
			}
		})
	}
}

func TestFindCycle_Acyclic(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddNode("C")
	if c := g.FindCycle(); c != nil {
		t.Errorf("FindCycle() = %v, want nil", c)
	}
}

func TestAncestors(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("zlib", "openssl")
	g.AddEdge("openssl", "app")
	g.AddEdge("sqlite", "app")
	g.AddNode("unrelated")

	if got := g.Ancestors("app"); !slices.Equal(got, []string{"openssl", "sqlite", "zlib"}) {
		t.Errorf("Ancestors(app) = %v", got)
	}
	if got := g.Predecessors("app"); !slices.Equal(got, []string{"openssl", "sqlite"}) {
		t.Errorf("Predecessors(app) = %v", got)
	}
	if got := g.Successors("zlib"); !slices.Equal(got, []string{"openssl"}) {
		t.Errorf("Successors(zlib) = %v", got)
	}
	if g.Len() != 5 {
		t.Errorf("Len() = %d", g.Len())
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"A", "B", "A"}}
	expected := "dependency cycle detected: A -> B -> A"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
