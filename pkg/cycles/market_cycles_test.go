package cycles

import (
	"testing"

	"github.com/ritzau/arb-finder/pkg/graph"
)

func link(t *testing.T, g *graph.Graph, from, to *graph.Node) {
	t.Helper()
	if _, err := g.AddEdge(from.Key(), to.Key(), 0.001, 0, 0); err != nil {
		t.Fatalf("Failed to add edge %s -> %s: %v", from.Key(), to.Key(), err)
	}
}

func TestFindComponents_NoCycles(t *testing.T) {
	g := graph.New()

	// A -> B -> C
	a := g.AddNode("A", "USDT", 1)
	b := g.AddNode("B", "USDT", 1)
	c := g.AddNode("C", "USDT", 1)
	link(t, g, a, b)
	link(t, g, b, c)

	components := FindComponents(g.Directed(nil))

	if len(components) != 0 {
		t.Errorf("Expected no cycles, but found %d", len(components))
	}
}

func TestFindComponents_ThreeNodeCycle(t *testing.T) {
	g := graph.New()

	// A -> B -> C -> A, plus a tail C -> D
	a := g.AddNode("A", "USDT", 1)
	b := g.AddNode("B", "USDT", 1)
	c := g.AddNode("C", "USDT", 1)
	d := g.AddNode("D", "USDT", 1)
	link(t, g, a, b)
	link(t, g, b, c)
	link(t, g, c, a)
	link(t, g, c, d)

	components := FindComponents(g.Directed(nil))

	if len(components) != 1 {
		t.Fatalf("Expected 1 cycle, but found %d", len(components))
	}
	nodes := components[0].Nodes
	if len(nodes) != 3 || nodes[0] != a.ID || nodes[1] != b.ID || nodes[2] != c.ID {
		t.Errorf("Expected sorted component [A B C], got %v", nodes)
	}

	on := OnCycle(g.Directed(nil))
	if on[d.ID] {
		t.Error("D is not on any cycle")
	}
	if !on[a.ID] || !on[b.ID] || !on[c.ID] {
		t.Errorf("Expected A, B and C on a cycle, got %v", on)
	}
}

func TestFindComponents_SelfLoop(t *testing.T) {
	g := graph.New()
	a := g.AddNode("A", "USDT", 1)
	b := g.AddNode("B", "USDT", 1)
	link(t, g, a, a)
	link(t, g, a, b)

	components := FindComponents(g.Directed(nil))

	if len(components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(components))
	}
	if len(components[0].Nodes) != 1 || components[0].Nodes[0] != a.ID {
		t.Errorf("Expected self loop component [A], got %v", components[0].Nodes)
	}
}

func TestFindComponents_FilteredView(t *testing.T) {
	g := graph.New()
	a := g.AddNode("A", "USDT", 1.02)
	b := g.AddNode("B", "USDT", 1.00)
	link(t, g, a, b)
	link(t, g, b, a)

	falling := func(g *graph.Graph, e *graph.Edge) bool {
		return g.Node(e.Source).Price > g.Node(e.Target).Price
	}

	if n := len(FindComponents(g.Directed(nil))); n != 1 {
		t.Errorf("Expected 1 component in the full view, got %d", n)
	}
	if n := len(FindComponents(g.Directed(falling))); n != 0 {
		t.Errorf("Expected no components when only falling edges are kept, got %d", n)
	}
}

func TestFindComponents_DisjointCyclesSorted(t *testing.T) {
	g := graph.New()

	// C <-> D added before A -> B -> E -> A, so discovery order differs from id order
	a := g.AddNode("A", "USDT", 1)
	b := g.AddNode("B", "USDT", 1)
	c := g.AddNode("C", "USDT", 1)
	d := g.AddNode("D", "USDT", 1)
	e := g.AddNode("E", "USDT", 1)
	link(t, g, d, c)
	link(t, g, c, d)
	link(t, g, e, a)
	link(t, g, b, e)
	link(t, g, a, b)

	components := FindComponents(g.Directed(nil))

	if len(components) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(components))
	}
	first := components[0].Nodes
	if len(first) != 3 || first[0] != a.ID || first[1] != b.ID || first[2] != e.ID {
		t.Errorf("Expected first component [A B E], got %v", first)
	}
	second := components[1].Nodes
	if len(second) != 2 || second[0] != c.ID || second[1] != d.ID {
		t.Errorf("Expected second component [C D], got %v", second)
	}
}
