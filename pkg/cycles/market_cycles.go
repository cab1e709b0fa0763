package cycles

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/arb-finder/pkg/graph"
)

// Component is a set of market nodes that can all reach each other
type Component struct {
	Nodes []graph.NodeID
}

// FindComponents returns the cyclic components of a directed view, sorted by
// their smallest node. Nodes within a component are sorted by id. A node
// whose only cycle is a self loop forms its own single-node component.
func FindComponents(view *graph.DirectedView) []Component {
	sccs := topo.TarjanSCC(view.Graph)

	members := make(map[graph.NodeID]bool)
	components := make([]Component, 0, len(sccs)+len(view.SelfLoops))
	for _, scc := range sccs {
		// A lone node without a self loop cannot close a cycle
		if len(scc) < 2 {
			continue
		}
		nodes := make([]graph.NodeID, 0, len(scc))
		for _, n := range scc {
			id := graph.NodeID(n.ID())
			nodes = append(nodes, id)
			members[id] = true
		}
		slices.Sort(nodes)
		components = append(components, Component{Nodes: nodes})
	}

	for _, id := range view.SelfLoops {
		if !members[id] {
			components = append(components, Component{Nodes: []graph.NodeID{id}})
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Nodes[0] < components[j].Nodes[0]
	})
	return components
}

// OnCycle returns the set of nodes that lie on at least one cycle of the view.
// A search rooted anywhere else can never return to its start.
func OnCycle(view *graph.DirectedView) map[graph.NodeID]bool {
	on := make(map[graph.NodeID]bool)
	for _, component := range FindComponents(view) {
		for _, id := range component.Nodes {
			on[id] = true
		}
	}
	return on
}
