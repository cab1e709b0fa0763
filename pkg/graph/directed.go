package graph

import (
	"gonum.org/v1/gonum/graph/simple"
)

// EdgeFilter selects which edges take part in a derived view of the graph
type EdgeFilter func(g *Graph, e *Edge) bool

// DirectedView is a gonum projection of the graph. Node IDs in the gonum
// graph equal the arena NodeIDs. Parallel edges are collapsed.
type DirectedView struct {
	Graph *simple.DirectedGraph

	// SelfLoops lists nodes with at least one kept edge back to themselves.
	// gonum simple graphs reject self edges, so they are tracked here instead.
	SelfLoops []NodeID
}

// Directed builds a gonum directed graph over every node, keeping only the
// edges accepted by keep. A nil filter keeps every edge.
func (g *Graph) Directed(keep EdgeFilter) *DirectedView {
	dg := simple.NewDirectedGraph()
	for _, node := range g.nodes {
		dg.AddNode(simple.Node(int64(node.ID)))
	}

	view := &DirectedView{Graph: dg}
	looped := make(map[NodeID]bool)

	for _, edge := range g.edges {
		if keep != nil && !keep(g, edge) {
			continue
		}
		if edge.Source == edge.Target {
			if !looped[edge.Source] {
				looped[edge.Source] = true
				view.SelfLoops = append(view.SelfLoops, edge.Source)
			}
			continue
		}

		from, to := int64(edge.Source), int64(edge.Target)
		if !dg.HasEdgeFromTo(from, to) {
			dg.SetEdge(dg.NewEdge(dg.Node(from), dg.Node(to)))
		}
	}

	return view
}
