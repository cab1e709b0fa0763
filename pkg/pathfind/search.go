// Package pathfind finds profitable cycles in an arbitrage graph.
//
// All three algorithms share one traversal over (node, depth) states and
// differ only in how a state's priority is computed. Searches never mutate
// the graph, so concurrent searches over the same snapshot are safe.
package pathfind

import (
	"fmt"
	"sort"

	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/queue"
)

// Options control a single search
type Options struct {
	Algorithm        Algorithm
	MaxDepth         int
	VolatilityFactor float64
	Weight           float64 // heuristic scale, WeightedHeuristic only

	// Admissible filters cycle-search expansions. Nil means PriceDropExceedsWeight.
	Admissible Admissible
	// Profit scores closed cycles. Nil means SpreadProfit.
	Profit ProfitModel
}

// DefaultOptions returns least-cost search to depth 10 with the default rules
func DefaultOptions() Options {
	return Options{
		Algorithm:        LeastCost,
		MaxDepth:         10,
		VolatilityFactor: 0.1,
		Weight:           1.5,
		Admissible:       PriceDropExceedsWeight,
		Profit:           SpreadProfit,
	}
}

// Opportunity is a profitable cycle. Path starts and ends at the same node.
type Opportunity struct {
	Path      []graph.NodeID `json:"path"`
	NetProfit float64        `json:"net_profit"`
	TotalCost float64        `json:"total_cost"`
}

// Nodes resolves the path against g
func (o Opportunity) Nodes(g *graph.Graph) []*graph.Node {
	nodes := make([]*graph.Node, len(o.Path))
	for i, id := range o.Path {
		nodes[i] = g.Node(id)
	}
	return nodes
}

// Contains reports whether the path visits id
func (o Opportunity) Contains(id graph.NodeID) bool {
	for _, n := range o.Path {
		if n == id {
			return true
		}
	}
	return false
}

// Stats counts the work done by a search
type Stats struct {
	Pushed   int `json:"pushed"`
	Popped   int `json:"popped"`
	Expanded int `json:"expanded"`
	Pruned   int `json:"pruned"`   // states dropped by the depth bound
	Rejected int `json:"rejected"` // expansions refused by the admissibility rule
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.Pushed += other.Pushed
	s.Popped += other.Popped
	s.Expanded += other.Expanded
	s.Pruned += other.Pruned
	s.Rejected += other.Rejected
}

// Result is the outcome of a cycle search
type Result struct {
	Opportunities []Opportunity
	Stats         Stats
}

// FindPaths returns the profitable cycles through start, best first
func FindPaths(g *graph.Graph, start graph.NodeID, opts Options) ([]Opportunity, error) {
	res, err := Search(g, start, opts)
	if err != nil {
		return nil, err
	}
	return res.Opportunities, nil
}

func (o Options) validate() error {
	if !o.Algorithm.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidAlgorithm, o.Algorithm)
	}
	if o.Algorithm == WeightedHeuristic && o.Weight <= 1 {
		return fmt.Errorf("%w, got %g", ErrInvalidWeight, o.Weight)
	}
	return nil
}

// Search runs a cycle search from start and reports its statistics.
// An unknown start node or a non-positive depth yields an empty result.
func Search(g *graph.Graph, start graph.NodeID, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, fmt.Errorf("search from node %d: %w", start, err)
	}
	admissible := opts.Admissible
	if admissible == nil {
		admissible = PriceDropExceedsWeight
	}
	profit := opts.Profit
	if profit == nil {
		profit = SpreadProfit
	}

	var res Result
	origin := g.Node(start)
	if origin == nil || opts.MaxDepth <= 0 {
		return res, nil
	}

	frontier := queue.New()
	visited := make(map[state]bool)
	frontier.Push(queue.Item{Node: start, Path: []graph.NodeID{start}})
	res.Stats.Pushed++

	for !frontier.Empty() {
		item, _ := frontier.Pop()
		res.Stats.Popped++

		key := state{node: item.Node, depth: item.Depth}
		if visited[key] {
			continue
		}
		visited[key] = true

		if item.Node == start && len(item.Path) > 1 {
			if net := profit(g, item.Path, item.Cost); net > 0 {
				res.Opportunities = append(res.Opportunities, Opportunity{
					Path:      item.Path,
					NetProfit: net,
					TotalCost: item.Cost,
				})
			}
			continue
		}

		if item.Depth >= opts.MaxDepth {
			res.Stats.Pruned++
			continue
		}

		current := g.Node(item.Node)
		res.Stats.Expanded++
		for _, edge := range current.Edges() {
			neighbor := g.Node(edge.Target)
			if !admissible(current, neighbor, edge) {
				res.Stats.Rejected++
				continue
			}
			cost := item.Cost + edge.Weight()
			frontier.Push(queue.Item{
				Priority: priority(opts, cost, current, neighbor, edge),
				Cost:     cost,
				Node:     edge.Target,
				Path:     extend(item.Path, edge.Target),
				Depth:    item.Depth + 1,
			})
			res.Stats.Pushed++
		}
	}

	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		return res.Opportunities[i].NetProfit > res.Opportunities[j].NetProfit
	})
	return res, nil
}

// FindOptimalPath returns the first path from start that reaches target,
// in priority order. Every edge is followed and the heuristic is measured
// against target. The boolean is false if target is unreachable within
// MaxDepth hops.
func FindOptimalPath(g *graph.Graph, start, target graph.NodeID, opts Options) ([]graph.NodeID, float64, bool, error) {
	if err := opts.validate(); err != nil {
		return nil, 0, false, fmt.Errorf("path %d -> %d: %w", start, target, err)
	}
	goal := g.Node(target)
	if g.Node(start) == nil || goal == nil || opts.MaxDepth <= 0 {
		return nil, 0, false, nil
	}

	frontier := queue.New()
	visited := make(map[state]bool)
	frontier.Push(queue.Item{Node: start, Path: []graph.NodeID{start}})

	for !frontier.Empty() {
		item, _ := frontier.Pop()

		if item.Node == target && len(item.Path) > 1 {
			return item.Path, item.Cost, true, nil
		}

		key := state{node: item.Node, depth: item.Depth}
		if visited[key] {
			continue
		}
		visited[key] = true

		if item.Depth >= opts.MaxDepth {
			continue
		}

		current := g.Node(item.Node)
		for _, edge := range current.Edges() {
			cost := item.Cost + edge.Weight()
			frontier.Push(queue.Item{
				Priority: priority(opts, cost, current, goal, edge),
				Cost:     cost,
				Node:     edge.Target,
				Path:     extend(item.Path, edge.Target),
				Depth:    item.Depth + 1,
			})
		}
	}

	return nil, 0, false, nil
}

type state struct {
	node  graph.NodeID
	depth int
}

func priority(opts Options, cost float64, current, towards *graph.Node, edge *graph.Edge) float64 {
	switch opts.Algorithm {
	case Heuristic:
		return cost + RiskHeuristic(current, towards, edge, opts.VolatilityFactor)
	case WeightedHeuristic:
		return cost + opts.Weight*RiskHeuristic(current, towards, edge, opts.VolatilityFactor)
	default:
		return cost
	}
}

// extend copies path so sibling states never share a backing array
func extend(path []graph.NodeID, next graph.NodeID) []graph.NodeID {
	out := make([]graph.NodeID, len(path)+1)
	copy(out, path)
	out[len(path)] = next
	return out
}
