package pathfind

import (
	"fmt"
	"math"

	"github.com/ritzau/arb-finder/pkg/graph"
)

// TimeRiskConst converts transfer seconds into heuristic cost
const TimeRiskConst = 0.001

// Admissible decides whether the traversal may follow edge from current to next
type Admissible func(current, next *graph.Node, edge *graph.Edge) bool

// PriceDropExceedsWeight keeps an edge only if the price drop across it
// exceeds its weight. A closed loop always has a total drop of zero, so under
// this rule no hop back up to the start price is ever followed.
func PriceDropExceedsWeight(current, next *graph.Node, edge *graph.Edge) bool {
	return current.Price-next.Price > edge.Weight()
}

// AllowAll keeps every edge
func AllowAll(_, _ *graph.Node, _ *graph.Edge) bool {
	return true
}

// ProfitModel computes the net profit of a closed path from its accumulated cost
type ProfitModel func(g *graph.Graph, path []graph.NodeID, totalCost float64) float64

// SpreadProfit sums the price drops captured along the path and subtracts the
// accumulated cost applied to the start price:
//
//	Σ max(0, p[i] - p[i+1]) - p[0]*totalCost
//
// Rising legs are not charged, so this is gross capture rather than net P&L.
func SpreadProfit(g *graph.Graph, path []graph.NodeID, totalCost float64) float64 {
	if len(path) == 0 {
		return 0
	}
	var captured float64
	for i := 0; i+1 < len(path); i++ {
		captured += math.Max(0, g.Node(path[i]).Price-g.Node(path[i+1]).Price)
	}
	return captured + ReferenceProfit(g, path, totalCost)
}

// ReferenceProfit is p[0] - p[0]*(1+totalCost). It is never positive for
// non-negative costs.
func ReferenceProfit(g *graph.Graph, path []graph.NodeID, totalCost float64) float64 {
	if len(path) == 0 {
		return 0
	}
	initial := g.Node(path[0]).Price
	return initial - initial*(1+totalCost)
}

// ParsePruning resolves a pruning rule name: "price_drop" or "allow_all"
func ParsePruning(name string) (Admissible, error) {
	switch name {
	case "", "price_drop":
		return PriceDropExceedsWeight, nil
	case "allow_all", "none":
		return AllowAll, nil
	default:
		return nil, fmt.Errorf("unknown pruning rule %q", name)
	}
}

// ParseProfit resolves a profit model name: "spread" or "reference"
func ParseProfit(name string) (ProfitModel, error) {
	switch name {
	case "", "spread":
		return SpreadProfit, nil
	case "reference":
		return ReferenceProfit, nil
	default:
		return nil, fmt.Errorf("unknown profit model %q", name)
	}
}

// RiskHeuristic estimates the remaining risk of taking edge from current,
// measured against towards:
//
//	transfer_time*TimeRiskConst + |current.price - towards.price|*volatilityFactor
//
// It is not a lower bound on the remaining cost, so guided searches are a
// best-effort ordering only.
func RiskHeuristic(current, towards *graph.Node, edge *graph.Edge, volatilityFactor float64) float64 {
	timeRisk := edge.TransferTime * TimeRiskConst
	volatilityRisk := math.Abs(current.Price-towards.Price) * volatilityFactor
	return timeRisk + volatilityRisk
}
