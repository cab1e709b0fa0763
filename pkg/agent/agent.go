// Package agent is the entry point for callers that work with exchange and
// currency names instead of node ids. It wraps a graph snapshot together
// with the search settings used against it.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ritzau/arb-finder/pkg/exchange"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/pathfind"
	"github.com/ritzau/arb-finder/pkg/search"
)

// ErrPathTooShort is returned when a trade path has fewer than two nodes
var ErrPathTooShort = errors.New("path too short")

// Agent detects and evaluates arbitrage opportunities on one graph
type Agent struct {
	graph *graph.Graph
	opts  search.Options
}

// New creates an agent over g. opts supply the pruning rule, profit model,
// worker count and heuristic weight used by every search.
func New(g *graph.Graph, opts search.Options) *Agent {
	return &Agent{graph: g, opts: opts}
}

// Graph returns the snapshot the agent searches
func (a *Agent) Graph() *graph.Graph {
	return a.graph
}

func (a *Agent) options(algorithm string, maxDepth int, volatilityFactor float64) (search.Options, error) {
	alg, err := pathfind.ParseAlgorithm(algorithm)
	if err != nil {
		return search.Options{}, err
	}
	opts := a.opts
	opts.Algorithm = alg
	opts.MaxDepth = maxDepth
	opts.VolatilityFactor = volatilityFactor
	return opts, nil
}

// FindArbitragePaths searches for cycles through start
func (a *Agent) FindArbitragePaths(start graph.Key, algorithm string, maxDepth int, volatilityFactor float64) ([]pathfind.Opportunity, error) {
	opts, err := a.options(algorithm, maxDepth, volatilityFactor)
	if err != nil {
		return nil, err
	}
	node, ok := a.graph.Lookup(start)
	if !ok {
		return nil, fmt.Errorf("find paths from %s: %w", start, graph.ErrNodeNotFound)
	}
	return pathfind.FindPaths(a.graph, node.ID, opts.Options)
}

// FindAllOpportunities runs the two-level search over the whole graph
func (a *Agent) FindAllOpportunities(ctx context.Context, algorithm string, maxDepth int, volatilityFactor float64) (search.Result, error) {
	opts, err := a.options(algorithm, maxDepth, volatilityFactor)
	if err != nil {
		return search.Result{}, err
	}
	return search.FindAllOpportunities(ctx, a.graph, opts)
}

// Record describes a found opportunity
type Record struct {
	Path         []graph.Key `json:"path"`
	NetProfit    float64     `json:"net_profit"`
	TotalCost    float64     `json:"total_cost"`
	Start        string      `json:"start"`
	End          string      `json:"end"`
	PathLength   int         `json:"path_length"`
	ProfitMargin float64     `json:"profit_margin"`
}

// RecordOpportunity summarizes a path with its profit and cost. The profit
// margin is relative to the start price. An empty path yields a zero Record.
func (a *Agent) RecordOpportunity(path []graph.NodeID, netProfit, totalCost float64) Record {
	if len(path) == 0 {
		return Record{}
	}
	first := a.graph.Node(path[0])
	last := a.graph.Node(path[len(path)-1])

	rec := Record{
		Path:       make([]graph.Key, len(path)),
		NetProfit:  netProfit,
		TotalCost:  totalCost,
		Start:      first.Key().String(),
		End:        last.Key().String(),
		PathLength: len(path),
	}
	for i, id := range path {
		rec.Path[i] = a.graph.Node(id).Key()
	}
	if first.Price > 0 {
		rec.ProfitMargin = netProfit / first.Price
	}
	return rec
}

// TradeEvaluation is the outcome of trading a fixed amount along a path
type TradeEvaluation struct {
	Amount          float64 `json:"amount"`
	StartPrice      float64 `json:"start_price"`
	EndPrice        float64 `json:"end_price"`
	PriceDifference float64 `json:"price_difference"`
	TotalCost       float64 `json:"total_cost"`
	NetProfit       float64 `json:"net_profit"`
	ROI             float64 `json:"roi"` // percent of start_price*amount
	Profitable      bool    `json:"profitable"`
	MissingEdges    int     `json:"missing_edges,omitempty"`
}

// EvaluateTrade prices a trade of amount along path:
//
//	net = (start.price - end.price)*amount - Σ weight*amount
//
// using the first edge between each consecutive pair. Hops without an edge
// add no cost and are counted in MissingEdges.
func (a *Agent) EvaluateTrade(path []graph.Key, amount float64) (TradeEvaluation, error) {
	if len(path) < 2 {
		return TradeEvaluation{}, fmt.Errorf("evaluate trade with %d nodes: %w", len(path), ErrPathTooShort)
	}

	nodes := make([]*graph.Node, len(path))
	for i, key := range path {
		node, ok := a.graph.Lookup(key)
		if !ok {
			return TradeEvaluation{}, fmt.Errorf("evaluate trade: hop %d %s: %w", i, key, graph.ErrNodeNotFound)
		}
		nodes[i] = node
	}

	eval := TradeEvaluation{
		Amount:     amount,
		StartPrice: nodes[0].Price,
		EndPrice:   nodes[len(nodes)-1].Price,
	}
	for i := 0; i+1 < len(nodes); i++ {
		edge, ok := a.graph.EdgeBetween(nodes[i].ID, nodes[i+1].ID)
		if !ok {
			eval.MissingEdges++
			continue
		}
		eval.TotalCost += edge.Weight() * amount
	}

	eval.PriceDifference = (eval.StartPrice - eval.EndPrice) * amount
	eval.NetProfit = eval.PriceDifference - eval.TotalCost
	if notional := eval.StartPrice * amount; notional > 0 {
		eval.ROI = eval.NetProfit / notional * 100
	}
	eval.Profitable = eval.NetProfit > 0
	return eval, nil
}

// UpdatePrices applies a price batch to the graph. It must not run while a
// search is in flight.
func (a *Agent) UpdatePrices(prices map[graph.Key]float64) {
	a.graph.UpdatePrices(prices)
}

// RefreshPrices pulls current quotes from connectors and applies them.
// Quotes for nodes the graph does not hold are ignored. Nothing is applied
// if any connector fails.
func (a *Agent) RefreshPrices(connectors ...exchange.Connector) error {
	quotes, err := exchange.Quotes(connectors...)
	if err != nil {
		return err
	}
	a.graph.UpdatePrices(quotes)
	return nil
}

// Statistics summarizes the graph
func (a *Agent) Statistics() graph.Stats {
	return a.graph.Stats()
}
