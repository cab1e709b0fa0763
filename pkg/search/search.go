// Package search runs the two-level arbitrage search: every ordered pair of
// distinct exchanges crossed with every ordered pair of currencies, each
// driving a single-source cycle search.
package search

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/arb-finder/pkg/cycles"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/pathfind"
)

// Options configure the orchestrator
type Options struct {
	pathfind.Options

	// Workers bounds the number of concurrent root searches. Values below 2
	// search sequentially.
	Workers int

	// Prune skips roots that lie on no cycle of the admissible subgraph.
	// Such roots can never produce an opportunity.
	Prune bool
}

// Opportunity is a cycle found for a (start, target) pair
type Opportunity struct {
	pathfind.Opportunity
	Start       graph.Key `json:"start"`
	Target      graph.Key `json:"target"`
	Description string    `json:"description"`
}

// Result is the aggregate of a two-level search
type Result struct {
	Opportunities []Opportunity
	Stats         pathfind.Stats

	Pairs    int // resolved (start, target) pairs
	Searched int // distinct roots searched
	Pruned   int // distinct roots skipped by Prune
}

// Describe formats a pair the way opportunities are tagged,
// e.g. "Kraken(USDT) -> Coinbase(USDC)"
func Describe(start, target graph.Key) string {
	return fmt.Sprintf("%s -> %s", start, target)
}

type pair struct {
	start, target *graph.Node
}

// FindAllOpportunities searches every resolvable pair and returns the cycles
// that visit the pair's target, best first. Each root is searched once and
// its cycles are shared by every pair it starts, so the aggregate equals the
// union of independent single-source searches.
func FindAllOpportunities(ctx context.Context, g *graph.Graph, opts Options) (Result, error) {
	if !opts.Algorithm.Valid() {
		return Result{}, fmt.Errorf("find all opportunities: %w: %s", pathfind.ErrInvalidAlgorithm, opts.Algorithm)
	}

	pairs := enumerate(g)
	roots := distinctRoots(pairs)

	var result Result
	result.Pairs = len(pairs)

	runs, err := searchRoots(ctx, g, roots, opts)
	if err != nil {
		return Result{}, err
	}
	for _, run := range runs {
		if run.pruned {
			result.Pruned++
			continue
		}
		result.Searched++
		result.Stats.Add(run.result.Stats)
	}

	for _, p := range pairs {
		run := runs[p.start.ID]
		for _, opp := range run.result.Opportunities {
			if !opp.Contains(p.target.ID) {
				continue
			}
			result.Opportunities = append(result.Opportunities, Opportunity{
				Opportunity: opp,
				Start:       p.start.Key(),
				Target:      p.target.Key(),
				Description: Describe(p.start.Key(), p.target.Key()),
			})
		}
	}

	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		return result.Opportunities[i].NetProfit > result.Opportunities[j].NetProfit
	})
	return result, nil
}

// Pair identifies two nodes compared by CompareAllPairs
type Pair struct {
	From graph.Key
	To   graph.Key
}

// CompareAllPairs maps each node pair (i, j) with i < j in node order to the
// cycles rooted at i that visit j. Pairs without such cycles are omitted.
func CompareAllPairs(ctx context.Context, g *graph.Graph, opts Options) (map[Pair][]pathfind.Opportunity, error) {
	if !opts.Algorithm.Valid() {
		return nil, fmt.Errorf("compare all pairs: %w: %s", pathfind.ErrInvalidAlgorithm, opts.Algorithm)
	}

	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	runs, err := searchRoots(ctx, g, nodes, opts)
	if err != nil {
		return nil, err
	}

	results := make(map[Pair][]pathfind.Opportunity)
	for i, from := range nodes {
		for _, to := range nodes[i+1:] {
			var relevant []pathfind.Opportunity
			for _, opp := range runs[from.ID].result.Opportunities {
				if opp.Contains(to.ID) {
					relevant = append(relevant, opp)
				}
			}
			if len(relevant) > 0 {
				results[Pair{From: from.Key(), To: to.Key()}] = relevant
			}
		}
	}
	return results, nil
}

// enumerate lists the resolvable pairs in sorted exchange/currency order
func enumerate(g *graph.Graph) []pair {
	exchanges := g.Exchanges()
	currencies := g.Currencies()

	var pairs []pair
	for _, ex1 := range exchanges {
		for _, ex2 := range exchanges {
			if ex1 == ex2 {
				continue
			}
			for _, coin1 := range currencies {
				start, ok := g.GetNode(ex1, coin1)
				if !ok {
					continue
				}
				for _, coin2 := range currencies {
					target, ok := g.GetNode(ex2, coin2)
					if !ok {
						continue
					}
					pairs = append(pairs, pair{start: start, target: target})
				}
			}
		}
	}
	return pairs
}

func distinctRoots(pairs []pair) []*graph.Node {
	seen := make(map[graph.NodeID]bool)
	var roots []*graph.Node
	for _, p := range pairs {
		if !seen[p.start.ID] {
			seen[p.start.ID] = true
			roots = append(roots, p.start)
		}
	}
	return roots
}

type rootRun struct {
	result pathfind.Result
	pruned bool
}

// searchRoots runs one search per root. Each run writes only its own slot,
// so the outcome does not depend on scheduling.
func searchRoots(ctx context.Context, g *graph.Graph, roots []*graph.Node, opts Options) (map[graph.NodeID]rootRun, error) {
	var onCycle map[graph.NodeID]bool
	if opts.Prune {
		onCycle = cycles.OnCycle(g.Directed(edgeFilter(opts.Admissible)))
	}

	slots := make([]rootRun, len(roots))
	run := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		root := roots[i]
		if onCycle != nil && !onCycle[root.ID] {
			slots[i] = rootRun{pruned: true}
			return nil
		}
		res, err := pathfind.Search(g, root.ID, opts.Options)
		if err != nil {
			return fmt.Errorf("search from %s: %w", root.Key(), err)
		}
		slots[i] = rootRun{result: res}
		return nil
	}

	if opts.Workers < 2 {
		for i := range roots {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(opts.Workers)
		for i := range roots {
			eg.Go(func() error { return run(egCtx, i) })
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	runs := make(map[graph.NodeID]rootRun, len(roots))
	for i, root := range roots {
		runs[root.ID] = slots[i]
	}
	return runs, nil
}

func edgeFilter(admissible pathfind.Admissible) graph.EdgeFilter {
	if admissible == nil {
		admissible = pathfind.PriceDropExceedsWeight
	}
	return func(g *graph.Graph, e *graph.Edge) bool {
		return admissible(g.Node(e.Source), g.Node(e.Target), e)
	}
}
