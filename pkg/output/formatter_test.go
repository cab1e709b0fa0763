package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/ritzau/arb-finder/pkg/analysis"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/pathfind"
	"github.com/ritzau/arb-finder/pkg/search"
	"github.com/ritzau/arb-finder/pkg/volume"
)

func init() {
	color.NoColor = true
}

func opportunity(profit float64, executable bool) analysis.Opportunity {
	kraken := graph.Key{Exchange: "Kraken", Currency: "USDT"}
	binance := graph.Key{Exchange: "Binance", Currency: "USDT"}
	return analysis.Opportunity{
		Opportunity: search.Opportunity{
			Opportunity: pathfind.Opportunity{Path: []graph.NodeID{0, 1, 0}, NetProfit: profit, TotalCost: 0.002},
			Start:       kraken,
			Target:      binance,
			Description: search.Describe(kraken, binance),
		},
		Route:      []graph.Key{kraken, binance, kraken},
		ProfitRate: profit,
		Evaluation: volume.Evaluation{
			Executable:    executable,
			CanExecute:    executable,
			MaxAmount:     1000,
			OptimalVolume: 1000,
			OptimalProfit: profit * 1000,
			Reason:        volume.ReasonSufficientFunds,
		},
		TransferP95: 120,
	}
}

func TestPrintOpportunityReport(t *testing.T) {
	res := &analysis.Result{
		RunID:         "run-1",
		Source:        "market.toml",
		Algorithm:     "least_cost",
		Duration:      1500 * time.Microsecond,
		Graph:         graph.Stats{Nodes: 2, Edges: 2, Exchanges: []string{"Binance", "Kraken"}},
		Opportunities: []analysis.Opportunity{opportunity(0.02, true), opportunity(0.01, false)},
		Executable:    1,
	}

	var buf bytes.Buffer
	PrintOpportunityReport(&buf, res, 1)
	out := buf.String()

	assert.Contains(t, out, "Source: market.toml")
	assert.Contains(t, out, "Market: 2 nodes, 2 edges across 2 exchanges")
	assert.Contains(t, out, "TOP 1 OF 2 OPPORTUNITIES:")
	assert.Contains(t, out, "1. Kraken(USDT) -> Binance(USDT) -> Kraken(USDT)")
	assert.Contains(t, out, "Pair: Kraken(USDT) -> Binance(USDT)")
	assert.Contains(t, out, "Net profit: 0.020000")
	assert.Contains(t, out, "Transfer time p95: 120s")
	assert.NotContains(t, out, "  2. ")
	assert.Contains(t, out, "Summary: 2 opportunities, 1 executable, best net profit 0.020000")
}

func TestPrintOpportunityReport_AllAndInsufficient(t *testing.T) {
	opp := opportunity(0.01, false)
	opp.Evaluation.Reason = volume.ReasonInsufficientFunds
	res := &analysis.Result{Opportunities: []analysis.Opportunity{opportunity(0.02, true), opp}}

	var buf bytes.Buffer
	PrintOpportunityReport(&buf, res, 0)
	out := buf.String()

	assert.Contains(t, out, "TOP 2 OF 2 OPPORTUNITIES:")
	assert.Contains(t, out, "Volume: "+volume.ReasonInsufficientFunds+" (max 1000.00)")
}

func TestPrintOpportunityReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintOpportunityReport(&buf, &analysis.Result{Source: "synthetic"}, 10)
	assert.Contains(t, buf.String(), "No arbitrage opportunities found.")
	assert.NotContains(t, buf.String(), "Summary:")
}
