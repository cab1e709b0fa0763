// Package output renders analysis results for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/arb-finder/pkg/analysis"
	"github.com/ritzau/arb-finder/pkg/graph"
)

// PrintOpportunityReport prints a nicely formatted report of the top
// opportunities with colors. top <= 0 prints every opportunity.
func PrintOpportunityReport(w io.Writer, res *analysis.Result, top int) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "Arbitrage Finder - Opportunity Report")
	bold.Fprintln(w, "=====================================")
	fmt.Fprintf(w, "Source: %s\n", res.Source)
	fmt.Fprintf(w, "Run: %s (%s, %s)\n", res.RunID, res.Algorithm, res.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "Market: %d nodes, %d edges across %d exchanges\n",
		res.Graph.Nodes, res.Graph.Edges, len(res.Graph.Exchanges))
	fmt.Fprintf(w, "Searched: %d roots for %d pairs (%d pruned)\n", res.Searched, res.Pairs, res.Pruned)
	fmt.Fprintf(w, "Wallet: %.2f across %d positions\n", res.Wallet.TotalBalance, res.Wallet.Positions)
	fmt.Fprintln(w)

	if len(res.Opportunities) == 0 {
		yellow.Fprintln(w, "No arbitrage opportunities found.")
		return
	}

	shown := res.Opportunities
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}

	red.Fprintf(w, "TOP %d OF %d OPPORTUNITIES:\n", len(shown), len(res.Opportunities))
	for i, opp := range shown {
		line := bold
		if opp.Evaluation.Executable {
			line = green
		}
		line.Fprintf(w, "%3d. %s\n", i+1, formatRoute(opp.Route))
		cyan.Fprintf(w, "     Pair: %s\n", opp.Description)
		fmt.Fprintf(w, "     Net profit: %.6f (rate %.4f%%), cost %.6f\n",
			opp.NetProfit, opp.ProfitRate*100, opp.TotalCost)
		if opp.Evaluation.CanExecute {
			fmt.Fprintf(w, "     Volume: %.2f of %.2f available, expected profit %.6f\n",
				opp.Evaluation.OptimalVolume, opp.Evaluation.MaxAmount, opp.Evaluation.OptimalProfit)
		} else {
			yellow.Fprintf(w, "     Volume: %s (max %.2f)\n", opp.Evaluation.Reason, opp.Evaluation.MaxAmount)
		}
		if opp.TransferP95 > 0 {
			fmt.Fprintf(w, "     Transfer time p95: %.0fs\n", opp.TransferP95)
		}
		fmt.Fprintln(w)
	}

	// Summary with color based on executability
	summaryColor := yellow
	if res.Executable > 0 {
		summaryColor = green
	}
	summaryColor.Fprintf(w, "Summary: %d opportunities, %d executable, best net profit %.6f\n",
		len(res.Opportunities), res.Executable, res.BestProfit())
}

func formatRoute(route []graph.Key) string {
	parts := make([]string, len(route))
	for i, key := range route {
		parts[i] = key.String()
	}
	return strings.Join(parts, " -> ")
}
