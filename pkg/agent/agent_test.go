package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/arb-finder/pkg/exchange"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/pathfind"
	"github.com/ritzau/arb-finder/pkg/search"
)

var (
	krakenUSDT   = graph.Key{Exchange: "Kraken", Currency: "USDT"}
	coinbaseUSDT = graph.Key{Exchange: "Coinbase", Currency: "USDT"}
)

func twoExchanges(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddNode("Kraken", "USDT", 1.000)
	g.AddNode("Coinbase", "USDT", 1.010)
	_, err := g.AddEdge(coinbaseUSDT, krakenUSDT, 0.0005, 0.0001, 60)
	require.NoError(t, err)
	_, err = g.AddEdge(krakenUSDT, coinbaseUSDT, 0.0005, 0.0001, 60)
	require.NoError(t, err)
	return g
}

func allowAll() search.Options {
	opts := pathfind.DefaultOptions()
	opts.Admissible = pathfind.AllowAll
	return search.Options{Options: opts}
}

func TestEvaluateTrade(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	eval, err := a.EvaluateTrade([]graph.Key{coinbaseUSDT, krakenUSDT}, 100)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, eval.PriceDifference, 1e-9)
	assert.InDelta(t, 0.06, eval.TotalCost, 1e-9)
	assert.InDelta(t, 0.94, eval.NetProfit, 1e-9)
	assert.InDelta(t, 0.94/101*100, eval.ROI, 1e-9)
	assert.True(t, eval.Profitable)
	assert.Zero(t, eval.MissingEdges)
}

func TestEvaluateTrade_Errors(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	_, err := a.EvaluateTrade([]graph.Key{krakenUSDT}, 100)
	assert.True(t, errors.Is(err, ErrPathTooShort))

	_, err = a.EvaluateTrade([]graph.Key{krakenUSDT, {Exchange: "Binance", Currency: "USDT"}}, 100)
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}

func TestEvaluateTrade_MissingEdge(t *testing.T) {
	g := twoExchanges(t)
	g.AddNode("Binance", "USDT", 0.99)
	a := New(g, allowAll())

	eval, err := a.EvaluateTrade([]graph.Key{krakenUSDT, {Exchange: "Binance", Currency: "USDT"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, eval.MissingEdges)
	assert.Zero(t, eval.TotalCost)
	assert.InDelta(t, 0.1, eval.NetProfit, 1e-9)
}

func TestFindArbitragePaths(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	opps, err := a.FindArbitragePaths(coinbaseUSDT, "dijkstra", 4, 0.1)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Len(t, opps[0].Path, 3)

	_, err = a.FindArbitragePaths(coinbaseUSDT, "simulated_annealing", 4, 0.1)
	assert.True(t, errors.Is(err, pathfind.ErrInvalidAlgorithm))

	_, err = a.FindArbitragePaths(graph.Key{Exchange: "Nope", Currency: "USDT"}, "astar", 4, 0.1)
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}

func TestFindAllOpportunities(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	result, err := a.FindAllOpportunities(context.Background(), "astar", 4, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, result.Opportunities)
	for _, opp := range result.Opportunities {
		assert.NotEmpty(t, opp.Description)
	}

	_, err = a.FindAllOpportunities(context.Background(), "bogus", 4, 0.1)
	assert.True(t, errors.Is(err, pathfind.ErrInvalidAlgorithm))
}

func TestRecordOpportunity(t *testing.T) {
	g := twoExchanges(t)
	a := New(g, allowAll())
	coinbase, _ := g.Lookup(coinbaseUSDT)
	kraken, _ := g.Lookup(krakenUSDT)

	rec := a.RecordOpportunity([]graph.NodeID{coinbase.ID, kraken.ID, coinbase.ID}, 0.0088, 0.0012)
	assert.Equal(t, "Coinbase(USDT)", rec.Start)
	assert.Equal(t, "Coinbase(USDT)", rec.End)
	assert.Equal(t, 3, rec.PathLength)
	assert.InDelta(t, 0.0088/1.01, rec.ProfitMargin, 1e-12)
	assert.Equal(t, []graph.Key{coinbaseUSDT, krakenUSDT, coinbaseUSDT}, rec.Path)

	assert.Equal(t, Record{}, a.RecordOpportunity(nil, 1, 1))
}

func TestUpdatePricesAndStatistics(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	a.UpdatePrices(map[graph.Key]float64{krakenUSDT: 1.002})

	stats := a.Statistics()
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 2, stats.Edges)
	assert.InDelta(t, (1.002+1.010)/2, stats.AvgPrice, 1e-12)
}

type failingConnector struct {
	*exchange.StaticConnector
}

func (failingConnector) AllPrices() (map[string]float64, error) {
	return nil, errors.New("feed down")
}

func TestRefreshPrices(t *testing.T) {
	a := New(twoExchanges(t), allowAll())

	kraken := exchange.NewStaticConnector("Kraken", 0.001, 60)
	kraken.SetPrice("USDT", 0.995)
	kraken.SetPrice("DAI", 1.5) // not in the graph
	require.NoError(t, a.RefreshPrices(kraken))

	node, ok := a.Graph().Lookup(krakenUSDT)
	require.True(t, ok)
	assert.Equal(t, 0.995, node.Price)
	assert.Equal(t, 2, a.Graph().NodeCount())

	broken := failingConnector{exchange.NewStaticConnector("Coinbase", 0.001, 60)}
	err := a.RefreshPrices(kraken, broken)
	assert.ErrorContains(t, err, "feed down")
}
