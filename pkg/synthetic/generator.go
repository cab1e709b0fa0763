// Package synthetic generates random market graphs for benchmarks and demos.
// Every generator draws from a caller-supplied source, so the same seed
// always yields the same graph.
package synthetic

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ritzau/arb-finder/pkg/graph"
)

// Currencies is the pool generated graphs draw their currencies from, in order
var Currencies = []string{"USDT", "USDC", "DAI"}

// Params shape a synthetic market
type Params struct {
	Exchanges     int
	Currencies    int // capped at len(Currencies)
	BasePrice     float64
	PriceVariance float64
	FeeMin        float64
	FeeMax        float64
	VolatilityMin float64
	VolatilityMax float64
}

// DefaultParams returns four exchanges and three currencies priced within 1%
// of parity
func DefaultParams() Params {
	return Params{
		Exchanges:     4,
		Currencies:    3,
		BasePrice:     1.0,
		PriceVariance: 0.01,
		FeeMin:        0.001,
		FeeMax:        0.005,
		VolatilityMin: 0.0001,
		VolatilityMax: 0.001,
	}
}

// NewSource returns a deterministic source for seed
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Generate builds a complete graph: every node has an edge to every other
// node, with uniformly drawn fees, volatility costs and 30-300s transfers.
func Generate(p Params, src rand.Source) *graph.Graph {
	price := uniform(p.BasePrice-p.PriceVariance, p.BasePrice+p.PriceVariance, src)
	fee := uniform(p.FeeMin, p.FeeMax, src)
	vol := uniform(p.VolatilityMin, p.VolatilityMax, src)
	transfer := uniform(30, 300, src)

	g := populate(p.Exchanges, p.Currencies, func() float64 { return price.Rand() })
	connect(g, func() (float64, float64, float64) {
		return fee.Rand(), vol.Rand(), transfer.Rand()
	})
	return g
}

// AdversarialParams select the hostile conditions of GenerateAdversarial
type AdversarialParams struct {
	Exchanges      int
	Currencies     int
	HighVolatility bool // prices within 5% and volatility costs of 0.1-1%
	AsymmetricFees bool // 30% of edges cost 1-5%
	Illiquid       bool // doubles every fee and volatility cost
}

// GenerateAdversarial builds a complete graph under hostile market conditions
// with 1-10 minute transfers
func GenerateAdversarial(p AdversarialParams, src rand.Source) *graph.Graph {
	spread := 0.01
	volMin, volMax := 0.0001, 0.001
	if p.HighVolatility {
		spread = 0.05
		volMin, volMax = 0.001, 0.01
	}

	price := uniform(1-spread, 1+spread, src)
	expensive := distuv.Bernoulli{P: 0.3, Src: src}
	highFee := uniform(0.01, 0.05, src)
	lowFee := uniform(0.001, 0.003, src)
	flatFee := uniform(0.001, 0.005, src)
	vol := uniform(volMin, volMax, src)
	transfer := uniform(60, 600, src)

	g := populate(p.Exchanges, p.Currencies, func() float64 { return price.Rand() })
	connect(g, func() (float64, float64, float64) {
		var f float64
		switch {
		case !p.AsymmetricFees:
			f = flatFee.Rand()
		case expensive.Rand() == 1:
			f = highFee.Rand()
		default:
			f = lowFee.Rand()
		}
		v := vol.Rand()
		if p.Illiquid {
			f *= 2
			v *= 2
		}
		return f, v, transfer.Rand()
	})
	return g
}

func uniform(lo, hi float64, src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: lo, Max: hi, Src: src}
}

func populate(exchanges, currencies int, price func() float64) *graph.Graph {
	g := graph.New()
	currencies = min(max(currencies, 0), len(Currencies))
	for i := 0; i < exchanges; i++ {
		name := fmt.Sprintf("Exchange%d", i+1)
		for _, cur := range Currencies[:currencies] {
			g.AddNode(name, cur, price())
		}
	}
	return g
}

// connect adds an edge between every ordered pair of distinct nodes in
// node order
func connect(g *graph.Graph, draw func() (fee, vol, transfer float64)) {
	n := g.NodeCount()
	for i := 0; i < n; i++ {
		src := g.Node(graph.NodeID(i))
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dst := g.Node(graph.NodeID(j))
			fee, vol, transfer := draw()
			// both endpoints come from g, so this cannot fail
			_, _ = g.AddEdge(src.Key(), dst.Key(), fee, vol, transfer)
		}
	}
}
