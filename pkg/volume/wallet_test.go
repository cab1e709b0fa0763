package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/arb-finder/pkg/graph"
)

func keys(pairs ...string) []graph.Key {
	path := make([]graph.Key, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		path = append(path, graph.Key{Exchange: pairs[i], Currency: pairs[i+1]})
	}
	return path
}

func TestDefaultFeeSchedule(t *testing.T) {
	s := DefaultFeeSchedule()

	tests := []struct {
		volume float64
		want   float64
	}{
		{0, 0.001},
		{999.99, 0.001},
		{1000, 0.0005},
		{9999, 0.0005},
		{10000, 0.0002},
		{99999, 0.0002},
		{100000, 0.0001},
		{5e6, 0.0001},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Rate(tt.volume), "volume %v", tt.volume)
	}
	assert.Equal(t, []float64{1000, 10000, 100000}, s.Boundaries())
}

func TestNewFeeSchedule(t *testing.T) {
	s, err := NewFeeSchedule(Tier{Below: 0, Rate: 0.0001}, Tier{Below: 5000, Rate: 0.002}, Tier{Below: 500, Rate: 0.003})
	require.NoError(t, err)

	assert.Equal(t, []Tier{{500, 0.003}, {5000, 0.002}, {0, 0.0001}}, s.Tiers())
	assert.Equal(t, 0.003, s.Rate(100))
	assert.Equal(t, 0.0001, s.Rate(1e9))

	_, err = NewFeeSchedule(Tier{Below: 0, Rate: 0.1}, Tier{Below: 0, Rate: 0.2})
	assert.Error(t, err)
	_, err = NewFeeSchedule(Tier{Below: 10, Rate: -0.1})
	assert.Error(t, err)

	bounded, err := NewFeeSchedule(Tier{Below: 100, Rate: 0.01}, Tier{Below: 1000, Rate: 0.005})
	require.NoError(t, err)
	assert.Equal(t, 0.005, bounded.Rate(5000), "volumes past the last bound pay the last rate")

	var empty FeeSchedule
	assert.Zero(t, empty.Rate(1000))
}

func TestBalances(t *testing.T) {
	w := NewWallet()
	w.SetBalance("Kraken", "USDT", 5000)
	w.SetBalance("Coinbase", "USDT", 2000)

	assert.Equal(t, 5000.0, w.Balance("Kraken", "USDT"))
	assert.Zero(t, w.Balance("Binance", "USDT"))
	assert.True(t, w.HasBalance(graph.Key{Exchange: "Kraken", Currency: "USDT"}))

	path := keys("Kraken", "USDT", "Coinbase", "USDT")
	assert.True(t, w.CanExecute(path, 2000))
	assert.False(t, w.CanExecute(path, 2000.01))
	assert.Equal(t, 2000.0, w.MaxExecutableAmount(path))
	assert.Zero(t, w.MaxExecutableAmount(nil))

	summary := w.Summary()
	assert.Equal(t, 7000.0, summary.TotalBalance)
	assert.Equal(t, 2, summary.Positions)
	assert.Equal(t, map[string]float64{"Kraken": 5000, "Coinbase": 2000}, summary.ExchangeTotals)
}

func TestEffectiveFee_CustomSchedule(t *testing.T) {
	w := NewWallet()
	flat, err := NewFeeSchedule(Tier{Rate: 0.0025})
	require.NoError(t, err)
	w.SetFeeSchedule("Kraken", flat)

	assert.Equal(t, 0.0025, w.EffectiveFee("Kraken", 50))
	assert.Equal(t, 0.0025, w.EffectiveFee("Kraken", 5e6))
	assert.Equal(t, 0.001, w.EffectiveFee("Coinbase", 50))
}

func TestOptimizeVolume_Scenario(t *testing.T) {
	w := NewWallet()

	tests := []struct {
		name       string
		path       []graph.Key
		wantVolume float64
		wantProfit float64
	}{
		{
			// 0.0005 margin: fee 0.0005 at 1000 breaks even, 0.0002 from 10000 on
			name:       "single node",
			path:       keys("Kraken", "USDT"),
			wantVolume: 50000,
			wantProfit: (0.001 - 0.0005 - 0.0002) * 50000,
		},
		{
			name:       "two nodes",
			path:       keys("Kraken", "USDT", "Coinbase", "USDT"),
			wantVolume: 50000,
			wantProfit: (0.001 - 0.0005 - 0.0004) * 50000,
		},
		{
			// summed fee 0.0006 exceeds the margin at every breakpoint
			name: "three nodes",
			path: keys("Kraken", "USDT", "Coinbase", "USDT", "Kraken", "USDT"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volume, profit := w.OptimizeVolume(tt.path, 0.001, 0.0005, 50000)
			assert.InDelta(t, tt.wantVolume, volume, 1e-9)
			assert.InDelta(t, tt.wantProfit, profit, 1e-9)
			if profit > 0 {
				assert.Contains(t, []float64{1000, 10000, 50000}, volume)
			}
		})
	}
}

func TestOptimizeVolume_Edges(t *testing.T) {
	w := NewWallet()
	path := keys("Kraken", "USDT")

	v, p := w.OptimizeVolume(nil, 0.01, 0, 1000)
	assert.Zero(t, v)
	assert.Zero(t, p)

	v, p = w.OptimizeVolume(path, 0.01, 0, 0)
	assert.Zero(t, v)
	assert.Zero(t, p)

	v, p = w.OptimizeVolume(path, 0.01, 0, -5)
	assert.Zero(t, v)
	assert.Zero(t, p)

	// Funds below the first boundary collapse every breakpoint onto funds
	v, p = w.OptimizeVolume(path, 0.01, 0, 400)
	assert.Equal(t, 400.0, v)
	assert.InDelta(t, (0.01-0.001)*400, p, 1e-12)
}

func TestOptimizeVolume_CustomBoundaries(t *testing.T) {
	w := NewWallet()
	// Cheap only between 2,000 and 3,000
	s, err := NewFeeSchedule(Tier{Below: 2000, Rate: 0.01}, Tier{Below: 3000, Rate: 0.0001}, Tier{Rate: 0.01})
	require.NoError(t, err)
	w.SetFeeSchedule("Odd", s)

	v, p := w.OptimizeVolume(keys("Odd", "USDT"), 0.005, 0, 50000)
	assert.Equal(t, 2000.0, v)
	assert.InDelta(t, (0.005-0.0001)*2000, p, 1e-9)
}

func TestEvaluateOpportunity(t *testing.T) {
	w := NewWallet()
	w.SetBalance("Kraken", "USDT", 50000)
	w.SetBalance("Coinbase", "USDT", 80000)
	path := keys("Kraken", "USDT", "Coinbase", "USDT")

	eval := w.EvaluateOpportunity(path, 0.001, 0.0005, 100)
	assert.True(t, eval.CanExecute)
	assert.True(t, eval.Executable)
	assert.Equal(t, 50000.0, eval.MaxAmount)
	assert.Equal(t, 50000.0, eval.OptimalVolume)
	assert.InDelta(t, 5.0, eval.OptimalProfit, 1e-9)
	assert.Equal(t, ReasonSufficientFunds, eval.Reason)

	unprofitable := w.EvaluateOpportunity(path, 0.0001, 0.0005, 100)
	assert.True(t, unprofitable.CanExecute)
	assert.False(t, unprofitable.Executable)
	assert.Zero(t, unprofitable.OptimalVolume)
}

func TestEvaluateOpportunity_InsufficientFunds(t *testing.T) {
	w := NewWallet()
	w.SetBalance("Kraken", "USDT", 50)
	w.SetBalance("Coinbase", "USDT", 80000)

	eval := w.EvaluateOpportunity(keys("Kraken", "USDT", "Coinbase", "USDT"), 0.01, 0, 100)

	assert.False(t, eval.Executable)
	assert.False(t, eval.CanExecute)
	assert.Equal(t, 50.0, eval.MaxAmount)
	assert.Zero(t, eval.OptimalVolume)
	assert.Zero(t, eval.OptimalProfit)
	assert.Equal(t, ReasonInsufficientFunds, eval.Reason)

	empty := w.EvaluateOpportunity(nil, 0.01, 0, 100)
	assert.False(t, empty.CanExecute)
	assert.Zero(t, empty.MaxAmount)
}
