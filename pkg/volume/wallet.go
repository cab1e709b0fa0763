// Package volume tracks wallet balances and sizes trades against tiered fees.
//
// Fee rates are piecewise constant in volume, so net profit is linear inside
// a tier and can only change slope at a tier boundary. Evaluating the tier
// boundaries clamped to the available funds is therefore enough to find the
// best volume.
package volume

import (
	"math"
	"sort"
	"sync"

	"github.com/ritzau/arb-finder/pkg/graph"
)

const (
	ReasonInsufficientFunds = "Insufficient funds"
	ReasonSufficientFunds   = "Sufficient funds available"
)

// Wallet holds balances per (exchange, currency) and fee schedules per
// exchange. It is safe for concurrent use.
type Wallet struct {
	mu        sync.RWMutex
	balances  map[graph.Key]float64
	schedules map[string]FeeSchedule
	fallback  FeeSchedule
}

// NewWallet creates an empty wallet using the default fee schedule
func NewWallet() *Wallet {
	return &Wallet{
		balances:  make(map[graph.Key]float64),
		schedules: make(map[string]FeeSchedule),
		fallback:  DefaultFeeSchedule(),
	}
}

// SetBalance sets the balance held for a currency on an exchange
func (w *Wallet) SetBalance(exchange, currency string, balance float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[graph.Key{Exchange: exchange, Currency: currency}] = balance
}

// Balance returns the balance for a currency on an exchange, or 0 if unset
func (w *Wallet) Balance(exchange, currency string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balances[graph.Key{Exchange: exchange, Currency: currency}]
}

// HasBalance reports whether a balance was set for key
func (w *Wallet) HasBalance(key graph.Key) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.balances[key]
	return ok
}

// SetFeeSchedule overrides the fee schedule of one exchange
func (w *Wallet) SetFeeSchedule(exchange string, schedule FeeSchedule) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schedules[exchange] = schedule
}

// FeeSchedule returns the schedule used for exchange
func (w *Wallet) FeeSchedule(exchange string) FeeSchedule {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.schedule(exchange)
}

// FeeSchedules returns the per-exchange overrides
func (w *Wallet) FeeSchedules() map[string]FeeSchedule {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]FeeSchedule, len(w.schedules))
	for ex, s := range w.schedules {
		out[ex] = s
	}
	return out
}

// EffectiveFee returns the fee rate exchange charges for volume
func (w *Wallet) EffectiveFee(exchange string, volume float64) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.schedule(exchange).Rate(volume)
}

func (w *Wallet) schedule(exchange string) FeeSchedule {
	if s, ok := w.schedules[exchange]; ok {
		return s
	}
	return w.fallback
}

// CanExecute reports whether every node on path holds at least amount
func (w *Wallet) CanExecute(path []graph.Key, amount float64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, key := range path {
		if w.balances[key] < amount {
			return false
		}
	}
	return true
}

// MaxExecutableAmount returns the smallest balance along path, or 0 for an
// empty path
func (w *Wallet) MaxExecutableAmount(path []graph.Key) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maxAmount(path)
}

func (w *Wallet) maxAmount(path []graph.Key) float64 {
	if len(path) == 0 {
		return 0
	}
	lowest := math.Inf(1)
	for _, key := range path {
		lowest = math.Min(lowest, w.balances[key])
	}
	return lowest
}

// OptimizeVolume returns the trade volume with the highest positive net
// profit, where net profit at volume v is
//
//	(profitRate - costRate - Σ fee(exchange, v)) * v
//
// summed over every node of path. It returns (0, 0) when no candidate volume
// is profitable.
func (w *Wallet) OptimizeVolume(path []graph.Key, profitRate, costRate, availableFunds float64) (float64, float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.optimize(path, profitRate, costRate, availableFunds)
}

func (w *Wallet) optimize(path []graph.Key, profitRate, costRate, funds float64) (float64, float64) {
	if len(path) == 0 || funds <= 0 {
		return 0, 0
	}

	var bestVolume, bestProfit float64
	for _, volume := range w.candidates(path, funds) {
		if volume <= 0 {
			continue
		}
		var feeRate float64
		for _, key := range path {
			feeRate += w.schedule(key.Exchange).Rate(volume)
		}
		profit := (profitRate - costRate - feeRate) * volume
		if profit > bestProfit {
			bestVolume, bestProfit = volume, profit
		}
	}
	return bestVolume, bestProfit
}

// candidates are the standard boundaries plus any custom tier bounds on the
// path, clamped to funds, deduplicated and sorted
func (w *Wallet) candidates(path []graph.Key, funds float64) []float64 {
	seen := map[float64]bool{0: true, funds: true}
	for _, bound := range DefaultFeeSchedule().Boundaries() {
		seen[math.Min(bound, funds)] = true
	}
	for _, key := range path {
		for _, bound := range w.schedule(key.Exchange).Boundaries() {
			seen[math.Min(bound, funds)] = true
		}
	}

	volumes := make([]float64, 0, len(seen))
	for v := range seen {
		volumes = append(volumes, v)
	}
	sort.Float64s(volumes)
	return volumes
}

// Evaluation is the outcome of checking an opportunity against the wallet
type Evaluation struct {
	Executable    bool    `json:"executable"`
	CanExecute    bool    `json:"can_execute"`
	MaxAmount     float64 `json:"max_amount"`
	OptimalVolume float64 `json:"optimal_volume"`
	OptimalProfit float64 `json:"optimal_profit"`
	Reason        string  `json:"reason"`
}

// EvaluateOpportunity sizes a trade along path. If the smallest balance on
// the path is below minAmount the result is not executable and no volume is
// optimized.
func (w *Wallet) EvaluateOpportunity(path []graph.Key, profitRate, costRate, minAmount float64) Evaluation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	maxAmount := w.maxAmount(path)
	if maxAmount < minAmount {
		return Evaluation{
			MaxAmount: maxAmount,
			Reason:    ReasonInsufficientFunds,
		}
	}

	volume, profit := w.optimize(path, profitRate, costRate, maxAmount)
	return Evaluation{
		Executable:    profit > 0,
		CanExecute:    true,
		MaxAmount:     maxAmount,
		OptimalVolume: volume,
		OptimalProfit: profit,
		Reason:        ReasonSufficientFunds,
	}
}

// Summary aggregates wallet balances
type Summary struct {
	TotalBalance   float64            `json:"total_balance"`
	Positions      int                `json:"num_positions"`
	ExchangeTotals map[string]float64 `json:"exchange_totals"`
}

// Summary returns the total balance, the number of positions and the
// per-exchange totals
func (w *Wallet) Summary() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	summary := Summary{
		Positions:      len(w.balances),
		ExchangeTotals: make(map[string]float64),
	}
	for key, balance := range w.balances {
		summary.TotalBalance += balance
		summary.ExchangeTotals[key.Exchange] += balance
	}
	return summary
}

// Balances returns a copy of every balance
func (w *Wallet) Balances() map[graph.Key]float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[graph.Key]float64, len(w.balances))
	for k, v := range w.balances {
		out[k] = v
	}
	return out
}
