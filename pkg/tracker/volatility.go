// Package tracker keeps rolling price and transfer-time histories.
// The trackers only store observations and derive simple statistics from
// them; they do not fit any model.
package tracker

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/arb-finder/pkg/graph"
)

const (
	// DefaultPriceWindow is the number of prices kept per node
	DefaultPriceWindow = 100

	// DefaultVolatility is reported until at least two returns are known
	DefaultVolatility = 0.1

	// MinVolatility is the floor applied to measured volatility
	MinVolatility = 0.001

	// baselineVolatility maps to a factor multiplier of 1
	baselineVolatility = 0.01
)

// VolatilityTracker records prices per (exchange, currency) and reports the
// volatility of their simple returns. It is safe for concurrent use.
type VolatilityTracker struct {
	mu      sync.RWMutex
	window  int
	history map[graph.Key]*ring
}

// NewVolatilityTracker creates a tracker keeping window prices per node.
// A non-positive window uses DefaultPriceWindow.
func NewVolatilityTracker(window int) *VolatilityTracker {
	if window <= 0 {
		window = DefaultPriceWindow
	}
	return &VolatilityTracker{
		window:  window,
		history: make(map[graph.Key]*ring),
	}
}

// UpdatePrice appends an observed price
func (t *VolatilityTracker) UpdatePrice(key graph.Key, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.history[key]
	if !ok {
		r = newRing(t.window)
		t.history[key] = r
	}
	r.push(price)
}

// RecordGraph appends the current price of every node in g
func (t *VolatilityTracker) RecordGraph(g *graph.Graph) {
	for _, node := range g.Nodes() {
		t.UpdatePrice(node.Key(), node.Price)
	}
}

// Volatility returns the population standard deviation of simple returns
// for key, floored at MinVolatility. Returns are skipped after a
// non-positive price. With fewer than two returns DefaultVolatility is
// returned.
func (t *VolatilityTracker) Volatility(key graph.Key) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volatility(key)
}

func (t *VolatilityTracker) volatility(key graph.Key) float64 {
	r, ok := t.history[key]
	if !ok {
		return DefaultVolatility
	}
	prices := r.values()

	returns := make([]float64, 0, len(prices))
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, prices[i]/prices[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return DefaultVolatility
	}

	return math.Max(math.Sqrt(stat.PopVariance(returns, nil)), MinVolatility)
}

// VolatilityFactor scales base by the node's volatility relative to a 1%
// baseline, never going below half of base
func (t *VolatilityTracker) VolatilityFactor(key graph.Key, base float64) float64 {
	return base * math.Max(t.Volatility(key)/baselineVolatility, 0.5)
}

// All returns the volatility of every tracked node
func (t *VolatilityTracker) All() map[graph.Key]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[graph.Key]float64, len(t.history))
	for key := range t.history {
		out[key] = t.volatility(key)
	}
	return out
}

// Clear drops all history
func (t *VolatilityTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = make(map[graph.Key]*ring)
}

// ring is a fixed-capacity FIFO that drops its oldest value when full
type ring struct {
	buf   []float64
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// values returns the contents oldest first
func (r *ring) values() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
