package tracker

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/arb-finder/pkg/graph"
)

const (
	// DefaultTransferWindow is the number of transfer times kept per route
	DefaultTransferWindow = 50

	// DefaultTransferTime is reported for routes without history, in seconds
	DefaultTransferTime = 60.0
)

// Route is a directed transfer between two nodes
type Route struct {
	From graph.Key
	To   graph.Key
}

func (r Route) String() string {
	return fmt.Sprintf("%s -> %s", r.From, r.To)
}

// TransferTimeTracker records observed transfer times per route.
// It is safe for concurrent use.
type TransferTimeTracker struct {
	mu      sync.RWMutex
	window  int
	history map[Route]*ring
}

// NewTransferTimeTracker creates a tracker keeping window records per route.
// A non-positive window uses DefaultTransferWindow.
func NewTransferTimeTracker(window int) *TransferTimeTracker {
	if window <= 0 {
		window = DefaultTransferWindow
	}
	return &TransferTimeTracker{
		window:  window,
		history: make(map[Route]*ring),
	}
}

// RecordTransfer appends an observed transfer time in seconds
func (t *TransferTimeTracker) RecordTransfer(route Route, seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.history[route]
	if !ok {
		r = newRing(t.window)
		t.history[route] = r
	}
	r.push(seconds)
}

// RecordGraph appends the transfer time of every edge in g
func (t *TransferTimeTracker) RecordGraph(g *graph.Graph) {
	for _, edge := range g.Edges() {
		t.RecordTransfer(Route{
			From: g.Node(edge.Source).Key(),
			To:   g.Node(edge.Target).Key(),
		}, edge.TransferTime)
	}
}

// Estimated returns the given percentile (0-100) of the route's history,
// interpolating linearly between closest ranks. Routes without history
// return def.
func (t *TransferTimeTracker) Estimated(route Route, percentile, def float64) float64 {
	t.mu.RLock()
	r, ok := t.history[route]
	var times []float64
	if ok {
		times = r.values()
	}
	t.mu.RUnlock()

	if len(times) == 0 {
		return def
	}
	sort.Float64s(times)
	return percentileOf(times, percentile)
}

// Average returns the mean transfer time of the route, or def without history
func (t *TransferTimeTracker) Average(route Route, def float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.history[route]
	if !ok || r.size == 0 {
		return def
	}
	return stat.Mean(r.values(), nil)
}

// Routes returns every tracked route
func (t *TransferTimeTracker) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	routes := make([]Route, 0, len(t.history))
	for route := range t.history {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].String() < routes[j].String() })
	return routes
}

// Clear drops all history
func (t *TransferTimeTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = make(map[Route]*ring)
}

// percentileOf interpolates between the closest ranks of sorted data at
// rank p/100*(n-1). gonum's stat.Quantile interpolates the empirical CDF
// instead, which gives different values for small samples.
func percentileOf(sorted []float64, p float64) float64 {
	p = math.Min(math.Max(p, 0), 100)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
