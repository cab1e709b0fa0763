// Package metrics exposes Prometheus metrics for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ritzau/arb-finder/pkg/pathfind"
)

const namespace = "arb_finder"

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	SearchStates  *prometheus.CounterVec
	RootsPruned   prometheus.Counter
	Opportunities prometheus.Gauge
	Executable    prometheus.Gauge
	BestProfit    prometheus.Gauge
	GraphNodes    prometheus.Gauge
	GraphEdges    prometheus.Gauge
}

// New creates metrics on a private registry that also carries the Go
// runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of analysis runs by algorithm and outcome",
		}, []string{"algorithm", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Wall time of analysis runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"algorithm"}),
		SearchStates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "states_total",
			Help:      "Search states by what happened to them",
		}, []string{"kind"}),
		RootsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "roots_pruned_total",
			Help:      "Search roots skipped because they lie on no admissible cycle",
		}),
		Opportunities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "opportunities",
			Help:      "Opportunities found by the last run",
		}),
		Executable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "executable_opportunities",
			Help:      "Opportunities the wallet can execute at a profit in the last run",
		}),
		BestProfit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "best_net_profit",
			Help:      "Highest net profit found by the last run",
		}),
		GraphNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes in the last analyzed snapshot",
		}),
		GraphEdges: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Edges in the last analyzed snapshot",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(algorithm string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(algorithm, status).Inc()
	m.RunDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
}

// ObserveSearch adds the state counts of a search
func (m *Metrics) ObserveSearch(stats pathfind.Stats, prunedRoots int) {
	m.SearchStates.WithLabelValues("pushed").Add(float64(stats.Pushed))
	m.SearchStates.WithLabelValues("popped").Add(float64(stats.Popped))
	m.SearchStates.WithLabelValues("expanded").Add(float64(stats.Expanded))
	m.SearchStates.WithLabelValues("depth_pruned").Add(float64(stats.Pruned))
	m.SearchStates.WithLabelValues("rejected").Add(float64(stats.Rejected))
	m.RootsPruned.Add(float64(prunedRoots))
}
