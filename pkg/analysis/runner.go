// Package analysis runs the full pipeline: load a market snapshot, search it
// for cycles, size every cycle against the wallet, then report the outcome to
// metrics and subscribers.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/arb-finder/pkg/config"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/logging"
	"github.com/ritzau/arb-finder/pkg/metrics"
	"github.com/ritzau/arb-finder/pkg/pathfind"
	"github.com/ritzau/arb-finder/pkg/pubsub"
	"github.com/ritzau/arb-finder/pkg/search"
	"github.com/ritzau/arb-finder/pkg/snapshot"
	"github.com/ritzau/arb-finder/pkg/synthetic"
	"github.com/ritzau/arb-finder/pkg/tracker"
	"github.com/ritzau/arb-finder/pkg/volume"
)

const totalSteps = 4

// transferPercentile is the percentile of observed transfer times reported
// per opportunity
const transferPercentile = 95

// Opportunity is a search result together with its trade sizing
type Opportunity struct {
	search.Opportunity
	Route       []graph.Key       `json:"route"`
	ProfitRate  float64           `json:"profit_rate"`
	Evaluation  volume.Evaluation `json:"evaluation"`
	TransferP95 float64           `json:"transfer_p95_seconds"`
}

// Result is the outcome of one run
type Result struct {
	RunID            string         `json:"run_id"`
	Source           string         `json:"source"` // snapshot path or "synthetic"
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration_ns"`
	Algorithm        string         `json:"algorithm"`
	VolatilityFactor float64        `json:"volatility_factor"`
	Graph            graph.Stats    `json:"graph"`
	Wallet           volume.Summary `json:"wallet"`
	Search           pathfind.Stats `json:"search"`
	Pairs            int            `json:"pairs"`
	Searched         int            `json:"roots_searched"`
	Pruned           int            `json:"roots_pruned"`
	Opportunities    []Opportunity  `json:"opportunities"`
	Executable       int            `json:"executable"`

	graph  *graph.Graph
	wallet *volume.Wallet
	opts   search.Options
}

// MarketGraph returns the graph the run analyzed
func (r *Result) MarketGraph() *graph.Graph {
	return r.graph
}

// MarketWallet returns the wallet the run evaluated against
func (r *Result) MarketWallet() *volume.Wallet {
	return r.wallet
}

// SearchOptions returns the resolved options the run searched with
func (r *Result) SearchOptions() search.Options {
	return r.opts
}

// BestProfit returns the highest net profit, or 0 without opportunities
func (r *Result) BestProfit() float64 {
	if len(r.Opportunities) == 0 {
		return 0
	}
	return r.Opportunities[0].NetProfit
}

// Runner orchestrates analysis runs. Runs are serialized; the trackers keep
// observing across runs.
type Runner struct {
	mu         sync.Mutex // prevent concurrent analysis runs
	publisher  pubsub.Publisher
	metrics    *metrics.Metrics
	volatility *tracker.VolatilityTracker
	transfers  *tracker.TransferTimeTracker
	last       atomic.Pointer[Result]
	log        *slog.Logger
}

// NewRunner creates a runner. Both publisher and m may be nil.
func NewRunner(publisher pubsub.Publisher, m *metrics.Metrics) *Runner {
	return &Runner{
		publisher:  publisher,
		metrics:    m,
		volatility: tracker.NewVolatilityTracker(tracker.DefaultPriceWindow),
		transfers:  tracker.NewTransferTimeTracker(tracker.DefaultTransferWindow),
		log:        logging.New("analysis"),
	}
}

// Last returns the most recent successful result, or nil
func (r *Runner) Last() *Result {
	return r.last.Load()
}

// Volatility exposes the price tracker
func (r *Runner) Volatility() *tracker.VolatilityTracker {
	return r.volatility
}

// Transfers exposes the transfer-time tracker
func (r *Runner) Transfers() *tracker.TransferTimeTracker {
	return r.transfers
}

// Run executes one analysis with cfg
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &Result{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Algorithm: cfg.Algorithm,
	}
	log := r.log.With("runID", res.RunID)

	err := r.run(ctx, cfg, res, log)
	res.Duration = time.Since(res.StartedAt)
	if r.metrics != nil {
		r.metrics.ObserveRun(res.Algorithm, res.Duration, err)
	}
	if err != nil {
		log.Error("analysis failed", "error", err)
		r.status(res.RunID, pubsub.StateFailed, err.Error(), totalSteps)
		return nil, err
	}

	r.last.Store(res)
	r.record(res)
	r.status(res.RunID, pubsub.StateReady, "Analysis complete", totalSteps)
	r.publish(pubsub.TopicOpportunities, "complete", pubsub.OpportunitiesData{
		RunID:      res.RunID,
		Count:      len(res.Opportunities),
		Executable: res.Executable,
		BestProfit: res.BestProfit(),
		Duration:   res.Duration,
		Complete:   true,
	})

	log.Info("analysis complete",
		"opportunities", len(res.Opportunities),
		"executable", res.Executable,
		"profit", res.BestProfit(),
		"durationMs", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, res *Result, log *slog.Logger) error {
	// Step 1: market
	r.status(res.RunID, pubsub.StateLoading, "Loading market snapshot...", 1)
	g, wallet, source, err := LoadMarket(cfg)
	if err != nil {
		return err
	}
	res.Source = source
	res.graph = g
	res.wallet = wallet
	res.Graph = g.Stats()
	res.Wallet = wallet.Summary()
	log.Info("market loaded", "source", source, "nodes", res.Graph.Nodes, "edges", res.Graph.Edges)

	r.volatility.RecordGraph(g)
	r.transfers.RecordGraph(g)

	// Step 2: search
	opts, err := cfg.SearchOptions()
	if err != nil {
		return err
	}
	if cfg.AdaptiveVolatility {
		opts.VolatilityFactor = r.adaptiveFactor(g, opts.VolatilityFactor)
		log.Debug("adapted volatility factor", "factor", opts.VolatilityFactor)
	}
	res.opts = opts
	res.Algorithm = opts.Algorithm.String()
	res.VolatilityFactor = opts.VolatilityFactor

	r.status(res.RunID, pubsub.StateSearching, fmt.Sprintf("Searching with %s...", res.Algorithm), 2)
	found, err := search.FindAllOpportunities(ctx, g, opts)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	res.Search = found.Stats
	res.Pairs = found.Pairs
	res.Searched = found.Searched
	res.Pruned = found.Pruned
	log.Debug("search finished",
		"pairs", found.Pairs,
		"searched", found.Searched,
		"pruned", found.Pruned,
		"popped", found.Stats.Popped,
	)

	// Step 3: sizing
	r.status(res.RunID, pubsub.StateEvaluating, "Evaluating opportunities...", 3)
	res.Opportunities = make([]Opportunity, 0, len(found.Opportunities))
	for _, opp := range found.Opportunities {
		if err := ctx.Err(); err != nil {
			return err
		}
		evaluated := r.evaluate(g, wallet, cfg, opp)
		if evaluated.Evaluation.Executable {
			res.Executable++
		}
		res.Opportunities = append(res.Opportunities, evaluated)
	}
	return nil
}

func (r *Runner) evaluate(g *graph.Graph, wallet *volume.Wallet, cfg *config.Config, opp search.Opportunity) Opportunity {
	route := make([]graph.Key, len(opp.Path))
	for i, id := range opp.Path {
		route[i] = g.Node(id).Key()
	}

	profitRate := cfg.ProfitRate
	if profitRate <= 0 {
		if start := g.Node(opp.Path[0]); start.Price > 0 {
			profitRate = opp.NetProfit / start.Price
		}
	}

	var transfer float64
	for i := 1; i < len(route); i++ {
		transfer += r.transfers.Estimated(tracker.Route{From: route[i-1], To: route[i]}, transferPercentile, tracker.DefaultTransferTime)
	}

	return Opportunity{
		Opportunity: opp,
		Route:       route,
		ProfitRate:  profitRate,
		Evaluation:  wallet.EvaluateOpportunity(route, profitRate, cfg.CostRate, cfg.MinAmount),
		TransferP95: transfer,
	}
}

// adaptiveFactor is the mean tracked volatility factor over the graph
func (r *Runner) adaptiveFactor(g *graph.Graph, base float64) float64 {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return base
	}
	factors := make([]float64, len(nodes))
	for i, n := range nodes {
		factors[i] = r.volatility.VolatilityFactor(n.Key(), base)
	}
	return stat.Mean(factors, nil)
}

func (r *Runner) record(res *Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveSearch(res.Search, res.Pruned)
	r.metrics.Opportunities.Set(float64(len(res.Opportunities)))
	r.metrics.Executable.Set(float64(res.Executable))
	r.metrics.BestProfit.Set(res.BestProfit())
	r.metrics.GraphNodes.Set(float64(res.Graph.Nodes))
	r.metrics.GraphEdges.Set(float64(res.Graph.Edges))
}

func (r *Runner) status(runID, state, message string, step int) {
	r.publish(pubsub.TopicAnalysisStatus, state, pubsub.AnalysisStatus{
		RunID:   runID,
		State:   state,
		Message: message,
		Step:    step,
		Total:   totalSteps,
	})
}

func (r *Runner) publish(topic, eventType string, data interface{}) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(topic, eventType, data); err != nil {
		r.log.Warn("failed to publish", "topic", topic, "error", err)
	}
}

// LoadMarket loads cfg.Snapshot, or synthesizes a market when no snapshot is
// configured. It returns the graph, the wallet and a label for the source.
func LoadMarket(cfg *config.Config) (*graph.Graph, *volume.Wallet, string, error) {
	if cfg.Snapshot != "" {
		g, wallet, err := snapshot.LoadGraph(cfg.Snapshot, cfg.DefaultBalance)
		if err != nil {
			return nil, nil, "", fmt.Errorf("load snapshot: %w", err)
		}
		return g, wallet, cfg.Snapshot, nil
	}

	g, wallet, err := snapshot.Build(Synthesize(cfg), cfg.DefaultBalance)
	if err != nil {
		return nil, nil, "", fmt.Errorf("synthesize market: %w", err)
	}
	return g, wallet, "synthetic", nil
}

// Synthesize generates the snapshot described by the synthetic keys of cfg
func Synthesize(cfg *config.Config) *snapshot.Document {
	src := synthetic.NewSource(cfg.Seed)

	var g *graph.Graph
	if cfg.Adversarial {
		g = synthetic.GenerateAdversarial(synthetic.AdversarialParams{
			Exchanges:      cfg.Exchanges,
			Currencies:     cfg.Currencies,
			HighVolatility: true,
			AsymmetricFees: true,
			Illiquid:       true,
		}, src)
	} else {
		p := synthetic.DefaultParams()
		p.Exchanges = cfg.Exchanges
		p.Currencies = cfg.Currencies
		g = synthetic.Generate(p, src)
	}
	return snapshot.FromGraph(g, nil)
}
