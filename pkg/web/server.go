package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/arb-finder/pkg/agent"
	"github.com/ritzau/arb-finder/pkg/analysis"
	"github.com/ritzau/arb-finder/pkg/config"
	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/logging"
	"github.com/ritzau/arb-finder/pkg/metrics"
	"github.com/ritzau/arb-finder/pkg/pubsub"
	"github.com/ritzau/arb-finder/pkg/volume"
)

// topics that clients may subscribe to
var topics = map[string]bool{
	pubsub.TopicAnalysisStatus: true,
	pubsub.TopicOpportunities:  true,
}

// GraphNode is a market node as served by /api/graph
type GraphNode struct {
	ID       graph.NodeID `json:"id"`
	Exchange string       `json:"exchange"`
	Currency string       `json:"currency"`
	Price    float64      `json:"price"`
	Balance  float64      `json:"balance"`
	Fiat     bool         `json:"fiat"`
}

// GraphEdge is a transfer edge as served by /api/graph
type GraphEdge struct {
	Source         graph.NodeID `json:"source"`
	Target         graph.NodeID `json:"target"`
	Fee            float64      `json:"fee"`
	VolatilityCost float64      `json:"volatility_cost"`
	TransferTime   float64      `json:"transfer_time"`
	Weight         float64      `json:"weight"`
}

// GraphData holds the market graph for visualization
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// StatusResponse describes the latest run
type StatusResponse struct {
	Ready      bool           `json:"ready"`
	RunID      string         `json:"run_id,omitempty"`
	Source     string         `json:"source,omitempty"`
	Algorithm  string         `json:"algorithm,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Graph      graph.Stats    `json:"graph"`
	Wallet     volume.Summary `json:"wallet"`
	Count      int            `json:"opportunities"`
	Executable int            `json:"executable"`
}

// EvaluateRequest is the body of POST /api/evaluate
type EvaluateRequest struct {
	Path   []graph.Key `json:"path"`
	Amount float64     `json:"amount"`
}

// EvaluateResponse prices a trade and checks it against the wallet
type EvaluateResponse struct {
	Trade      agent.TradeEvaluation `json:"trade"`
	CanExecute bool                  `json:"can_execute"`
	MaxAmount  float64               `json:"max_amount"`
}

// Server serves analysis results over HTTP
type Server struct {
	router    *mux.Router
	runner    *analysis.Runner
	cfg       atomic.Pointer[config.Config]
	publisher pubsub.Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewServer creates a web server over runner. cfg is used by POST
// /api/analyze; m may be nil to disable /metrics.
func NewServer(runner *analysis.Runner, cfg *config.Config, publisher pubsub.Publisher, m *metrics.Metrics) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		runner:    runner,
		publisher: publisher,
		metrics:   m,
		log:       logging.New("web"),
	}
	s.cfg.Store(cfg)
	s.setupRoutes()
	return s
}

// SetConfig replaces the configuration POST /api/analyze runs with
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

func (s *Server) setupRoutes() {
	// Live updates
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")
	s.router.HandleFunc("/api/ws/{topic}", s.handleWebsocket).Methods("GET")

	// API routes
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/opportunities", s.handleOpportunities).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/evaluate", s.handleEvaluate).Methods("POST")
	s.router.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// Start serves on port until ctx is canceled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !topics[topic] {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
			return
		}
		flush(w)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := s.runner.Last()
	if res == nil {
		writeJSON(w, http.StatusOK, StatusResponse{})
		return
	}

	started := res.StartedAt
	writeJSON(w, http.StatusOK, StatusResponse{
		Ready:      true,
		RunID:      res.RunID,
		Source:     res.Source,
		Algorithm:  res.Algorithm,
		StartedAt:  &started,
		DurationMs: res.Duration.Milliseconds(),
		Graph:      res.Graph,
		Wallet:     res.Wallet,
		Count:      len(res.Opportunities),
		Executable: res.Executable,
	})
}

// handleOpportunities serves the ranked opportunities of the last run.
// ?limit=N truncates and ?executable=true keeps only executable ones.
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	res := s.runner.Last()
	if res == nil {
		writeJSON(w, http.StatusOK, []analysis.Opportunity{})
		return
	}

	q := r.URL.Query()
	limit := -1
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}
	onlyExecutable := q.Get("executable") == "true"

	out := make([]analysis.Opportunity, 0, len(res.Opportunities))
	for _, opp := range res.Opportunities {
		if limit >= 0 && len(out) >= limit {
			break
		}
		if onlyExecutable && !opp.Evaluation.Executable {
			continue
		}
		out = append(out, opp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	res := s.runner.Last()
	if res == nil {
		writeJSON(w, http.StatusOK, &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}})
		return
	}
	writeJSON(w, http.StatusOK, buildGraphData(res.MarketGraph(), res.MarketWallet()))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	res := s.runner.Last()
	if res == nil {
		http.Error(w, "no analysis available yet", http.StatusServiceUnavailable)
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	trade, err := agent.New(res.MarketGraph(), res.SearchOptions()).EvaluateTrade(req.Path, req.Amount)
	switch {
	case errors.Is(err, agent.ErrPathTooShort):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, graph.ErrNodeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	wallet := res.MarketWallet()
	writeJSON(w, http.StatusOK, EvaluateResponse{
		Trade:      trade,
		CanExecute: wallet.CanExecute(req.Path, req.Amount),
		MaxAmount:  wallet.MaxExecutableAmount(req.Path),
	})
}

// handleAnalyze re-runs the analysis with the server's configuration
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Load()
	if cfg == nil {
		http.Error(w, "analysis is not configured", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.runner.Run(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.handleStatus(w, r)
}

func buildGraphData(g *graph.Graph, wallet *volume.Wallet) *GraphData {
	data := &GraphData{
		Nodes: make([]GraphNode, 0, g.NodeCount()),
		Edges: make([]GraphEdge, 0, g.EdgeCount()),
	}
	for i := 0; i < g.NodeCount(); i++ {
		n := g.Node(graph.NodeID(i))
		node := GraphNode{ID: n.ID, Exchange: n.Exchange, Currency: n.Currency, Price: n.Price, Fiat: n.IsFiat()}
		if wallet != nil {
			node.Balance = wallet.Balance(n.Exchange, n.Currency)
		}
		data.Nodes = append(data.Nodes, node)
	}
	for _, e := range g.Edges() {
		data.Edges = append(data.Edges, GraphEdge{
			Source:         e.Source,
			Target:         e.Target,
			Fee:            e.Fee,
			VolatilityCost: e.VolatilityCost,
			TransferTime:   e.TransferTime,
			Weight:         e.Weight(),
		})
	}
	return data
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
