package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Topics published by the analysis runner
const (
	TopicAnalysisStatus = "analysis_status"
	TopicOpportunities  = "opportunities"
)

// Analysis states, in the order a run moves through them
const (
	StateLoading    = "loading"
	StateSearching  = "searching"
	StateEvaluating = "evaluating"
	StateReady      = "ready"
	StateFailed     = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // e.g. "analysis_status", "opportunities"
	Type    string          `json:"type"`    // e.g. "searching", "complete"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic counter for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// subscription or the publisher closes.
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// AnalysisStatus reports the progress of a run
type AnalysisStatus struct {
	RunID   string `json:"run_id"`
	State   string `json:"state"`
	Message string `json:"message"`
	Step    int    `json:"step"`  // 1-based
	Total   int    `json:"total"` // number of steps in a run
}

// OpportunitiesData summarizes a finished run
type OpportunitiesData struct {
	RunID      string        `json:"run_id"`
	Count      int           `json:"count"`
	Executable int           `json:"executable"`
	BestProfit float64       `json:"best_profit"`
	Duration   time.Duration `json:"duration_ns"`
	Complete   bool          `json:"complete"`
}
