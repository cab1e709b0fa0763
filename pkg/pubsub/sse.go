package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/arb-finder/pkg/logging"
)

// ErrClosed is returned by a broker after Close
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the channel capacity of each subscription
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// Broker is an in-memory Publisher feeding SSE and websocket clients
type Broker struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*subscription]bool // topic -> set of subscriptions
	version       map[string]int                    // topic -> version counter
	eventBuffer   map[string][]Event                // topic -> most recent events
	topicConfig   map[string]TopicConfig            // topic -> configuration
	closed        bool
}

// NewBroker creates a broker. Status replays only the latest state while the
// opportunities topic replays its recent history.
func NewBroker() *Broker {
	b := &Broker{
		subscriptions: make(map[string]map[*subscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
	b.topicConfig[TopicAnalysisStatus] = TopicConfig{BufferSize: 1}
	b.topicConfig[TopicOpportunities] = TopicConfig{BufferSize: 10, ReplayAll: true}
	return b
}

// ConfigureTopic sets buffering configuration for a topic
func (b *Broker) ConfigureTopic(topic string, config TopicConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topicConfig[topic] = config
}

// Subscribe creates a new subscription to a topic and replays buffered
// events into it
func (b *Broker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		topic:  topic,
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
		broker: b,
	}

	if b.subscriptions[topic] == nil {
		b.subscriptions[topic] = make(map[*subscription]bool)
	}
	b.subscriptions[topic][sub] = true

	// Replaying under the lock keeps replayed events ahead of new ones
	replay := b.eventBuffer[topic]
	if !b.topicConfig[topic].ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("could not replay event to new subscriber", "topic", topic)
		}
	}
	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replay))
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic
func (b *Broker) Publish(topic string, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: b.version[topic],
	}

	if size := b.topicConfig[topic].BufferSize; size > 0 {
		buffer := append(b.eventBuffer[topic], event)
		if len(buffer) > size {
			buffer = buffer[len(buffer)-size:]
		}
		b.eventBuffer[topic] = buffer
	}

	// Slow subscribers lose events rather than stall the runner
	for sub := range b.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "version", event.Version)
		}
	}

	return nil
}

// Subscribers returns the number of open subscriptions on topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[topic])
}

// Close shuts down the broker and all subscriptions
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for sub := range subs {
			close(sub.events)
			sub.stop()
		}
	}
	b.subscriptions = make(map[string]map[*subscription]bool)

	return nil
}

// unsubscribe removes sub and closes its channel if the broker still owns it
func (b *Broker) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[sub.topic]
	if !subs[sub] {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(b.subscriptions, sub.topic)
	}
}

type subscription struct {
	topic    string
	events   chan Event
	done     chan struct{} // closed when the subscription ends
	broker   *Broker
	once     sync.Once
	doneOnce sync.Once
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.broker.unsubscribe(s) })
	s.stop()
	return nil
}

func (s *subscription) stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

// WriteSSE writes an event to an SSE response writer
// Format: "id: {version}\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, jsonData)
	return err
}
