package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNodeNotFound is returned when an edge references an unregistered node
var ErrNodeNotFound = errors.New("node not found")

// NodeID is the arena index of a node within its graph
type NodeID int

// EdgeID is the insertion index of an edge within its graph
type EdgeID int

// Key identifies a node by exchange and currency
type Key struct {
	Exchange string `json:"exchange" koanf:"exchange" toml:"exchange"`
	Currency string `json:"currency" koanf:"currency" toml:"currency"`
}

// String formats the key the way opportunity descriptions do, e.g. "Kraken(USDT)"
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Exchange, k.Currency)
}

// Node is a currency held on a specific exchange
type Node struct {
	ID       NodeID
	Exchange string
	Currency string
	Price    float64

	edges []*Edge // outgoing, insertion order
}

// Key returns the identity of the node
func (n *Node) Key() Key {
	return Key{Exchange: n.Exchange, Currency: n.Currency}
}

// Edges returns the outgoing edges of the node in insertion order
func (n *Node) Edges() []*Edge {
	return n.edges
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)@%.4f", n.Exchange, n.Currency, n.Price)
}

// Edge is a directed transfer possibility between two nodes.
// Source and Target are indices into the owning graph's node arena.
type Edge struct {
	ID             EdgeID
	Source         NodeID
	Target         NodeID
	Fee            float64
	VolatilityCost float64
	TransferTime   float64 // seconds
}

// Weight is the total transfer cost of the edge. It is derived on every call
// so it can never drift from Fee and VolatilityCost.
func (e *Edge) Weight() float64 {
	return e.Fee + e.VolatilityCost
}

// UpdateVolatilityCost replaces the volatility component of the edge cost
func (e *Edge) UpdateVolatilityCost(cost float64) {
	e.VolatilityCost = cost
}

// Graph is a directed weighted graph of (exchange, currency) nodes.
// The graph owns every node and edge; edges refer to nodes by NodeID only.
type Graph struct {
	nodes []*Node
	index map[Key]NodeID
	edges []*Edge
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes: make([]*Node, 0),
		index: make(map[Key]NodeID),
		edges: make([]*Edge, 0),
	}
}

// AddNode registers a node. If the key already exists only its price is
// updated and the existing node is returned.
func (g *Graph) AddNode(exchange, currency string, price float64) *Node {
	key := Key{Exchange: exchange, Currency: currency}
	if id, exists := g.index[key]; exists {
		node := g.nodes[id]
		node.Price = price
		return node
	}

	node := &Node{
		ID:       NodeID(len(g.nodes)),
		Exchange: exchange,
		Currency: currency,
		Price:    price,
	}
	g.nodes = append(g.nodes, node)
	g.index[key] = node.ID
	return node
}

// AddEdge adds a directed edge from src to dst.
// Returns ErrNodeNotFound if either endpoint is not in the graph.
func (g *Graph) AddEdge(src, dst Key, fee, volatilityCost, transferTime float64) (*Edge, error) {
	srcID, ok := g.index[src]
	if !ok {
		return nil, fmt.Errorf("add edge %s -> %s: source %s: %w", src, dst, src, ErrNodeNotFound)
	}
	dstID, ok := g.index[dst]
	if !ok {
		return nil, fmt.Errorf("add edge %s -> %s: target %s: %w", src, dst, dst, ErrNodeNotFound)
	}

	edge := &Edge{
		ID:             EdgeID(len(g.edges)),
		Source:         srcID,
		Target:         dstID,
		Fee:            fee,
		VolatilityCost: volatilityCost,
		TransferTime:   transferTime,
	}
	source := g.nodes[srcID]
	source.edges = append(source.edges, edge)
	g.edges = append(g.edges, edge)
	return edge, nil
}

// GetNode returns the node for an exchange and currency
func (g *Graph) GetNode(exchange, currency string) (*Node, bool) {
	return g.Lookup(Key{Exchange: exchange, Currency: currency})
}

// Lookup returns the node registered under key
func (g *Graph) Lookup(key Key) (*Node, bool) {
	id, exists := g.index[key]
	if !exists {
		return nil, false
	}
	return g.nodes[id], true
}

// Node returns the node with the given arena index, or nil if out of range
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns all nodes. Callers must not rely on the order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Edges returns all edges in insertion order
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// NodeCount returns the number of nodes in the graph
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// EdgeBetween returns the first edge from src to dst
func (g *Graph) EdgeBetween(src, dst NodeID) (*Edge, bool) {
	source := g.Node(src)
	if source == nil {
		return nil, false
	}
	for _, edge := range source.edges {
		if edge.Target == dst {
			return edge, true
		}
	}
	return nil, false
}

// UpdatePrices applies a batch of price updates. Keys that are not in the
// graph are ignored, since price feeds may still carry stale nodes.
func (g *Graph) UpdatePrices(prices map[Key]float64) {
	for key, price := range prices {
		if id, exists := g.index[key]; exists {
			g.nodes[id].Price = price
		}
	}
}

// Exchanges returns the distinct exchange names, sorted
func (g *Graph) Exchanges() []string {
	seen := make(map[string]bool)
	for _, node := range g.nodes {
		seen[node.Exchange] = true
	}
	return sortedKeys(seen)
}

// Currencies returns the distinct currency symbols, sorted
func (g *Graph) Currencies() []string {
	seen := make(map[string]bool)
	for _, node := range g.nodes {
		seen[node.Currency] = true
	}
	return sortedKeys(seen)
}

// Stats summarizes the graph contents
type Stats struct {
	Nodes      int      `json:"num_nodes"`
	Edges      int      `json:"num_edges"`
	Exchanges  []string `json:"exchanges"`
	Currencies []string `json:"currencies"`
	AvgPrice   float64  `json:"avg_price"`
}

// Stats returns node/edge counts, the exchange and currency sets, and the mean price
func (g *Graph) Stats() Stats {
	stats := Stats{
		Nodes:      len(g.nodes),
		Edges:      len(g.edges),
		Exchanges:  g.Exchanges(),
		Currencies: g.Currencies(),
	}
	if len(g.nodes) > 0 {
		var sum float64
		for _, node := range g.nodes {
			sum += node.Price
		}
		stats.AvgPrice = sum / float64(len(g.nodes))
	}
	return stats
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph(%d nodes, %d edges)", len(g.nodes), len(g.edges))
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
