package graph

import (
	"errors"
	"math"
	"testing"
)

func key(exchange, currency string) Key {
	return Key{Exchange: exchange, Currency: currency}
}

func TestNewGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}

	if g.NodeCount() != 0 {
		t.Errorf("New graph should have 0 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 0 {
		t.Errorf("New graph should have 0 edges, got %d", g.EdgeCount())
	}
}

func TestAddNode(t *testing.T) {
	g := New()

	node := g.AddNode("Kraken", "USDT", 1.0)

	if g.NodeCount() != 1 {
		t.Errorf("Expected 1 node, got %d", g.NodeCount())
	}

	found, exists := g.GetNode("Kraken", "USDT")
	if !exists {
		t.Fatal("Node not found in graph")
	}
	if found != node {
		t.Error("GetNode returned a different node than AddNode")
	}
	if found.Price != 1.0 {
		t.Errorf("Expected price 1.0, got %f", found.Price)
	}
}

func TestAddNode_Idempotent(t *testing.T) {
	g := New()

	first := g.AddNode("Kraken", "USDT", 1.0)
	second := g.AddNode("Kraken", "USDT", 1.02)

	if g.NodeCount() != 1 {
		t.Errorf("Re-adding a node should not grow the graph, got %d nodes", g.NodeCount())
	}
	if first != second {
		t.Error("Re-adding a node should return the existing node")
	}
	if first.Price != 1.02 {
		t.Errorf("Expected price to be updated to 1.02, got %f", first.Price)
	}
}

func TestAddEdge(t *testing.T) {
	g := New()
	g.AddNode("Kraken", "USDT", 1.00)
	g.AddNode("Coinbase", "USDT", 1.01)

	edge, err := g.AddEdge(key("Kraken", "USDT"), key("Coinbase", "USDT"), 0.0005, 0.0001, 60)
	if err != nil {
		t.Fatalf("Failed to add edge: %v", err)
	}

	source, _ := g.GetNode("Kraken", "USDT")
	target, _ := g.GetNode("Coinbase", "USDT")

	if edge.Source != source.ID || edge.Target != target.ID {
		t.Errorf("Expected edge %d->%d, got %d->%d", source.ID, target.ID, edge.Source, edge.Target)
	}
	if len(source.Edges()) != 1 || source.Edges()[0] != edge {
		t.Error("Edge should be registered on its source node")
	}
	if len(target.Edges()) != 0 {
		t.Errorf("Target should have no outgoing edges, got %d", len(target.Edges()))
	}
	if g.EdgeCount() != 1 {
		t.Errorf("Expected 1 edge, got %d", g.EdgeCount())
	}
}

func TestAddEdge_UnknownNode(t *testing.T) {
	g := New()
	g.AddNode("Kraken", "USDT", 1.00)

	tests := []struct {
		name string
		src  Key
		dst  Key
	}{
		{"unknown target", key("Kraken", "USDT"), key("Binance", "USDT")},
		{"unknown source", key("Binance", "USDT"), key("Kraken", "USDT")},
		{"both unknown", key("A", "X"), key("B", "Y")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.AddEdge(tt.src, tt.dst, 0.001, 0, 0)
			if !errors.Is(err, ErrNodeNotFound) {
				t.Errorf("Expected ErrNodeNotFound, got %v", err)
			}
		})
	}

	if g.EdgeCount() != 0 {
		t.Errorf("Failed edge construction should not add edges, got %d", g.EdgeCount())
	}
}

func TestEdgeWeight(t *testing.T) {
	g := New()
	g.AddNode("Kraken", "USDT", 1.00)
	g.AddNode("Coinbase", "USDT", 1.01)

	edge, err := g.AddEdge(key("Kraken", "USDT"), key("Coinbase", "USDT"), 0.002, 0.0005, 60)
	if err != nil {
		t.Fatalf("Failed to add edge: %v", err)
	}

	if math.Abs(edge.Weight()-0.0025) > 1e-12 {
		t.Errorf("Expected weight 0.0025, got %f", edge.Weight())
	}

	edge.UpdateVolatilityCost(0.001)
	if math.Abs(edge.Weight()-(edge.Fee+edge.VolatilityCost)) > 1e-12 {
		t.Errorf("Weight should equal fee + volatility cost after update, got %f", edge.Weight())
	}
	if math.Abs(edge.Weight()-0.003) > 1e-12 {
		t.Errorf("Expected weight 0.003 after update, got %f", edge.Weight())
	}
}

func TestEdgesKeepInsertionOrder(t *testing.T) {
	g := New()
	g.AddNode("A", "USDT", 1)
	g.AddNode("B", "USDT", 1)
	g.AddNode("C", "USDT", 1)

	g.AddEdge(key("B", "USDT"), key("C", "USDT"), 0.3, 0, 0)
	g.AddEdge(key("A", "USDT"), key("B", "USDT"), 0.1, 0, 0)
	g.AddEdge(key("C", "USDT"), key("A", "USDT"), 0.2, 0, 0)

	edges := g.Edges()
	fees := []float64{0.3, 0.1, 0.2}
	for i, edge := range edges {
		if edge.Fee != fees[i] {
			t.Errorf("Edge %d: expected fee %f, got %f", i, fees[i], edge.Fee)
		}
		if int(edge.ID) != i {
			t.Errorf("Edge %d: expected ID %d, got %d", i, i, edge.ID)
		}
	}
}

func TestUpdatePrices(t *testing.T) {
	g := New()
	g.AddNode("Kraken", "USDT", 1.00)
	g.AddNode("Coinbase", "USDC", 0.99)

	g.UpdatePrices(map[Key]float64{
		key("Kraken", "USDT"):  1.005,
		key("Binance", "USDT"): 2.0, // stale, must be ignored
	})

	kraken, _ := g.GetNode("Kraken", "USDT")
	if kraken.Price != 1.005 {
		t.Errorf("Expected updated price 1.005, got %f", kraken.Price)
	}

	coinbase, _ := g.GetNode("Coinbase", "USDC")
	if coinbase.Price != 0.99 {
		t.Errorf("Untouched node price changed to %f", coinbase.Price)
	}

	if g.NodeCount() != 2 {
		t.Errorf("UpdatePrices should not add nodes, got %d", g.NodeCount())
	}
}

func TestEdgeBetween(t *testing.T) {
	g := New()
	a := g.AddNode("A", "USDT", 1)
	b := g.AddNode("B", "USDT", 1)
	c := g.AddNode("C", "USDT", 1)

	g.AddEdge(a.Key(), b.Key(), 0.1, 0, 0)
	g.AddEdge(a.Key(), b.Key(), 0.2, 0, 0)

	edge, ok := g.EdgeBetween(a.ID, b.ID)
	if !ok {
		t.Fatal("Expected edge A->B")
	}
	if edge.Fee != 0.1 {
		t.Errorf("Expected the first inserted edge (fee 0.1), got fee %f", edge.Fee)
	}

	if _, ok := g.EdgeBetween(a.ID, c.ID); ok {
		t.Error("Did not expect an edge A->C")
	}
	if _, ok := g.EdgeBetween(NodeID(99), a.ID); ok {
		t.Error("Did not expect an edge from an unknown node")
	}
}

func TestStats(t *testing.T) {
	g := New()
	g.AddNode("Kraken", "USDT", 1.00)
	g.AddNode("Kraken", "USDC", 0.98)
	g.AddNode("Coinbase", "USDT", 1.02)
	g.AddEdge(key("Kraken", "USDT"), key("Coinbase", "USDT"), 0.001, 0, 0)

	stats := g.Stats()

	if stats.Nodes != 3 || stats.Edges != 1 {
		t.Errorf("Expected 3 nodes and 1 edge, got %d and %d", stats.Nodes, stats.Edges)
	}
	if len(stats.Exchanges) != 2 || stats.Exchanges[0] != "Coinbase" || stats.Exchanges[1] != "Kraken" {
		t.Errorf("Expected sorted exchanges [Coinbase Kraken], got %v", stats.Exchanges)
	}
	if len(stats.Currencies) != 2 || stats.Currencies[0] != "USDC" || stats.Currencies[1] != "USDT" {
		t.Errorf("Expected sorted currencies [USDC USDT], got %v", stats.Currencies)
	}
	if math.Abs(stats.AvgPrice-1.0) > 1e-9 {
		t.Errorf("Expected average price 1.0, got %f", stats.AvgPrice)
	}

	empty := New().Stats()
	if empty.AvgPrice != 0 {
		t.Errorf("Empty graph should have average price 0, got %f", empty.AvgPrice)
	}
}

func TestIsFiatCurrency(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"USD", true},
		{"eur", true},
		{"USDT", false},
		{"DAI", false},
	}

	for _, tt := range tests {
		if got := IsFiatCurrency(tt.code); got != tt.want {
			t.Errorf("IsFiatCurrency(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
