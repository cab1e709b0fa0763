package exchange

import (
	"errors"
	"testing"

	"github.com/ritzau/arb-finder/pkg/graph"
)

func TestStaticConnector(t *testing.T) {
	c := NewStaticConnector("Kraken", 0.0005, 90)
	c.SetPrice("USDT", 1.0)

	var _ Connector = c

	price, err := c.Price("USDT")
	if err != nil || price != 1.0 {
		t.Errorf("Expected price 1.0, got %f (%v)", price, err)
	}

	if _, err := c.Price("DAI"); !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("Expected ErrUnknownCurrency, got %v", err)
	}

	fee, _ := c.Fee(graph.Key{}, graph.Key{}, 100)
	if fee != 0.0005 {
		t.Errorf("Expected fee 0.0005, got %f", fee)
	}
	seconds, _ := c.TransferTime(graph.Key{}, graph.Key{})
	if seconds != 90 {
		t.Errorf("Expected transfer time 90, got %f", seconds)
	}
}

func TestBuildGraph(t *testing.T) {
	kraken := NewStaticConnector("Kraken", 0.0005, 60)
	kraken.SetPrice("USDT", 1.00)
	kraken.SetPrice("USDC", 0.99)
	coinbase := NewStaticConnector("Coinbase", 0.001, 120)
	coinbase.SetPrice("USDT", 1.01)

	g, err := BuildGraph(kraken, coinbase)
	if err != nil {
		t.Fatalf("BuildGraph failed: %v", err)
	}

	if g.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 6 {
		t.Errorf("Expected 6 edges in a complete graph of 3 nodes, got %d", g.EdgeCount())
	}

	src, _ := g.GetNode("Coinbase", "USDT")
	dst, _ := g.GetNode("Kraken", "USDT")
	edge, ok := g.EdgeBetween(src.ID, dst.ID)
	if !ok {
		t.Fatal("Expected edge Coinbase(USDT) -> Kraken(USDT)")
	}
	if edge.Fee != 0.001 || edge.TransferTime != 120 {
		t.Errorf("Edge should use the source exchange's fee and time, got fee %f time %f", edge.Fee, edge.TransferTime)
	}
}
