// Package exchange defines what the graph builder needs from an exchange.
// REST clients for real venues implement Connector outside this module.
package exchange

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ritzau/arb-finder/pkg/graph"
)

// ErrUnknownCurrency is returned for a currency the exchange does not list
var ErrUnknownCurrency = errors.New("unknown currency")

// Connector is the capability set of a single exchange
type Connector interface {
	Name() string
	Price(currency string) (float64, error)
	AllPrices() (map[string]float64, error)
	// Fee returns the fee rate for moving amount from src to dst
	Fee(src, dst graph.Key, amount float64) (float64, error)
	// TransferTime returns the expected transfer time in seconds
	TransferTime(src, dst graph.Key) (float64, error)
}

// StaticConnector serves fixed prices and a flat fee. It backs offline price
// feeds and tests.
type StaticConnector struct {
	mu           sync.RWMutex
	name         string
	prices       map[string]float64
	fee          float64
	transferTime float64
}

// NewStaticConnector creates a connector for exchange name
func NewStaticConnector(name string, fee, transferTime float64) *StaticConnector {
	return &StaticConnector{
		name:         name,
		prices:       make(map[string]float64),
		fee:          fee,
		transferTime: transferTime,
	}
}

// SetPrice sets the quoted price of a currency
func (c *StaticConnector) SetPrice(currency string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[currency] = price
}

func (c *StaticConnector) Name() string {
	return c.name
}

func (c *StaticConnector) Price(currency string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[currency]
	if !ok {
		return 0, fmt.Errorf("%s price %s: %w", c.name, currency, ErrUnknownCurrency)
	}
	return price, nil
}

func (c *StaticConnector) AllPrices() (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for cur, p := range c.prices {
		out[cur] = p
	}
	return out, nil
}

func (c *StaticConnector) Fee(_, _ graph.Key, _ float64) (float64, error) {
	return c.fee, nil
}

func (c *StaticConnector) TransferTime(_, _ graph.Key) (float64, error) {
	return c.transferTime, nil
}

// Quotes collects every price of every connector, keyed by node
func Quotes(connectors ...Connector) (map[graph.Key]float64, error) {
	quotes := make(map[graph.Key]float64)
	for _, c := range connectors {
		prices, err := c.AllPrices()
		if err != nil {
			return nil, fmt.Errorf("prices from %s: %w", c.Name(), err)
		}
		for cur, p := range prices {
			quotes[graph.Key{Exchange: c.Name(), Currency: cur}] = p
		}
	}
	return quotes, nil
}

// BuildGraph adds a node for every quoted price of every connector, then an
// edge between every ordered pair of distinct nodes. The fee and transfer
// time of an edge come from the source exchange's connector.
func BuildGraph(connectors ...Connector) (*graph.Graph, error) {
	g := graph.New()
	owner := make(map[string]Connector, len(connectors))

	for _, c := range connectors {
		owner[c.Name()] = c
		prices, err := c.AllPrices()
		if err != nil {
			return nil, fmt.Errorf("prices from %s: %w", c.Name(), err)
		}
		currencies := make([]string, 0, len(prices))
		for cur := range prices {
			currencies = append(currencies, cur)
		}
		sort.Strings(currencies)
		for _, cur := range currencies {
			g.AddNode(c.Name(), cur, prices[cur])
		}
	}

	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, src := range nodes {
		c := owner[src.Exchange]
		for _, dst := range nodes {
			if src.ID == dst.ID {
				continue
			}
			fee, err := c.Fee(src.Key(), dst.Key(), 0)
			if err != nil {
				return nil, fmt.Errorf("fee %s -> %s: %w", src.Key(), dst.Key(), err)
			}
			seconds, err := c.TransferTime(src.Key(), dst.Key())
			if err != nil {
				return nil, fmt.Errorf("transfer time %s -> %s: %w", src.Key(), dst.Key(), err)
			}
			if _, err := g.AddEdge(src.Key(), dst.Key(), fee, 0, seconds); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
