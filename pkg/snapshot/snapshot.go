// Package snapshot reads and writes market snapshots: the nodes, edges,
// balances and fee schedules a search runs against.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/json"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/arb-finder/pkg/graph"
	"github.com/ritzau/arb-finder/pkg/volume"
)

// ErrInvalidSnapshot is returned for snapshots that cannot be built
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Document is the on-disk form of a snapshot
type Document struct {
	Nodes        []Node                   `json:"nodes" koanf:"nodes" toml:"nodes"`
	Edges        []Edge                   `json:"edges" koanf:"edges" toml:"edges"`
	FeeSchedules map[string][]volume.Tier `json:"fee_schedules,omitempty" koanf:"fee_schedules" toml:"fee_schedules,omitempty"`
}

// Node is a priced currency on an exchange, optionally with a wallet balance
type Node struct {
	Exchange string   `json:"exchange" koanf:"exchange" toml:"exchange"`
	Currency string   `json:"currency" koanf:"currency" toml:"currency"`
	Price    float64  `json:"price" koanf:"price" toml:"price"`
	Balance  *float64 `json:"balance,omitempty" koanf:"balance" toml:"balance,omitempty"`
}

// Edge is a directed transfer between two nodes
type Edge struct {
	From           graph.Key `json:"from" koanf:"from" toml:"from"`
	To             graph.Key `json:"to" koanf:"to" toml:"to"`
	Fee            float64   `json:"fee" koanf:"fee" toml:"fee"`
	VolatilityCost float64   `json:"volatility_cost" koanf:"volatility_cost" toml:"volatility_cost"`
	TransferTime   float64   `json:"transfer_time" koanf:"transfer_time" toml:"transfer_time"`
}

// Load reads a snapshot file. The format is chosen by extension:
// .toml, .yaml, .yml or .json.
func Load(path string) (*Document, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = tomlparser.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("load %s: unsupported format %q: %w", path, filepath.Ext(path), ErrInvalidSnapshot)
	}

	// Exchange names may contain dots, so keys are split on a rune that
	// cannot appear in them.
	k := koanf.New("\x1f")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", path, ErrInvalidSnapshot, err)
	}
	return &doc, nil
}

// Build creates the graph and wallet described by doc. Nodes without a
// balance get defaultBalance.
func Build(doc *Document, defaultBalance float64) (*graph.Graph, *volume.Wallet, error) {
	g := graph.New()
	wallet := volume.NewWallet()

	seen := make(map[graph.Key]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		key := graph.Key{Exchange: n.Exchange, Currency: n.Currency}
		switch {
		case n.Exchange == "" || n.Currency == "":
			return nil, nil, fmt.Errorf("node %d: missing exchange or currency: %w", i, ErrInvalidSnapshot)
		case n.Price < 0:
			return nil, nil, fmt.Errorf("node %d %s: negative price %v: %w", i, key, n.Price, ErrInvalidSnapshot)
		case seen[key]:
			return nil, nil, fmt.Errorf("node %d %s: duplicate node: %w", i, key, ErrInvalidSnapshot)
		}
		seen[key] = true

		g.AddNode(n.Exchange, n.Currency, n.Price)
		balance := defaultBalance
		if n.Balance != nil {
			balance = *n.Balance
		}
		wallet.SetBalance(n.Exchange, n.Currency, balance)
	}

	for i, e := range doc.Edges {
		if e.Fee < 0 || e.VolatilityCost < 0 || e.TransferTime < 0 {
			return nil, nil, fmt.Errorf("edge %d %s -> %s: negative cost: %w", i, e.From, e.To, ErrInvalidSnapshot)
		}
		if _, err := g.AddEdge(e.From, e.To, e.Fee, e.VolatilityCost, e.TransferTime); err != nil {
			return nil, nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}

	for exchange, tiers := range doc.FeeSchedules {
		schedule, err := volume.NewFeeSchedule(tiers...)
		if err != nil {
			return nil, nil, fmt.Errorf("fee schedule %s: %w: %v", exchange, ErrInvalidSnapshot, err)
		}
		wallet.SetFeeSchedule(exchange, schedule)
	}

	return g, wallet, nil
}

// LoadGraph loads and builds a snapshot file
func LoadGraph(path string, defaultBalance float64) (*graph.Graph, *volume.Wallet, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, wallet, err := Build(doc, defaultBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", path, err)
	}
	return g, wallet, nil
}

// FromGraph converts a graph and its wallet back into a document. Balances
// and fee schedules are included only when wallet is non-nil.
func FromGraph(g *graph.Graph, wallet *volume.Wallet) *Document {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	doc := &Document{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, g.EdgeCount()),
	}
	for _, n := range nodes {
		node := Node{Exchange: n.Exchange, Currency: n.Currency, Price: n.Price}
		if wallet != nil && wallet.HasBalance(n.Key()) {
			balance := wallet.Balance(n.Exchange, n.Currency)
			node.Balance = &balance
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, Edge{
			From:           g.Node(e.Source).Key(),
			To:             g.Node(e.Target).Key(),
			Fee:            e.Fee,
			VolatilityCost: e.VolatilityCost,
			TransferTime:   e.TransferTime,
		})
	}

	if wallet != nil {
		if schedules := wallet.FeeSchedules(); len(schedules) > 0 {
			doc.FeeSchedules = make(map[string][]volume.Tier, len(schedules))
			for exchange, s := range schedules {
				doc.FeeSchedules[exchange] = s.Tiers()
			}
		}
	}
	return doc
}

// Write stores doc as TOML
func Write(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
