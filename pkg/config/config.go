package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/arb-finder/pkg/pathfind"
	"github.com/ritzau/arb-finder/pkg/search"
)

// DefaultFile is the optional config file read from the working directory
const DefaultFile = "arb-finder.toml"

const envPrefix = "ARB_FINDER_"

// Config holds all configuration for the application
type Config struct {
	// Search
	Snapshot         string  `koanf:"snapshot"`
	Algorithm        string  `koanf:"algorithm"`
	MaxDepth         int     `koanf:"max_depth"`
	VolatilityFactor float64 `koanf:"volatility_factor"`
	Weight           float64 `koanf:"weight"`
	Pruning          string  `koanf:"pruning"`
	Profit           string  `koanf:"profit"`
	Workers          int     `koanf:"workers"`
	Prune            bool    `koanf:"prune"`

	// Scale VolatilityFactor by the volatility observed across runs
	AdaptiveVolatility bool `koanf:"adaptive_volatility"`

	// Volume
	MinAmount      float64 `koanf:"min_amount"`
	DefaultBalance float64 `koanf:"default_balance"`
	ProfitRate     float64 `koanf:"profit_rate"` // 0 derives the rate from each opportunity
	CostRate       float64 `koanf:"cost_rate"`

	// Runtime
	WebMode    bool   `koanf:"web"`
	Port       int    `koanf:"port"`
	Watch      bool   `koanf:"watch"`
	LogFile    string `koanf:"log_file"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
	JSONLogs   bool   `koanf:"json_logs"`
	Top        int    `koanf:"top"`

	// Synthetic snapshots
	Generate    string `koanf:"generate"`
	Exchanges   int    `koanf:"exchanges"`
	Currencies  int    `koanf:"currencies"`
	Seed        uint64 `koanf:"seed"`
	Adversarial bool   `koanf:"adversarial"`
}

// Defaults returns the values used when nothing else sets a key
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"snapshot":            "",
		"algorithm":           pathfind.LeastCost.String(),
		"max_depth":           10,
		"volatility_factor":   0.1,
		"weight":              1.5,
		"pruning":             "price_drop",
		"profit":              "spread",
		"workers":             1,
		"prune":               false,
		"adaptive_volatility": false,
		"min_amount":          100.0,
		"default_balance":     10000.0,
		"profit_rate":         0.0,
		"cost_rate":           0.001,
		"web":                 false,
		"port":                8080,
		"watch":               false,
		"log_file":            "",
		"verbosity":           "",
		"verbose":             0,
		"json_logs":           false,
		"top":                 10,
		"generate":            "",
		"exchanges":           4,
		"currencies":          3,
		"seed":                42,
		"adversarial":         false,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(f, DefaultFile)
}

// LoadFile is Load with an explicit config file path. A missing file is not
// an error; a malformed one is.
func LoadFile(f *pflag.FlagSet, path string) (*Config, error) {
	// .env only seeds the process environment, so real env vars still win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional)
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// 3. Environment variables, e.g. ARB_FINDER_MAX_DEPTH=6
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags; --max-depth maps to max_depth
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, interface{}) {
			return strings.ReplaceAll(fl.Name, "-", "_"), posflag.FlagVal(f, fl)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings no run could use
func (c *Config) Validate() error {
	if _, err := pathfind.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if _, err := pathfind.ParsePruning(c.Pruning); err != nil {
		return err
	}
	if _, err := pathfind.ParseProfit(c.Profit); err != nil {
		return err
	}
	if c.WebMode && c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Weight <= 1 {
		return fmt.Errorf("weight must be greater than 1, got %g", c.Weight)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// SearchOptions turns the search keys into orchestrator options
func (c *Config) SearchOptions() (search.Options, error) {
	alg, err := pathfind.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return search.Options{}, err
	}
	admissible, err := pathfind.ParsePruning(c.Pruning)
	if err != nil {
		return search.Options{}, err
	}
	profit, err := pathfind.ParseProfit(c.Profit)
	if err != nil {
		return search.Options{}, err
	}

	return search.Options{
		Options: pathfind.Options{
			Algorithm:        alg,
			MaxDepth:         c.MaxDepth,
			VolatilityFactor: c.VolatilityFactor,
			Weight:           c.Weight,
			Admissible:       admissible,
			Profit:           profit,
		},
		Workers: c.Workers,
		Prune:   c.Prune,
	}, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
