package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/arb-finder/pkg/analysis"
	"github.com/ritzau/arb-finder/pkg/config"
	"github.com/ritzau/arb-finder/pkg/logging"
	"github.com/ritzau/arb-finder/pkg/metrics"
	"github.com/ritzau/arb-finder/pkg/output"
	"github.com/ritzau/arb-finder/pkg/pubsub"
	"github.com/ritzau/arb-finder/pkg/snapshot"
	"github.com/ritzau/arb-finder/pkg/watcher"
	"github.com/ritzau/arb-finder/pkg/web"
)

const (
	watchQuietPeriod = 500 * time.Millisecond
	watchMaxWait     = 5 * time.Second
	logMaxAgeDays    = 7
)

func main() {
	flags := newFlags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Logging must be configured before any component logger is created
	level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
	if cfg.LogFile != "" {
		sink := logging.SetFile(cfg.LogFile, logMaxAgeDays)
		defer sink.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, cfg); err != nil {
		logging.Error("arb-finder failed", "error", err)
		os.Exit(1)
	}
}

func newFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("arb-finder", pflag.ContinueOnError)
	d := config.Defaults()

	// Market
	f.StringP("snapshot", "s", "", "Market snapshot (TOML); a synthetic market is used when empty")
	f.Float64("default-balance", d["default_balance"].(float64), "Balance for nodes the snapshot gives none")

	// Search
	f.StringP("algorithm", "a", d["algorithm"].(string), "Search algorithm: least_cost, heuristic or weighted_heuristic")
	f.IntP("max-depth", "d", d["max_depth"].(int), "Maximum cycle length in edges")
	f.Float64("volatility-factor", d["volatility_factor"].(float64), "Weight of volatility cost in edge weights")
	f.Float64("weight", d["weight"].(float64), "Heuristic scale for weighted_heuristic; must exceed 1")
	f.String("pruning", d["pruning"].(string), "Path admissibility: price_drop or none")
	f.String("profit", d["profit"].(string), "Profit model: spread or reference")
	f.IntP("workers", "j", d["workers"].(int), "Concurrent root searches")
	f.Bool("prune", false, "Skip roots that cannot lie on any cycle")
	f.Bool("adaptive-volatility", false, "Derive the volatility factor from tracked prices")

	// Trade sizing
	f.Float64("min-amount", d["min_amount"].(float64), "Smallest balance worth trading")
	f.Float64("profit-rate", 0, "Fixed profit rate for sizing; 0 derives it per opportunity")
	f.Float64("cost-rate", d["cost_rate"].(float64), "Per-unit execution cost for sizing")

	// Output and serving
	f.IntP("top", "n", d["top"].(int), "Opportunities to print; 0 prints all")
	f.Bool("web", false, "Serve results over HTTP instead of exiting")
	f.IntP("port", "p", d["port"].(int), "Port for the web server")
	f.BoolP("watch", "w", false, "Re-run when the snapshot or config file changes")

	// Logging
	f.String("verbosity", "", "Log level: trace, debug, info, warn or error")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	f.Bool("json-logs", false, "Log as JSON")
	f.String("log-file", "", "Also write logs to a rotating file")

	// Synthetic markets
	f.String("generate", "", "Write a synthetic snapshot to this path and exit")
	f.Int("exchanges", d["exchanges"].(int), "Exchanges in a synthetic market")
	f.Int("currencies", d["currencies"].(int), "Currencies per exchange in a synthetic market")
	f.Uint64("seed", uint64(d["seed"].(int)), "Seed for synthetic markets")
	f.Bool("adversarial", false, "Generate a market with planted arbitrage cycles")

	f.String("config", config.DefaultFile, "Config file")
	return f
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(flags, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, flags *pflag.FlagSet, cfg *config.Config) error {
	if cfg.Generate != "" {
		if err := snapshot.Write(cfg.Generate, analysis.Synthesize(cfg)); err != nil {
			return err
		}
		logging.Info("wrote synthetic snapshot", "path", cfg.Generate,
			"exchanges", cfg.Exchanges, "currencies", cfg.Currencies, "seed", cfg.Seed)
		return nil
	}

	if !cfg.WebMode {
		runner := analysis.NewRunner(nil, nil)
		if err := analyzeAndPrint(ctx, runner, cfg); err != nil {
			return err
		}
		if !cfg.Watch {
			return nil
		}
		return watch(ctx, flags, cfg, func(ctx context.Context, cfg *config.Config) {
			if err := analyzeAndPrint(ctx, runner, cfg); err != nil {
				logging.Error("re-analysis failed", "error", err)
			}
		})
	}

	broker := pubsub.NewBroker()
	defer broker.Close()
	m := metrics.New()
	runner := analysis.NewRunner(broker, m)
	server := web.NewServer(runner, cfg, broker, m)

	// Serve right away; the first run streams its progress to subscribers
	go func() {
		if _, err := runner.Run(ctx, cfg); err != nil {
			logging.Error("analysis failed", "error", err)
		}
	}()

	if cfg.Watch {
		go func() {
			err := watch(ctx, flags, cfg, func(ctx context.Context, cfg *config.Config) {
				server.SetConfig(cfg)
				if _, err := runner.Run(ctx, cfg); err != nil {
					logging.Error("re-analysis failed", "error", err)
				}
			})
			if err != nil {
				logging.Error("watcher stopped", "error", err)
			}
		}()
	}

	return server.Start(ctx, cfg.Port)
}

func analyzeAndPrint(ctx context.Context, runner *analysis.Runner, cfg *config.Config) error {
	res, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	output.PrintOpportunityReport(os.Stdout, res, cfg.Top)
	return nil
}

// watch re-runs fn on every debounced change until ctx is canceled. A config
// change is reloaded first; an invalid config keeps the previous one.
func watch(ctx context.Context, flags *pflag.FlagSet, cfg *config.Config, fn func(context.Context, *config.Config)) error {
	configPath, err := flags.GetString("config")
	if err != nil {
		return err
	}
	files := map[string]watcher.ChangeType{cfg.Snapshot: watcher.ChangeTypeSnapshot}
	if _, err := os.Stat(configPath); err == nil {
		files[configPath] = watcher.ChangeTypeConfig
	}
	if cfg.Snapshot == "" && len(files) == 1 {
		logging.Warn("nothing to watch: no snapshot or config file")
	}

	fw, err := watcher.NewFileWatcher(files)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}
	debouncer := watcher.NewDebouncer(fw.Events(), watchQuietPeriod, watchMaxWait)
	debouncer.Start(ctx)

	watcher.Handle(ctx, debouncer.Output(), func(ctx context.Context, change *watcher.ChangeAnalysis) {
		logging.Info("change detected", "files", len(change.ChangedFiles), "reloadConfig", change.ReloadConfig)
		if change.ReloadConfig {
			next, err := loadConfig(flags)
			if err != nil {
				logging.Warn("keeping previous configuration", "error", err)
			} else {
				cfg = next
			}
		}
		fn(ctx, cfg)
	})
	return nil
}
