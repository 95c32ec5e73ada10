// Command lobtest generates a synthetic order feed, stores it, and backtests
// the imbalance strategy against it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	match "github.com/0x5487/lob-backtest"
	"github.com/0x5487/lob-backtest/backtest"
	"github.com/0x5487/lob-backtest/feed"
	"github.com/0x5487/lob-backtest/metrics"
	"github.com/0x5487/lob-backtest/strategy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type config struct {
	dataDir     string
	events      int
	seed        int64
	threshold   string
	minQty      int64
	depth       uint
	logLevel    string
	metricsAddr string
	serve       bool
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.dataDir, "data", env("LOB_DATA_DIR", "data/feed"), "feed store directory")
	flag.IntVar(&cfg.events, "events", int(envInt("LOB_EVENTS", 1000)), "draws to generate when the store is empty")
	flag.Int64Var(&cfg.seed, "seed", envInt("LOB_SEED", 1), "generator seed")
	flag.StringVar(&cfg.threshold, "threshold", env("LOB_THRESHOLD", "0.3"), "imbalance threshold")
	flag.Int64Var(&cfg.minQty, "min-qty", envInt("LOB_MIN_QTY", 5), "strategy order quantity")
	flag.UintVar(&cfg.depth, "depth", uint(envInt("LOB_DEPTH", 5)), "levels per side to log after the run")
	flag.StringVar(&cfg.logLevel, "log-level", env("LOB_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", env("LOB_METRICS_ADDR", ""), "serve Prometheus metrics on this address")
	flag.BoolVar(&cfg.serve, "serve", false, "keep serving metrics after the run until interrupted")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", cfg.logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	match.SetLogger(logger.With("component", "match"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("lobtest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	threshold, err := decimal.NewFromString(cfg.threshold)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", cfg.threshold, err)
	}

	store, err := feed.OpenStore(cfg.dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.Len() == 0 {
		gen := feed.NewGenerator(feed.GeneratorConfig{
			EventCount: cfg.events,
			Seed:       cfg.seed,
			Logger:     logger,
		})
		events, err := gen.GenerateAll(ctx)
		if err != nil {
			return err
		}
		if err := store.Append(events...); err != nil {
			return err
		}
	} else {
		logger.Info("replaying stored feed", "dir", cfg.dataDir, "events", store.Len())
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.metricsAddr)
	}

	depth := match.NewAggregatedBook()
	bt := backtest.New(
		strategy.NewImbalance(strategy.ImbalanceConfig{Threshold: threshold, MinQty: cfg.minQty}),
		backtest.WithLogger(logger),
		backtest.WithPublishLog(match.NewMultiPublishLog(collector, depth)),
	)

	report, err := bt.Run(ctx, store)
	if err != nil {
		return err
	}

	for _, side := range []match.Side{match.Buy, match.Sell} {
		for _, lvl := range depth.Levels(side, uint32(cfg.depth)) {
			logger.Info("depth", "side", side, "price", lvl.Price, "quantity", lvl.Quantity, "orders", lvl.Count)
		}
	}
	logger.Info("report",
		"run_id", report.RunID.String(),
		"total_fills", report.TotalFills,
		"net_pnl", report.NetPnL.StringFixed(2),
		"final_inventory", report.FinalInventory,
		"win_rate", report.WinRate.StringFixed(2),
	)

	if srv == nil {
		return nil
	}
	if cfg.serve {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
