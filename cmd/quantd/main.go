// Command quantd runs the live trading engine: the streaming feed, the
// minute scheduler, the integrity repairs, and the operational API.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quantd/internal/bars"
	"quantd/internal/broker"
	"quantd/internal/bus"
	"quantd/internal/config"
	"quantd/internal/feed"
	"quantd/internal/httpapi"
	"quantd/internal/integrity"
	"quantd/internal/metrics"
	"quantd/internal/portfolio"
	"quantd/internal/scheduler"
	"quantd/internal/store"
	"quantd/internal/strategy"
	"quantd/internal/strategy/builtins"
	"quantd/internal/util"
	"quantd/internal/venue"
)

func main() {
	_ = godotenv.Load() // best-effort

	cfgPath := "config/quantd.yaml"
	if p := os.Getenv("QUANTD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	sync := feed.NewSynchronizer(cfg.Feed.TableSize)
	feedClient := feed.NewClient(cfg.Venue.StreamURL, cfg.Feed.Channels, cfg.Feed.Symbols, sync)

	source := venue.NewHTTPSource(cfg.Venue.RestURL, cfg.Venue.APIKey, cfg.Integrity.MaxBinSize)
	engine := integrity.NewEngine(integrity.Config{
		Exchange:   cfg.Venue.Exchange,
		MaxBinSize: cfg.Integrity.MaxBinSize,
		RetryPolicy: util.RetryPolicy{
			MaxAttempts: cfg.Integrity.MaxRetries,
			BaseDelay:   time.Duration(cfg.Integrity.BaseDelayMS) * time.Millisecond,
			Backoff:     cfg.Integrity.BackoffCoeff,
		},
		RateLimitPerMin: cfg.Integrity.RateLimitPerMin,
	}, st, source)

	risk := &portfolio.FixedFractionPolicy{
		AccountSize:     cfg.Portfolio.AccountSize,
		RiskPerTradePct: cfg.Portfolio.RiskPerTradePct,
		DefaultStopPct:  cfg.Portfolio.DefaultStopPct,
		Split:           cfg.Portfolio.TakeProfitSplit,
	}
	pf, err := portfolio.Load(ctx, st, cfg.Portfolio.ID, risk)
	if err != nil {
		log.Fatalf("loading portfolio: %v", err)
	}

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewSMACross(cfg.Venue.Exchange, 20, 50))
	for _, s := range registry.All() {
		if err := s.Init(ctx); err != nil {
			log.Fatalf("initializing strategy %s: %v", s.Name(), err)
		}
	}

	exec, err := broker.FromKind(cfg.Broker.Kind, cfg.Venue.RestURL, cfg.Venue.APIKey)
	if err != nil {
		log.Fatalf("selecting broker: %v", err)
	}

	queue := bus.NewQueue(cfg.Scheduler.QueueCapacity)
	sched := scheduler.New(scheduler.Config{
		Symbols:         cfg.Feed.Symbols,
		IntegrityEveryN: cfg.Scheduler.IntegrityEveryN,
	}, queue, bars.NewBuilder(sync, cfg.Feed.Symbols), registry, pf,
		exec, st, engine)

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
	}

	// Supervisor: each long-lived goroutine reports here; the first failure
	// or signal stops everything.
	errc := make(chan error, 3)
	go func() { errc <- feedClient.Run(ctx) }()
	go func() { errc <- sched.Run(ctx) }()
	if cfg.API.Addr != "" {
		api := httpapi.NewServer(cfg.Feed.Symbols, engine, pf, sync)
		go func() { errc <- api.ListenAndServe(ctx, cfg.API.Addr) }()
	}

	slog.Info("quantd started",
		"exchange", cfg.Venue.Exchange, "symbols", cfg.Feed.Symbols, "portfolio", cfg.Portfolio.ID)

	err = <-errc
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("engine stopped: %v", err)
	}
	slog.Info("quantd stopped")
}
