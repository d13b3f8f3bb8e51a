// Command quantd-backfill runs a one-shot integrity repair for every
// configured symbol and exports the repaired history to the Parquet archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quantd/internal/config"
	"quantd/internal/integrity"
	"quantd/internal/store"
	"quantd/internal/util"
	"quantd/internal/venue"
)

func main() {
	_ = godotenv.Load() // best-effort

	statusOnly := flag.Bool("status", false, "report data status without repairing")
	noArchive := flag.Bool("no-archive", false, "skip the Parquet export")
	flag.Parse()

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

	archive := store.NewParquetArchive(cfg.Storage.ArchiveDir)

	for _, symbol := range cfg.Feed.Symbols {
		report, err := engine.Status(ctx, symbol)
		if err != nil {
			log.Fatalf("status %s: %v", symbol, err)
		}
		fmt.Printf("%s: %d/%d bars, %d gaps, %d null bars\n",
			symbol, report.TotalStored, report.TotalNeeded, len(report.Gaps), len(report.NullBars))
		if *statusOnly {
			continue
		}

		if err := engine.Repair(ctx, symbol); err != nil {
			log.Fatalf("repair %s: %v", symbol, err)
		}
		report, err = engine.Status(ctx, symbol)
		if err != nil {
			log.Fatalf("status %s: %v", symbol, err)
		}
		fmt.Printf("%s: repaired, %d/%d bars complete=%v\n",
			symbol, report.TotalStored, report.TotalNeeded, report.Complete())

		if *noArchive || cfg.Storage.ArchiveDir == "" {
			continue
		}
		bars, err := st.BarsBetween(ctx, symbol, report.OriginTS, report.CurrentTS)
		if err != nil {
			log.Fatalf("reading bars %s: %v", symbol, err)
		}
		if err := archive.ArchiveBars(ctx, bars); err != nil {
			log.Fatalf("archiving %s: %v", symbol, err)
		}
		fmt.Printf("%s: archived %d bars to %s\n", symbol, len(bars), cfg.Storage.ArchiveDir)
	}
}
