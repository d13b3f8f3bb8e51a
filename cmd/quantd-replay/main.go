// Command quantd-replay runs a strategy dry-run over stored history and
// prints the signals it would have raised.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"quantd/internal/config"
	"quantd/internal/store"
	"quantd/internal/strategy"
	"quantd/internal/strategy/builtins"
	"quantd/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	name := flag.String("strategy", "sma-cross", "strategy to replay")
	symbol := flag.String("symbol", "", "symbol to replay (required)")
	start := flag.Int64("start", 0, "start timestamp, unix seconds")
	end := flag.Int64("end", 0, "end timestamp, unix seconds")
	flag.Parse()
	if *symbol == "" || *end <= *start {
		flag.Usage()
		os.Exit(2)
	}

	cfgPath := "config/quantd.yaml"
	if p := os.Getenv("QUANTD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewSMACross(cfg.Venue.Exchange, 20, 50))

	result, err := strategy.NewReplayer(st, registry).Run(context.Background(), *name, *symbol, *start, *end)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	fmt.Printf("%s over %d bars of %s: %d signals\n", *name, result.Bars, *symbol, len(result.Signals))
	for _, sig := range result.Signals {
		fmt.Printf("  %d %s %s entry=%.2f\n", sig.Timestamp, sig.Direction, sig.Symbol, sig.EntryPrice)
	}
}
