package strategy

import (
	"context"
	"fmt"

	"quantd/internal/domain"
	"quantd/internal/store"
)

// ReplayResult summarizes a historical replay of one strategy.
type ReplayResult struct {
	Bars    int
	Signals []domain.Signal
}

// Replayer feeds stored historical bars through a strategy and collects the
// signals it would have raised. It is a dry run; no orders are produced.
type Replayer struct {
	store    store.BarStore
	registry *Registry
}

// NewReplayer creates a Replayer that reads bars from the given store and
// looks up strategies in the provided registry.
func NewReplayer(barStore store.BarStore, registry *Registry) *Replayer {
	return &Replayer{
		store:    barStore,
		registry: registry,
	}
}

// Run replays the stored bars for symbol in [startTS, endTS] through the
// named strategy, in timestamp order.
func (r *Replayer) Run(ctx context.Context, name, symbol string, startTS, endTS int64) (*ReplayResult, error) {
	s, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", name, err)
	}

	bars, err := r.store.BarsBetween(ctx, symbol, startTS, endTS)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}

	result := &ReplayResult{Bars: len(bars)}
	for _, bar := range bars {
		signals, err := s.OnBar(ctx, bar)
		if err != nil {
			return nil, fmt.Errorf("replaying bar %s@%d: %w", bar.Symbol, bar.Timestamp, err)
		}
		result.Signals = append(result.Signals, signals...)
	}
	return result, nil
}
