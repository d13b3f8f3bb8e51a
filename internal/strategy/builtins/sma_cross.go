// Package builtins provides the strategy implementations that ship with
// quantd.
package builtins

import (
	"context"

	"quantd/internal/domain"
	"quantd/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is a simple moving average crossover strategy. It emits a long
// signal when the short-period SMA crosses above the long-period SMA, and a
// short signal when it crosses below. Each symbol's history is tracked
// independently.
type SMACross struct {
	venue       string
	shortPeriod int
	longPeriod  int
	closes      map[string][]float64
	lastAbove   map[string]bool
	primed      map[string]bool
}

// NewSMACross creates an SMACross strategy with the given short and long
// moving average periods. Signals carry the venue identifier so the
// portfolio can route them.
func NewSMACross(venue string, short, long int) *SMACross {
	if short >= long {
		short = long - 1
	}
	return &SMACross{
		venue:       venue,
		shortPeriod: short,
		longPeriod:  long,
		closes:      make(map[string][]float64),
		lastAbove:   make(map[string]bool),
		primed:      make(map[string]bool),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init performs any setup required by the SMA crossover strategy.
func (s *SMACross) Init(_ context.Context) error {
	return nil
}

// OnBar appends the bar's close to the symbol's history and emits a signal
// when the short SMA crosses the long SMA. Null bars carry no price and are
// ignored.
func (s *SMACross) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	if bar.IsNull() {
		return nil, nil
	}

	history := append(s.closes[bar.Symbol], bar.Close)
	if len(history) > s.longPeriod {
		history = history[len(history)-s.longPeriod:]
	}
	s.closes[bar.Symbol] = history
	if len(history) < s.longPeriod {
		return nil, nil
	}

	above := sma(history, s.shortPeriod) > sma(history, s.longPeriod)
	if !s.primed[bar.Symbol] {
		// First full window establishes the baseline without signalling.
		s.primed[bar.Symbol] = true
		s.lastAbove[bar.Symbol] = above
		return nil, nil
	}
	if above == s.lastAbove[bar.Symbol] {
		return nil, nil
	}
	s.lastAbove[bar.Symbol] = above

	direction := domain.DirectionShort
	if above {
		direction = domain.DirectionLong
	}
	return []domain.Signal{{
		Strategy:   s.Name(),
		Venue:      s.venue,
		Symbol:     bar.Symbol,
		Direction:  direction,
		EntryPrice: bar.Close,
		EntryType:  domain.OrderTypeMarket,
		Timestamp:  bar.Timestamp,
	}}, nil
}

// sma averages the trailing n values of history.
func sma(history []float64, n int) float64 {
	var sum float64
	for _, v := range history[len(history)-n:] {
		sum += v
	}
	return sum / float64(n)
}
