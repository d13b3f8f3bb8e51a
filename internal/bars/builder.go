// Package bars converts per-minute tick snapshots into OHLCV bars.
package bars

import (
	"sort"

	"quantd/internal/domain"
	"quantd/internal/metrics"
)

// TickSource is the read-only projection the builder samples once per
// minute. The feed synchronizer implements it.
type TickSource interface {
	// TradesBetween returns ticks with startTS <= timestamp < endTS.
	TradesBetween(startTS, endTS int64) []domain.Tick
}

// Builder emits exactly one bar per watched symbol per elapsed minute.
// Symbols with no observed ticks get a null bar, never a missing one:
// downstream consumers rely on an unbroken per-minute cadence.
type Builder struct {
	source  TickSource
	symbols []string
}

// NewBuilder creates a builder watching the given symbols.
func NewBuilder(source TickSource, symbols []string) *Builder {
	return &Builder{source: source, symbols: append([]string(nil), symbols...)}
}

// Build aggregates the minute starting at minuteStart (Unix seconds, minute
// aligned) into one bar per watched symbol, in configured symbol order.
func (b *Builder) Build(minuteStart int64) []domain.Bar {
	ticks := b.source.TradesBetween(minuteStart, minuteStart+60)

	// Ticks arrive in table order, which is insertion order; sort by
	// timestamp so open/close are the true first/last observations.
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Timestamp < ticks[j].Timestamp })

	bySymbol := make(map[string][]domain.Tick, len(b.symbols))
	for _, tk := range ticks {
		bySymbol[tk.Symbol] = append(bySymbol[tk.Symbol], tk)
	}

	out := make([]domain.Bar, 0, len(b.symbols))
	for _, sym := range b.symbols {
		bar := buildOne(sym, minuteStart, bySymbol[sym])
		metrics.BarsBuiltTotal.WithLabelValues(sym, boolLabel(bar.IsNull())).Inc()
		out = append(out, bar)
	}
	return out
}

// buildOne aggregates one symbol's ticks; an empty slice yields a null bar.
func buildOne(symbol string, minuteStart int64, ticks []domain.Tick) domain.Bar {
	bar := domain.Bar{Symbol: symbol, Timestamp: minuteStart}
	if len(ticks) == 0 {
		return bar
	}

	bar.Open = ticks[0].Price
	bar.Close = ticks[len(ticks)-1].Price
	bar.High = ticks[0].Price
	bar.Low = ticks[0].Price
	for _, tk := range ticks {
		if tk.Price > bar.High {
			bar.High = tk.Price
		}
		if tk.Price < bar.Low {
			bar.Low = tk.Price
		}
		bar.Volume += tk.Size
	}
	return bar
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
