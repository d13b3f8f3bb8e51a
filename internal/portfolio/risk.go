package portfolio

import "quantd/internal/domain"

// RiskPolicy fills in the parts of a signal the strategy left open: the
// protective stop, the position size, and the take-profit ladder.
type RiskPolicy interface {
	// StopPrice returns the protective stop for the signal. A non-zero
	// sig.StopPrice is honored as-is.
	StopPrice(sig domain.Signal) float64

	// PositionSize returns the position size for the signal given its stop.
	// A non-positive return rejects the signal.
	PositionSize(sig domain.Signal, stopPrice float64) float64

	// TakeProfits returns the partial-exit ladder. Non-empty
	// sig.TakeProfits is honored as-is.
	TakeProfits(sig domain.Signal, stopPrice float64) []domain.TakeProfit
}

// Compile-time interface check.
var _ RiskPolicy = (*FixedFractionPolicy)(nil)

// FixedFractionPolicy risks a fixed fraction of the account per trade. The
// default stop sits a fixed percentage away from entry, and take-profit
// targets are laddered at whole multiples of the stop distance.
type FixedFractionPolicy struct {
	AccountSize     float64
	RiskPerTradePct float64
	DefaultStopPct  float64
	Split           []float64
}

func (p *FixedFractionPolicy) StopPrice(sig domain.Signal) float64 {
	if sig.StopPrice > 0 {
		return sig.StopPrice
	}
	if sig.Direction == domain.DirectionLong {
		return sig.EntryPrice * (1 - p.DefaultStopPct)
	}
	return sig.EntryPrice * (1 + p.DefaultStopPct)
}

func (p *FixedFractionPolicy) PositionSize(sig domain.Signal, stopPrice float64) float64 {
	distance := sig.EntryPrice - stopPrice
	if distance < 0 {
		distance = -distance
	}
	if distance == 0 {
		return 0
	}
	return p.AccountSize * p.RiskPerTradePct / distance
}

func (p *FixedFractionPolicy) TakeProfits(sig domain.Signal, stopPrice float64) []domain.TakeProfit {
	if len(sig.TakeProfits) > 0 {
		return sig.TakeProfits
	}
	distance := sig.EntryPrice - stopPrice
	if distance < 0 {
		distance = -distance
	}
	if sig.Direction == domain.DirectionShort {
		distance = -distance
	}
	targets := make([]domain.TakeProfit, len(p.Split))
	for i, weight := range p.Split {
		targets[i] = domain.TakeProfit{
			Price:  sig.EntryPrice + float64(i+1)*distance,
			Weight: weight,
		}
	}
	return targets
}
