// Package venue defines the capability interface for historical market data
// and a generic HTTP client implementing it. Venue variants are selected at
// construction; there are no venue-specific types outside this package.
package venue

import (
	"context"

	"quantd/internal/domain"
)

// MarketDataSource answers bounded historical bar requests. Implementations
// must honour MaxBarsPerRequest as the upper bound on count.
type MarketDataSource interface {
	// GetBarsInPeriod returns up to count minute bars for symbol starting at
	// startTS (inclusive, minute aligned), ordered by timestamp.
	GetBarsInPeriod(ctx context.Context, symbol string, startTS int64, count int) ([]domain.Bar, error)

	// Origin returns the first timestamp ever available upstream for symbol.
	Origin(ctx context.Context, symbol string) (int64, error)

	// MaxBarsPerRequest returns the venue's per-call bar limit.
	MaxBarsPerRequest() int
}
