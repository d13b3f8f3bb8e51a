// Package store defines storage interfaces for persisted bar history and the
// portfolio document, and provides SQLite and Parquet-backed implementations.
package store

import (
	"context"

	"quantd/internal/domain"
)

// BarStore persists and retrieves minute OHLCV bars. A bar is uniquely
// identified by (symbol, timestamp); all writes are atomic single-key
// upserts or replaces, so the store needs no external locking.
type BarStore interface {
	// UpsertBars inserts bars, replacing any existing bar with the same
	// (symbol, timestamp).
	UpsertBars(ctx context.Context, bars []domain.Bar) error

	// InsertBars inserts bars, silently skipping (symbol, timestamp)
	// collisions. Used by gap backfill, where duplicates are idempotent.
	InsertBars(ctx context.Context, bars []domain.Bar) error

	// UpdateBarFields overwrites only the price and volume fields of the
	// stored bar identified by (bar.Symbol, bar.Timestamp). Used by null-bar
	// repair, which must preserve record identity.
	UpdateBarFields(ctx context.Context, bar domain.Bar) error

	// BarsBetween returns bars for symbol with startTS <= timestamp <= endTS,
	// ordered by timestamp ascending.
	BarsBetween(ctx context.Context, symbol string, startTS, endTS int64) ([]domain.Bar, error)

	// Timestamps returns all stored bar timestamps for symbol, ascending.
	Timestamps(ctx context.Context, symbol string) ([]int64, error)

	// NullBarTimestamps returns the timestamps of stored bars whose OHLC
	// fields are all zero and whose volume is zero, ascending.
	NullBarTimestamps(ctx context.Context, symbol string) ([]int64, error)

	// Bounds returns the oldest and newest stored timestamps for symbol.
	// Both are zero when no bars are stored.
	Bounds(ctx context.Context, symbol string) (oldest, newest int64, err error)

	// Count returns the number of stored bars for symbol.
	Count(ctx context.Context, symbol string) (int, error)
}

// PortfolioStore persists the portfolio document, one document per portfolio
// id, replaced whole on every write.
type PortfolioStore interface {
	// SavePortfolio replaces the stored document for doc.ID.
	SavePortfolio(ctx context.Context, doc *domain.PortfolioDocument) error

	// LoadPortfolio returns the stored document for id, or nil when none
	// has been persisted yet.
	LoadPortfolio(ctx context.Context, id string) (*domain.PortfolioDocument, error)
}
