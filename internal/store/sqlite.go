package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quantd/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ BarStore = (*SQLiteStore)(nil)
var _ PortfolioStore = (*SQLiteStore)(nil)

// SQLiteStore implements BarStore and PortfolioStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT NOT NULL,
	ts        INTEGER NOT NULL,
	open      REAL NOT NULL DEFAULT 0,
	high      REAL NOT NULL DEFAULT 0,
	low       REAL NOT NULL DEFAULT 0,
	close     REAL NOT NULL DEFAULT 0,
	volume    REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, ts)
);
CREATE TABLE IF NOT EXISTS portfolios (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// The engine has at most one writer per resource class; a single
	// connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// UpsertBars inserts bars, replacing existing rows with the same key.
func (s *SQLiteStore) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	return s.writeBars(ctx, bars, `INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
}

// InsertBars inserts bars, skipping rows that already exist.
func (s *SQLiteStore) InsertBars(ctx context.Context, bars []domain.Bar) error {
	return s.writeBars(ctx, bars, `INSERT OR IGNORE INTO bars (symbol, ts, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
}

func (s *SQLiteStore) writeBars(ctx context.Context, bars []domain.Bar, query string) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing bar %s@%d: %w", b.Symbol, b.Timestamp, err)
		}
	}
	return tx.Commit()
}

// UpdateBarFields overwrites the price and volume fields of an existing bar.
func (s *SQLiteStore) UpdateBarFields(ctx context.Context, b domain.Bar) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bars SET open = ?, high = ?, low = ?, close = ?, volume = ? WHERE symbol = ? AND ts = ?`,
		b.Open, b.High, b.Low, b.Close, b.Volume, b.Symbol, b.Timestamp)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no stored bar %s@%d to update", b.Symbol, b.Timestamp)
	}
	return nil
}

// BarsBetween returns bars in [startTS, endTS] ordered by timestamp.
func (s *SQLiteStore) BarsBetween(ctx context.Context, symbol string, startTS, endTS int64) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, ts, open, high, low, close, volume FROM bars
		 WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		symbol, startTS, endTS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Timestamps returns all stored timestamps for symbol, ascending.
func (s *SQLiteStore) Timestamps(ctx context.Context, symbol string) ([]int64, error) {
	return s.queryTimestamps(ctx, `SELECT ts FROM bars WHERE symbol = ? ORDER BY ts`, symbol)
}

// NullBarTimestamps returns timestamps of bars with all-zero OHLCV fields.
func (s *SQLiteStore) NullBarTimestamps(ctx context.Context, symbol string) ([]int64, error) {
	return s.queryTimestamps(ctx,
		`SELECT ts FROM bars WHERE symbol = ?
		 AND open = 0 AND high = 0 AND low = 0 AND close = 0 AND volume = 0 ORDER BY ts`,
		symbol)
}

func (s *SQLiteStore) queryTimestamps(ctx context.Context, query, symbol string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Bounds returns the oldest and newest stored timestamps, zero when empty.
func (s *SQLiteStore) Bounds(ctx context.Context, symbol string) (int64, int64, error) {
	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(ts), MAX(ts) FROM bars WHERE symbol = ?`, symbol).Scan(&oldest, &newest)
	if err != nil {
		return 0, 0, err
	}
	return oldest.Int64, newest.Int64, nil
}

// Count returns the number of stored bars for symbol.
func (s *SQLiteStore) Count(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bars WHERE symbol = ?`, symbol).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// SavePortfolio replaces the stored document for doc.ID.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, doc *domain.PortfolioDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshalling portfolio %s: %w", doc.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO portfolios (id, doc, updated_at) VALUES (?, ?, ?)`,
		doc.ID, string(data), time.Now().Unix())
	return err
}

// LoadPortfolio returns the stored document for id, or nil when absent.
func (s *SQLiteStore) LoadPortfolio(ctx context.Context, id string) (*domain.PortfolioDocument, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM portfolios WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc := &domain.PortfolioDocument{}
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, fmt.Errorf("unmarshalling portfolio %s: %w", id, err)
	}
	return doc, nil
}
