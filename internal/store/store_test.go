package store

import (
	"context"
	"path/filepath"
	"testing"

	"quantd/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func minuteBars(symbol string, startTS int64, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: startTS + int64(i)*60,
			Open:      c - 1,
			High:      c + 1,
			Low:       c - 2,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func TestSQLiteUpsertAndRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bars := minuteBars("XBTUSD", 1700000040, 100, 101, 102)
	if err := s.UpsertBars(ctx, bars); err != nil {
		t.Fatalf("UpsertBars: %v", err)
	}

	got, err := s.BarsBetween(ctx, "XBTUSD", 1700000040, 1700000160)
	if err != nil {
		t.Fatalf("BarsBetween: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("BarsBetween returned %d bars, want 3", len(got))
	}
	if got[1].Close != 101 {
		t.Errorf("second bar Close = %v, want 101", got[1].Close)
	}

	// Upsert replaces in place; count stays constant.
	bars[0].Close = 200
	if err := s.UpsertBars(ctx, bars[:1]); err != nil {
		t.Fatalf("UpsertBars (replace): %v", err)
	}
	n, err := s.Count(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count after replace = %d, want 3", n)
	}
	got, _ = s.BarsBetween(ctx, "XBTUSD", 1700000040, 1700000040)
	if got[0].Close != 200 {
		t.Errorf("replaced bar Close = %v, want 200", got[0].Close)
	}
}

func TestSQLiteInsertIgnoresCollisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bars := minuteBars("XBTUSD", 1700000040, 100)
	if err := s.UpsertBars(ctx, bars); err != nil {
		t.Fatalf("UpsertBars: %v", err)
	}

	// Gap backfill re-inserting an existing minute must not overwrite it.
	dup := bars
	dup[0].Close = 999
	if err := s.InsertBars(ctx, dup); err != nil {
		t.Fatalf("InsertBars: %v", err)
	}
	got, _ := s.BarsBetween(ctx, "XBTUSD", 1700000040, 1700000040)
	if got[0].Close != 100 {
		t.Errorf("InsertBars overwrote existing bar: Close = %v, want 100", got[0].Close)
	}
}

func TestSQLiteNullBarQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "XBTUSD", Timestamp: 1700000040, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Symbol: "XBTUSD", Timestamp: 1700000100}, // null
		{Symbol: "XBTUSD", Timestamp: 1700000160, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 20},
		{Symbol: "XBTUSD", Timestamp: 1700000220}, // null
	}
	if err := s.UpsertBars(ctx, bars); err != nil {
		t.Fatalf("UpsertBars: %v", err)
	}

	nulls, err := s.NullBarTimestamps(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("NullBarTimestamps: %v", err)
	}
	if len(nulls) != 2 || nulls[0] != 1700000100 || nulls[1] != 1700000220 {
		t.Fatalf("NullBarTimestamps = %v, want [1700000100 1700000220]", nulls)
	}

	// Repairing the null bar updates fields in place, preserving identity.
	repaired := domain.Bar{Symbol: "XBTUSD", Timestamp: 1700000100, Open: 1.5, High: 1.8, Low: 1.4, Close: 1.6, Volume: 5}
	if err := s.UpdateBarFields(ctx, repaired); err != nil {
		t.Fatalf("UpdateBarFields: %v", err)
	}
	nulls, _ = s.NullBarTimestamps(ctx, "XBTUSD")
	if len(nulls) != 1 {
		t.Errorf("after repair NullBarTimestamps = %v, want one entry", nulls)
	}
	n, _ := s.Count(ctx, "XBTUSD")
	if n != 4 {
		t.Errorf("Count after repair = %d, want 4", n)
	}
}

func TestSQLiteUpdateBarFieldsUnknownKey(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateBarFields(context.Background(), domain.Bar{Symbol: "XBTUSD", Timestamp: 1, Close: 1})
	if err == nil {
		t.Fatal("UpdateBarFields on absent key should error")
	}
}

func TestSQLiteBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	oldest, newest, err := s.Bounds(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("Bounds (empty): %v", err)
	}
	if oldest != 0 || newest != 0 {
		t.Errorf("Bounds on empty store = (%d, %d), want (0, 0)", oldest, newest)
	}

	if err := s.UpsertBars(ctx, minuteBars("XBTUSD", 1700000040, 100, 101, 102)); err != nil {
		t.Fatalf("UpsertBars: %v", err)
	}
	oldest, newest, err = s.Bounds(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if oldest != 1700000040 || newest != 1700000160 {
		t.Errorf("Bounds = (%d, %d), want (1700000040, 1700000160)", oldest, newest)
	}
}

func TestSQLitePortfolioRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Absent document loads as nil.
	doc, err := s.LoadPortfolio(ctx, "main")
	if err != nil {
		t.Fatalf("LoadPortfolio (absent): %v", err)
	}
	if doc != nil {
		t.Fatal("LoadPortfolio on empty store should return nil")
	}

	doc = domain.NewPortfolioDocument("main")
	doc.NextTradeID = 3
	doc.Trades[1] = &domain.Trade{
		ID: 1, Direction: domain.DirectionLong, Symbol: "XBTUSD", Active: true,
		Orders: map[string]*domain.Order{
			"1-1": {ID: "1-1", TradeID: 1, Metatype: domain.MetatypeEntry, Status: domain.OrderStatusFilled},
		},
		Position: &domain.Position{TradeID: 1, Direction: domain.DirectionLong, Size: 100, EntryPrice: 50000},
	}
	if err := s.SavePortfolio(ctx, doc); err != nil {
		t.Fatalf("SavePortfolio: %v", err)
	}

	loaded, err := s.LoadPortfolio(ctx, "main")
	if err != nil {
		t.Fatalf("LoadPortfolio: %v", err)
	}
	if loaded.NextTradeID != 3 {
		t.Errorf("NextTradeID = %d, want 3", loaded.NextTradeID)
	}
	tr := loaded.Trades[1]
	if tr == nil || !tr.Active || tr.Position == nil || tr.Position.Size != 100 {
		t.Fatalf("round-tripped trade mismatch: %+v", tr)
	}

	// Replace-on-write: saving again overwrites the whole document.
	doc.Trades[1].Active = false
	if err := s.SavePortfolio(ctx, doc); err != nil {
		t.Fatalf("SavePortfolio (second): %v", err)
	}
	loaded, _ = s.LoadPortfolio(ctx, "main")
	if loaded.Trades[1].Active {
		t.Error("second save did not replace document")
	}
}

func TestParquetArchiveRoundTrip(t *testing.T) {
	a := NewParquetArchive(t.TempDir())
	ctx := context.Background()

	bars := minuteBars("XBTUSD", 1700000040, 100, 101)
	if err := a.ArchiveBars(ctx, bars); err != nil {
		t.Fatalf("ArchiveBars: %v", err)
	}

	day := "2023-11-14" // UTC day of 1700000040
	got, err := a.ReadDay(ctx, "XBTUSD", day)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadDay returned %d bars, want 2", len(got))
	}

	// Re-archiving a repaired minute replaces the old row.
	bars[0].Close = 150
	if err := a.ArchiveBars(ctx, bars[:1]); err != nil {
		t.Fatalf("ArchiveBars (repair): %v", err)
	}
	got, _ = a.ReadDay(ctx, "XBTUSD", day)
	if len(got) != 2 {
		t.Fatalf("ReadDay after merge returned %d bars, want 2", len(got))
	}
	if got[0].Close != 150 {
		t.Errorf("merged bar Close = %v, want 150", got[0].Close)
	}
}
