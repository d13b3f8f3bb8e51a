package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantd/internal/domain"
)

// ParquetArchive exports minute-bar history to Parquet files on disk, one
// file per symbol and day. It is a write-mostly archival sink fed from the
// authoritative SQLite history; the engine never reads it on the hot path.
type ParquetArchive struct {
	Dir string
}

// NewParquetArchive creates an archive rooted at the given directory.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// barRecord is the Parquet schema for archived minute bars.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp"` // Unix seconds, minute aligned
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ArchiveBars writes bars to Parquet files grouped by symbol and UTC day.
// Existing files are merged by (symbol, timestamp), preferring new records,
// so re-archiving a repaired range replaces the old rows.
func (a *ParquetArchive) ArchiveBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		day    string // YYYY-MM-DD
	}
	groups := make(map[key][]barRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, day: time.Unix(b.Timestamp, 0).UTC().Format("2006-01-02")}
		groups[k] = append(groups[k], barRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := a.barPath(k.symbol, k.day)

		existing, _ := readParquetFile[barRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving bars for %s/%s: %w", k.symbol, k.day, err)
		}
	}
	return nil
}

// ReadDay returns the archived bars for one symbol and UTC day, ordered by
// timestamp. Missing files yield an empty slice.
func (a *ParquetArchive) ReadDay(_ context.Context, symbol, day string) ([]domain.Bar, error) {
	records, err := readParquetFile[barRecord](a.barPath(symbol, day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, domain.Bar{
			Symbol:    r.Symbol,
			Timestamp: r.Timestamp,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return bars, nil
}

// barPath returns the archive path for one symbol and day.
// Layout: <dir>/bars/<SYMBOL>/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) barPath(symbol, day string) string {
	return filepath.Join(a.Dir, "bars", strings.ToUpper(symbol), day+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []barRecord) []barRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
