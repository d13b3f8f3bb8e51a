package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quantd/internal/domain"
	"quantd/internal/metrics"
	"quantd/internal/store"
	"quantd/internal/util"
	"quantd/internal/venue"
)

// ErrPollingTimeout reports that a chunk exhausted its retry bound. It is
// fatal for the surrounding backfill call; chunks persisted before it stay
// persisted.
var ErrPollingTimeout = errors.New("polling timeout")

// ViolationError reports that a historical response does not cover the exact
// timestamp set that was requested, meaning the upstream source disagrees
// with the local gap model. It is never silently accepted.
type ViolationError struct {
	Symbol   string
	Expected int
	Got      int
	Missing  []int64
	Extra    []int64
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("integrity violation for %s: requested %d timestamps, got %d (missing %d, extra %d)",
		e.Symbol, e.Expected, e.Got, len(e.Missing), len(e.Extra))
}

// Engine detects and repairs missing or corrupted bar history for one
// exchange. It owns no live state; it reads and writes persisted history
// only, so it can run off the scheduler's critical path.
type Engine struct {
	exchange string
	bars     store.BarStore
	source   venue.MarketDataSource
	maxBin   int
	retry    util.RetryPolicy
	limiter  *util.RateLimiter
	now      func() time.Time
	log      *slog.Logger
}

// Config carries the engine's tunables.
type Config struct {
	Exchange        string
	MaxBinSize      int
	RetryPolicy     util.RetryPolicy
	RateLimitPerMin int
}

// NewEngine creates an integrity engine over the given store and source.
func NewEngine(cfg Config, bars store.BarStore, source venue.MarketDataSource) *Engine {
	maxBin := cfg.MaxBinSize
	if maxBin <= 0 || maxBin > source.MaxBarsPerRequest() {
		maxBin = source.MaxBarsPerRequest()
	}
	rl := cfg.RateLimitPerMin
	if rl <= 0 {
		rl = 30
	}
	return &Engine{
		exchange: cfg.Exchange,
		bars:     bars,
		source:   source,
		maxBin:   maxBin,
		retry:    cfg.RetryPolicy,
		limiter:  util.NewRateLimiter(rl),
		now:      time.Now,
		log:      slog.Default().With("component", "integrity"),
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status computes the data-status report for one symbol: the required minute
// range, the gaps, and the stored null bars. The report is consumed
// immediately by the backfill routines and never persisted.
func (e *Engine) Status(ctx context.Context, symbol string) (domain.DataStatusReport, error) {
	report := domain.DataStatusReport{
		Exchange:   e.exchange,
		Symbol:     symbol,
		MaxBinSize: e.maxBin,
	}

	origin, err := e.source.Origin(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("resolving origin: %w", err)
	}
	report.OriginTS = alignUp(origin)
	report.CurrentTS = e.now().Unix()/minuteStep*minuteStep - minuteStep

	oldest, newest, err := e.bars.Bounds(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("reading bounds: %w", err)
	}
	report.OldestTS = oldest
	report.NewestTS = newest

	stored, err := e.bars.Timestamps(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("reading timestamps: %w", err)
	}
	report.TotalStored = len(stored)
	report.TotalNeeded = int((report.CurrentTS-report.OriginTS)/minuteStep) + 1

	// gaps = required − stored.
	storedSet := make(map[int64]struct{}, len(stored))
	for _, ts := range stored {
		storedSet[ts] = struct{}{}
	}
	for ts := report.OriginTS; ts <= report.CurrentTS; ts += minuteStep {
		if _, ok := storedSet[ts]; !ok {
			report.Gaps = append(report.Gaps, ts)
		}
	}

	report.NullBars, err = e.bars.NullBarTimestamps(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("reading null bars: %w", err)
	}
	return report, nil
}

// ---------------------------------------------------------------------------
// Backfill
// ---------------------------------------------------------------------------

// BackfillBulk repairs the contiguous pre-history range [OriginTS, OldestTS)
// with sequential chunked requests. It reports whether anything was fetched.
func (e *Engine) BackfillBulk(ctx context.Context, report domain.DataStatusReport) (bool, error) {
	if report.OldestTS == 0 || report.OldestTS <= report.OriginTS {
		return false, nil
	}
	chunks := chunkSpan(report.OriginTS, report.OldestTS, e.maxBin)
	if len(chunks) == 0 {
		return false, nil
	}

	e.log.Info("bulk backfill",
		"symbol", report.Symbol,
		"from", report.OriginTS,
		"to", report.OldestTS,
		"chunks", len(chunks),
	)
	for _, c := range chunks {
		bars, err := e.fetchChunk(ctx, report.Symbol, c)
		if err != nil {
			return false, err
		}
		if err := e.bars.InsertBars(ctx, bars); err != nil {
			return false, fmt.Errorf("persisting bulk chunk at %d: %w", c.startTS, err)
		}
	}
	return true, nil
}

// BackfillGaps repairs the report's missing minutes. It returns false when
// the report carries no gaps. Chunks persisted before a failure remain
// persisted.
func (e *Engine) BackfillGaps(ctx context.Context, report domain.DataStatusReport) (bool, error) {
	if len(report.Gaps) == 0 {
		return false, nil
	}

	chunks := binTimestamps(report.Gaps, e.maxBin)
	e.log.Info("gap backfill", "symbol", report.Symbol, "gaps", len(report.Gaps), "chunks", len(chunks))
	for _, c := range chunks {
		bars, err := e.fetchChunk(ctx, report.Symbol, c)
		if err != nil {
			return false, err
		}
		// Collisions are idempotent duplicates; the store skips them.
		if err := e.bars.InsertBars(ctx, bars); err != nil {
			return false, fmt.Errorf("persisting gap chunk at %d: %w", c.startTS, err)
		}
	}
	return true, nil
}

// ReplaceNullBars refetches the report's null-bar minutes and overwrites the
// stored bars' price and volume fields in place, preserving their identity.
// It returns false when the report carries no null bars.
func (e *Engine) ReplaceNullBars(ctx context.Context, report domain.DataStatusReport) (bool, error) {
	if len(report.NullBars) == 0 {
		return false, nil
	}

	chunks := binTimestamps(report.NullBars, e.maxBin)
	e.log.Info("null bar repair", "symbol", report.Symbol, "nulls", len(report.NullBars), "chunks", len(chunks))
	for _, c := range chunks {
		bars, err := e.fetchChunk(ctx, report.Symbol, c)
		if err != nil {
			return false, err
		}
		for _, b := range bars {
			if b.IsNull() {
				// Upstream has no data for this minute either; the stored
				// null bar stays as-is.
				continue
			}
			if err := e.bars.UpdateBarFields(ctx, b); err != nil {
				return false, fmt.Errorf("repairing null bar %s@%d: %w", b.Symbol, b.Timestamp, err)
			}
		}
	}
	return true, nil
}

// Repair runs the full sequence for one symbol: status, bulk pre-history,
// gap fill, null-bar replacement. Each stage sees a fresh report so earlier
// repairs are reflected.
func (e *Engine) Repair(ctx context.Context, symbol string) error {
	report, err := e.Status(ctx, symbol)
	if err != nil {
		return err
	}
	if _, err := e.BackfillBulk(ctx, report); err != nil {
		return fmt.Errorf("bulk backfill %s: %w", symbol, err)
	}

	report, err = e.Status(ctx, symbol)
	if err != nil {
		return err
	}
	if _, err := e.BackfillGaps(ctx, report); err != nil {
		return fmt.Errorf("gap backfill %s: %w", symbol, err)
	}
	if _, err := e.ReplaceNullBars(ctx, report); err != nil {
		return fmt.Errorf("null repair %s: %w", symbol, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Fetching
// ---------------------------------------------------------------------------

// fetchChunk issues one paced historical request under the uniform retry
// policy and verifies the response covers exactly the requested minutes.
func (e *Engine) fetchChunk(ctx context.Context, symbol string, c chunk) ([]domain.Bar, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bars []domain.Bar
	err := e.retry.Do(ctx, func() error {
		var ferr error
		bars, ferr = e.source.GetBarsInPeriod(ctx, symbol, c.startTS, c.count)
		if ferr != nil {
			metrics.BackfillRequestsTotal.WithLabelValues(symbol, "error").Inc()
		} else {
			metrics.BackfillRequestsTotal.WithLabelValues(symbol, "ok").Inc()
		}
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: chunk %s@%d x%d: %v", ErrPollingTimeout, symbol, c.startTS, c.count, err)
	}

	if err := verifyChunk(symbol, c, bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// verifyChunk checks that the returned timestamp multiset equals the
// requested one.
func verifyChunk(symbol string, c chunk, bars []domain.Bar) error {
	expected := make(map[int64]int, c.count)
	for _, ts := range c.timestamps() {
		expected[ts]++
	}
	got := make(map[int64]int, len(bars))
	for _, b := range bars {
		got[b.Timestamp]++
	}

	var missing, extra []int64
	for ts, n := range expected {
		if got[ts] < n {
			missing = append(missing, ts)
		}
	}
	for ts, n := range got {
		if expected[ts] < n {
			extra = append(extra, ts)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return &ViolationError{
			Symbol:   symbol,
			Expected: c.count,
			Got:      len(bars),
			Missing:  missing,
			Extra:    extra,
		}
	}
	return nil
}

// alignUp rounds ts up to the next minute boundary.
func alignUp(ts int64) int64 {
	if ts%minuteStep == 0 {
		return ts
	}
	return (ts/minuteStep + 1) * minuteStep
}
