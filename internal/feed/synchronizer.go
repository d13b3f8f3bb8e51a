package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quantd/internal/domain"
	"quantd/internal/metrics"
)

// Actions carried by inbound feed messages.
const (
	ActionPartial = "partial"
	ActionInsert  = "insert"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
)

// Tables with engine-level meaning.
const (
	TableTrade = "trade"
	TableOrder = "order"
	TableBook  = "orderBookL2"
)

// ErrUnknownAction reports a protocol anomaly: an action value outside the
// partial/insert/update/delete set. It is logged and skipped by the read
// loop, never fatal.
var ErrUnknownAction = errors.New("unknown feed action")

// exemptTables are never size-bounded: the venue owns their cardinality.
var exemptTables = map[string]bool{
	TableOrder: true,
	TableBook:  true,
}

// Message is one inbound feed message. Keys is only present on partial.
type Message struct {
	Table  string   `json:"table"`
	Action string   `json:"action"`
	Keys   []string `json:"keys,omitempty"`
	Data   []Record `json:"data"`
}

// Synchronizer applies incremental feed messages against per-table mirrors.
// Its read loop is the only writer; the bar builder projects from it
// read-only once per minute.
type Synchronizer struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	tableSize int
	log       *slog.Logger
}

// NewSynchronizer creates a synchronizer whose non-exempt tables are bounded
// at tableSize records.
func NewSynchronizer(tableSize int) *Synchronizer {
	return &Synchronizer{
		tables:    make(map[string]*Table),
		tableSize: tableSize,
		log:       slog.Default().With("component", "feed"),
	}
}

// Apply routes one feed message into its table. Updates and deletes that
// reference an unknown key are no-ops; an unrecognized action returns
// ErrUnknownAction. Both are non-fatal: the caller logs and continues.
func (s *Synchronizer) Apply(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.tables[msg.Table]
	if !ok {
		tbl = newTable(msg.Table, s.tableSize, exemptTables[msg.Table])
		s.tables[msg.Table] = tbl
	}

	switch msg.Action {
	case ActionPartial:
		tbl.setPartial(msg.Keys, msg.Data)

	case ActionInsert:
		tbl.insert(msg.Data)
		if msg.Table == TableTrade {
			for _, rec := range msg.Data {
				if sym, ok := rec["symbol"].(string); ok {
					metrics.FeedTicksTotal.WithLabelValues(sym).Inc()
				}
			}
		}

	case ActionUpdate:
		// Only the orders table drops records once nothing is left to fill.
		var removeWhen func(Record) bool
		if msg.Table == TableOrder {
			removeWhen = orderExhausted
		}
		for _, rec := range msg.Data {
			if !tbl.update(rec, removeWhen) {
				s.log.Debug("update for unknown key skipped", "table", msg.Table)
			}
		}

	case ActionDelete:
		for _, rec := range msg.Data {
			if !tbl.remove(rec) {
				s.log.Debug("delete for unknown key skipped", "table", msg.Table)
			}
		}

	default:
		return fmt.Errorf("%w: %q on table %q", ErrUnknownAction, msg.Action, msg.Table)
	}
	return nil
}

// orderExhausted reports whether an order record has no fillable quantity
// remaining after an update merge.
func orderExhausted(rec Record) bool {
	leaves, ok := asFloat(rec["leavesQty"])
	return ok && leaves <= 0
}

// TableLen returns the current record count of a table, zero when absent.
func (s *Synchronizer) TableLen(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tbl, ok := s.tables[name]; ok {
		return tbl.Len()
	}
	return 0
}

// TableSnapshot returns a copy of a table's records, nil when absent.
func (s *Synchronizer) TableSnapshot(name string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tbl, ok := s.tables[name]; ok {
		return tbl.snapshot()
	}
	return nil
}

// TradesBetween projects the trade table onto ticks whose timestamp lies in
// [startTS, endTS). Records missing a usable symbol or timestamp are skipped.
func (s *Synchronizer) TradesBetween(startTS, endTS int64) []domain.Tick {
	records := s.TableSnapshot(TableTrade)

	var ticks []domain.Tick
	for _, rec := range records {
		sym, ok := rec["symbol"].(string)
		if !ok {
			continue
		}
		tsf, ok := asFloat(rec["timestamp"])
		if !ok {
			continue
		}
		ts := int64(tsf)
		if ts < startTS || ts >= endTS {
			continue
		}
		price, _ := asFloat(rec["price"])
		size, _ := asFloat(rec["size"])
		ticks = append(ticks, domain.Tick{Symbol: sym, Price: price, Size: size, Timestamp: ts})
	}
	return ticks
}
