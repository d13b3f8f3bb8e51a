// Package feed maintains a locally consistent mirror of venue-side tables
// from an incremental streaming feed, and exposes read-only projections of
// the trade table to the bar builder.
package feed

// Record is one wire-shaped table row. Rows keep their dynamic shape at the
// feed boundary; typed projections are derived on read.
type Record map[string]any

// Table holds the mirrored records of one venue table plus the ordered key
// field list used for identity matching. A record is uniquely identified by
// the conjunction of its key-field values.
type Table struct {
	name    string
	keys    []string
	records []Record
	maxSize int
	exempt  bool // order/book tables are never evicted
}

func newTable(name string, maxSize int, exempt bool) *Table {
	return &Table{name: name, maxSize: maxSize, exempt: exempt}
}

// Len returns the number of records currently held.
func (t *Table) Len() int { return len(t.records) }

// Keys returns the table's identity key field names.
func (t *Table) Keys() []string { return t.keys }

// matches reports whether rec agrees with probe on every key field.
func (t *Table) matches(rec, probe Record) bool {
	for _, k := range t.keys {
		if !valuesEqual(rec[k], probe[k]) {
			return false
		}
	}
	return len(t.keys) > 0
}

// find returns the index of the record matching probe's key fields, or -1.
func (t *Table) find(probe Record) int {
	for i, rec := range t.records {
		if t.matches(rec, probe) {
			return i
		}
	}
	return -1
}

// setPartial replaces the entire table and re-establishes its key list.
func (t *Table) setPartial(keys []string, records []Record) {
	t.keys = append([]string(nil), keys...)
	t.records = append([]Record(nil), records...)
}

// insert appends records and, for non-exempt tables over the size bound,
// evicts the oldest half.
func (t *Table) insert(records []Record) {
	t.records = append(t.records, records...)
	if t.exempt || t.maxSize <= 0 {
		return
	}
	if len(t.records) > t.maxSize {
		keepFrom := len(t.records) / 2
		kept := make([]Record, len(t.records)-keepFrom)
		copy(kept, t.records[keepFrom:])
		t.records = kept
	}
}

// update merges incoming fields into the matching record. It returns false
// when no record matches (the upstream message may precede its partial).
// removeWhen, if non-nil, is evaluated against the merged record; a true
// result deletes the record instead of keeping it.
func (t *Table) update(incoming Record, removeWhen func(Record) bool) bool {
	i := t.find(incoming)
	if i < 0 {
		return false
	}
	for k, v := range incoming {
		t.records[i][k] = v
	}
	if removeWhen != nil && removeWhen(t.records[i]) {
		t.records = append(t.records[:i], t.records[i+1:]...)
	}
	return true
}

// remove deletes the record matching probe's key fields. It returns false
// when no record matches.
func (t *Table) remove(probe Record) bool {
	i := t.find(probe)
	if i < 0 {
		return false
	}
	t.records = append(t.records[:i], t.records[i+1:]...)
	return true
}

// snapshot returns a copy of the record list. Record maps are cloned too:
// update merges into them in place, so callers reading after the table lock
// is released must not share them.
func (t *Table) snapshot() []Record {
	out := make([]Record, len(t.records))
	for i, rec := range t.records {
		cp := make(Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// valuesEqual compares two wire values. JSON decoding yields float64 for all
// numbers, so mixed numeric types are compared through float64.
func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return aok && bok && af == bf
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
