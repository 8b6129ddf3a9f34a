// Package aggregate ranks tabular records by a summed numeric column.
package aggregate

import (
	"math"
	"sort"

	"studiocharts/internal/core"
)

// DefaultTopN is the cut-off used by every chart.
const DefaultTopN = 10

// Totals is the result of folding records into per-category sums.
// Order keeps the first-seen order of each category.
type Totals struct {
	Sums  map[string]float64
	Order []string
}

// Sum folds records into a fresh category→total map. A value that does not
// parse is NaN and poisons its category's sum.
func Sum(records []core.Record, keyField, valueField string) Totals {
	t := Totals{Sums: make(map[string]float64)}
	for _, r := range records {
		key := r[keyField]
		v := r.Number(valueField)
		if prev, ok := t.Sums[key]; ok {
			t.Sums[key] = prev + v
			continue
		}
		t.Sums[key] = v
		t.Order = append(t.Order, key)
	}
	return t
}

// Aggregate groups records by keyField, sums valueField and returns the n
// highest totals. Ties keep first-seen order. Non-finite totals are kept but
// ranked after every finite total.
func Aggregate(records []core.Record, keyField, valueField string, n int) core.RankedTopN {
	t := Sum(records, keyField, valueField)
	entries := make([]core.AggregatedEntry, len(t.Order))
	for i, k := range t.Order {
		entries[i] = core.AggregatedEntry{Category: k, Total: t.Sums[k]}
	}
	rankEntries(entries)
	return core.RankedTopN(truncate(entries, n))
}

// TopRows ranks rows individually by valueField, without grouping, and
// returns copies of the n highest. Same ordering rules as Aggregate.
func TopRows(records []core.Record, valueField string, n int) []core.Record {
	type ranked struct {
		rec core.Record
		v   float64
	}
	rows := make([]ranked, len(records))
	for i, r := range records {
		rows[i] = ranked{rec: r, v: r.Number(valueField)}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return before(rows[i].v, rows[j].v)
	})
	rows = truncate(rows, n)
	out := make([]core.Record, len(rows))
	for i, r := range rows {
		out[i] = r.rec.Clone()
	}
	return out
}

func rankEntries(entries []core.AggregatedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return before(entries[i].Total, entries[j].Total)
	})
}

// before orders finite values descending and sinks NaN to the end. +Inf
// sorts first, -Inf just ahead of NaN.
func before(a, b float64) bool {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return false
	case an:
		return false
	case bn:
		return true
	}
	return a > b
}

func truncate[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
