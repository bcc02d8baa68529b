// Package reconcile aligns transaction records from two sources on a shared
// alignment key and classifies their agreement. Multi-system tie-outs are
// composed from the pairwise primitive applied along a configured source
// chain rather than an N-way join.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// RowStatus classifies one tie row.
type RowStatus string

const (
	// StatusMatched indicates both sources agree within epsilon.
	StatusMatched RowStatus = "matched"
	// StatusAmountMismatch indicates both sources carry the key but disagree on amount.
	StatusAmountMismatch RowStatus = "amount_mismatch"
	// StatusMissingInA indicates the key exists only in source B.
	StatusMissingInA RowStatus = "missing_in_a"
	// StatusMissingInB indicates the key exists only in source A.
	StatusMissingInB RowStatus = "missing_in_b"
)

// TieRow is the unit of reconciliation output. Immutable once computed.
type TieRow struct {
	Key        record.Key
	AmountA    decimal.Decimal
	AmountB    decimal.Decimal
	Difference decimal.Decimal // AmountA - AmountB
	Status     RowStatus
	Notes      []string // per-row data-quality diagnostics, never fatal
}

// Totals aggregates a tie-out table. Absolute totals and net difference
// cover only rows actually compared; no-reference rows are counted and
// valued separately.
type Totals struct {
	AbsTotalA     decimal.Decimal
	AbsTotalB     decimal.Decimal
	NetDifference decimal.Decimal

	ComparedRows   int
	MatchedRows    int
	MismatchedRows int
	MissingInA     int
	MissingInB     int

	NoReferenceA      int
	NoReferenceB      int
	NoReferenceValueA decimal.Decimal
	NoReferenceValueB decimal.Decimal
}

// Table is the result of reconciling source A against source B.
type Table struct {
	SourceA record.SourceID
	SourceB record.SourceID

	// Rows are sorted by alignment key for reproducible output.
	Rows []TieRow

	// NoReferenceA and NoReferenceB hold records excluded from key-based
	// matching because they carry no reference. Two empty keys never match.
	NoReferenceA []record.Record
	NoReferenceB []record.Record

	// Conflicts reports data-quality issues such as duplicate non-split
	// postings sharing a key. Reported, not fatal.
	Conflicts []*errors.AlignmentConflictError

	Totals Totals
}

// Set names one side of a reconciliation.
type Set struct {
	Source  record.SourceID
	Records []record.Record
}

// Engine computes tie-out tables. Safe for concurrent use.
type Engine struct {
	epsilon decimal.Decimal
}

// Option configures an Engine.
type Option func(*Engine)

// WithEpsilon sets the tolerance below which an absolute difference is
// treated as agreement. Defaults to 0.01 currency units.
func WithEpsilon(epsilon decimal.Decimal) Option {
	return func(e *Engine) {
		e.epsilon = epsilon
	}
}

// DefaultEpsilon is the default comparison tolerance.
var DefaultEpsilon = decimal.New(1, -2) // 0.01

// New creates a reconciliation engine.
func New(opts ...Option) *Engine {
	e := &Engine{epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// bucket accumulates the records sharing one alignment key within a source.
type bucket struct {
	sum     decimal.Decimal
	count   int
	notes   []string
	amounts []decimal.Decimal
}

// Reconcile aligns the records of a against b and classifies every key
// present on either side. Records sharing a key within one source are
// summed, so both halves of a split posting reconcile as one logical total.
func (e *Engine) Reconcile(a, b Set) *Table {
	table := &Table{SourceA: a.Source, SourceB: b.Source}

	bucketsA, noRefA := index(a.Records)
	bucketsB, noRefB := index(b.Records)
	table.NoReferenceA = noRefA
	table.NoReferenceB = noRefB

	table.Conflicts = append(table.Conflicts, conflicts(a.Source, bucketsA)...)
	table.Conflicts = append(table.Conflicts, conflicts(b.Source, bucketsB)...)

	keys := make([]record.Key, 0, len(bucketsA)+len(bucketsB))
	for k := range bucketsA {
		keys = append(keys, k)
	}
	for k := range bucketsB {
		if _, seen := bucketsA[k]; !seen {
			keys = append(keys, k)
		}
	}
	// Keys are unique after grouping, so key order alone is deterministic.
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		ba, inA := bucketsA[k]
		bb, inB := bucketsB[k]

		row := TieRow{Key: k}
		switch {
		case inA && inB:
			row.AmountA = ba.sum
			row.AmountB = bb.sum
			row.Difference = ba.sum.Sub(bb.sum)
			if row.Difference.Abs().Cmp(e.epsilon) <= 0 {
				row.Status = StatusMatched
			} else {
				row.Status = StatusAmountMismatch
			}
			row.Notes = append(row.Notes, ba.notes...)
			row.Notes = append(row.Notes, bb.notes...)
		case inA:
			row.AmountA = ba.sum
			row.AmountB = decimal.Zero
			row.Difference = ba.sum
			row.Status = StatusMissingInB
			row.Notes = append(row.Notes, ba.notes...)
		default:
			row.AmountA = decimal.Zero
			row.AmountB = bb.sum
			row.Difference = bb.sum.Neg()
			row.Status = StatusMissingInA
			row.Notes = append(row.Notes, bb.notes...)
		}
		table.Rows = append(table.Rows, row)
	}

	table.Totals = totals(table)
	return table
}

// ReconcileChain applies the pairwise algorithm to each adjacent pair in
// the chain, producing one table per pair. A chain of fewer than two sets
// yields no tables.
func (e *Engine) ReconcileChain(chain []Set) []*Table {
	if len(chain) < 2 {
		return nil
	}
	tables := make([]*Table, 0, len(chain)-1)
	for i := 0; i+1 < len(chain); i++ {
		tables = append(tables, e.Reconcile(chain[i], chain[i+1]))
	}
	return tables
}

// index groups records by normalized key, splitting off no-reference rows.
func index(records []record.Record) (map[record.Key]*bucket, []record.Record) {
	buckets := make(map[record.Key]*bucket)
	var noRef []record.Record

	for _, r := range records {
		k := r.Key()
		if k.IsEmpty() {
			noRef = append(noRef, r)
			continue
		}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{sum: decimal.Zero}
			buckets[k] = b
		}
		b.sum = b.sum.Add(r.Amount)
		b.count++
		b.amounts = append(b.amounts, r.Amount)
		if r.Note != "" {
			b.notes = append(b.notes, r.Note)
		}
	}
	return buckets, noRef
}

// conflicts flags keys whose contributing records look like duplicate
// postings rather than halves of a split: more than one record with the
// key and every amount identical.
func conflicts(source record.SourceID, buckets map[record.Key]*bucket) []*errors.AlignmentConflictError {
	var out []*errors.AlignmentConflictError
	for k, b := range buckets {
		if b.count < 2 {
			continue
		}
		identical := true
		for _, amt := range b.amounts[1:] {
			if !amt.Equal(b.amounts[0]) {
				identical = false
				break
			}
		}
		if identical {
			out = append(out, &errors.AlignmentConflictError{
				Key:     k.String(),
				Source:  source.String(),
				Count:   b.count,
				Message: "records share a key with identical amounts; possible duplicate posting",
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func totals(t *Table) Totals {
	tot := Totals{
		AbsTotalA:         decimal.Zero,
		AbsTotalB:         decimal.Zero,
		NetDifference:     decimal.Zero,
		NoReferenceValueA: decimal.Zero,
		NoReferenceValueB: decimal.Zero,
	}

	for _, row := range t.Rows {
		tot.ComparedRows++
		tot.AbsTotalA = tot.AbsTotalA.Add(row.AmountA.Abs())
		tot.AbsTotalB = tot.AbsTotalB.Add(row.AmountB.Abs())
		tot.NetDifference = tot.NetDifference.Add(row.Difference)

		switch row.Status {
		case StatusMatched:
			tot.MatchedRows++
		case StatusAmountMismatch:
			tot.MismatchedRows++
		case StatusMissingInA:
			tot.MissingInA++
		case StatusMissingInB:
			tot.MissingInB++
		}
	}

	tot.NoReferenceA = len(t.NoReferenceA)
	tot.NoReferenceB = len(t.NoReferenceB)
	for _, r := range t.NoReferenceA {
		tot.NoReferenceValueA = tot.NoReferenceValueA.Add(r.Amount)
	}
	for _, r := range t.NoReferenceB {
		tot.NoReferenceValueB = tot.NoReferenceValueB.Add(r.Amount)
	}
	return tot
}
