// Package results packages named tables from the reconciliation engine into
// one ordered result tagged as legacy or tie-out, so a renderer or exporter
// can choose its logic without re-deriving the shape at every consumption
// site.
package results

import (
	"slices"

	"github.com/agentstation/tieout/pkg/record"
	"github.com/agentstation/tieout/pkg/reconcile"
)

// Kind tags the vocabulary a result's sheet names are drawn from.
type Kind string

const (
	// KindLegacy is the older single-purpose result shape ({main, credit, errors}).
	KindLegacy Kind = "legacy"
	// KindTieOut is the multi-sheet tie-out result shape (source names and
	// pairwise tie-out names).
	KindTieOut Kind = "tieout"
)

// Legacy sheet names. Presence of any of these forces legacy treatment of
// the whole result, even when tie-out-named sheets are also present: mixed
// input is intentionally conservative and legacy wins.
const (
	SheetMain   = "main"
	SheetCredit = "credit"
	SheetErrors = "errors"
)

var legacySheets = []string{SheetMain, SheetCredit, SheetErrors}

// IsLegacySheet reports whether name belongs to the legacy vocabulary.
func IsLegacySheet(name string) bool {
	return slices.Contains(legacySheets, name)
}

// Sheet is one named table. Exactly one of TieRows or Records is set:
// pairwise tie-out sheets carry TieRows, per-source pull sheets carry
// Records.
type Sheet struct {
	Name    string
	TieRows []reconcile.TieRow
	Records []record.Record
}

// TieSheetName names the pairwise tie-out sheet for two sources.
func TieSheetName(a, b record.SourceID) string {
	return a.String() + " vs " + b.String()
}

// Result is an ordered collection of named sheets with its vocabulary kind
// computed once at construction.
type Result struct {
	kind   Kind
	sheets []Sheet

	incomplete bool
	reason     string
}

// New assembles sheets into a Result, classifying the vocabulary once.
// Sheet order is preserved.
func New(sheets ...Sheet) *Result {
	r := &Result{kind: KindTieOut, sheets: sheets}
	for _, s := range sheets {
		if IsLegacySheet(s.Name) {
			r.kind = KindLegacy
			break
		}
	}
	return r
}

// Kind returns the vocabulary tag computed at construction.
func (r *Result) Kind() Kind {
	return r.kind
}

// Sheets returns the sheets in their assembly order.
func (r *Result) Sheets() []Sheet {
	return r.sheets
}

// Names returns the sheet names in order.
func (r *Result) Names() []string {
	names := make([]string, len(r.sheets))
	for i, s := range r.sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet returns the named sheet, if present.
func (r *Result) Sheet(name string) (Sheet, bool) {
	for _, s := range r.sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

// MarkIncomplete flags the result as a best-effort partial with a reason,
// so a consumer never mistakes it for a complete run.
func (r *Result) MarkIncomplete(reason string) {
	r.incomplete = true
	r.reason = reason
}

// Incomplete reports whether the result is a marked partial.
func (r *Result) Incomplete() bool {
	return r.incomplete
}

// Reason returns why the result is partial, or the empty string.
func (r *Result) Reason() string {
	return r.reason
}

// FromTables assembles a tie-out result from pairwise tables, one sheet per
// table, in chain order.
func FromTables(tables []*reconcile.Table) *Result {
	sheets := make([]Sheet, 0, len(tables))
	for _, t := range tables {
		sheets = append(sheets, Sheet{
			Name:    TieSheetName(t.SourceA, t.SourceB),
			TieRows: t.Rows,
		})
	}
	return New(sheets...)
}
