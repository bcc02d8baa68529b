// Package record defines the uniform row abstraction produced by every
// remote source client. A Record is immutable once produced; the
// reconciliation engine consumes records without mutating them.
package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceID identifies one external system of record.
type SourceID string

// String returns the string representation of a source ID.
func (id SourceID) String() string {
	return string(id)
}

// Known source IDs.
const (
	SourceSalesforce SourceID = "salesforce"
	SourceQuickBooks SourceID = "quickbooks"
	SourceAvalara    SourceID = "avalara"
	SourceShopify    SourceID = "shopify"
)

// IDs returns all known source IDs.
func IDs() []SourceID {
	return []SourceID{
		SourceSalesforce,
		SourceQuickBooks,
		SourceAvalara,
		SourceShopify,
	}
}

// Record is one normalized transaction row pulled from a remote source.
type Record struct {
	Source   SourceID
	ID       string
	OrderRef string // empty when the source has no reference for this row
	Amount   decimal.Decimal
	Date     time.Time
	Raw      map[string]string // provider fields kept for diagnostics

	// Note carries a per-row data-quality diagnostic (e.g. a malformed
	// amount that was zeroed) without failing the pull.
	Note string
}

// Key returns the normalized alignment key for this record.
func (r Record) Key() Key {
	return NormalizeKey(r.OrderRef)
}

// Filter restricts a pull to a window of transaction dates. The zero
// value means no restriction.
type Filter struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the filter window.
func (f Filter) Contains(t time.Time) bool {
	if !f.Start.IsZero() && t.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && t.After(f.End) {
		return false
	}
	return true
}

// IsZero reports whether the filter imposes no restriction.
func (f Filter) IsZero() bool {
	return f.Start.IsZero() && f.End.IsZero()
}
