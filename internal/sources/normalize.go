package sources

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a provider amount field to a decimal. A malformed
// amount yields zero plus a diagnostic note so one bad record never blocks
// the rest of the pull.
func ParseAmount(raw string) (decimal.Decimal, string) {
	if raw == "" {
		return decimal.Zero, "amount field missing; treated as zero"
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("amount field %q unparseable; treated as zero", raw)
	}
	return amount, ""
}

// dateFormats are the layouts providers use for transaction dates.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02",
}

// ParseDate converts a provider date field. Unparseable dates yield the
// zero time plus a diagnostic note.
func ParseDate(raw string) (time.Time, string) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), ""
		}
	}
	return time.Time{}, fmt.Sprintf("date field %q unparseable", raw)
}

// JoinNotes merges per-field diagnostics into one record note.
func JoinNotes(notes ...string) string {
	var out string
	for _, n := range notes {
		if n == "" {
			continue
		}
		if out != "" {
			out += "; "
		}
		out += n
	}
	return out
}
