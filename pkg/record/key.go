package record

import "strings"

// Key is the normalized order/transaction reference used to match records
// across sources. The empty key means "no reference": records without a
// reference are reported separately and never matched to each other.
type Key string

// String returns the string representation of a key.
func (k Key) String() string {
	return string(k)
}

// IsEmpty reports whether the key carries no reference.
func (k Key) IsEmpty() bool {
	return k == ""
}

// NormalizeKey canonicalizes a raw order reference so the same order
// matches across sources that format it differently: surrounding
// whitespace is stripped, internal whitespace collapsed, and letters
// upper-cased. A reference that is all whitespace normalizes to the
// empty key.
func NormalizeKey(raw string) Key {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return Key(strings.ToUpper(strings.Join(fields, " ")))
}
