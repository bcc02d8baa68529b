// Package sources defines the contract every remote source client
// implements and the driver that pulls a full collection through it.
// Each client normalizes one provider's paginated collection into
// record.Record values; rate limits and retries are handled below the
// client in the transport layer.
package sources

import (
	"context"

	"github.com/agentstation/tieout/pkg/record"
)

// Cursor is an opaque, provider-specific pagination position: an offset,
// a page token, or a follow-up URL. The empty cursor means "start"; a page
// returning an empty next cursor is the terminal page.
type Cursor string

// IsTerminal reports whether the cursor signals the end of the collection.
func (c Cursor) IsTerminal() bool {
	return c == ""
}

// Page is one provider page normalized into records plus the position of
// the next page.
type Page struct {
	Records []record.Record
	Next    Cursor
}

// ConnectionStatus is the outcome of a connection test. Ordinary failures
// (auth, network) are captured in Err rather than raised.
type ConnectionStatus struct {
	OK          bool
	AccountInfo string
	Err         error
}

// Client fetches one logical collection from a paginated remote API.
type Client interface {
	// ID identifies the source system.
	ID() record.SourceID

	// TestConnection makes one lightweight authenticated call.
	TestConnection(ctx context.Context) ConnectionStatus

	// FetchPage returns one page of normalized records. The cursor is
	// opaque; pass the zero Cursor for the first page.
	FetchPage(ctx context.Context, cursor Cursor, filter record.Filter) (Page, error)
}

// Enricher is implemented by clients whose records need an expensive
// secondary call per record (e.g. resolving an order number). Whether the
// step runs is the caller's choice, never the client's.
type Enricher interface {
	// Enrich completes r in place. A failure applies to that record only.
	Enrich(ctx context.Context, r *record.Record) error
}
