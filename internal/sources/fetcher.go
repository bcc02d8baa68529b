package sources

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/logging"
	"github.com/agentstation/tieout/pkg/record"
)

// fetchOptions holds configuration for FetchAll.
type fetchOptions struct {
	skipEnrichment bool
	concurrency    int
	maxPages       int
}

// FetchOption configures FetchAll behavior.
type FetchOption func(*fetchOptions)

// WithSkipEnrichment skips the per-record secondary enrichment call. This
// is a deliberate performance/completeness trade-off exposed to the
// caller, not decided by the client.
func WithSkipEnrichment() FetchOption {
	return func(o *fetchOptions) {
		o.skipEnrichment = true
	}
}

// WithEnrichmentConcurrency bounds concurrent enrichment calls.
func WithEnrichmentConcurrency(n int) FetchOption {
	return func(o *fetchOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxPages caps the number of pages pulled. Zero means no cap.
func WithMaxPages(n int) FetchOption {
	return func(o *fetchOptions) {
		o.maxPages = n
	}
}

func fetchDefaults() *fetchOptions {
	return &fetchOptions{
		concurrency: constants.MaxConcurrentEnrichments,
	}
}

// FetchAll drives FetchPage to exhaustion, concatenating records in the
// order the provider returns them. Page fetches follow the provider's
// cursor chain; per-record enrichment runs concurrently up to a bounded
// limit while final record order stays stable regardless of completion
// order. Cancellation propagates to in-flight calls and stops new pages.
func FetchAll(ctx context.Context, client Client, filter record.Filter, opts ...FetchOption) ([]record.Record, error) {
	options := fetchDefaults()
	for _, opt := range opts {
		opt(options)
	}

	log := logging.Ctx(ctx)
	source := client.ID().String()

	var all []record.Record
	cursor := Cursor("")
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewFetchError(source, pages, ctxErr(ctx))
		}

		page, err := client.FetchPage(ctx, cursor, filter)
		if err != nil {
			return nil, errors.NewFetchError(source, pages, err)
		}
		pages++

		if !options.skipEnrichment {
			if enricher, ok := client.(Enricher); ok {
				enrich(ctx, enricher, page.Records, options.concurrency)
			}
		}

		all = append(all, page.Records...)
		log.Debug().
			Str("source", source).
			Int("page", pages).
			Int("records", len(page.Records)).
			Msg("page fetched")

		if page.Next.IsTerminal() {
			break
		}
		if options.maxPages > 0 && pages >= options.maxPages {
			break
		}
		cursor = page.Next
	}

	return all, nil
}

// enrich runs the per-record secondary call with bounded concurrency.
// Each worker writes only its own slice element, so the record sequence
// keeps the provider's order even though calls complete out of order.
// A failed enrichment leaves the field empty and attaches a note to that
// record; it never aborts the fetch.
func enrich(ctx context.Context, enricher Enricher, records []record.Record, concurrency int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range records {
		i := i
		g.Go(func() error {
			if err := enricher.Enrich(gctx, &records[i]); err != nil {
				records[i].Note = "enrichment failed: " + err.Error()
			}
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
}

func ctxErr(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ErrTimeout
	}
	return errors.ErrCanceled
}
