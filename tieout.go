// Package tieout reconciles financial transactions across external systems
// of record. It pulls normalized records from each configured source,
// aligns them pairwise along the configured chain, and assembles the
// tables into a single tagged result.
package tieout

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/logging"
	"github.com/agentstation/tieout/pkg/reconcile"
	"github.com/agentstation/tieout/pkg/record"
	"github.com/agentstation/tieout/pkg/results"
)

// Client orchestrates pulls and tie-outs across the configured sources.
// Safe for concurrent use once constructed.
type Client struct {
	chain     []sources.Client
	engine    *reconcile.Engine
	fetchOpts []sources.FetchOption
	maxPulls  int
	logger    *zerolog.Logger
}

// withLogger attaches the configured logger to ctx when one was set.
func (c *Client) withLogger(ctx context.Context) context.Context {
	if c.logger == nil {
		return ctx
	}
	return logging.WithLogger(ctx, c.logger)
}

// New creates a tie-out client. The source order given to WithSources is
// the chain order: each source is reconciled against the next.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		maxPulls: constants.MaxConcurrentSources,
	}
	var engineOpts []reconcile.Option
	for _, opt := range opts {
		opt(c, &engineOpts)
	}
	if len(c.chain) == 0 {
		return nil, errors.NewValidationError("sources", nil, "at least one source is required")
	}
	c.engine = reconcile.New(engineOpts...)
	return c, nil
}

// Pull is the outcome of pulling one source. Err is set when the pull
// failed; Records always reflects what was actually fetched.
type Pull struct {
	Source  record.SourceID
	Records []record.Record
	Err     error
}

// Failed reports whether the pull failed.
func (p Pull) Failed() bool {
	return p.Err != nil
}

// PullAll fetches every configured source concurrently. The returned
// slice is in chain order regardless of completion order. A failed source
// yields an entry with Err set; other sources are unaffected.
func (c *Client) PullAll(ctx context.Context, filter record.Filter) []Pull {
	ctx = c.withLogger(ctx)
	log := logging.Ctx(ctx)
	pulls := make([]Pull, len(c.chain))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxPulls)
	for i, client := range c.chain {
		i, client := i, client
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, constants.SourceFetchTimeout)
			defer cancel()

			records, err := sources.FetchAll(fetchCtx, client, filter, c.fetchOpts...)
			pulls[i] = Pull{Source: client.ID(), Records: records, Err: err}
			if err != nil {
				log.Warn().Err(err).Str("source", client.ID().String()).Msg("source pull failed")
			} else {
				log.Info().Str("source", client.ID().String()).Int("records", len(records)).Msg("source pulled")
			}
			// Failures stay per-source; one bad system never cancels the rest.
			return nil
		})
	}
	_ = g.Wait()

	return pulls
}

// TieOut pulls every source and reconciles adjacent pairs along the chain.
// The result carries one tie sheet per pair plus one record sheet per
// successfully pulled source. When any source fails, the remaining pairs
// are still reconciled and the result is marked incomplete.
func (c *Client) TieOut(ctx context.Context, filter record.Filter) (*results.Result, error) {
	pulls := c.PullAll(ctx, filter)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sets []reconcile.Set
	var failed []string
	for _, p := range pulls {
		if p.Failed() {
			failed = append(failed, p.Source.String())
			continue
		}
		sets = append(sets, reconcile.Set{Source: p.Source, Records: p.Records})
	}

	if len(sets) == 0 {
		return nil, errors.NewFetchError(strings.Join(failed, ","), 0, errors.ErrIncomplete)
	}

	tables := c.engine.ReconcileChain(sets)
	result := results.FromTables(tables)

	// Record sheets ride along so a consumer can audit the inputs of every
	// tie sheet without re-pulling.
	recordSheets := make([]results.Sheet, 0, len(sets))
	for _, set := range sets {
		recordSheets = append(recordSheets, results.Sheet{
			Name:    set.Source.String(),
			Records: set.Records,
		})
	}
	result = results.New(append(result.Sheets(), recordSheets...)...)

	if len(failed) > 0 {
		result.MarkIncomplete("sources failed: " + strings.Join(failed, ", "))
	}
	return result, nil
}

// Reconcile ties out two already-pulled record sets without touching the
// network. Useful for re-running a comparison over exported data.
func (c *Client) Reconcile(a, b reconcile.Set) *reconcile.Table {
	return c.engine.Reconcile(a, b)
}

// SourceStatus is the connection test outcome for one source.
type SourceStatus struct {
	Source record.SourceID
	sources.ConnectionStatus
}

// Status tests the connection of every configured source concurrently.
func (c *Client) Status(ctx context.Context) []SourceStatus {
	statuses := make([]SourceStatus, len(c.chain))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(c.maxPulls)
	for i, client := range c.chain {
		i, client := i, client
		g.Go(func() error {
			statuses[i] = SourceStatus{
				Source:           client.ID(),
				ConnectionStatus: client.TestConnection(ctx),
			}
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

// Sources returns the configured chain order.
func (c *Client) Sources() []record.SourceID {
	ids := make([]record.SourceID, len(c.chain))
	for i, client := range c.chain {
		ids[i] = client.ID()
	}
	return ids
}
