package tieout

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/pkg/reconcile"
)

// Option configures a Client.
type Option func(*Client, *[]reconcile.Option)

// WithSources sets the source chain. Order matters: each source is
// reconciled against the one that follows it.
func WithSources(clients ...sources.Client) Option {
	return func(c *Client, _ *[]reconcile.Option) {
		c.chain = append(c.chain, clients...)
	}
}

// WithEpsilon sets the amount comparison tolerance.
func WithEpsilon(epsilon decimal.Decimal) Option {
	return func(_ *Client, engineOpts *[]reconcile.Option) {
		*engineOpts = append(*engineOpts, reconcile.WithEpsilon(epsilon))
	}
}

// WithSkipEnrichment disables per-record secondary lookups during pulls.
func WithSkipEnrichment() Option {
	return func(c *Client, _ *[]reconcile.Option) {
		c.fetchOpts = append(c.fetchOpts, sources.WithSkipEnrichment())
	}
}

// WithEnrichmentConcurrency bounds concurrent enrichment calls per source.
func WithEnrichmentConcurrency(n int) Option {
	return func(c *Client, _ *[]reconcile.Option) {
		c.fetchOpts = append(c.fetchOpts, sources.WithEnrichmentConcurrency(n))
	}
}

// WithLogger sets the logger used when the caller's context carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client, _ *[]reconcile.Option) {
		c.logger = &logger
	}
}

// WithMaxConcurrentPulls bounds how many sources are pulled at once.
func WithMaxConcurrentPulls(n int) Option {
	return func(c *Client, _ *[]reconcile.Option) {
		if n > 0 {
			c.maxPulls = n
		}
	}
}
