// Package shopify normalizes orders from the Shopify Admin API into tieout
// records. Authentication is a static admin token header; pagination is an
// opaque page_info token carried in the Link response header.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/transport"
	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// DefaultAPIVersion is the Admin API version requested.
const DefaultAPIVersion = "2024-01"

// Config holds per-shop settings supplied at construction.
type Config struct {
	// BaseURL is the shop's admin host, e.g. https://shop.myshopify.com.
	BaseURL string

	// AccessToken is the static admin API token.
	AccessToken string

	// APIVersion overrides DefaultAPIVersion when set.
	APIVersion string

	// PageSize overrides the default page size when positive.
	PageSize int
}

// Client fetches orders from one Shopify shop.
type Client struct {
	http *transport.Client
	cfg  Config
}

// New creates a Shopify client.
func New(cfg Config, opts ...transport.Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.DefaultPageSize
	}
	auth := &transport.HeaderAuth{Header: "X-Shopify-Access-Token", Value: cfg.AccessToken}
	return &Client{
		http: transport.New(record.SourceShopify.String(), auth, opts...),
		cfg:  cfg,
	}
}

// ID implements sources.Client.
func (c *Client) ID() record.SourceID {
	return record.SourceShopify
}

// TestConnection implements sources.Client.
func (c *Client) TestConnection(ctx context.Context) sources.ConnectionStatus {
	target := fmt.Sprintf("%s/admin/api/%s/shop.json", c.cfg.BaseURL, c.cfg.APIVersion)
	var resp struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if _, err := c.http.GetJSON(ctx, target, &resp); err != nil {
		return sources.ConnectionStatus{Err: err}
	}
	return sources.ConnectionStatus{OK: true, AccountInfo: resp.Shop.Name}
}

// nextLinkRe extracts the page_info token from the rel="next" Link header.
var nextLinkRe = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

// FetchPage implements sources.Client. The cursor is the opaque page_info
// token from the previous page's Link header.
func (c *Client) FetchPage(ctx context.Context, cursor sources.Cursor, filter record.Filter) (sources.Page, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.cfg.PageSize))
	q.Set("status", "any")
	if cursor.IsTerminal() {
		// Filters may only accompany the first request; page_info pages
		// carry the original query server-side.
		if !filter.Start.IsZero() {
			q.Set("created_at_min", filter.Start.Format("2006-01-02T15:04:05Z07:00"))
		}
		if !filter.End.IsZero() {
			q.Set("created_at_max", filter.End.Format("2006-01-02T15:04:05Z07:00"))
		}
	} else {
		q.Set("page_info", string(cursor))
	}
	target := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", c.cfg.BaseURL, c.cfg.APIVersion, q.Encode())

	var resp ordersResponse
	headers, err := c.http.GetJSON(ctx, target, &resp)
	if err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Records: make([]record.Record, 0, len(resp.Orders))}
	for _, o := range resp.Orders {
		rec, err := normalize(o)
		if err != nil {
			return sources.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}
	page.Next = nextCursor(headers)
	return page, nil
}

// nextCursor reads the rel="next" page_info token, if any.
func nextCursor(headers http.Header) sources.Cursor {
	for _, link := range headers.Values("Link") {
		if m := nextLinkRe.FindStringSubmatch(link); m != nil {
			return sources.Cursor(m[1])
		}
	}
	return ""
}

// ordersResponse is the Admin API orders envelope.
type ordersResponse struct {
	Orders []order `json:"orders"`
}

// order is the subset of fields the tie-out needs.
type order struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	TotalPrice json.Number `json:"total_price"`
	CreatedAt  string      `json:"created_at"`
}

func normalize(o order) (record.Record, error) {
	if o.ID == 0 {
		return record.Record{}, errors.NewParseError(record.SourceShopify.String(), "id", "order missing required id", nil)
	}

	amount, amountNote := sources.ParseAmount(o.TotalPrice.String())
	date, dateNote := sources.ParseDate(o.CreatedAt)

	return record.Record{
		Source:   record.SourceShopify,
		ID:       fmt.Sprintf("%d", o.ID),
		OrderRef: o.Name,
		Amount:   amount,
		Date:     date,
		Raw: map[string]string{
			"name": o.Name,
		},
		Note: sources.JoinNotes(amountNote, dateNote),
	}, nil
}
