// Package salesforce normalizes closed opportunities from the Salesforce
// REST API into tieout records. Pagination follows the query locator
// (nextRecordsUrl) chain; the order number lives on a related Order object
// and is resolved by an optional per-record enrichment call.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/transport"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// DefaultAPIVersion is the REST API version requested.
const DefaultAPIVersion = "v59.0"

// Config holds per-instance settings supplied at construction.
type Config struct {
	// BaseURL is the provider-assigned instance URL.
	BaseURL string

	// APIVersion overrides DefaultAPIVersion when set.
	APIVersion string
}

// Client fetches closed opportunities from one Salesforce instance.
type Client struct {
	http *transport.Client
	cfg  Config
}

// New creates a Salesforce client authenticated by the given token source.
func New(cfg Config, tokens transport.TokenSource, opts ...transport.Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	return &Client{
		http: transport.New(record.SourceSalesforce.String(), &transport.BearerAuth{Source: tokens}, opts...),
		cfg:  cfg,
	}
}

// ID implements sources.Client.
func (c *Client) ID() record.SourceID {
	return record.SourceSalesforce
}

// TestConnection implements sources.Client. Ordinary failures are captured
// in the status, never raised.
func (c *Client) TestConnection(ctx context.Context) sources.ConnectionStatus {
	q := url.QueryEscape("SELECT Name FROM Organization")
	var resp queryResponse
	if _, err := c.http.GetJSON(ctx, c.queryURL(q), &resp); err != nil {
		return sources.ConnectionStatus{Err: err}
	}

	info := "connected"
	if len(resp.Records) > 0 {
		var org struct {
			Name string `json:"Name"`
		}
		if json.Unmarshal(resp.Records[0], &org) == nil && org.Name != "" {
			info = org.Name
		}
	}
	return sources.ConnectionStatus{OK: true, AccountInfo: info}
}

// FetchPage implements sources.Client. The first page issues the SOQL
// query; later pages follow the opaque query locator path returned by the
// previous page.
func (c *Client) FetchPage(ctx context.Context, cursor sources.Cursor, filter record.Filter) (sources.Page, error) {
	target := c.cfg.BaseURL + string(cursor)
	if cursor.IsTerminal() {
		target = c.queryURL(url.QueryEscape(c.soql(filter)))
	}

	var resp queryResponse
	if _, err := c.http.GetJSON(ctx, target, &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Records: make([]record.Record, 0, len(resp.Records))}
	for _, raw := range resp.Records {
		rec, err := c.normalize(raw)
		if err != nil {
			return sources.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}

	if !resp.Done && resp.NextRecordsURL != "" {
		page.Next = sources.Cursor(resp.NextRecordsURL)
	}
	return page, nil
}

// Enrich implements sources.Enricher: it resolves the order number from
// the related Order object. Records without a related order are left
// untouched.
func (c *Client) Enrich(ctx context.Context, r *record.Record) error {
	if r.OrderRef != "" {
		return nil
	}
	orderID := r.Raw["order_id"]
	if orderID == "" {
		return nil
	}

	target := fmt.Sprintf("%s/services/data/%s/sobjects/Order/%s", c.cfg.BaseURL, c.cfg.APIVersion, orderID)
	var order struct {
		OrderNumber string `json:"OrderNumber"`
	}
	if _, err := c.http.GetJSON(ctx, target, &order); err != nil {
		return err
	}
	r.OrderRef = order.OrderNumber
	return nil
}

func (c *Client) queryURL(escapedSOQL string) string {
	return fmt.Sprintf("%s/services/data/%s/query?q=%s", c.cfg.BaseURL, c.cfg.APIVersion, escapedSOQL)
}

// soql builds the opportunity query, restricted to the filter window when
// one is set. Ordering by close date then ID keeps pages reproducible.
func (c *Client) soql(filter record.Filter) string {
	var b strings.Builder
	b.WriteString("SELECT Id, Amount, CloseDate, OrderNumber__c, OrderId__c FROM Opportunity WHERE IsWon = true")
	if !filter.Start.IsZero() {
		fmt.Fprintf(&b, " AND CloseDate >= %s", filter.Start.Format("2006-01-02"))
	}
	if !filter.End.IsZero() {
		fmt.Fprintf(&b, " AND CloseDate <= %s", filter.End.Format("2006-01-02"))
	}
	b.WriteString(" ORDER BY CloseDate, Id")
	return b.String()
}

// queryResponse is the Salesforce query envelope.
type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// opportunity is the subset of fields the tie-out needs.
type opportunity struct {
	ID          string      `json:"Id"`
	Amount      json.Number `json:"Amount"`
	CloseDate   string      `json:"CloseDate"`
	OrderNumber string      `json:"OrderNumber__c"`
	OrderID     string      `json:"OrderId__c"`
}

// normalize validates one opportunity and converts it to a record.
// A missing ID is contract drift; a malformed amount or date is a per-row
// diagnostic.
func (c *Client) normalize(raw json.RawMessage) (record.Record, error) {
	var opp opportunity
	if err := json.Unmarshal(raw, &opp); err != nil {
		return record.Record{}, errors.WrapParse(record.SourceSalesforce.String(), "records", err)
	}
	if opp.ID == "" {
		return record.Record{}, errors.NewParseError(record.SourceSalesforce.String(), "Id", "record missing required Id", nil)
	}

	amount, amountNote := sources.ParseAmount(opp.Amount.String())
	date, dateNote := sources.ParseDate(opp.CloseDate)

	return record.Record{
		Source:   record.SourceSalesforce,
		ID:       opp.ID,
		OrderRef: opp.OrderNumber,
		Amount:   amount,
		Date:     date,
		Raw: map[string]string{
			"order_id": opp.OrderID,
		},
		Note: sources.JoinNotes(amountNote, dateNote),
	}, nil
}
