// Package quickbooks normalizes invoices from the QuickBooks Online query
// API into tieout records. Pagination is offset-based via STARTPOSITION
// and MAXRESULTS.
package quickbooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/transport"
	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// Config holds per-company settings supplied at construction.
type Config struct {
	// BaseURL is the API host (sandbox or production).
	BaseURL string

	// RealmID is the company identifier all query paths are scoped to.
	RealmID string

	// PageSize overrides the default page size when positive.
	PageSize int
}

// Client fetches invoices for one QuickBooks company.
type Client struct {
	http *transport.Client
	cfg  Config
}

// New creates a QuickBooks client authenticated by the given token source.
func New(cfg Config, tokens transport.TokenSource, opts ...transport.Option) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.DefaultPageSize
	}
	return &Client{
		http: transport.New(record.SourceQuickBooks.String(), &transport.BearerAuth{Source: tokens}, opts...),
		cfg:  cfg,
	}
}

// ID implements sources.Client.
func (c *Client) ID() record.SourceID {
	return record.SourceQuickBooks
}

// TestConnection implements sources.Client.
func (c *Client) TestConnection(ctx context.Context) sources.ConnectionStatus {
	target := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s", c.cfg.BaseURL, c.cfg.RealmID, c.cfg.RealmID)
	var resp struct {
		CompanyInfo struct {
			CompanyName string `json:"CompanyName"`
		} `json:"CompanyInfo"`
	}
	if _, err := c.http.GetJSON(ctx, target, &resp); err != nil {
		return sources.ConnectionStatus{Err: err}
	}
	return sources.ConnectionStatus{OK: true, AccountInfo: resp.CompanyInfo.CompanyName}
}

// FetchPage implements sources.Client. The cursor is the 1-based start
// position of the next page.
func (c *Client) FetchPage(ctx context.Context, cursor sources.Cursor, filter record.Filter) (sources.Page, error) {
	start := 1
	if !cursor.IsTerminal() {
		n, err := strconv.Atoi(string(cursor))
		if err != nil {
			return sources.Page{}, errors.WrapValidation("cursor", err)
		}
		start = n
	}

	query := c.query(filter, start)
	target := fmt.Sprintf("%s/v3/company/%s/query?query=%s", c.cfg.BaseURL, c.cfg.RealmID, url.QueryEscape(query))

	var resp queryResponse
	if _, err := c.http.GetJSON(ctx, target, &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Records: make([]record.Record, 0, len(resp.QueryResponse.Invoices))}
	for _, inv := range resp.QueryResponse.Invoices {
		rec, err := normalize(inv)
		if err != nil {
			return sources.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}

	// A full page means there may be more; a short page is terminal.
	if len(resp.QueryResponse.Invoices) == c.cfg.PageSize {
		page.Next = sources.Cursor(strconv.Itoa(start + c.cfg.PageSize))
	}
	return page, nil
}

func (c *Client) query(filter record.Filter, start int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM Invoice")
	var clauses []string
	if !filter.Start.IsZero() {
		clauses = append(clauses, fmt.Sprintf("TxnDate >= '%s'", filter.Start.Format("2006-01-02")))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, fmt.Sprintf("TxnDate <= '%s'", filter.End.Format("2006-01-02")))
	}
	if len(clauses) > 0 {
		b.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	fmt.Fprintf(&b, " ORDERBY TxnDate, Id STARTPOSITION %d MAXRESULTS %d", start, c.cfg.PageSize)
	return b.String()
}

// queryResponse is the QuickBooks query envelope.
type queryResponse struct {
	QueryResponse struct {
		Invoices      []invoice `json:"Invoice"`
		StartPosition int       `json:"startPosition"`
		MaxResults    int       `json:"maxResults"`
	} `json:"QueryResponse"`
}

// invoice is the subset of fields the tie-out needs.
type invoice struct {
	ID        string      `json:"Id"`
	DocNumber string      `json:"DocNumber"`
	TotalAmt  json.Number `json:"TotalAmt"`
	TxnDate   string      `json:"TxnDate"`
}

func normalize(inv invoice) (record.Record, error) {
	if inv.ID == "" {
		return record.Record{}, errors.NewParseError(record.SourceQuickBooks.String(), "Id", "invoice missing required Id", nil)
	}

	amount, amountNote := sources.ParseAmount(inv.TotalAmt.String())
	date, dateNote := sources.ParseDate(inv.TxnDate)

	return record.Record{
		Source:   record.SourceQuickBooks,
		ID:       inv.ID,
		OrderRef: inv.DocNumber,
		Amount:   amount,
		Date:     date,
		Raw: map[string]string{
			"doc_number": inv.DocNumber,
		},
		Note: sources.JoinNotes(amountNote, dateNote),
	}, nil
}
