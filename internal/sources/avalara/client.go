// Package avalara normalizes committed tax transactions from the AvaTax
// API into tieout records. Authentication is a static account/license pair
// sent as HTTP Basic; pagination is $skip/$top with a @nextLink indicator.
package avalara

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/transport"
	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// Config holds per-account settings supplied at construction.
type Config struct {
	BaseURL     string
	AccountID   string
	LicenseKey  string
	CompanyCode string

	// PageSize overrides the default page size when positive.
	PageSize int
}

// Client fetches committed transactions for one AvaTax company.
type Client struct {
	http *transport.Client
	cfg  Config
}

// New creates an Avalara client.
func New(cfg Config, opts ...transport.Option) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.DefaultPageSize
	}
	auth := &transport.BasicAuth{Username: cfg.AccountID, Password: cfg.LicenseKey}
	return &Client{
		http: transport.New(record.SourceAvalara.String(), auth, opts...),
		cfg:  cfg,
	}
}

// ID implements sources.Client.
func (c *Client) ID() record.SourceID {
	return record.SourceAvalara
}

// TestConnection implements sources.Client.
func (c *Client) TestConnection(ctx context.Context) sources.ConnectionStatus {
	var resp struct {
		AuthenticationType     string `json:"authenticationType"`
		AuthenticatedAccountID string `json:"authenticatedAccountId"`
	}
	if _, err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/api/v2/utilities/ping", &resp); err != nil {
		return sources.ConnectionStatus{Err: err}
	}
	return sources.ConnectionStatus{OK: true, AccountInfo: resp.AuthenticatedAccountID}
}

// FetchPage implements sources.Client. The first page builds the listing
// URL from the filter; later pages follow the @nextLink verbatim.
func (c *Client) FetchPage(ctx context.Context, cursor sources.Cursor, filter record.Filter) (sources.Page, error) {
	target := string(cursor)
	if cursor.IsTerminal() {
		target = c.listURL(filter)
	}

	var resp listResponse
	if _, err := c.http.GetJSON(ctx, target, &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Records: make([]record.Record, 0, len(resp.Value))}
	for _, txn := range resp.Value {
		rec, err := normalize(txn)
		if err != nil {
			return sources.Page{}, err
		}
		page.Records = append(page.Records, rec)
	}
	page.Next = sources.Cursor(resp.NextLink)
	return page, nil
}

func (c *Client) listURL(filter record.Filter) string {
	q := url.Values{}
	q.Set("$top", fmt.Sprintf("%d", c.cfg.PageSize))
	q.Set("$orderBy", "date, code")
	if !filter.Start.IsZero() && !filter.End.IsZero() {
		q.Set("$filter", fmt.Sprintf("date between %s and %s",
			filter.Start.Format("2006-01-02"), filter.End.Format("2006-01-02")))
	}
	return fmt.Sprintf("%s/api/v2/companies/%s/transactions?%s", c.cfg.BaseURL, c.cfg.CompanyCode, q.Encode())
}

// listResponse is the AvaTax listing envelope.
type listResponse struct {
	Value    []transaction `json:"value"`
	NextLink string        `json:"@nextLink"`
}

// transaction is the subset of fields the tie-out needs. The amount is
// kept as a json.Number so tax amounts with sub-cent precision reach the
// decimal conversion undamaged.
type transaction struct {
	ID              int64       `json:"id"`
	Code            string      `json:"code"`
	Date            string      `json:"date"`
	TotalAmount     json.Number `json:"totalAmount"`
	PurchaseOrderNo string      `json:"purchaseOrderNo"`
}

func normalize(txn transaction) (record.Record, error) {
	if txn.ID == 0 && txn.Code == "" {
		return record.Record{}, errors.NewParseError(record.SourceAvalara.String(), "id", "transaction missing id and code", nil)
	}

	amount, amountNote := sources.ParseAmount(txn.TotalAmount.String())
	date, dateNote := sources.ParseDate(txn.Date)

	ref := txn.PurchaseOrderNo
	if ref == "" {
		ref = txn.Code
	}

	return record.Record{
		Source:   record.SourceAvalara,
		ID:       fmt.Sprintf("%d", txn.ID),
		OrderRef: ref,
		Amount:   amount,
		Date:     date,
		Raw: map[string]string{
			"code": txn.Code,
		},
		Note: sources.JoinNotes(amountNote, dateNote),
	}, nil
}
