package salesforce

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/transport"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

type staticTokens string

func (s staticTokens) Token(_ context.Context) (string, error) {
	return string(s), nil
}

func newTestClient(serverURL string) *Client {
	return New(Config{BaseURL: serverURL}, staticTokens("tok-123"),
		transport.WithBackoff(time.Millisecond, 5*time.Millisecond),
		transport.WithMaxRetries(2),
	)
}

func TestFetchPageFollowsQueryLocator(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			assert.Contains(t, r.URL.Query().Get("q"), "FROM Opportunity")
			fmt.Fprint(w, `{
				"totalSize": 3, "done": false,
				"nextRecordsUrl": "/services/data/v59.0/query/01g-next",
				"records": [
					{"Id": "006A", "Amount": 1200.50, "CloseDate": "2024-03-01", "OrderNumber__c": "SO-100"},
					{"Id": "006B", "Amount": 75, "CloseDate": "2024-03-02", "OrderNumber__c": "SO-101"}
				]
			}`)
		case "/services/data/v59.0/query/01g-next":
			fmt.Fprint(w, `{
				"totalSize": 3, "done": true,
				"records": [
					{"Id": "006C", "Amount": 50.25, "CloseDate": "2024-03-03", "OrderNumber__c": "SO-102"}
				]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	page, err := client.FetchPage(context.Background(), "", record.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "006A", page.Records[0].ID)
	assert.Equal(t, "SO-100", page.Records[0].OrderRef)
	assert.Equal(t, "1200.5", page.Records[0].Amount.String())
	require.False(t, page.Next.IsTerminal())

	page, err = client.FetchPage(context.Background(), page.Next, record.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "006C", page.Records[0].ID)
	assert.True(t, page.Next.IsTerminal())
}

func TestFetchPageAppliesDateFilter(t *testing.T) {
	var gotSOQL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSOQL = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"totalSize": 0, "done": true, "records": []}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	filter := record.Filter{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	_, err := client.FetchPage(context.Background(), "", filter)
	require.NoError(t, err)
	assert.Contains(t, gotSOQL, "CloseDate >= 2024-01-01")
	assert.Contains(t, gotSOQL, "CloseDate <= 2024-01-31")
	assert.Contains(t, gotSOQL, "ORDER BY CloseDate, Id")
}

// A mid-collection throttle must not lose records or reorder them.
func TestFetchAllRetriesThrottledPage(t *testing.T) {
	var throttled atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			fmt.Fprint(w, `{
				"done": false, "nextRecordsUrl": "/services/data/v59.0/query/01g-2",
				"records": [{"Id": "006A", "Amount": 10, "CloseDate": "2024-03-01", "OrderNumber__c": "SO-1"}]
			}`)
		case "/services/data/v59.0/query/01g-2":
			if throttled.CompareAndSwap(false, true) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{
				"done": false, "nextRecordsUrl": "/services/data/v59.0/query/01g-3",
				"records": [{"Id": "006B", "Amount": 20, "CloseDate": "2024-03-02", "OrderNumber__c": "SO-2"}]
			}`)
		case "/services/data/v59.0/query/01g-3":
			fmt.Fprint(w, `{
				"done": true,
				"records": [{"Id": "006C", "Amount": 30, "CloseDate": "2024-03-03", "OrderNumber__c": "SO-3"}]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	records, err := sources.FetchAll(context.Background(), client, record.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "006A", records[0].ID)
	assert.Equal(t, "006B", records[1].ID)
	assert.Equal(t, "006C", records[2].ID)
}

func TestFetchPageMissingIDIsParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"done": true, "records": [{"Amount": 10, "CloseDate": "2024-03-01"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), "", record.Filter{})
	require.Error(t, err)
	assert.True(t, errors.IsMalformedResponse(err))
}

func TestFetchPageBadAmountBecomesNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"done": true, "records": [{"Id": "006A", "Amount": null, "CloseDate": "2024-03-01"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchPage(context.Background(), "", record.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.True(t, page.Records[0].Amount.IsZero())
	assert.NotEmpty(t, page.Records[0].Note)
}

func TestEnrichResolvesOrderNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/data/v59.0/sobjects/Order/801X", r.URL.Path)
		fmt.Fprint(w, `{"Id": "801X", "OrderNumber": "SO-777"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	rec := record.Record{
		Source: record.SourceSalesforce,
		ID:     "006A",
		Raw:    map[string]string{"order_id": "801X"},
	}
	require.NoError(t, client.Enrich(context.Background(), &rec))
	assert.Equal(t, "SO-777", rec.OrderRef)
}

func TestEnrichSkipsResolvedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	rec := record.Record{OrderRef: "SO-1", Raw: map[string]string{"order_id": "801X"}}
	require.NoError(t, client.Enrich(context.Background(), &rec))
	assert.Equal(t, "SO-1", rec.OrderRef)

	rec = record.Record{Raw: map[string]string{}}
	require.NoError(t, client.Enrich(context.Background(), &rec))
	assert.Empty(t, rec.OrderRef)
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"done": true, "records": [{"Name": "Acme Corp"}]}`)
	}))
	defer server.Close()

	status := newTestClient(server.URL).TestConnection(context.Background())
	require.NoError(t, status.Err)
	assert.True(t, status.OK)
	assert.Equal(t, "Acme Corp", status.AccountInfo)
}

func TestTestConnectionAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	status := newTestClient(server.URL).TestConnection(context.Background())
	assert.False(t, status.OK)
	assert.True(t, errors.IsAuthFailure(status.Err))
}
