package sources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// fakeClient serves a fixed page chain.
type fakeClient struct {
	pages   []Page
	fetches int
	failAt  int // 1-based page index that fails, 0 for never
	failErr error
}

func (f *fakeClient) ID() record.SourceID {
	return record.SourceSalesforce
}

func (f *fakeClient) TestConnection(_ context.Context) ConnectionStatus {
	return ConnectionStatus{OK: true}
}

func (f *fakeClient) FetchPage(_ context.Context, cursor Cursor, _ record.Filter) (Page, error) {
	f.fetches++
	if f.failAt > 0 && f.fetches == f.failAt {
		return Page{}, f.failErr
	}
	idx := 0
	if !cursor.IsTerminal() {
		fmt.Sscanf(string(cursor), "page-%d", &idx)
	}
	if idx >= len(f.pages) {
		return Page{}, fmt.Errorf("no such page %d", idx)
	}
	return f.pages[idx], nil
}

// chain builds a page chain where every page but the last points at the next.
func chain(pages ...[]record.Record) []Page {
	out := make([]Page, len(pages))
	for i, records := range pages {
		out[i] = Page{Records: records}
		if i < len(pages)-1 {
			out[i].Next = Cursor(fmt.Sprintf("page-%d", i+1))
		}
	}
	return out
}

func rec(id string) record.Record {
	return record.Record{
		Source:   record.SourceSalesforce,
		ID:       id,
		OrderRef: "SO-" + id,
		Amount:   decimal.NewFromInt(100),
	}
}

func TestFetchAllConcatenatesPagesInOrder(t *testing.T) {
	client := &fakeClient{pages: chain(
		[]record.Record{rec("1"), rec("2")},
		[]record.Record{rec("3")},
		[]record.Record{rec("4"), rec("5")},
	)}

	records, err := FetchAll(context.Background(), client, record.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("%d", i+1), r.ID)
	}
	assert.Equal(t, 3, client.fetches)
}

func TestFetchAllSingleTerminalPage(t *testing.T) {
	client := &fakeClient{pages: chain([]record.Record{rec("1")})}

	records, err := FetchAll(context.Background(), client, record.Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, client.fetches)
}

func TestFetchAllEmptyCollection(t *testing.T) {
	client := &fakeClient{pages: chain(nil)}

	records, err := FetchAll(context.Background(), client, record.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchAllPageErrorReportsSource(t *testing.T) {
	client := &fakeClient{
		pages:   chain([]record.Record{rec("1")}, []record.Record{rec("2")}),
		failAt:  2,
		failErr: errors.NewAPIError("salesforce", 503, "unavailable"),
	}

	_, err := FetchAll(context.Background(), client, record.Filter{})
	require.Error(t, err)

	var fetchErr *errors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "salesforce", fetchErr.Source)
	assert.Equal(t, 1, fetchErr.Pages)
	assert.True(t, errors.IsRemoteUnavailable(err))
}

func TestFetchAllCancellationStopsPaging(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{pages: chain([]record.Record{rec("1")})}
	_, err := FetchAll(ctx, client, record.Filter{})
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
	assert.Equal(t, 0, client.fetches)
}

func TestFetchAllDeadlineMapsToTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	client := &fakeClient{pages: chain([]record.Record{rec("1")})}
	_, err := FetchAll(ctx, client, record.Filter{})
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestFetchAllMaxPages(t *testing.T) {
	client := &fakeClient{pages: chain(
		[]record.Record{rec("1")},
		[]record.Record{rec("2")},
		[]record.Record{rec("3")},
	)}

	records, err := FetchAll(context.Background(), client, record.Filter{}, WithMaxPages(2))
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, client.fetches)
}

// enrichingClient fills OrderRef from a secondary lookup.
type enrichingClient struct {
	fakeClient
	mu       sync.Mutex
	enriched []string
	inFlight atomic.Int32
	peak     atomic.Int32
	failIDs  map[string]bool
	delay    time.Duration
}

func (e *enrichingClient) Enrich(_ context.Context, r *record.Record) error {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if cur <= p || e.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.failIDs[r.ID] {
		return errors.NewAPIError("salesforce", 500, "lookup failed")
	}
	e.mu.Lock()
	e.enriched = append(e.enriched, r.ID)
	e.mu.Unlock()
	r.OrderRef = "ENRICHED-" + r.ID
	return nil
}

func TestFetchAllEnrichmentPreservesOrder(t *testing.T) {
	client := &enrichingClient{
		fakeClient: fakeClient{pages: chain(
			[]record.Record{rec("1"), rec("2"), rec("3"), rec("4")},
		)},
		delay: time.Millisecond,
	}

	records, err := FetchAll(context.Background(), client, record.Filter{},
		WithEnrichmentConcurrency(4))
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("%d", i+1), r.ID)
		assert.Equal(t, "ENRICHED-"+r.ID, r.OrderRef)
	}
}

func TestFetchAllEnrichmentConcurrencyBounded(t *testing.T) {
	records := make([]record.Record, 12)
	for i := range records {
		records[i] = rec(fmt.Sprintf("%d", i+1))
	}
	client := &enrichingClient{
		fakeClient: fakeClient{pages: chain(records)},
		delay:      2 * time.Millisecond,
	}

	_, err := FetchAll(context.Background(), client, record.Filter{},
		WithEnrichmentConcurrency(3))
	require.NoError(t, err)
	assert.LessOrEqual(t, client.peak.Load(), int32(3))
}

func TestFetchAllEnrichmentFailureNotesRecord(t *testing.T) {
	client := &enrichingClient{
		fakeClient: fakeClient{pages: chain(
			[]record.Record{rec("1"), rec("2"), rec("3")},
		)},
		failIDs: map[string]bool{"2": true},
	}

	records, err := FetchAll(context.Background(), client, record.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "ENRICHED-1", records[0].OrderRef)
	assert.Equal(t, "SO-2", records[1].OrderRef)
	assert.Contains(t, records[1].Note, "enrichment failed")
	assert.Equal(t, "ENRICHED-3", records[2].OrderRef)
}

func TestFetchAllSkipEnrichment(t *testing.T) {
	client := &enrichingClient{
		fakeClient: fakeClient{pages: chain(
			[]record.Record{rec("1"), rec("2")},
		)},
	}

	records, err := FetchAll(context.Background(), client, record.Filter{}, WithSkipEnrichment())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Empty(t, client.enriched)
	assert.Equal(t, "SO-1", records[0].OrderRef)
}
