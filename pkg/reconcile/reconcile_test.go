package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tieout/pkg/record"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rec(src record.SourceID, id, ref, amount string) record.Record {
	return record.Record{
		Source:   src,
		ID:       id,
		OrderRef: ref,
		Amount:   dec(amount),
	}
}

func TestReconcileSingleMatch(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", "1001", "100.50")}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "1001", "100.50")}},
	)

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, record.Key("1001"), row.Key)
	assert.Equal(t, StatusMatched, row.Status)
	assert.True(t, row.Difference.IsZero(), "difference should be 0.00, got %s", row.Difference)
	assert.Equal(t, 1, table.Totals.MatchedRows)
}

func TestReconcileMissingInB(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", "1002", "200.00")}},
		Set{Source: record.SourceQuickBooks},
	)

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, StatusMissingInB, row.Status)
	assert.True(t, row.AmountB.IsZero())
	assert.True(t, row.Difference.Equal(dec("200.00")))
}

func TestReconcileMissingInA(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "1003", "75.25")}},
	)

	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, StatusMissingInA, row.Status)
	assert.True(t, row.AmountA.IsZero())
	assert.True(t, row.Difference.Equal(dec("-75.25")))
}

func TestReconcileAgainstItselfAllMatched(t *testing.T) {
	records := []record.Record{
		rec(record.SourceSalesforce, "a1", "1001", "100.50"),
		rec(record.SourceSalesforce, "a2", "1002", "-20.00"),
		rec(record.SourceSalesforce, "a3", "1003", "3999.99"),
	}
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: records},
		Set{Source: record.SourceSalesforce, Records: records},
	)

	require.Len(t, table.Rows, 3)
	for _, row := range table.Rows {
		assert.Equal(t, StatusMatched, row.Status)
	}
	assert.True(t, table.Totals.NetDifference.IsZero())
	assert.Equal(t, 3, table.Totals.MatchedRows)
	assert.Equal(t, 3, table.Totals.ComparedRows)
}

func TestReconcileSplitRecordsSumByKey(t *testing.T) {
	engine := New()

	// One 150.00 posting split into 100.00 + 50.00 on side A.
	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{
			rec(record.SourceSalesforce, "a1", "1001", "100.00"),
			rec(record.SourceSalesforce, "a2", "1001", "50.00"),
		}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{
			rec(record.SourceQuickBooks, "b1", "1001", "150.00"),
		}},
	)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
	assert.True(t, table.Rows[0].AmountA.Equal(dec("150.00")))
	assert.Empty(t, table.Conflicts, "split amounts differ, not a duplicate")
}

func TestReconcileEmptyKeysNeverMatch(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", "", "10.00")}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "  ", "10.00")}},
	)

	assert.Empty(t, table.Rows, "no-reference records must not produce tie rows")
	assert.Len(t, table.NoReferenceA, 1)
	assert.Len(t, table.NoReferenceB, 1)
	assert.Equal(t, 1, table.Totals.NoReferenceA)
	assert.True(t, table.Totals.NoReferenceValueB.Equal(dec("10.00")))
	assert.Equal(t, 0, table.Totals.ComparedRows)
}

func TestReconcileAmountMismatchEpsilon(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{
			rec(record.SourceSalesforce, "a1", "1001", "100.00"),
			rec(record.SourceSalesforce, "a2", "1002", "100.00"),
		}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{
			rec(record.SourceQuickBooks, "b1", "1001", "100.01"), // within epsilon
			rec(record.SourceQuickBooks, "b2", "1002", "100.02"), // beyond epsilon
		}},
	)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
	assert.Equal(t, StatusAmountMismatch, table.Rows[1].Status)
}

func TestReconcileSubCentPrecision(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceShopify, Records: []record.Record{
			rec(record.SourceShopify, "a1", "1001", "100.005"),
			rec(record.SourceShopify, "a2", "1002", "100.005"),
		}},
		Set{Source: record.SourceAvalara, Records: []record.Record{
			rec(record.SourceAvalara, "b1", "1001", "100.004"), // 0.001 apart
			rec(record.SourceAvalara, "b2", "1002", "100.020"), // 0.015 apart
		}},
	)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
	assert.True(t, table.Rows[0].Difference.Equal(dec("0.001")))
	assert.Equal(t, StatusAmountMismatch, table.Rows[1].Status)
	assert.True(t, table.Rows[1].Difference.Equal(dec("-0.015")))
}

func TestReconcileCustomEpsilon(t *testing.T) {
	engine := New(WithEpsilon(dec("0.50")))

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", "1001", "100.00")}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "1001", "100.40")}},
	)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
}

func TestReconcileKeyNormalization(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", " so-1001 ", "10.00")}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "SO-1001", "10.00")}},
	)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
}

func TestReconcileDuplicateConflictReported(t *testing.T) {
	engine := New()

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{
			rec(record.SourceSalesforce, "a1", "1001", "100.00"),
			rec(record.SourceSalesforce, "a2", "1001", "100.00"),
		}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{
			rec(record.SourceQuickBooks, "b1", "1001", "200.00"),
		}},
	)

	require.Len(t, table.Conflicts, 1)
	assert.Equal(t, "1001", table.Conflicts[0].Key)
	assert.Equal(t, 2, table.Conflicts[0].Count)

	// Conflict is reported, not fatal: the row still reconciles by sum.
	require.Len(t, table.Rows, 1)
	assert.Equal(t, StatusMatched, table.Rows[0].Status)
}

func TestReconcileRowNotesCarried(t *testing.T) {
	engine := New()

	bad := rec(record.SourceSalesforce, "a1", "1001", "0")
	bad.Note = "amount field unparseable; treated as zero"

	table := engine.Reconcile(
		Set{Source: record.SourceSalesforce, Records: []record.Record{bad}},
		Set{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "1001", "50.00")}},
	)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, StatusAmountMismatch, table.Rows[0].Status)
	require.Len(t, table.Rows[0].Notes, 1)
	assert.Contains(t, table.Rows[0].Notes[0], "unparseable")
}

func TestReconcileDeterministicOrder(t *testing.T) {
	a := Set{Source: record.SourceSalesforce, Records: []record.Record{
		rec(record.SourceSalesforce, "a1", "1003", "1.00"),
		rec(record.SourceSalesforce, "a2", "1001", "2.00"),
		rec(record.SourceSalesforce, "a3", "1002", "3.00"),
	}}
	b := Set{Source: record.SourceQuickBooks, Records: []record.Record{
		rec(record.SourceQuickBooks, "b1", "1004", "4.00"),
	}}
	engine := New()

	first := engine.Reconcile(a, b)
	keys := []record.Key{"1001", "1002", "1003", "1004"}
	require.Len(t, first.Rows, 4)
	for i, k := range keys {
		assert.Equal(t, k, first.Rows[i].Key)
	}

	for i := 0; i < 10; i++ {
		again := engine.Reconcile(a, b)
		assert.Equal(t, first.Rows, again.Rows)
	}
}

func TestReconcileChainPairwise(t *testing.T) {
	engine := New()

	chain := []Set{
		{Source: record.SourceSalesforce, Records: []record.Record{rec(record.SourceSalesforce, "a1", "1001", "100.00")}},
		{Source: record.SourceQuickBooks, Records: []record.Record{rec(record.SourceQuickBooks, "b1", "1001", "100.00")}},
		{Source: record.SourceAvalara, Records: []record.Record{rec(record.SourceAvalara, "c1", "1001", "90.00")}},
	}

	tables := engine.ReconcileChain(chain)
	require.Len(t, tables, 2)

	assert.Equal(t, record.SourceSalesforce, tables[0].SourceA)
	assert.Equal(t, record.SourceQuickBooks, tables[0].SourceB)
	assert.Equal(t, StatusMatched, tables[0].Rows[0].Status)

	assert.Equal(t, record.SourceQuickBooks, tables[1].SourceA)
	assert.Equal(t, record.SourceAvalara, tables[1].SourceB)
	assert.Equal(t, StatusAmountMismatch, tables[1].Rows[0].Status)
}

func TestReconcileChainTooShort(t *testing.T) {
	engine := New()
	assert.Nil(t, engine.ReconcileChain(nil))
	assert.Nil(t, engine.ReconcileChain([]Set{{Source: record.SourceShopify}}))
}
