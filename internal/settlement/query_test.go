package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyTotals(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")
	seedStandardOrder(t, db, "ORD_2")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)
	_, err = svc.Generate("ORD_2", ReasonOrderCompleted)
	require.NoError(t, err)

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	totals, err := query.PartyTotals("SEL_001", PartySeller, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.ItemCount)
	assertDecimal(t, "200.00", totals.GrossAmount)
	assertDecimal(t, "20.00", totals.CommissionAmount)
	assertDecimal(t, "180.00", totals.NetAmount)

	platform, err := query.PartyTotals("platform", PartyPlatform, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, platform.ItemCount)
	assertDecimal(t, "20.00", platform.NetAmount)
}

func TestPartyTotalsEmptyPeriod(t *testing.T) {
	db := setupTestDB(t)
	query := NewQueryService(db)

	totals, err := query.PartyTotals("SEL_001", PartySeller,
		time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, totals.ItemCount)
	assert.True(t, totals.GrossAmount.IsZero())
	assert.True(t, totals.NetAmount.IsZero())
}

// A fully refunded order nets every party to exactly zero.
func TestNetPositionZeroAfterFullRefund(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)
	_, err = svc.ReverseOrder("ORD_1")
	require.NoError(t, err)

	for party, partyType := range map[string]PartyType{
		"SEL_001":  PartySeller,
		"SUP_001":  PartySupplier,
		"platform": PartyPlatform,
	} {
		net, err := query.NetPosition(party, partyType)
		require.NoError(t, err)
		assert.True(t, net.IsZero(), "%s net position %s, want zero", party, net)
	}
}

func TestNetPositionUnrefundedOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)

	net, err := query.NetPosition("SEL_001", PartySeller)
	require.NoError(t, err)
	assertDecimal(t, "90.00", net)
}

func TestPartyTotalsExcludesCancelledBatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)

	batch, err := svc.CreateBatch(time.Time{}, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = svc.Cancel(batch.SettlementID)
	require.NoError(t, err)

	totals, err := query.PartyTotals("SEL_001", PartySeller,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, totals.ItemCount)
	assert.True(t, totals.NetAmount.IsZero())

	net, err := query.NetPosition("SEL_001", PartySeller)
	require.NoError(t, err)
	assert.True(t, net.IsZero())
}

func TestPartyTotalsIncludesFinalizedBatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)

	batch, err := svc.CreateBatch(time.Time{}, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = svc.Finalize(batch.SettlementID)
	require.NoError(t, err)

	totals, err := query.PartyTotals("SEL_001", PartySeller,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, totals.ItemCount)
	assertDecimal(t, "90.00", totals.NetAmount)
}

func TestOrderBreakdownGroupsParties(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	query := NewQueryService(db)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)
	_, err = svc.ReverseOrder("ORD_1")
	require.NoError(t, err)

	breakdown, err := query.OrderBreakdown("ORD_1")
	require.NoError(t, err)
	assert.Equal(t, "ORD_1", breakdown.OrderID)
	assert.Len(t, breakdown.Items, 6)
	require.Len(t, breakdown.Parties, 3)

	for _, pos := range breakdown.Parties {
		assert.Equal(t, 2, pos.ItemCount)
		assert.True(t, pos.NetAmount.IsZero(),
			"%s/%s net %s, want zero after full refund", pos.PartyType, pos.PartyID, pos.NetAmount)
	}
}

func TestOrderBreakdownUnknownOrder(t *testing.T) {
	db := setupTestDB(t)
	query := NewQueryService(db)

	breakdown, err := query.OrderBreakdown("ORD_missing")
	require.NoError(t, err)
	assert.Empty(t, breakdown.Items)
	assert.Empty(t, breakdown.Parties)
}
