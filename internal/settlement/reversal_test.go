package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originalItems() []SettlementItem {
	return []SettlementItem{
		{
			ItemID:           "SIT_1",
			OrderID:          "ORD_1",
			OrderItemID:      "OIT_1",
			PartyType:        PartySeller,
			PartyID:          "SEL_001",
			ReasonCode:       ReasonOrderCompleted,
			GrossAmount:      money("100.00"),
			CommissionAmount: money("10.00"),
			NetAmount:        money("90.00"),
		},
		{
			ItemID:           "SIT_2",
			OrderID:          "ORD_1",
			OrderItemID:      "OIT_1",
			PartyType:        PartySupplier,
			PartyID:          "SUP_001",
			ReasonCode:       ReasonOrderCompleted,
			GrossAmount:      money("60.00"),
			CommissionAmount: decimal.Zero,
			NetAmount:        money("60.00"),
		},
		{
			ItemID:           "SIT_3",
			OrderID:          "ORD_1",
			OrderItemID:      "OIT_1",
			PartyType:        PartyPlatform,
			PartyID:          "platform",
			ReasonCode:       ReasonOrderCompleted,
			GrossAmount:      money("10.00"),
			CommissionAmount: decimal.Zero,
			NetAmount:        money("10.00"),
		},
	}
}

func TestReverseNegatesEveryAmount(t *testing.T) {
	engine := NewReversalEngine()
	originals := originalItems()

	reversals := engine.Reverse("ORD_1", originals)
	require.Len(t, reversals, len(originals))

	for i, rev := range reversals {
		orig := originals[i]
		assert.Equal(t, orig.PartyType, rev.PartyType)
		assert.Equal(t, orig.PartyID, rev.PartyID)
		assert.Equal(t, orig.OrderItemID, rev.OrderItemID)
		assert.Equal(t, ReasonRefund, rev.ReasonCode)

		assert.True(t, rev.GrossAmount.Equal(orig.GrossAmount.Neg()))
		assert.True(t, rev.CommissionAmount.Equal(orig.CommissionAmount.Neg()))
		assert.True(t, rev.NetAmount.Equal(orig.NetAmount.Neg()))
	}
}

// Originals plus their reversals must sum to zero on every money field.
func TestReverseSymmetry(t *testing.T) {
	engine := NewReversalEngine()
	originals := originalItems()

	reversals := engine.Reverse("ORD_1", originals)

	gross, commission, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, orig := range originals {
		gross = gross.Add(orig.GrossAmount)
		commission = commission.Add(orig.CommissionAmount)
		net = net.Add(orig.NetAmount)
	}
	for _, rev := range reversals {
		gross = gross.Add(rev.GrossAmount)
		commission = commission.Add(rev.CommissionAmount)
		net = net.Add(rev.NetAmount)
	}

	assert.True(t, gross.IsZero(), "gross sum %s", gross)
	assert.True(t, commission.IsZero(), "commission sum %s", commission)
	assert.True(t, net.IsZero(), "net sum %s", net)
}

func TestReverseLinksProvenanceMetadata(t *testing.T) {
	engine := NewReversalEngine()
	originals := originalItems()

	reversals := engine.Reverse("ORD_1", originals)
	require.Len(t, reversals, len(originals))

	for i, rev := range reversals {
		assert.Equal(t, originals[i].ItemID, rev.Metadata[MetaReversedItemID])
		assert.Equal(t, string(ReasonOrderCompleted), rev.Metadata[MetaOriginalReason])
		assert.NotEmpty(t, rev.Metadata[MetaRefundedAt])
	}
}

func TestReverseSkipsReversalRows(t *testing.T) {
	engine := NewReversalEngine()
	items := originalItems()
	items = append(items, SettlementItem{
		ItemID:      "SIT_4",
		OrderID:     "ORD_1",
		OrderItemID: "OIT_1",
		PartyType:   PartySeller,
		PartyID:     "SEL_001",
		ReasonCode:  ReasonRefund,
		GrossAmount: money("-100.00"),
		NetAmount:   money("-90.00"),
	})

	reversals := engine.Reverse("ORD_1", items)
	require.Len(t, reversals, 3)

	for _, rev := range reversals {
		assert.NotEqual(t, "SIT_4", rev.Metadata[MetaReversedItemID])
	}
}

func TestReverseEmptyInput(t *testing.T) {
	engine := NewReversalEngine()

	reversals := engine.Reverse("ORD_1", nil)
	assert.Empty(t, reversals)
}

// Partial refunds reverse only the rows handed in, not the whole order.
func TestReversePartialSet(t *testing.T) {
	engine := NewReversalEngine()
	originals := originalItems()[:1]

	reversals := engine.Reverse("ORD_1", originals)
	require.Len(t, reversals, 1)
	assert.Equal(t, PartySeller, reversals[0].PartyType)
	assertDecimal(t, "-90.00", reversals[0].NetAmount)
}
