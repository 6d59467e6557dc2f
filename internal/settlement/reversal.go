package settlement

import (
	"time"

	"github.com/rs/zerolog/log"
)

// ReversalEngine produces the exact negation set for previously persisted
// settlement items. It depends only on the stored item shape, never on the
// calculator's logic: a reversal is derived from what was actually paid, not
// re-derived from the order.
type ReversalEngine struct {
	now func() time.Time
}

func NewReversalEngine() *ReversalEngine {
	return &ReversalEngine{now: time.Now}
}

// Reverse emits one refund candidate per original item with all three money
// fields negated and provenance metadata linking back to the original row.
// Items that are themselves reversals are skipped, never re-reversed. An
// empty input is valid and yields an empty output. Partial refunds work by
// passing only the items belonging to the refunded order items.
func (e *ReversalEngine) Reverse(orderID string, originals []SettlementItem) []ItemCandidate {
	logger := log.With().
		Str("order_id", orderID).
		Str("service", "settlement_reversal").
		Logger()

	refundedAt := e.now().UTC().Format(time.RFC3339Nano)
	candidates := make([]ItemCandidate, 0, len(originals))

	for _, original := range originals {
		if original.ReasonCode == ReasonRefund {
			logger.Warn().
				Str("item_id", original.ItemID).
				Msg("refusing to reverse an item that is itself a reversal")
			continue
		}

		candidates = append(candidates, ItemCandidate{
			OrderID:     original.OrderID,
			OrderItemID: original.OrderItemID,
			PartyType:   original.PartyType,
			PartyID:     original.PartyID,
			ReasonCode:  ReasonRefund,

			GrossAmount:      original.GrossAmount.Neg(),
			CommissionAmount: original.CommissionAmount.Neg(),
			NetAmount:        original.NetAmount.Neg(),

			ProductName:       original.ProductName,
			Quantity:          original.Quantity,
			SalePriceSnapshot: original.SalePriceSnapshot,
			BasePriceSnapshot: original.BasePriceSnapshot,
			CommissionType:    original.CommissionType,
			CommissionRate:    original.CommissionRate,
			SellerID:          original.SellerID,
			SupplierID:        original.SupplierID,

			Metadata: map[string]string{
				MetaReversedItemID: original.ItemID,
				MetaRefundedAt:     refundedAt,
				MetaOriginalReason: string(original.ReasonCode),
			},
		})
	}

	logger.Debug().
		Int("original_count", len(originals)).
		Int("reversal_count", len(candidates)).
		Msg("completed reversal calculation")

	return candidates
}
