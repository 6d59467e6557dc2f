package settlement

import (
	"time"

	"github.com/marketpay/settlement-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Calculator derives settlement item candidates from order item snapshots.
// It is pure: no storage access, no side effects, and the clock is read once
// per call for provenance metadata only. Any number of calculations may run
// concurrently across orders without coordination.
type Calculator struct {
	now func() time.Time
}

func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// Calculate emits up to four candidates per order item, in the fixed order
// seller, supplier, platform, partner. The ordering carries no semantics but
// keeps test fixtures and audit diffs deterministic.
//
// The commission figure is consumed as-is from the snapshot. The order
// subsystem precomputed it; rate-based recomputation (and with it the
// rounding policy) is deliberately not this component's job.
func (c *Calculator) Calculate(order *types.Order, items []types.OrderItemSnapshot) []ItemCandidate {
	logger := log.With().
		Str("order_id", order.OrderID).
		Str("service", "settlement_calculator").
		Logger()

	calculatedAt := c.now().UTC().Format(time.RFC3339Nano)
	candidates := make([]ItemCandidate, 0, len(items)*3)

	for _, item := range items {
		commission := decimal.Zero
		if item.CommissionAmount.Valid {
			commission = item.CommissionAmount.Decimal
		}

		// Seller: gross is the full item price, commission leaves the seller
		if item.SellerID != nil {
			gross := item.TotalPrice
			candidates = append(candidates, snapshotCandidate(
				item, PartySeller, *item.SellerID,
				gross, commission, gross.Sub(commission),
				calculatedAt,
			))
		} else {
			logger.Warn().
				Str("order_item_id", item.OrderItemID).
				Msg("order item has no seller attribution, skipping seller settlement")
		}

		// Supplier: paid its cost basis, untouched by commission. A missing
		// cost basis is a hard skip, not a zero amount.
		if item.SupplierID != nil {
			if item.BasePriceSnapshot.Valid {
				supplierGross := item.BasePriceSnapshot.Decimal.Mul(decimal.NewFromInt(item.Quantity))
				candidates = append(candidates, snapshotCandidate(
					item, PartySupplier, *item.SupplierID,
					supplierGross, decimal.Zero, supplierGross,
					calculatedAt,
				))
			} else {
				logger.Warn().
					Str("order_item_id", item.OrderItemID).
					Str("supplier_id", *item.SupplierID).
					Msg("supplier present without cost basis snapshot, skipping supplier settlement")
			}
		}

		// Platform: receives the commission. A zero-commission item produces
		// no platform row at all, and the platform pays no commission on its
		// own row.
		if commission.IsPositive() {
			candidates = append(candidates, snapshotCandidate(
				item, PartyPlatform, "platform",
				commission, decimal.Zero, commission,
				calculatedAt,
			))
		}

		// Partner: attempted whenever the order carries a referral partner
		if order.PartnerID != nil {
			if cand := partnerShare(order, item, calculatedAt); cand != nil {
				candidates = append(candidates, *cand)
			} else {
				logger.Debug().
					Str("order_item_id", item.OrderItemID).
					Str("partner_id", *order.PartnerID).
					Msg("partner present but no commission policy configured, no partner settlement emitted")
			}
		}
	}

	logger.Debug().
		Int("item_count", len(items)).
		Int("candidate_count", len(candidates)).
		Msg("completed settlement calculation")

	return candidates
}

// partnerShare is the extension point for referral partner payouts. The
// commission policy for partners is not specified yet, so no partner row is
// ever emitted. Do not invent a formula here: wire the agreed policy in when
// the business rule lands.
func partnerShare(order *types.Order, item types.OrderItemSnapshot, calculatedAt string) *ItemCandidate {
	_ = order
	_ = item
	_ = calculatedAt
	return nil
}

// snapshotCandidate builds a candidate carrying verbatim copies of the order
// item snapshot fields for audit immutability.
func snapshotCandidate(
	item types.OrderItemSnapshot,
	party PartyType,
	partyID string,
	gross, commission, net decimal.Decimal,
	calculatedAt string,
) ItemCandidate {
	return ItemCandidate{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		PartyType:   party,
		PartyID:     partyID,
		ReasonCode:  ReasonOrderCompleted,

		GrossAmount:      gross,
		CommissionAmount: commission,
		NetAmount:        net,

		ProductName:       item.ProductName,
		Quantity:          item.Quantity,
		SalePriceSnapshot: item.SalePriceSnapshot,
		BasePriceSnapshot: item.BasePriceSnapshot,
		CommissionType:    item.CommissionType,
		CommissionRate:    item.CommissionRate,
		SellerID:          item.SellerID,
		SupplierID:        item.SupplierID,

		Metadata: map[string]string{
			MetaCalculatedAt: calculatedAt,
		},
	}
}
