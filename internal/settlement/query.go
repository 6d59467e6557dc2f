package settlement

import (
	"time"

	"github.com/marketpay/settlement-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QueryService is the read side: per-party totals, per-order breakdowns and
// net positions over persisted items. It has no write path. Because reversals
// are separate rows rather than mutations, every aggregate here is a plain
// sum over matching rows, which uniformly covers completed, partially
// refunded and fully refunded orders.
//
// Summation happens in Go on decimal values rather than in SQL, keeping the
// fixed-point arithmetic out of the storage engine's numeric coercion.
type QueryService struct {
	db *Database
}

func NewQueryService(gormDB *gorm.DB) *QueryService {
	return &QueryService{db: NewDatabase(gormDB)}
}

// PartyTotals sums gross, commission and net for one party over a period.
// Items attached to cancelled batches are excluded.
func (q *QueryService) PartyTotals(partyID string, partyType PartyType, periodStart, periodEnd time.Time) (*types.PartyTotalsResponse, error) {
	items, err := q.db.GetItemsForParty(partyID, partyType, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	gross, commission, net := sumItems(items)

	return &types.PartyTotalsResponse{
		PartyID:          partyID,
		PartyType:        string(partyType),
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		GrossAmount:      gross,
		CommissionAmount: commission,
		NetAmount:        net,
		ItemCount:        len(items),
	}, nil
}

// OrderBreakdown returns an order's rows grouped into per-party positions,
// original and reversal rows summed together.
func (q *QueryService) OrderBreakdown(orderID string) (*OrderBreakdownResponse, error) {
	items, err := q.db.GetItemsByOrder(orderID)
	if err != nil {
		return nil, err
	}

	type partyKey struct {
		partyType PartyType
		partyID   string
	}

	positions := make(map[partyKey]*PartyPosition)
	order := make([]partyKey, 0)
	for _, item := range items {
		key := partyKey{item.PartyType, item.PartyID}
		pos, ok := positions[key]
		if !ok {
			pos = &PartyPosition{
				PartyType:        item.PartyType,
				PartyID:          item.PartyID,
				GrossAmount:      decimal.Zero,
				CommissionAmount: decimal.Zero,
				NetAmount:        decimal.Zero,
			}
			positions[key] = pos
			order = append(order, key)
		}
		pos.GrossAmount = pos.GrossAmount.Add(item.GrossAmount)
		pos.CommissionAmount = pos.CommissionAmount.Add(item.CommissionAmount)
		pos.NetAmount = pos.NetAmount.Add(item.NetAmount)
		pos.ItemCount++
	}

	parties := make([]PartyPosition, 0, len(order))
	for _, key := range order {
		parties = append(parties, *positions[key])
	}

	return &OrderBreakdownResponse{
		OrderID: orderID,
		Parties: parties,
		Items:   items,
	}, nil
}

// NetPosition returns sum(netAmount) over all of a party's payout-relevant
// rows, originals plus reversals.
func (q *QueryService) NetPosition(partyID string, partyType PartyType) (decimal.Decimal, error) {
	items, err := q.db.GetPartyItemsAllTime(partyID, partyType)
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, item := range items {
		net = net.Add(item.NetAmount)
	}
	return net, nil
}

func sumItems(items []SettlementItem) (gross, commission, net decimal.Decimal) {
	gross, commission, net = decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range items {
		gross = gross.Add(item.GrossAmount)
		commission = commission.Add(item.CommissionAmount)
		net = net.Add(item.NetAmount)
	}
	return gross, commission, net
}
