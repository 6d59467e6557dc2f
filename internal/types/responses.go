package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse represents an ingested order together with its item snapshots
type OrderResponse struct {
	Order Order               `json:"order"`
	Items []OrderItemSnapshot `json:"items"`
}

// PartyTotalsResponse represents aggregated settlement amounts for one party
// over a reporting period
type PartyTotalsResponse struct {
	PartyID          string          `json:"party_id"`
	PartyType        string          `json:"party_type"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	ItemCount        int             `json:"item_count"`
}
