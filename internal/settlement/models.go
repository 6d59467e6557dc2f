package settlement

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartyType identifies which stakeholder a settlement item pays out to
type PartyType string

const (
	PartySeller   PartyType = "seller"
	PartySupplier PartyType = "supplier"
	PartyPlatform PartyType = "platform"
	PartyPartner  PartyType = "partner"
)

// ReasonCode records why a settlement item was generated
type ReasonCode string

const (
	ReasonOrderCompleted ReasonCode = "order_completed"
	ReasonRefund         ReasonCode = "refund"
	ReasonAdjustment     ReasonCode = "adjustment"
)

// Settlement batch statuses
const (
	BatchOpen      = "open"
	BatchFinalized = "finalized"
	BatchCancelled = "cancelled"
)

// Metadata keys written into SettlementItem.Metadata
const (
	MetaCalculatedAt   = "calculated_at"
	MetaReversedItemID = "reversed_settlement_item_id"
	MetaRefundedAt     = "refunded_at"
	MetaOriginalReason = "original_reason"
)

// SettlementItem is one append-only ledger row recording one party's stake in
// one order item for one reason. Rows are never updated after creation;
// corrections happen exclusively through new reversal or adjustment rows.
type SettlementItem struct {
	gorm.Model   `json:"-"`
	ItemID       string  `gorm:"uniqueIndex" json:"item_id"`
	SettlementID *string `gorm:"index" json:"settlement_id,omitempty"` // null until grouped into a batch

	OrderID     string     `gorm:"index" json:"order_id"`
	OrderItemID string     `json:"order_item_id"`
	PartyType   PartyType  `json:"party_type"`
	PartyID     string     `gorm:"index" json:"party_id"`
	ReasonCode  ReasonCode `gorm:"index" json:"reason_code"`

	GrossAmount      decimal.Decimal `gorm:"type:decimal(20,2)" json:"gross_amount"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"commission_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(20,2)" json:"net_amount"`

	// Snapshot fields copied verbatim from the order item for audit
	// immutability: queries never need to re-join the order tables.
	ProductName       string              `json:"product_name"`
	Quantity          int64               `json:"quantity"`
	SalePriceSnapshot decimal.Decimal     `gorm:"type:decimal(20,2)" json:"sale_price_snapshot"`
	BasePriceSnapshot decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"base_price_snapshot,omitempty"`
	CommissionType    *string             `json:"commission_type,omitempty"`
	CommissionRate    decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"commission_rate,omitempty"`
	SellerID          *string             `json:"seller_id,omitempty"`
	SupplierID        *string             `json:"supplier_id,omitempty"`

	Metadata  string    `json:"metadata"` // JSON object with provenance, e.g. reversed_settlement_item_id
	CreatedAt time.Time `json:"created_at"`
}

// Settlement is a batch header grouping items finalized together for payout
type Settlement struct {
	gorm.Model   `json:"-"`
	SettlementID string     `gorm:"uniqueIndex" json:"settlement_id"`
	Status       string     `json:"status"` // open, finalized, cancelled
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ItemCandidate is a settlement item before it has been assigned an ID and
// persisted. The calculator and reversal engine emit candidates; only the
// batch manager turns them into stored SettlementItems.
type ItemCandidate struct {
	OrderID     string
	OrderItemID string
	PartyType   PartyType
	PartyID     string
	ReasonCode  ReasonCode

	GrossAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	NetAmount        decimal.Decimal

	ProductName       string
	Quantity          int64
	SalePriceSnapshot decimal.Decimal
	BasePriceSnapshot decimal.NullDecimal
	CommissionType    *string
	CommissionRate    decimal.NullDecimal
	SellerID          *string
	SupplierID        *string

	Metadata map[string]string
}

// BatchResponse is returned by batch lifecycle endpoints
type BatchResponse struct {
	SettlementID string     `json:"settlement_id"`
	Status       string     `json:"status"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	ItemCount    int64      `json:"item_count"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// OrderBreakdownResponse groups an order's settlement rows per party
type OrderBreakdownResponse struct {
	OrderID string           `json:"order_id"`
	Parties []PartyPosition  `json:"parties"`
	Items   []SettlementItem `json:"items"`
}

// PartyPosition is one party's summed position within an order breakdown
type PartyPosition struct {
	PartyType        PartyType       `json:"party_type"`
	PartyID          string          `json:"party_id"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	ItemCount        int             `json:"item_count"`
}
