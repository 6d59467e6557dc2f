package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	gorm.Model `json:"-"`
	OrderID    string    `gorm:"uniqueIndex" json:"order_id"`
	ClientID   string    `json:"client_id"`
	PartnerID  *string   `json:"partner_id,omitempty"` // referral partner, carried on the order not per item
	Status     string    `json:"status"`               // OPEN, COMPLETED, REFUNDED
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderItemSnapshot is the frozen per-item view the order subsystem hands to
// settlement. Prices and commission are captured at completion time and are
// never re-validated against current catalog state.
type OrderItemSnapshot struct {
	gorm.Model  `json:"-"`
	OrderID     string `gorm:"index" json:"order_id"`
	OrderItemID string `gorm:"uniqueIndex" json:"order_item_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`

	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,2)" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_price"`

	SalePriceSnapshot decimal.Decimal     `gorm:"type:decimal(20,2)" json:"sale_price_snapshot"`
	BasePriceSnapshot decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"base_price_snapshot,omitempty"` // supplier cost basis, absent means no supplier settlement

	CommissionType   *string             `json:"commission_type,omitempty"` // rate or fixed
	CommissionRate   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"commission_rate,omitempty"`
	CommissionAmount decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"commission_amount,omitempty"` // precomputed by the order subsystem, authoritative

	SellerID   *string `gorm:"index" json:"seller_id,omitempty"`
	SupplierID *string `gorm:"index" json:"supplier_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
