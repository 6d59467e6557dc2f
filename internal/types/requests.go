package types

import "github.com/shopspring/decimal"

// CreateOrderRequest is the ingestion payload from the order subsystem
type CreateOrderRequest struct {
	ClientID  string             `json:"client_id" binding:"required"`
	PartnerID *string            `json:"partner_id,omitempty"`
	Items     []OrderItemRequest `json:"items" binding:"required,min=1"`
}

type OrderItemRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required"`

	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`

	SalePriceSnapshot decimal.Decimal     `json:"sale_price_snapshot"`
	BasePriceSnapshot decimal.NullDecimal `json:"base_price_snapshot,omitempty"`

	CommissionType   *string             `json:"commission_type,omitempty"`
	CommissionRate   decimal.NullDecimal `json:"commission_rate,omitempty"`
	CommissionAmount decimal.NullDecimal `json:"commission_amount,omitempty"`

	SellerID   *string `json:"seller_id,omitempty"`
	SupplierID *string `json:"supplier_id,omitempty"`
}
