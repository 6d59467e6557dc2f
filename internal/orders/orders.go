package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketpay/settlement-api/internal/auth"
	"github.com/marketpay/settlement-api/internal/types"
	"github.com/marketpay/settlement-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidSnapshot rejects ingestion payloads that violate the snapshot
// contract (quantities, price consistency, commission bounds).
var ErrInvalidSnapshot = errors.New("invalid order item snapshot")

// Service ingests immutable order snapshots from the order subsystem. The
// settlement engine never re-fetches or re-validates prices against catalog
// state; what is accepted here is what settlement will see.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateOrder ingests an order and its item snapshots with idempotency
// support. A replayed idempotency key returns the originally stored order.
func (s *Service) CreateOrder(request *types.CreateOrderRequest, idempotencyKey string) (*types.OrderResponse, error) {
	logger := log.With().
		Str("client_id", request.ClientID).
		Str("service", "orders").
		Logger()

	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err == nil && record != nil && record.ExpiresAt.After(time.Now()) {
		existing, err := s.db.GetOrder(record.ResourceID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			items, err := s.db.GetOrderItems(existing.OrderID)
			if err != nil {
				return nil, err
			}
			logger.Info().
				Str("order_id", existing.OrderID).
				Msg("idempotency key replay, returning existing order")
			return &types.OrderResponse{Order: *existing, Items: items}, nil
		}
	}

	if err := validateRequest(request); err != nil {
		return nil, err
	}

	order := &types.Order{
		OrderID:   "ORD_" + uuid.New().String(),
		ClientID:  request.ClientID,
		PartnerID: request.PartnerID,
		Status:    "OPEN",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	items := make([]types.OrderItemSnapshot, 0, len(request.Items))
	for _, req := range request.Items {
		items = append(items, types.OrderItemSnapshot{
			OrderID:           order.OrderID,
			OrderItemID:       "OIT_" + uuid.New().String(),
			ProductName:       req.ProductName,
			Quantity:          req.Quantity,
			UnitPrice:         req.UnitPrice,
			TotalPrice:        req.TotalPrice,
			SalePriceSnapshot: req.SalePriceSnapshot,
			BasePriceSnapshot: req.BasePriceSnapshot,
			CommissionType:    req.CommissionType,
			CommissionRate:    req.CommissionRate,
			CommissionAmount:  req.CommissionAmount,
			SellerID:          req.SellerID,
			SupplierID:        req.SupplierID,
			CreatedAt:         time.Now(),
		})
	}

	if err := s.db.CreateOrderWithIdempotency(order, items, idempotencyKey); err != nil {
		logger.Error().Err(err).Msg("failed to persist order snapshot")
		return nil, fmt.Errorf("failed to persist order snapshot: %w", err)
	}

	logger.Info().
		Str("order_id", order.OrderID).
		Int("item_count", len(items)).
		Msg("order snapshot ingested")

	return &types.OrderResponse{Order: *order, Items: items}, nil
}

// GetOrder retrieves an order with its item snapshots
func (s *Service) GetOrder(orderID string) (*types.OrderResponse, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	items, err := s.db.GetOrderItems(orderID)
	if err != nil {
		return nil, err
	}
	return &types.OrderResponse{Order: *order, Items: items}, nil
}

// GetOrderForClient retrieves an order scoped to the authenticated client
func (s *Service) GetOrderForClient(orderID, clientID string) (*types.OrderResponse, error) {
	order, err := s.db.GetOrderByOrderIDAndClientID(orderID, clientID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	items, err := s.db.GetOrderItems(orderID)
	if err != nil {
		return nil, err
	}
	return &types.OrderResponse{Order: *order, Items: items}, nil
}

func validateRequest(request *types.CreateOrderRequest) error {
	for i, item := range request.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidSnapshot, i)
		}
		if item.UnitPrice.IsNegative() || item.TotalPrice.IsNegative() {
			return fmt.Errorf("%w: item %d: prices must not be negative", ErrInvalidSnapshot, i)
		}
		if !item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Equal(item.TotalPrice) {
			return fmt.Errorf("%w: item %d: total price does not equal unit price times quantity", ErrInvalidSnapshot, i)
		}
		if item.CommissionAmount.Valid && item.CommissionAmount.Decimal.IsNegative() {
			return fmt.Errorf("%w: item %d: commission amount must not be negative", ErrInvalidSnapshot, i)
		}
		if item.CommissionRate.Valid &&
			(item.CommissionRate.Decimal.IsNegative() || item.CommissionRate.Decimal.GreaterThan(hundred)) {
			return fmt.Errorf("%w: item %d: commission rate must be between 0 and 100", ErrInvalidSnapshot, i)
		}
		if item.CommissionType != nil && *item.CommissionType != "rate" && *item.CommissionType != "fixed" {
			return fmt.Errorf("%w: item %d: commission type must be rate or fixed", ErrInvalidSnapshot, i)
		}
		if item.BasePriceSnapshot.Valid && item.BasePriceSnapshot.Decimal.IsNegative() {
			return fmt.Errorf("%w: item %d: base price snapshot must not be negative", ErrInvalidSnapshot, i)
		}
	}
	return nil
}

// GinHandlers contains HTTP handlers for order ingestion endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateOrderHandler handles POST requests to ingest order snapshots
// Requires a valid JWT token and idempotency key in headers
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		var request types.CreateOrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(&request, idempotencyKey)
		if err != nil {
			if errors.Is(err, ErrInvalidSnapshot) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, order)
	}
}

// GetOrderHandler handles GET requests to retrieve an ingested order
// Requires a valid JWT token; the order must belong to the caller
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		clientID := auth.GetClientID(claims)
		if clientID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrderForClient(orderID, clientID)
		if err != nil || order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		response.Success(c, order)
	}
}
