package settlement

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketpay/settlement-api/pkg/response"
)

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
	query   *QueryService
}

func NewGinHandlers(service *Service, query *QueryService) *GinHandlers {
	return &GinHandlers{
		service: service,
		query:   query,
	}
}

// GenerateHandler handles POST requests to generate settlement items for an
// order. Requires internal authentication.
// URL parameter: order_id. Optional body: {"reason_code": "..."}, defaulting
// to order_completed.
func (h *GinHandlers) GenerateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")

		request := struct {
			ReasonCode ReasonCode `json:"reason_code"`
		}{ReasonCode: ReasonOrderCompleted}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
		}

		items, err := h.service.Generate(orderID, request.ReasonCode)
		handleSettlementError(c, items, err)
	}
}

// ReverseOrderHandler handles POST requests to reverse an order's settlement
// items after a refund. Requires internal authentication.
// URL parameter: order_id
func (h *GinHandlers) ReverseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")

		items, err := h.service.ReverseOrder(orderID)
		handleSettlementError(c, items, err)
	}
}

// CreateBatchHandler handles POST requests to group un-batched items into a
// new settlement batch for the given period
func (h *GinHandlers) CreateBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			PeriodStart time.Time `json:"period_start"`
			PeriodEnd   time.Time `json:"period_end" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		batch, err := h.service.CreateBatch(request.PeriodStart, request.PeriodEnd)
		response.Handle(c, batch, err)
	}
}

// FinalizeHandler handles POST requests to finalize an open batch
// URL parameter: settlement_id
func (h *GinHandlers) FinalizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settlementID := c.Param("settlement_id")

		batch, err := h.service.Finalize(settlementID)
		handleSettlementError(c, batch, err)
	}
}

// CancelHandler handles POST requests to cancel an open batch
// URL parameter: settlement_id
func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settlementID := c.Param("settlement_id")

		batch, err := h.service.Cancel(settlementID)
		handleSettlementError(c, batch, err)
	}
}

// PartyTotalsHandler handles GET requests for per-party totals over a period.
// Query parameters: party_id, party_type, period_start, period_end (RFC3339)
func (h *GinHandlers) PartyTotalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partyID := c.Query("party_id")
		partyType := c.Query("party_type")
		if partyID == "" || partyType == "" {
			response.BadRequest(c, "party_id and party_type are required")
			return
		}

		periodStart, err := time.Parse(time.RFC3339, c.Query("period_start"))
		if err != nil {
			response.BadRequest(c, "period_start must be RFC3339")
			return
		}
		periodEnd, err := time.Parse(time.RFC3339, c.Query("period_end"))
		if err != nil {
			response.BadRequest(c, "period_end must be RFC3339")
			return
		}

		totals, err := h.query.PartyTotals(partyID, PartyType(partyType), periodStart, periodEnd)
		response.Handle(c, totals, err)
	}
}

// OrderBreakdownHandler handles GET requests for an order's per-party breakdown
// URL parameter: order_id
func (h *GinHandlers) OrderBreakdownHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")

		breakdown, err := h.query.OrderBreakdown(orderID)
		response.Handle(c, breakdown, err)
	}
}

// handleSettlementError maps this package's sentinel errors before falling
// back to the shared response handling
func handleSettlementError(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, ErrInvalidStateTransition):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrDuplicateGeneration):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNothingToReverse):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUnsupportedReason):
		response.BadRequest(c, err.Error())
	default:
		response.Handle(c, data, err)
	}
}
