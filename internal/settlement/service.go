package settlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the batch manager: it orchestrates calculation, enforces
// at-most-once generation per (order, reason) pair, and owns the batch
// lifecycle. It is the only settlement component that touches storage.
type Service struct {
	db         *Database
	calculator *Calculator
	reversals  *ReversalEngine
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		calculator: NewCalculator(),
		reversals:  NewReversalEngine(),
	}
}

// Generate computes and persists the settlement items for an order under the
// given reason code. It is idempotent: if items for the (order, reason) pair
// already exist they are returned unchanged and nothing is written. That
// makes it safe for the order lifecycle to call redundantly on retry.
func (s *Service) Generate(orderID string, reason ReasonCode) ([]SettlementItem, error) {
	logger := log.With().
		Str("order_id", orderID).
		Str("reason_code", string(reason)).
		Str("service", "settlement").
		Logger()

	existing, err := s.db.GetItemsByOrderAndReason(orderID, reason)
	if err != nil {
		logger.Error().Err(err).Msg("failed to check for existing settlement items")
		return nil, fmt.Errorf("failed to check for existing settlement items: %w", err)
	}
	if len(existing) > 0 {
		logger.Info().
			Int("item_count", len(existing)).
			Msg("settlement items already generated, returning existing set")
		return existing, nil
	}

	var candidates []ItemCandidate
	switch reason {
	case ReasonOrderCompleted:
		order, err := s.db.GetOrderByID(orderID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch order")
			return nil, err
		}
		snapshots, err := s.db.GetOrderItemSnapshots(orderID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch order item snapshots")
			return nil, err
		}
		candidates = s.calculator.Calculate(order, snapshots)

	case ReasonRefund:
		originals, err := s.db.GetItemsByOrderAndReason(orderID, ReasonOrderCompleted)
		if err != nil {
			logger.Error().Err(err).Msg("failed to fetch items to reverse")
			return nil, fmt.Errorf("failed to fetch items to reverse: %w", err)
		}
		if len(originals) == 0 {
			logger.Warn().Msg("refund requested but no completed settlement items exist")
			return nil, ErrNothingToReverse
		}
		candidates = s.reversals.Reverse(orderID, originals)

	default:
		// Adjustment rows are created by explicit correction flows, not by
		// order-driven generation.
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedReason, reason)
	}

	if len(candidates) == 0 {
		logger.Warn().Msg("no settlement candidates produced for order")
		return []SettlementItem{}, nil
	}

	items := make([]SettlementItem, 0, len(candidates))
	for _, cand := range candidates {
		item, err := cand.toItem("SIT_" + uuid.New().String())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := s.db.CreateItems(items); err != nil {
		if isUniqueViolation(err) {
			// A concurrent generation for the same pair won the race; our
			// transaction rolled back completely. The caller retries and the
			// idempotent read above returns the winner's rows.
			logger.Warn().Err(err).Msg("lost generation race on uniqueness constraint")
			return nil, ErrDuplicateGeneration
		}
		logger.Error().Err(err).Msg("failed to persist settlement items")
		return nil, fmt.Errorf("failed to persist settlement items: %w", err)
	}

	logger.Info().
		Int("item_count", len(items)).
		Msg("settlement items generated")

	return items, nil
}

// ReverseOrder generates the reversal set for a refunded order. Delegating to
// Generate keeps the idempotency discipline on a single code path: reversing
// twice returns the same rows.
func (s *Service) ReverseOrder(orderID string) ([]SettlementItem, error) {
	return s.Generate(orderID, ReasonRefund)
}

// CreateBatch groups every un-batched item created within the period under a
// new open Settlement. A zero periodStart means no lower bound.
func (s *Service) CreateBatch(periodStart, periodEnd time.Time) (*BatchResponse, error) {
	logger := log.With().
		Time("period_start", periodStart).
		Time("period_end", periodEnd).
		Str("service", "settlement").
		Logger()

	batch := &Settlement{
		SettlementID: "STL_" + uuid.New().String(),
		Status:       BatchOpen,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	attached, err := s.db.CreateBatchWithItems(batch, periodStart, periodEnd)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create settlement batch")
		return nil, fmt.Errorf("failed to create settlement batch: %w", err)
	}

	logger.Info().
		Str("settlement_id", batch.SettlementID).
		Int64("item_count", attached).
		Msg("settlement batch created")

	return &BatchResponse{
		SettlementID: batch.SettlementID,
		Status:       batch.Status,
		PeriodStart:  batch.PeriodStart,
		PeriodEnd:    batch.PeriodEnd,
		ItemCount:    attached,
		Timestamp:    time.Now(),
	}, nil
}

// Finalize locks an open batch's membership. The transition is terminal:
// finalized batches are immutable and can only be countered by a reversal
// batch, never cancelled.
func (s *Service) Finalize(settlementID string) (*BatchResponse, error) {
	logger := log.With().
		Str("settlement_id", settlementID).
		Str("service", "settlement").
		Logger()

	batch, err := s.db.GetSettlement(settlementID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchOpen {
		logger.Warn().
			Str("status", batch.Status).
			Msg("finalize rejected for non-open batch")
		return nil, fmt.Errorf("%w: cannot finalize %s batch", ErrInvalidStateTransition, batch.Status)
	}

	count, err := s.db.CountBatchItems(settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to count batch items: %w", err)
	}

	now := time.Now()
	batch.Status = BatchFinalized
	batch.FinalizedAt = &now
	batch.UpdatedAt = now
	if err := s.db.UpdateSettlement(batch); err != nil {
		logger.Error().Err(err).Msg("failed to finalize settlement batch")
		return nil, fmt.Errorf("failed to finalize settlement batch: %w", err)
	}

	logger.Info().
		Int64("item_count", count).
		Msg("settlement batch finalized")

	return &BatchResponse{
		SettlementID: batch.SettlementID,
		Status:       batch.Status,
		PeriodStart:  batch.PeriodStart,
		PeriodEnd:    batch.PeriodEnd,
		ItemCount:    count,
		FinalizedAt:  batch.FinalizedAt,
		Timestamp:    now,
	}, nil
}

// Cancel discards an open batch. Items keep their batch reference for audit
// but queries exclude them from payouts. Cancelling a finalized batch is
// always rejected.
func (s *Service) Cancel(settlementID string) (*BatchResponse, error) {
	logger := log.With().
		Str("settlement_id", settlementID).
		Str("service", "settlement").
		Logger()

	batch, err := s.db.GetSettlement(settlementID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchOpen {
		logger.Warn().
			Str("status", batch.Status).
			Msg("cancel rejected for non-open batch")
		return nil, fmt.Errorf("%w: cannot cancel %s batch", ErrInvalidStateTransition, batch.Status)
	}

	count, err := s.db.CountBatchItems(settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to count batch items: %w", err)
	}

	batch.Status = BatchCancelled
	batch.UpdatedAt = time.Now()
	if err := s.db.UpdateSettlement(batch); err != nil {
		logger.Error().Err(err).Msg("failed to cancel settlement batch")
		return nil, fmt.Errorf("failed to cancel settlement batch: %w", err)
	}

	logger.Info().
		Int64("item_count", count).
		Msg("settlement batch cancelled")

	return &BatchResponse{
		SettlementID: batch.SettlementID,
		Status:       batch.Status,
		PeriodStart:  batch.PeriodStart,
		PeriodEnd:    batch.PeriodEnd,
		ItemCount:    count,
		Timestamp:    time.Now(),
	}, nil
}

// GetDB exposes the database wrapper for the batch sweeper
func (s *Service) GetDB() *Database {
	return s.db
}

// toItem converts a candidate into a persistable row, serializing its
// provenance metadata.
func (c ItemCandidate) toItem(itemID string) (SettlementItem, error) {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return SettlementItem{}, fmt.Errorf("failed to marshal item metadata: %w", err)
	}

	return SettlementItem{
		ItemID:      itemID,
		OrderID:     c.OrderID,
		OrderItemID: c.OrderItemID,
		PartyType:   c.PartyType,
		PartyID:     c.PartyID,
		ReasonCode:  c.ReasonCode,

		GrossAmount:      c.GrossAmount,
		CommissionAmount: c.CommissionAmount,
		NetAmount:        c.NetAmount,

		ProductName:       c.ProductName,
		Quantity:          c.Quantity,
		SalePriceSnapshot: c.SalePriceSnapshot,
		BasePriceSnapshot: c.BasePriceSnapshot,
		CommissionType:    c.CommissionType,
		CommissionRate:    c.CommissionRate,
		SellerID:          c.SellerID,
		SupplierID:        c.SupplierID,

		Metadata:  string(meta),
		CreatedAt: time.Now(),
	}, nil
}

// isUniqueViolation detects the storage-layer uniqueness constraint on
// (order_id, order_item_id, party_type, reason_code) firing under a
// concurrent generation race.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
