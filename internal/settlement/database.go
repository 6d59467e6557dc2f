package settlement

import (
	"fmt"
	"time"

	"github.com/marketpay/settlement-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateItems persists a full generation set in a single transaction. A
// failure on any row rolls the whole set back so a retry observes the
// ungenerated state, never a partial one.
func (d *Database) CreateItems(items []SettlementItem) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range items {
		if err := tx.Create(&items[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func (d *Database) GetItemsByOrderAndReason(orderID string, reason ReasonCode) ([]SettlementItem, error) {
	var items []SettlementItem
	if err := d.db.Where("order_id = ? AND reason_code = ?", orderID, reason).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Database) GetItemsByOrder(orderID string) ([]SettlementItem, error) {
	var items []SettlementItem
	if err := d.db.Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountUngroupedBefore counts items awaiting batch assignment that were
// created at or before the cutoff.
func (d *Database) CountUngroupedBefore(cutoff time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&SettlementItem{}).
		Where("settlement_id IS NULL AND created_at <= ?", cutoff).
		Count(&count).Error
	return count, err
}

// CreateBatchWithItems creates the batch header and assigns every un-batched
// item inside the period to it, in one transaction. A zero periodStart means
// no lower bound. Returns the number of items attached.
func (d *Database) CreateBatchWithItems(batch *Settlement, periodStart, periodEnd time.Time) (int64, error) {
	var attached int64

	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(batch).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	query := tx.Model(&SettlementItem{}).
		Where("settlement_id IS NULL AND created_at <= ?", periodEnd)
	if !periodStart.IsZero() {
		query = query.Where("created_at >= ?", periodStart)
	}

	result := query.Update("settlement_id", batch.SettlementID)
	if result.Error != nil {
		tx.Rollback()
		return 0, result.Error
	}
	attached = result.RowsAffected

	return attached, tx.Commit().Error
}

func (d *Database) GetSettlement(settlementID string) (*Settlement, error) {
	var batch Settlement
	if err := d.db.Where("settlement_id = ?", settlementID).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (d *Database) UpdateSettlement(batch *Settlement) error {
	return d.db.Save(batch).Error
}

func (d *Database) CountBatchItems(settlementID string) (int64, error) {
	var count int64
	err := d.db.Model(&SettlementItem{}).
		Where("settlement_id = ?", settlementID).
		Count(&count).Error
	return count, err
}

// GetItemsForParty returns a party's items created within the period,
// excluding anything attached to a cancelled batch. Cancelled batches keep
// their items for audit but are out of the payout picture.
func (d *Database) GetItemsForParty(partyID string, partyType PartyType, periodStart, periodEnd time.Time) ([]SettlementItem, error) {
	var items []SettlementItem
	err := d.db.
		Joins("LEFT JOIN settlements ON settlements.settlement_id = settlement_items.settlement_id").
		Where("settlement_items.party_id = ? AND settlement_items.party_type = ?", partyID, partyType).
		Where("settlement_items.created_at BETWEEN ? AND ?", periodStart, periodEnd).
		Where("settlement_items.settlement_id IS NULL OR settlements.status <> ?", BatchCancelled).
		Order("settlement_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetPartyItemsAllTime returns every payout-relevant item for a party, used
// for net position calculation across originals and reversals.
func (d *Database) GetPartyItemsAllTime(partyID string, partyType PartyType) ([]SettlementItem, error) {
	var items []SettlementItem
	err := d.db.
		Joins("LEFT JOIN settlements ON settlements.settlement_id = settlement_items.settlement_id").
		Where("settlement_items.party_id = ? AND settlement_items.party_type = ?", partyID, partyType).
		Where("settlement_items.settlement_id IS NULL OR settlements.status <> ?", BatchCancelled).
		Order("settlement_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetOrderByID retrieves the immutable order header from the order subsystem's tables
func (d *Database) GetOrderByID(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &order, nil
}

// GetOrderItemSnapshots retrieves the frozen item snapshots for an order
func (d *Database) GetOrderItemSnapshots(orderID string) ([]types.OrderItemSnapshot, error) {
	var snapshots []types.OrderItemSnapshot
	if err := d.db.Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch order item snapshots: %w", err)
	}
	return snapshots, nil
}
