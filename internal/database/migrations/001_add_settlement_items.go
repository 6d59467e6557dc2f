package migrations

import (
	"github.com/marketpay/settlement-api/internal/settlement"
	"gorm.io/gorm"
)

// AddSettlementItems creates the settlement items table and its indexes.
// The unique generation index is what makes idempotent generation enforceable
// at the storage layer rather than only in application code: two concurrent
// generations for the same (order, reason) pair cannot both commit.
func AddSettlementItems(db *gorm.DB) error {
	if err := db.AutoMigrate(&settlement.SettlementItem{}); err != nil {
		return err
	}

	indexes := []string{
		// At most one row per order item, party and reason
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_settlement_items_generation
		 ON settlement_items(order_id, order_item_id, party_type, reason_code)`,

		// Composite index for party aggregation queries
		`CREATE INDEX IF NOT EXISTS idx_settlement_items_party
		 ON settlement_items(party_id, party_type)`,

		// Index for reason filtering during reversal lookup
		`CREATE INDEX IF NOT EXISTS idx_settlement_items_order_reason
		 ON settlement_items(order_id, reason_code)`,

		// Index for created_at timestamp (period queries and batch sweeps)
		`CREATE INDEX IF NOT EXISTS idx_settlement_items_created_at
		 ON settlement_items(created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
