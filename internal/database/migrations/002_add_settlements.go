package migrations

import (
	"github.com/marketpay/settlement-api/internal/settlement"
	"gorm.io/gorm"
)

// AddSettlements creates the settlement batch header table and its indexes
func AddSettlements(db *gorm.DB) error {
	if err := db.AutoMigrate(&settlement.Settlement{}); err != nil {
		return err
	}

	indexes := []string{
		// Index for status filtering (open batch lookups)
		`CREATE INDEX IF NOT EXISTS idx_settlements_status
		 ON settlements(status)`,

		// Composite index for period reporting
		`CREATE INDEX IF NOT EXISTS idx_settlements_period
		 ON settlements(period_start, period_end)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
