package database

import (
	"fmt"
	"os"

	"github.com/marketpay/settlement-api/internal/database/migrations"
	"github.com/marketpay/settlement-api/internal/orders"
	"github.com/marketpay/settlement-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "settlement.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddSettlementItems(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddSettlements(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.OrderItemSnapshot{},
		&orders.IdempotencyRecord{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
