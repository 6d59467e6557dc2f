package settlement

import (
	"fmt"
	"strings"
	"testing"

	"github.com/marketpay/settlement-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database with the settlement schema.
// The named shared-cache DSN keeps gorm's connection pool on a single
// database instead of handing each pooled connection its own empty one.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&types.Order{},
		&types.OrderItemSnapshot{},
		&SettlementItem{},
		&Settlement{},
	))

	// Same uniqueness constraint the production migration installs
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_settlement_items_generation
		ON settlement_items(order_id, order_item_id, party_type, reason_code)`).Error)

	return db
}

func strPtr(s string) *string { return &s }

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullMoney(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

// seedOrder persists an order header and its item snapshots
func seedOrder(t *testing.T, db *gorm.DB, order *types.Order, items []types.OrderItemSnapshot) {
	t.Helper()
	require.NoError(t, db.Create(order).Error)
	for i := range items {
		items[i].OrderID = order.OrderID
		require.NoError(t, db.Create(&items[i]).Error)
	}
}

// standardSnapshot builds the canonical test item: quantity 2 at 50.00 each,
// 10.00 precomputed commission, supplied at a 30.00 cost basis.
func standardSnapshot(orderItemID string) types.OrderItemSnapshot {
	return types.OrderItemSnapshot{
		OrderItemID:       orderItemID,
		ProductName:       "Walnut Desk",
		Quantity:          2,
		UnitPrice:         money("50.00"),
		TotalPrice:        money("100.00"),
		SalePriceSnapshot: money("50.00"),
		BasePriceSnapshot: nullMoney("30.00"),
		CommissionType:    strPtr("fixed"),
		CommissionAmount:  nullMoney("10.00"),
		SellerID:          strPtr("SEL_001"),
		SupplierID:        strPtr("SUP_001"),
	}
}
