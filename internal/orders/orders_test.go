package orders

import (
	"fmt"
	"strings"
	"testing"

	"github.com/marketpay/settlement-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
		&IdempotencyRecord{},
	))

	return db
}

func strPtr(s string) *string { return &s }

func validRequest() *types.CreateOrderRequest {
	return &types.CreateOrderRequest{
		ClientID: "CLIENT_1",
		Items: []types.OrderItemRequest{
			{
				ProductName:       "Walnut Desk",
				Quantity:          2,
				UnitPrice:         decimal.RequireFromString("50.00"),
				TotalPrice:        decimal.RequireFromString("100.00"),
				SalePriceSnapshot: decimal.RequireFromString("50.00"),
				BasePriceSnapshot: decimal.NewNullDecimal(decimal.RequireFromString("30.00")),
				CommissionType:    strPtr("fixed"),
				CommissionAmount:  decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
				SellerID:          strPtr("SEL_001"),
				SupplierID:        strPtr("SUP_001"),
			},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	svc := NewService(setupTestDB(t))

	resp, err := svc.CreateOrder(validRequest(), "key-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Order.OrderID, "ORD_"))
	assert.Equal(t, "CLIENT_1", resp.Order.ClientID)
	require.Len(t, resp.Items, 1)
	assert.True(t, strings.HasPrefix(resp.Items[0].OrderItemID, "OIT_"))
}

func TestCreateOrderIdempotencyReplay(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	first, err := svc.CreateOrder(validRequest(), "key-1")
	require.NoError(t, err)

	second, err := svc.CreateOrder(validRequest(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID)

	var count int64
	require.NoError(t, db.Model(&types.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrderDistinctKeys(t *testing.T) {
	svc := NewService(setupTestDB(t))

	first, err := svc.CreateOrder(validRequest(), "key-1")
	require.NoError(t, err)

	second, err := svc.CreateOrder(validRequest(), "key-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.Order.OrderID, second.Order.OrderID)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := NewService(setupTestDB(t))

	tests := []struct {
		name   string
		mutate func(*types.CreateOrderRequest)
	}{
		{"zero quantity", func(r *types.CreateOrderRequest) {
			r.Items[0].Quantity = 0
		}},
		{"negative price", func(r *types.CreateOrderRequest) {
			r.Items[0].UnitPrice = decimal.RequireFromString("-1.00")
		}},
		{"total price mismatch", func(r *types.CreateOrderRequest) {
			r.Items[0].TotalPrice = decimal.RequireFromString("99.00")
		}},
		{"negative commission", func(r *types.CreateOrderRequest) {
			r.Items[0].CommissionAmount = decimal.NewNullDecimal(decimal.RequireFromString("-5.00"))
		}},
		{"commission rate above 100", func(r *types.CreateOrderRequest) {
			r.Items[0].CommissionRate = decimal.NewNullDecimal(decimal.RequireFromString("101.00"))
		}},
		{"unknown commission type", func(r *types.CreateOrderRequest) {
			r.Items[0].CommissionType = strPtr("tiered")
		}},
		{"negative cost basis", func(r *types.CreateOrderRequest) {
			r.Items[0].BasePriceSnapshot = decimal.NewNullDecimal(decimal.RequireFromString("-30.00"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest()
			tt.mutate(request)

			_, err := svc.CreateOrder(request, "key-"+tt.name)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestGetOrderForClient(t *testing.T) {
	svc := NewService(setupTestDB(t))

	created, err := svc.CreateOrder(validRequest(), "key-1")
	require.NoError(t, err)

	found, err := svc.GetOrderForClient(created.Order.OrderID, "CLIENT_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.Order.OrderID, found.Order.OrderID)

	// Other clients cannot see the order
	missing, err := svc.GetOrderForClient(created.Order.OrderID, "CLIENT_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
