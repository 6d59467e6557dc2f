package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOnceNoItems(t *testing.T) {
	db := setupTestDB(t)
	sweeper := NewSweeper(NewService(db))

	require.NoError(t, sweeper.sweepOnce())

	var batches int64
	require.NoError(t, db.Model(&Settlement{}).Count(&batches).Error)
	assert.Equal(t, int64(0), batches)
}

func TestSweepOnceGroupsAgedItems(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	sweeper := NewSweeper(svc)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)

	// Age the items past the grace delay
	aged := time.Now().Add(-sweeper.graceDelay - time.Hour)
	require.NoError(t, db.Model(&SettlementItem{}).
		Where("order_id = ?", "ORD_1").
		Update("created_at", aged).Error)

	require.NoError(t, sweeper.sweepOnce())

	var unassigned int64
	require.NoError(t, db.Model(&SettlementItem{}).
		Where("settlement_id IS NULL").
		Count(&unassigned).Error)
	assert.Equal(t, int64(0), unassigned)

	var batches int64
	require.NoError(t, db.Model(&Settlement{}).Count(&batches).Error)
	assert.Equal(t, int64(1), batches)
}

// Items younger than the grace delay stay un-batched so late reversals can
// land in the same sweep as their originals.
func TestSweepOnceRespectsGraceDelay(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	sweeper := NewSweeper(svc)
	seedStandardOrder(t, db, "ORD_1")

	_, err := svc.Generate("ORD_1", ReasonOrderCompleted)
	require.NoError(t, err)

	require.NoError(t, sweeper.sweepOnce())

	var batches int64
	require.NoError(t, db.Model(&Settlement{}).Count(&batches).Error)
	assert.Equal(t, int64(0), batches)
}
