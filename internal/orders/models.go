package orders

import (
	"time"

	"gorm.io/gorm"
)

// IdempotencyRecord maps a caller-supplied key to the order it created so
// that retried ingestion requests replay the original result instead of
// inserting duplicates.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
