package settlement

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPendingPayment = "PENDING_PAYMENT"
)

// Settlement is the handoff record to the order workflow, created exactly
// once per item when the auction transitions to closed-pending-payment. The
// unique index on ItemID is what makes the trigger idempotent.
type Settlement struct {
	gorm.Model   `json:"-"`
	SettlementID string    `gorm:"uniqueIndex" json:"settlement_id"`
	ItemID       string    `gorm:"uniqueIndex" json:"item_id"`
	WinnerID     string    `json:"winner_id"`
	FinalPrice   float64   `json:"final_price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
