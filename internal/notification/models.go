package notification

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"

	KindBidReceived   = "BID_RECEIVED"    // seller: new bid on their item
	KindBidPlaced     = "BID_PLACED"      // bidder: their bid was processed
	KindPriceUpdated  = "PRICE_UPDATED"   // displaced or pressured leader
	KindBidderRejected = "BIDDER_REJECTED" // bidder barred by the seller
)

// Notification is one pending outbox job. Jobs are written after a bid or
// rejection commits and drained by the processor, so delivery failures are
// observable without ever touching the committed outcome.
type Notification struct {
	gorm.Model     `json:"-"`
	NotificationID string    `gorm:"uniqueIndex" json:"notification_id"`
	Kind           string    `json:"kind"`
	RecipientID    string    `gorm:"index" json:"recipient_id"`
	ItemID         string    `json:"item_id"`
	Payload        string    `json:"payload"` // JSON snapshot of the outcome
	Status         string    `gorm:"index" json:"status"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// payload is the serialized outcome snapshot carried by a job.
type payload struct {
	ItemName     string  `json:"item_name"`
	CurrentPrice float64 `json:"current_price"`
	LeaderID     string  `json:"leader_id,omitempty"`
	Sold         bool    `json:"sold,omitempty"`
	Winning      bool    `json:"winning,omitempty"`
	Outbid       bool    `json:"outbid,omitempty"`
}
