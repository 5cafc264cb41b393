package reputation

import (
	"time"

	"gorm.io/gorm"
)

// Review is one counterparty rating left after a completed transaction.
// Rating is +1 (positive), -1 (negative) or 0 (neutral); neutral reviews do
// not count toward the rating point or toward rated history.
type Review struct {
	gorm.Model `json:"-"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `gorm:"index" json:"reviewee_id"`
	ItemID     string    `json:"item_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
