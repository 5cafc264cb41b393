package catalog

import "time"

// CreateItemRequest is the listing payload. Prices are validated by the
// service so the error taxonomy stays consistent with the bidding engine.
type CreateItemRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	StartingPrice float64  `json:"starting_price" binding:"required,gt=0"`
	StepPrice     float64  `json:"step_price" binding:"required"`
	BuyNowPrice   *float64 `json:"buy_now_price"`
	EndAt         string   `json:"end_at" binding:"required"` // RFC 3339
	AutoExtend    bool     `json:"auto_extend"`
	AllowUnrated  bool     `json:"allow_unrated"`
}

// ItemDetail is the public read model for one item.
type ItemDetail struct {
	ItemID        string     `json:"item_id"`
	SellerID      string     `json:"seller_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	StartingPrice float64    `json:"starting_price"`
	StepPrice     float64    `json:"step_price"`
	BuyNowPrice   *float64   `json:"buy_now_price,omitempty"`
	CurrentPrice  float64    `json:"current_price"`
	LeaderID      *string    `json:"leader_id,omitempty"`
	BidCount      int64      `json:"bid_count"`
	EndAt         time.Time  `json:"end_at"`
	AutoExtend    bool       `json:"auto_extend"`
	AllowUnrated  bool       `json:"allow_unrated"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Sold          *bool      `json:"sold,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
