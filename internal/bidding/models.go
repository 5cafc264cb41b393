package bidding

import (
	"fmt"
	"time"
)

// BidOutcome is the result of one committed resolution (proxy bid or direct
// buy-now purchase). The unexported-looking fields with "-" tags are carried
// for notification fan-out, not for the API response.
type BidOutcome struct {
	ItemID       string     `json:"item_id"`
	ItemName     string     `json:"-"`
	SellerID     string     `json:"-"`
	BidderID     string     `json:"bidder_id"`
	MaxBid       float64    `json:"max_bid,omitempty"`
	LeaderID     string     `json:"leader_id"`
	CurrentPrice float64    `json:"current_price"`
	Sold         bool       `json:"sold"`
	IsBuyNow     bool       `json:"is_buy_now"`
	AutoExtended bool       `json:"auto_extended"`
	NewEndAt     *time.Time `json:"new_end_at,omitempty"`

	PreviousLeaderID string  `json:"-"`
	PreviousPrice    float64 `json:"-"`
	PriceChanged     bool    `json:"-"`
}

// Winning reports whether the caller ended up leading.
func (o *BidOutcome) Winning() bool {
	return o.LeaderID == o.BidderID
}

// Message builds the user-facing summary of the outcome.
func (o *BidOutcome) Message() string {
	var message string
	switch {
	case o.Sold && o.Winning():
		message = fmt.Sprintf("Congratulations! You won the item at %.0f. Please proceed to payment.", o.CurrentPrice)
	case o.Sold:
		message = fmt.Sprintf("The item has been sold to another bidder at %.0f.", o.CurrentPrice)
	case o.Winning():
		message = fmt.Sprintf("Bid placed successfully. Current price: %.0f (your max: %.0f)", o.CurrentPrice, o.MaxBid)
	default:
		message = fmt.Sprintf("Bid placed. Another bidder is currently winning at %.0f", o.CurrentPrice)
	}

	if o.AutoExtended && o.NewEndAt != nil {
		message += fmt.Sprintf(" | Auction extended to %s", o.NewEndAt.Format(time.RFC3339))
	}
	return message
}

// PlaceBidRequest is the body of a proxy bid submission.
type PlaceBidRequest struct {
	MaxBid float64 `json:"max_bid" binding:"required,gt=0"`
}
