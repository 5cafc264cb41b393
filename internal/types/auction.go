package types

import (
	"time"

	"gorm.io/gorm"
)

// AuctionItem is the single durable row of bidding state for one item.
// It is mutated only by the bidding engine, the rejection engine and the
// auction closer, always under the per-item lock and inside one transaction.
type AuctionItem struct {
	gorm.Model    `json:"-"`
	ItemID        string     `gorm:"uniqueIndex" json:"item_id"`
	SellerID      string     `json:"seller_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	StartingPrice float64    `json:"starting_price"`
	StepPrice     float64    `json:"step_price"`
	BuyNowPrice   *float64   `json:"buy_now_price,omitempty"`
	CurrentPrice  float64    `json:"current_price"`
	LeaderID      *string    `json:"leader_id,omitempty"`
	LeaderMaxBid  *float64   `json:"-"` // the leader's private ceiling, never exposed
	EndAt         time.Time  `json:"end_at"`
	AutoExtend    bool       `json:"auto_extend"`
	AllowUnrated  bool       `json:"allow_unrated"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Sold          *bool      `json:"sold,omitempty"` // nil = outcome pending
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AuctionPhase is the explicit variant of an item's bidding state.
type AuctionPhase int

const (
	PhaseNoBids AuctionPhase = iota
	PhaseActive
	PhaseClosed
)

// AuctionState is a non-nullable view of the leaderboard columns. The
// resolution and recompute paths switch on Phase instead of testing the
// nullable columns individually.
type AuctionState struct {
	Phase        AuctionPhase
	LeaderID     string
	LeaderMaxBid float64
	CurrentPrice float64
}

// State derives the tagged state from the row. A row with a closed timestamp
// is Closed regardless of its leaderboard columns.
func (a *AuctionItem) State() AuctionState {
	state := AuctionState{CurrentPrice: a.CurrentPrice}

	switch {
	case a.ClosedAt != nil:
		state.Phase = PhaseClosed
	case a.LeaderID == nil || a.LeaderMaxBid == nil:
		state.Phase = PhaseNoBids
	default:
		state.Phase = PhaseActive
	}

	if a.LeaderID != nil {
		state.LeaderID = *a.LeaderID
	}
	if a.LeaderMaxBid != nil {
		state.LeaderMaxBid = *a.LeaderMaxBid
	}
	return state
}

// OpenForBidding reports whether the item still accepts bids at the given
// time. The sold flag is checked separately so callers can surface the
// distinct already-sold error first.
func (a *AuctionItem) OpenForBidding(now time.Time) bool {
	return a.ClosedAt == nil && now.Before(a.EndAt)
}

// ProxyBid is a bidder's private maximum willingness to pay for one item.
// At most one live row exists per (item, bidder); a later bid from the same
// bidder overwrites it and refreshes PlacedAt, which feeds the first-come
// tie-break in the rejection recompute ordering.
type ProxyBid struct {
	gorm.Model `json:"-"`
	ItemID     string    `gorm:"uniqueIndex:idx_proxy_item_bidder" json:"item_id"`
	BidderID   string    `gorm:"uniqueIndex:idx_proxy_item_bidder" json:"bidder_id"`
	MaxBid     float64   `json:"max_bid"`
	PlacedAt   time.Time `json:"placed_at"`
}

// LedgerEntry is one append-only row per competitive price change. Self
// raises write no entry. Entries are removed only when a bidder's trace is
// purged by rejection.
type LedgerEntry struct {
	gorm.Model `json:"-"`
	ItemID     string    `gorm:"index" json:"item_id"`
	BidderID   string    `json:"bidder_id"` // leader at the time of the entry
	Price      float64   `json:"price"`
	IsBuyNow   bool      `json:"is_buy_now"`
	CreatedAt  time.Time `json:"created_at"`
}

// RejectionRecord bars a bidder from one item until the seller explicitly
// unrejects them. The row is immutable evidence that purged bids must not be
// re-admitted.
type RejectionRecord struct {
	gorm.Model `json:"-"`
	ItemID     string    `gorm:"uniqueIndex:idx_rejected_item_bidder" json:"item_id"`
	BidderID   string    `gorm:"uniqueIndex:idx_rejected_item_bidder" json:"bidder_id"`
	SellerID   string    `json:"seller_id"`
	CreatedAt  time.Time `json:"rejected_at"`
}

// User is an account that can sell, bid and review.
type User struct {
	gorm.Model   `json:"-"`
	UserID       string    `gorm:"uniqueIndex" json:"user_id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
