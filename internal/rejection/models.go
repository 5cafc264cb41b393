package rejection

// RejectOutcome reports the leaderboard after a bidder's trace was purged.
type RejectOutcome struct {
	ItemID         string   `json:"item_id"`
	RejectedBidder string   `json:"rejected_bidder"`
	LeaderID       *string  `json:"leader_id,omitempty"`
	CurrentPrice   float64  `json:"current_price"`
	RemainingBids  int      `json:"remaining_bids"`
	LedgerWritten  bool     `json:"ledger_written"`
}

// RejectRequest is the body of a seller's rejection.
type RejectRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
}
