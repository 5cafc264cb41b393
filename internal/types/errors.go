package types

import "net/http"

// DomainError is a user-facing failure with a stable code. Every precondition
// in the bidding and rejection engines fails with one of these before any
// state is touched; pkg/response maps them onto the wire envelope.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string { return e.Message }

var (
	ErrItemNotFound = &DomainError{
		Code:    "ITEM_NOT_FOUND",
		Message: "item not found",
		Status:  http.StatusNotFound,
	}
	ErrItemAlreadySold = &DomainError{
		Code:    "ITEM_ALREADY_SOLD",
		Message: "this item has already been sold",
		Status:  http.StatusConflict,
	}
	ErrSelfBidForbidden = &DomainError{
		Code:    "SELF_BID_FORBIDDEN",
		Message: "you cannot bid on your own item",
		Status:  http.StatusForbidden,
	}
	ErrBidderRejected = &DomainError{
		Code:    "BIDDER_REJECTED",
		Message: "the seller has rejected you from bidding on this item",
		Status:  http.StatusForbidden,
	}
	ErrUnratedBidderDisallowed = &DomainError{
		Code:    "UNRATED_BIDDER_DISALLOWED",
		Message: "this seller does not allow unrated bidders on this item",
		Status:  http.StatusForbidden,
	}
	ErrReputationTooLow = &DomainError{
		Code:    "REPUTATION_TOO_LOW",
		Message: "your rating is too low to place bids",
		Status:  http.StatusForbidden,
	}
	ErrAuctionEnded = &DomainError{
		Code:    "AUCTION_ENDED",
		Message: "this auction has ended",
		Status:  http.StatusConflict,
	}
	ErrBidTooLow = &DomainError{
		Code:    "BID_TOO_LOW",
		Message: "bid must be higher than the current price",
		Status:  http.StatusBadRequest,
	}
	ErrBidBelowMinimumIncrement = &DomainError{
		Code:    "BID_BELOW_MINIMUM_INCREMENT",
		Message: "bid must exceed the current price by at least the step price",
		Status:  http.StatusBadRequest,
	}
	ErrBuyNowUnavailable = &DomainError{
		Code:    "BUY_NOW_UNAVAILABLE",
		Message: "buy now is not available for this item",
		Status:  http.StatusBadRequest,
	}
	ErrUnauthorized = &DomainError{
		Code:    "UNAUTHORIZED",
		Message: "only the seller can perform this action",
		Status:  http.StatusForbidden,
	}
	ErrNoActiveBid = &DomainError{
		Code:    "NO_ACTIVE_BID",
		Message: "this bidder has no active bid on this item",
		Status:  http.StatusBadRequest,
	}
	ErrStorageUnavailable = &DomainError{
		Code:    "STORAGE_UNAVAILABLE",
		Message: "storage is temporarily unavailable, please retry",
		Status:  http.StatusServiceUnavailable,
	}
)
