package rejection

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Notifier enqueues a best-effort notification for the rejected bidder.
type Notifier interface {
	NotifyRejected(item *types.AuctionItem, bidderID string)
}

// Service is the rejection recompute engine: it purges a bidder's trace from
// an item and rebuilds the leaderboard from the remaining standing ceilings.
type Service struct {
	db       *Database
	locks    *locks.Registry
	notifier Notifier
}

func NewService(gormDB *gorm.DB, lockRegistry *locks.Registry, notifier Notifier) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		locks:    lockRegistry,
		notifier: notifier,
	}
}

// Reject permanently bars the bidder from the item, expunges their bidding
// trace and recomputes leader and price, all in one atomic unit under the
// item's exclusive lock.
func (s *Service) Reject(sellerID, itemID, bidderID string) (*RejectOutcome, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("bidder_id", bidderID).
		Str("seller_id", sellerID).
		Str("service", "rejection").
		Logger()

	release := s.locks.Lock(itemID)
	outcome, item, err := s.rejectAndRecompute(sellerID, itemID, bidderID)
	release()

	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("remaining_bids", outcome.RemainingBids).
		Float64("current_price", outcome.CurrentPrice).
		Bool("ledger_written", outcome.LedgerWritten).
		Msg("bidder rejected and leaderboard recomputed")

	s.notifier.NotifyRejected(item, bidderID)

	return outcome, nil
}

func (s *Service) rejectAndRecompute(sellerID, itemID, bidderID string) (*RejectOutcome, *types.AuctionItem, error) {
	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	txdb := NewDatabase(tx)

	item, err := txdb.GetItem(itemID)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if item == nil {
		tx.Rollback()
		return nil, nil, types.ErrItemNotFound
	}
	if item.SellerID != sellerID {
		tx.Rollback()
		return nil, nil, types.ErrUnauthorized
	}

	now := time.Now()
	if item.Sold != nil || !item.OpenForBidding(now) {
		tx.Rollback()
		return nil, nil, types.ErrAuctionEnded
	}

	target, err := txdb.GetProxyBid(itemID, bidderID)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if target == nil {
		tx.Rollback()
		return nil, nil, types.ErrNoActiveBid
	}

	wasLeader := item.LeaderID != nil && *item.LeaderID == bidderID
	previousPrice := item.CurrentPrice

	record := &types.RejectionRecord{
		ItemID:    itemID,
		BidderID:  bidderID,
		SellerID:  sellerID,
		CreatedAt: now,
	}
	if err := txdb.CreateRejection(record); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := txdb.PurgeLedgerForBidder(itemID, bidderID); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := txdb.PurgeProxyBid(itemID, bidderID); err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	remaining, err := txdb.ListProxyBids(itemID)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	ledgerWritten := false
	switch len(remaining) {
	case 0:
		item.LeaderID = nil
		item.LeaderMaxBid = nil
		item.CurrentPrice = item.StartingPrice

	case 1:
		winner := remaining[0]
		newPrice := item.StartingPrice

		item.LeaderID = &winner.BidderID
		item.LeaderMaxBid = &winner.MaxBid
		item.CurrentPrice = newPrice

		if wasLeader || previousPrice != newPrice {
			entry := &types.LedgerEntry{
				ItemID:    itemID,
				BidderID:  winner.BidderID,
				Price:     newPrice,
				CreatedAt: now,
			}
			if err := txdb.CreateLedgerEntry(entry); err != nil {
				tx.Rollback()
				return nil, nil, err
			}
			ledgerWritten = true
		}

	default:
		// Second-price recompute over the remaining ceilings, capped at the
		// top ceiling.
		first := remaining[0]
		second := remaining[1]

		newPrice := second.MaxBid + item.StepPrice
		if newPrice > first.MaxBid {
			newPrice = first.MaxBid
		}

		item.LeaderID = &first.BidderID
		item.LeaderMaxBid = &first.MaxBid
		item.CurrentPrice = newPrice

		// A bystander's removal that leaves the math unchanged must not
		// produce a new ledger entry.
		if wasLeader || previousPrice != newPrice {
			entry := &types.LedgerEntry{
				ItemID:    itemID,
				BidderID:  first.BidderID,
				Price:     newPrice,
				CreatedAt: now,
			}
			if err := txdb.CreateLedgerEntry(entry); err != nil {
				tx.Rollback()
				return nil, nil, err
			}
			ledgerWritten = true
		}
	}

	if err := txdb.UpdateItem(item); err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}

	return &RejectOutcome{
		ItemID:         itemID,
		RejectedBidder: bidderID,
		LeaderID:       item.LeaderID,
		CurrentPrice:   item.CurrentPrice,
		RemainingBids:  len(remaining),
		LedgerWritten:  ledgerWritten,
	}, item, nil
}

// Unreject deletes the rejection record only. Purged bids are not restored
// and pricing is not recomputed; the bidder must submit a fresh bid to
// re-enter.
func (s *Service) Unreject(sellerID, itemID, bidderID string) error {
	item, err := s.db.GetItem(itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return types.ErrItemNotFound
	}
	if item.SellerID != sellerID {
		return types.ErrUnauthorized
	}
	if item.Sold != nil || !item.OpenForBidding(time.Now()) {
		return types.ErrAuctionEnded
	}

	return s.db.DeleteRejection(itemID, bidderID)
}

// GinHandlers contains HTTP handlers for rejection endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RejectBidderHandler handles POST requests to reject a bidder.
// Requires a valid JWT token; the caller must be the item's seller.
// URL parameter: item_id.
func (h *GinHandlers) RejectBidderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		itemID := c.Param("item_id")

		var req RejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		outcome, err := h.service.Reject(sellerID, itemID, req.BidderID)
		response.Handle(c, outcome, err)
	}
}

// UnrejectBidderHandler handles DELETE requests to lift a rejection.
// URL parameters: item_id, bidder_id.
func (h *GinHandlers) UnrejectBidderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")
		itemID := c.Param("item_id")
		bidderID := c.Param("bidder_id")

		if err := h.service.Unreject(sellerID, itemID, bidderID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "bidder unrejected; previous bids are not restored"})
	}
}
