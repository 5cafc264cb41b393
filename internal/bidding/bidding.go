package bidding

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/settings"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReputationSource answers bidder eligibility questions.
type ReputationSource interface {
	RatingPoint(userID string) (float64, error)
	HasRatedHistory(userID string) (bool, error)
}

// PolicyProvider supplies the hot-reloadable bidding policy. It is consulted
// fresh on every resolution.
type PolicyProvider interface {
	Current() (*settings.Policy, error)
}

// Settler hands a closed auction off to the order workflow. Implementations
// must be idempotent on the item id.
type Settler interface {
	Settle(itemID, winnerID string, finalPrice float64) error
}

// Notifier enqueues best-effort notifications about a committed outcome.
// Implementations must never fail the caller.
type Notifier interface {
	NotifyBidPlaced(outcome *BidOutcome)
}

// Service is the bid resolution engine: proxy bidding with second-price
// resolution, buy-now short circuit and auto-extend.
type Service struct {
	db         *Database
	locks      *locks.Registry
	reputation ReputationSource
	policy     PolicyProvider
	settler    Settler
	notifier   Notifier
}

func NewService(
	gormDB *gorm.DB,
	lockRegistry *locks.Registry,
	reputation ReputationSource,
	policy PolicyProvider,
	settler Settler,
	notifier Notifier,
) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		locks:      lockRegistry,
		reputation: reputation,
		policy:     policy,
		settler:    settler,
		notifier:   notifier,
	}
}

// PlaceBid resolves a proxy bid against the item's current leader under the
// item's exclusive lock. Settlement handoff and notifications run after the
// lock is released and never affect the committed outcome.
func (s *Service) PlaceBid(itemID, bidderID string, maxBid float64) (*BidOutcome, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("bidder_id", bidderID).
		Float64("max_bid", maxBid).
		Str("service", "bidding").
		Logger()

	release := s.locks.Lock(itemID)
	outcome, err := s.resolveBid(itemID, bidderID, maxBid)
	release()

	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("leader_id", outcome.LeaderID).
		Float64("current_price", outcome.CurrentPrice).
		Bool("sold", outcome.Sold).
		Bool("auto_extended", outcome.AutoExtended).
		Msg("bid resolved")

	if outcome.Sold {
		if err := s.settler.Settle(outcome.ItemID, outcome.LeaderID, outcome.CurrentPrice); err != nil {
			logger.Error().Err(err).Msg("failed to trigger settlement for closed auction")
		}
	}
	s.notifier.NotifyBidPlaced(outcome)

	return outcome, nil
}

// resolveBid runs the precondition chain and the resolution algorithm inside
// one transaction. The caller holds the item lock.
func (s *Service) resolveBid(itemID, bidderID string, maxBid float64) (*BidOutcome, error) {
	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
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
		return nil, err
	}
	if item == nil {
		tx.Rollback()
		return nil, types.ErrItemNotFound
	}

	now := time.Now()
	previousPrice := item.CurrentPrice
	previousLeader := ""
	if item.LeaderID != nil {
		previousLeader = *item.LeaderID
	}

	policy, err := s.policy.Current()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to read bidding policy: %w", err)
	}

	if err := s.checkBidPreconditions(txdb, item, bidderID, maxBid, now, policy); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Auto-extend: a bid landing inside the trigger window pushes the end
	// time out. The candidate may still be discarded by buy-now closure.
	var extendedEnd *time.Time
	if item.AutoExtend {
		remaining := item.EndAt.Sub(now)
		if remaining <= time.Duration(policy.AutoExtendTriggerMinutes)*time.Minute {
			candidate := now.Add(time.Duration(policy.AutoExtendDurationMinutes) * time.Minute)
			extendedEnd = &candidate
		}
	}

	state := item.State()
	newPrice := item.CurrentPrice
	newLeader := bidderID
	newLeaderMax := maxBid
	writeLedger := true
	buyNowTriggered := false

	if item.BuyNowPrice != nil &&
		state.Phase == types.PhaseActive &&
		state.LeaderID != bidderID &&
		state.LeaderMaxBid >= *item.BuyNowPrice {
		// The existing leader's ceiling already covers the buy-now price:
		// first come wins immediately at that price. The new bid is still
		// recorded as a standing ceiling below.
		newPrice = *item.BuyNowPrice
		newLeader = state.LeaderID
		newLeaderMax = state.LeaderMaxBid
		buyNowTriggered = true
	} else {
		switch {
		case state.Phase == types.PhaseActive && state.LeaderID == bidderID:
			// Self-raise: only the ceiling moves. No competitive price
			// movement, so no ledger entry.
			newPrice = item.CurrentPrice
			writeLedger = false
		case state.Phase == types.PhaseNoBids:
			// First bid leads at the starting price, not at its ceiling.
			newPrice = item.StartingPrice
		case maxBid < state.LeaderMaxBid:
			// Outbid attempt below the leader's ceiling: the price rises to
			// the challenger's ceiling, the leader keeps the lead.
			newPrice = maxBid
			newLeader = state.LeaderID
			newLeaderMax = state.LeaderMaxBid
		case maxBid == state.LeaderMaxBid:
			// Exact tie: first come keeps the lead.
			newPrice = maxBid
			newLeader = state.LeaderID
			newLeaderMax = state.LeaderMaxBid
		default:
			newPrice = state.LeaderMaxBid + item.StepPrice
		}

		if item.BuyNowPrice != nil && newPrice >= *item.BuyNowPrice {
			newPrice = *item.BuyNowPrice
			buyNowTriggered = true
		}
	}

	item.CurrentPrice = newPrice
	item.LeaderID = &newLeader
	item.LeaderMaxBid = &newLeaderMax
	if buyNowTriggered {
		// Closure takes precedence over a computed extension.
		item.ClosedAt = &now
		item.EndAt = now
		extendedEnd = nil
	} else if extendedEnd != nil {
		item.EndAt = *extendedEnd
	}

	if err := txdb.UpdateItem(item); err != nil {
		tx.Rollback()
		return nil, err
	}

	if writeLedger {
		entry := &types.LedgerEntry{
			ItemID:    itemID,
			BidderID:  newLeader,
			Price:     newPrice,
			CreatedAt: now,
		}
		if err := txdb.CreateLedgerEntry(entry); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := txdb.UpsertProxyBid(itemID, bidderID, maxBid, now); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}

	return &BidOutcome{
		ItemID:           itemID,
		ItemName:         item.Name,
		SellerID:         item.SellerID,
		BidderID:         bidderID,
		MaxBid:           maxBid,
		LeaderID:         newLeader,
		CurrentPrice:     newPrice,
		Sold:             buyNowTriggered,
		AutoExtended:     extendedEnd != nil,
		NewEndAt:         extendedEnd,
		PreviousLeaderID: previousLeader,
		PreviousPrice:    previousPrice,
		PriceChanged:     previousPrice != newPrice,
	}, nil
}

// checkBidPreconditions runs the precondition chain in order, each failure a
// distinct domain error, before any state is touched.
func (s *Service) checkBidPreconditions(
	txdb *Database,
	item *types.AuctionItem,
	bidderID string,
	maxBid float64,
	now time.Time,
	policy *settings.Policy,
) error {
	if item.Sold != nil && *item.Sold {
		return types.ErrItemAlreadySold
	}
	if item.SellerID == bidderID {
		return types.ErrSelfBidForbidden
	}

	rejected, err := txdb.IsRejected(item.ItemID, bidderID)
	if err != nil {
		return err
	}
	if rejected {
		return types.ErrBidderRejected
	}

	if err := s.checkEligibility(item, bidderID, policy); err != nil {
		return err
	}

	if !item.OpenForBidding(now) {
		return types.ErrAuctionEnded
	}
	if maxBid <= item.CurrentPrice {
		return types.ErrBidTooLow
	}
	if maxBid < item.CurrentPrice+item.StepPrice {
		return types.ErrBidBelowMinimumIncrement
	}
	return nil
}

// checkEligibility applies the reputation policy: a bidder without rated
// history may only bid where the seller allows unrated bidders; a bidder with
// history is blocked at or below the configured minimum rating point.
func (s *Service) checkEligibility(item *types.AuctionItem, bidderID string, policy *settings.Policy) error {
	rated, err := s.reputation.HasRatedHistory(bidderID)
	if err != nil {
		return fmt.Errorf("reputation lookup failed: %w", err)
	}

	if !rated {
		if !item.AllowUnrated {
			return types.ErrUnratedBidderDisallowed
		}
		return nil
	}

	point, err := s.reputation.RatingPoint(bidderID)
	if err != nil {
		return fmt.Errorf("reputation lookup failed: %w", err)
	}
	if point <= policy.MinRatingPoint {
		return types.ErrReputationTooLow
	}
	return nil
}

// BuyNow is the direct purchase entry point. It bypasses proxy resolution
// entirely and records no standing ceiling for the buyer.
func (s *Service) BuyNow(itemID, buyerID string) (*BidOutcome, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("buyer_id", buyerID).
		Str("service", "bidding").
		Logger()

	release := s.locks.Lock(itemID)
	outcome, err := s.resolveBuyNow(itemID, buyerID)
	release()

	if err != nil {
		return nil, err
	}

	logger.Info().
		Float64("price", outcome.CurrentPrice).
		Msg("buy-now purchase completed")

	if err := s.settler.Settle(outcome.ItemID, outcome.LeaderID, outcome.CurrentPrice); err != nil {
		logger.Error().Err(err).Msg("failed to trigger settlement for buy-now purchase")
	}
	s.notifier.NotifyBidPlaced(outcome)

	return outcome, nil
}

func (s *Service) resolveBuyNow(itemID, buyerID string) (*BidOutcome, error) {
	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
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
		return nil, err
	}
	if item == nil {
		tx.Rollback()
		return nil, types.ErrItemNotFound
	}

	now := time.Now()
	previousPrice := item.CurrentPrice
	previousLeader := ""
	if item.LeaderID != nil {
		previousLeader = *item.LeaderID
	}

	if item.Sold != nil && *item.Sold {
		tx.Rollback()
		return nil, types.ErrItemAlreadySold
	}
	if item.SellerID == buyerID {
		tx.Rollback()
		return nil, types.ErrSelfBidForbidden
	}
	if !item.OpenForBidding(now) {
		tx.Rollback()
		return nil, types.ErrAuctionEnded
	}
	if item.BuyNowPrice == nil {
		tx.Rollback()
		return nil, types.ErrBuyNowUnavailable
	}

	rejected, err := txdb.IsRejected(itemID, buyerID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if rejected {
		tx.Rollback()
		return nil, types.ErrBidderRejected
	}

	policy, err := s.policy.Current()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to read bidding policy: %w", err)
	}
	if err := s.checkEligibility(item, buyerID, policy); err != nil {
		tx.Rollback()
		return nil, err
	}

	price := *item.BuyNowPrice
	item.CurrentPrice = price
	item.LeaderID = &buyerID
	item.LeaderMaxBid = &price
	item.ClosedAt = &now
	item.EndAt = now

	if err := txdb.UpdateItem(item); err != nil {
		tx.Rollback()
		return nil, err
	}

	entry := &types.LedgerEntry{
		ItemID:    itemID,
		BidderID:  buyerID,
		Price:     price,
		IsBuyNow:  true,
		CreatedAt: now,
	}
	if err := txdb.CreateLedgerEntry(entry); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}

	return &BidOutcome{
		ItemID:           itemID,
		ItemName:         item.Name,
		SellerID:         item.SellerID,
		BidderID:         buyerID,
		LeaderID:         buyerID,
		CurrentPrice:     price,
		Sold:             true,
		IsBuyNow:         true,
		PreviousLeaderID: previousLeader,
		PreviousPrice:    previousPrice,
		PriceChanged:     previousPrice != price,
	}, nil
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBidHandler handles POST requests to place a proxy bid.
// Requires a valid JWT token. URL parameter: item_id.
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("userID")
		itemID := c.Param("item_id")

		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		outcome, err := h.service.PlaceBid(itemID, bidderID, req.MaxBid)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"outcome": outcome,
			"message": outcome.Message(),
		})
	}
}

// BuyNowHandler handles POST requests for a direct buy-now purchase.
// Requires a valid JWT token. URL parameter: item_id.
func (h *GinHandlers) BuyNowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID := c.GetString("userID")
		itemID := c.Param("item_id")

		outcome, err := h.service.BuyNow(itemID, buyerID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"outcome": outcome,
			"message": outcome.Message(),
		})
	}
}
