package bidding

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/settings"
	"github.com/ksred/auction-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubReputation struct {
	rated  map[string]bool
	points map[string]float64
}

func (s *stubReputation) RatingPoint(userID string) (float64, error) {
	return s.points[userID], nil
}

func (s *stubReputation) HasRatedHistory(userID string) (bool, error) {
	return s.rated[userID], nil
}

type stubPolicy struct {
	policy settings.Policy
}

func (s *stubPolicy) Current() (*settings.Policy, error) {
	p := s.policy
	return &p, nil
}

type stubSettler struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubSettler) Settle(itemID, winnerID string, finalPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, itemID+"/"+winnerID)
	return nil
}

type stubNotifier struct{}

func (stubNotifier) NotifyBidPlaced(*BidOutcome) {}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bidding.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.AuctionItem{},
		&types.ProxyBid{},
		&types.LedgerEntry{},
		&types.RejectionRecord{},
	))
	return db
}

func defaultPolicy() settings.Policy {
	return settings.Policy{
		AutoExtendTriggerMinutes:  5,
		AutoExtendDurationMinutes: 10,
		MinRatingPoint:            0.8,
	}
}

func newTestService(t *testing.T, db *gorm.DB, rep ReputationSource) (*Service, *stubSettler) {
	t.Helper()
	if rep == nil {
		rep = &stubReputation{}
	}
	settler := &stubSettler{}
	svc := NewService(db, locks.NewRegistry(), rep, &stubPolicy{policy: defaultPolicy()}, settler, stubNotifier{})
	return svc, settler
}

type itemOpts struct {
	startingPrice float64
	stepPrice     float64
	buyNowPrice   *float64
	endIn         time.Duration
	autoExtend    bool
	allowUnrated  bool
}

func seedItem(t *testing.T, db *gorm.DB, opts itemOpts) *types.AuctionItem {
	t.Helper()
	if opts.startingPrice == 0 {
		opts.startingPrice = 10
	}
	if opts.stepPrice == 0 {
		opts.stepPrice = 10
	}
	if opts.endIn == 0 {
		opts.endIn = time.Hour
	}
	item := &types.AuctionItem{
		ItemID:        "ITM_test",
		SellerID:      "USR_seller",
		Name:          "Test item",
		StartingPrice: opts.startingPrice,
		StepPrice:     opts.stepPrice,
		BuyNowPrice:   opts.buyNowPrice,
		CurrentPrice:  opts.startingPrice,
		EndAt:         time.Now().Add(opts.endIn),
		AutoExtend:    opts.autoExtend,
		AllowUnrated:  opts.allowUnrated,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func fetchItem(t *testing.T, db *gorm.DB, itemID string) *types.AuctionItem {
	t.Helper()
	var item types.AuctionItem
	require.NoError(t, db.Where("item_id = ?", itemID).First(&item).Error)
	return &item
}

func ledgerCount(t *testing.T, db *gorm.DB, itemID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&types.LedgerEntry{}).Where("item_id = ?", itemID).Count(&count).Error)
	return count
}

func floatPtr(v float64) *float64 { return &v }

func TestFirstBidLeadsAtStartingPrice(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	outcome, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 10.0, outcome.CurrentPrice)
	assert.False(t, outcome.Sold)

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.LeaderMaxBid)
	assert.Equal(t, 50.0, *item.LeaderMaxBid)
	assert.Equal(t, int64(1), ledgerCount(t, db, "ITM_test"))
}

func TestChallengerBelowCeilingRaisesPriceLeaderStays(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 100)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 80)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 80.0, outcome.CurrentPrice)
	assert.False(t, outcome.Winning())

	// The challenger's ceiling stands as a proxy bid for future recomputes.
	var bid types.ProxyBid
	require.NoError(t, db.Where("item_id = ? AND bidder_id = ?", "ITM_test", "USR_bob").First(&bid).Error)
	assert.Equal(t, 80.0, bid.MaxBid)
}

func TestChallengerAboveCeilingTakesLeadAtSecondPricePlusStep(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 100)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 150)
	require.NoError(t, err)

	assert.Equal(t, "USR_bob", outcome.LeaderID)
	assert.Equal(t, 110.0, outcome.CurrentPrice)
	assert.Equal(t, int64(2), ledgerCount(t, db, "ITM_test"))
}

func TestEqualCeilingsFirstComeKeepsLead(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 100)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 100)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 100.0, outcome.CurrentPrice)
}

func TestSelfRaiseMovesCeilingOnly(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
	require.NoError(t, err)
	before := ledgerCount(t, db, "ITM_test")

	outcome, err := svc.PlaceBid("ITM_test", "USR_alice", 90)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 10.0, outcome.CurrentPrice)
	assert.Equal(t, before, ledgerCount(t, db, "ITM_test"))

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.LeaderMaxBid)
	assert.Equal(t, 90.0, *item.LeaderMaxBid)
}

func TestBuyNowShortCircuitExistingLeaderWins(t *testing.T) {
	db := openTestDB(t)
	svc, settler := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{buyNowPrice: floatPtr(100), allowUnrated: true})

	// Alice's ceiling already covers the buy-now price.
	_, err := svc.PlaceBid("ITM_test", "USR_alice", 120)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 30)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 100.0, outcome.CurrentPrice)
	assert.True(t, outcome.Sold)

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.ClosedAt)
	assert.Equal(t, []string{"ITM_test/USR_alice"}, settler.calls)
}

func TestBuyNowShortCircuitAtExactCeilingBoundary(t *testing.T) {
	db := openTestDB(t)
	svc, settler := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{buyNowPrice: floatPtr(100), allowUnrated: true})

	// A ceiling exactly equal to the buy-now price still covers it.
	_, err := svc.PlaceBid("ITM_test", "USR_alice", 100)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 30)
	require.NoError(t, err)

	assert.Equal(t, "USR_alice", outcome.LeaderID)
	assert.Equal(t, 100.0, outcome.CurrentPrice)
	assert.True(t, outcome.Sold)

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.ClosedAt)
	assert.Equal(t, []string{"ITM_test/USR_alice"}, settler.calls)
}

func TestPriceClampedToBuyNowClosesAuction(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{buyNowPrice: floatPtr(100), allowUnrated: true})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 95)
	require.NoError(t, err)

	// 95 + 10 would exceed the buy-now price; the price clamps and closes.
	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 120)
	require.NoError(t, err)

	assert.Equal(t, "USR_bob", outcome.LeaderID)
	assert.Equal(t, 100.0, outcome.CurrentPrice)
	assert.True(t, outcome.Sold)

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.ClosedAt)
}

func TestAutoExtendInsideTriggerWindow(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{endIn: 2 * time.Minute, autoExtend: true, allowUnrated: true})

	before := time.Now()
	outcome, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
	require.NoError(t, err)

	assert.True(t, outcome.AutoExtended)
	require.NotNil(t, outcome.NewEndAt)

	item := fetchItem(t, db, "ITM_test")
	// New end is anchored on the bid time, not the previous end.
	assert.WithinDuration(t, before.Add(10*time.Minute), item.EndAt, 5*time.Second)
}

func TestAutoExtendOutsideTriggerWindow(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{endIn: time.Hour, autoExtend: true, allowUnrated: true})

	outcome, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
	require.NoError(t, err)

	assert.False(t, outcome.AutoExtended)
	assert.Nil(t, outcome.NewEndAt)
}

func TestBuyNowClosureOverridesAutoExtend(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{
		buyNowPrice:  floatPtr(100),
		endIn:        2 * time.Minute,
		autoExtend:   true,
		allowUnrated: true,
	})

	_, err := svc.PlaceBid("ITM_test", "USR_alice", 95)
	require.NoError(t, err)

	outcome, err := svc.PlaceBid("ITM_test", "USR_bob", 120)
	require.NoError(t, err)

	assert.True(t, outcome.Sold)
	assert.False(t, outcome.AutoExtended)
	assert.Nil(t, outcome.NewEndAt)
}

func TestBidPreconditionErrors(t *testing.T) {
	db := openTestDB(t)
	rep := &stubReputation{
		rated:  map[string]bool{"USR_rated_low": true, "USR_rated_ok": true},
		points: map[string]float64{"USR_rated_low": 0.5, "USR_rated_ok": 0.9},
	}
	svc, _ := newTestService(t, db, rep)

	t.Run("item not found", func(t *testing.T) {
		_, err := svc.PlaceBid("ITM_missing", "USR_alice", 50)
		assert.ErrorIs(t, err, types.ErrItemNotFound)
	})

	t.Run("item already sold", func(t *testing.T) {
		item := seedItem(t, db, itemOpts{allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		sold := true
		item.Sold = &sold
		require.NoError(t, db.Save(item).Error)

		_, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
		assert.ErrorIs(t, err, types.ErrItemAlreadySold)
	})

	t.Run("self bid forbidden", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		_, err := svc.PlaceBid("ITM_test", "USR_seller", 50)
		assert.ErrorIs(t, err, types.ErrSelfBidForbidden)
	})

	t.Run("rejected bidder", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})
		require.NoError(t, db.Create(&types.RejectionRecord{
			ItemID:   "ITM_test",
			BidderID: "USR_alice",
			SellerID: "USR_seller",
		}).Error)
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.RejectionRecord{})

		_, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
		assert.ErrorIs(t, err, types.ErrBidderRejected)
	})

	t.Run("unrated bidder disallowed", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: false})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		_, err := svc.PlaceBid("ITM_test", "USR_unrated", 50)
		assert.ErrorIs(t, err, types.ErrUnratedBidderDisallowed)
	})

	t.Run("rating at or below minimum", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: false})
		defer func() {
			db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})
			db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.ProxyBid{})
			db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.LedgerEntry{})
		}()

		_, err := svc.PlaceBid("ITM_test", "USR_rated_low", 50)
		assert.ErrorIs(t, err, types.ErrReputationTooLow)

		_, err = svc.PlaceBid("ITM_test", "USR_rated_ok", 50)
		assert.NoError(t, err)
	})

	t.Run("auction ended", func(t *testing.T) {
		seedItem(t, db, itemOpts{endIn: -time.Minute, allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		_, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
		assert.ErrorIs(t, err, types.ErrAuctionEnded)
	})

	t.Run("bid too low", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		_, err := svc.PlaceBid("ITM_test", "USR_alice", 10)
		assert.ErrorIs(t, err, types.ErrBidTooLow)
	})

	t.Run("bid below minimum increment", func(t *testing.T) {
		seedItem(t, db, itemOpts{allowUnrated: true})
		defer db.Unscoped().Where("item_id = ?", "ITM_test").Delete(&types.AuctionItem{})

		_, err := svc.PlaceBid("ITM_test", "USR_alice", 15)
		assert.ErrorIs(t, err, types.ErrBidBelowMinimumIncrement)
	})
}

func TestPreconditionsCheckedInOrder(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)

	// A sold item bid on by its own seller trips the sold check, which runs
	// before the self-bid check.
	item := seedItem(t, db, itemOpts{allowUnrated: true})
	sold := true
	item.Sold = &sold
	require.NoError(t, db.Save(item).Error)

	_, err := svc.PlaceBid("ITM_test", "USR_seller", 50)
	assert.ErrorIs(t, err, types.ErrItemAlreadySold)

	// On an ended auction a rejected bidder still gets the rejection error:
	// the bar is checked before the end time.
	item.Sold = nil
	item.EndAt = time.Now().Add(-time.Minute)
	require.NoError(t, db.Save(item).Error)
	require.NoError(t, db.Create(&types.RejectionRecord{
		ItemID:   "ITM_test",
		BidderID: "USR_alice",
		SellerID: "USR_seller",
	}).Error)

	_, err = svc.PlaceBid("ITM_test", "USR_alice", 50)
	assert.ErrorIs(t, err, types.ErrBidderRejected)
}

func TestBuyNowDirectPurchase(t *testing.T) {
	db := openTestDB(t)
	svc, settler := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{buyNowPrice: floatPtr(100), allowUnrated: true})

	outcome, err := svc.BuyNow("ITM_test", "USR_carol")
	require.NoError(t, err)

	assert.True(t, outcome.Sold)
	assert.True(t, outcome.IsBuyNow)
	assert.Equal(t, "USR_carol", outcome.LeaderID)
	assert.Equal(t, 100.0, outcome.CurrentPrice)

	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.ClosedAt)

	// A direct purchase leaves no standing ceiling behind.
	var count int64
	require.NoError(t, db.Model(&types.ProxyBid{}).
		Where("item_id = ? AND bidder_id = ?", "ITM_test", "USR_carol").
		Count(&count).Error)
	assert.Equal(t, int64(0), count)

	var entry types.LedgerEntry
	require.NoError(t, db.Where("item_id = ?", "ITM_test").First(&entry).Error)
	assert.True(t, entry.IsBuyNow)

	assert.Equal(t, []string{"ITM_test/USR_carol"}, settler.calls)
}

func TestBuyNowUnavailableWithoutPrice(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	_, err := svc.BuyNow("ITM_test", "USR_carol")
	assert.ErrorIs(t, err, types.ErrBuyNowUnavailable)
}

func TestBuyNowAppliesEligibilityPolicy(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, &stubReputation{})
	seedItem(t, db, itemOpts{buyNowPrice: floatPtr(100), allowUnrated: false})

	_, err := svc.BuyNow("ITM_test", "USR_unrated")
	assert.ErrorIs(t, err, types.ErrUnratedBidderDisallowed)
}

func TestConcurrentBidsSerialize(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newTestService(t, db, nil)
	seedItem(t, db, itemOpts{allowUnrated: true})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.PlaceBid("ITM_test", "USR_alice", 50)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := svc.PlaceBid("ITM_test", "USR_bob", 80)
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Whichever order the lock admits them in, the higher ceiling leads and
	// the price never exceeds one step past the second ceiling.
	item := fetchItem(t, db, "ITM_test")
	require.NotNil(t, item.LeaderID)
	assert.Equal(t, "USR_bob", *item.LeaderID)
	assert.LessOrEqual(t, item.CurrentPrice, 60.0)
	assert.Equal(t, int64(2), ledgerCount(t, db, "ITM_test"))
}
