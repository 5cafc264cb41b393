package settlement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "settlement.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.AuctionItem{}, &Settlement{}))
	return db
}

func TestTriggerSettlementIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	first, err := svc.TriggerSettlement("ITM_1", "USR_alice", 100)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, StatusPendingPayment, first.Status)
	assert.Equal(t, 100.0, first.FinalPrice)

	// A repeated trigger, even with different inputs, returns the original.
	second, err := svc.TriggerSettlement("ITM_1", "USR_bob", 999)
	require.NoError(t, err)
	assert.Equal(t, first.SettlementID, second.SettlementID)
	assert.Equal(t, "USR_alice", second.WinnerID)

	var count int64
	require.NoError(t, db.Model(&Settlement{}).Where("item_id = ?", "ITM_1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCloserStampsExpiredItemsAndSettles(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	closer := NewCloser(svc, locks.NewRegistry(), time.Second)

	leader := "USR_alice"
	leaderMax := 80.0
	expired := &types.AuctionItem{
		ItemID:        "ITM_expired",
		SellerID:      "USR_seller",
		Name:          "Expired item",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  60,
		LeaderID:      &leader,
		LeaderMaxBid:  &leaderMax,
		EndAt:         time.Now().Add(-time.Minute),
	}
	stillOpen := &types.AuctionItem{
		ItemID:        "ITM_open",
		SellerID:      "USR_seller",
		Name:          "Open item",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  10,
		EndAt:         time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(expired).Error)
	require.NoError(t, db.Create(stillOpen).Error)

	require.NoError(t, closer.CloseExpired())

	var item types.AuctionItem
	require.NoError(t, db.Where("item_id = ?", "ITM_expired").First(&item).Error)
	require.NotNil(t, item.ClosedAt)

	stl, err := svc.GetSettlementByItemID("ITM_expired")
	require.NoError(t, err)
	require.NotNil(t, stl)
	assert.Equal(t, "USR_alice", stl.WinnerID)
	assert.Equal(t, 60.0, stl.FinalPrice)

	// The open item is untouched. Use a fresh struct: reusing `item` would
	// carry its populated primary key into the query conditions.
	var openItem types.AuctionItem
	require.NoError(t, db.Where("item_id = ?", "ITM_open").First(&openItem).Error)
	assert.Nil(t, openItem.ClosedAt)
}

func TestCloserSkipsExpiredItemWithoutLeader(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	closer := NewCloser(svc, locks.NewRegistry(), time.Second)

	expired := &types.AuctionItem{
		ItemID:        "ITM_nobids",
		SellerID:      "USR_seller",
		Name:          "No bids",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  10,
		EndAt:         time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(expired).Error)

	require.NoError(t, closer.CloseExpired())

	var item types.AuctionItem
	require.NoError(t, db.Where("item_id = ?", "ITM_nobids").First(&item).Error)
	require.NotNil(t, item.ClosedAt)

	// Closed without a winner: no settlement is handed off.
	stl, err := svc.GetSettlementByItemID("ITM_nobids")
	require.NoError(t, err)
	assert.Nil(t, stl)
}

func TestCloseExpiredIsRepeatSafe(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	closer := NewCloser(svc, locks.NewRegistry(), time.Second)

	leader := "USR_alice"
	leaderMax := 80.0
	expired := &types.AuctionItem{
		ItemID:        "ITM_expired",
		SellerID:      "USR_seller",
		Name:          "Expired item",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  60,
		LeaderID:      &leader,
		LeaderMaxBid:  &leaderMax,
		EndAt:         time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(expired).Error)

	require.NoError(t, closer.CloseExpired())
	require.NoError(t, closer.CloseExpired())

	var count int64
	require.NoError(t, db.Model(&Settlement{}).Where("item_id = ?", "ITM_expired").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
