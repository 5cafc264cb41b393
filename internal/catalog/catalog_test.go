package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.AuctionItem{}, &types.LedgerEntry{}))
	return db
}

func validRequest() *CreateItemRequest {
	buyNow := 100.0
	return &CreateItemRequest{
		Name:          "Test item",
		StartingPrice: 10,
		StepPrice:     10,
		BuyNowPrice:   &buyNow,
		EndAt:         time.Now().Add(time.Hour).Format(time.RFC3339),
	}
}

func TestCreateItemOpensAtStartingPrice(t *testing.T) {
	svc := NewService(openTestDB(t))

	item, err := svc.CreateItem("USR_seller", validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, item.ItemID)
	assert.Equal(t, "USR_seller", item.SellerID)
	assert.Equal(t, 10.0, item.CurrentPrice)
	assert.Nil(t, item.LeaderID)
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(openTestDB(t))

	t.Run("end in the past", func(t *testing.T) {
		req := validRequest()
		req.EndAt = time.Now().Add(-time.Hour).Format(time.RFC3339)
		_, err := svc.CreateItem("USR_seller", req)
		assert.ErrorIs(t, err, errEndAtNotFuture)
	})

	t.Run("unparseable end", func(t *testing.T) {
		req := validRequest()
		req.EndAt = "tomorrow"
		_, err := svc.CreateItem("USR_seller", req)
		var domainErr *types.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_LISTING", domainErr.Code)
	})

	t.Run("non-positive step", func(t *testing.T) {
		req := validRequest()
		req.StepPrice = 0
		_, err := svc.CreateItem("USR_seller", req)
		assert.ErrorIs(t, err, errStepNotPositive)
	})

	t.Run("buy-now below starting price", func(t *testing.T) {
		req := validRequest()
		buyNow := 5.0
		req.BuyNowPrice = &buyNow
		_, err := svc.CreateItem("USR_seller", req)
		assert.ErrorIs(t, err, errBuyNowBelowStart)
	})
}

func TestGetItemIncludesBidCount(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	item, err := svc.CreateItem("USR_seller", validRequest())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&types.LedgerEntry{
			ItemID:   item.ItemID,
			BidderID: "USR_alice",
			Price:    float64(10 * (i + 1)),
		}).Error)
	}

	detail, err := svc.GetItem(item.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.BidCount)
}

func TestGetItemNotFound(t *testing.T) {
	svc := NewService(openTestDB(t))

	_, err := svc.GetItem("ITM_missing")
	assert.ErrorIs(t, err, types.ErrItemNotFound)
}

func TestListOpenItemsExcludesClosedAndExpired(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	open, err := svc.CreateItem("USR_seller", validRequest())
	require.NoError(t, err)

	closedAt := time.Now()
	require.NoError(t, db.Create(&types.AuctionItem{
		ItemID:        "ITM_closed",
		SellerID:      "USR_seller",
		Name:          "Closed",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  10,
		EndAt:         time.Now().Add(time.Hour),
		ClosedAt:      &closedAt,
	}).Error)
	require.NoError(t, db.Create(&types.AuctionItem{
		ItemID:        "ITM_expired",
		SellerID:      "USR_seller",
		Name:          "Expired",
		StartingPrice: 10,
		StepPrice:     10,
		CurrentPrice:  10,
		EndAt:         time.Now().Add(-time.Hour),
	}).Error)

	items, err := svc.ListOpenItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, open.ItemID, items[0].ItemID)
}
