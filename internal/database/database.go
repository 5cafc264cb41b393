package database

import (
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/reputation"
	"github.com/ksred/auction-api/internal/settings"
	"github.com/ksred/auction-api/internal/settlement"
	"github.com/ksred/auction-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "auction.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.User{},
		&types.AuctionItem{},
		&types.ProxyBid{},
		&types.LedgerEntry{},
		&types.RejectionRecord{},
		&reputation.Review{},
		&settings.SystemSetting{},
		&settlement.Settlement{},
		&notification.Notification{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
