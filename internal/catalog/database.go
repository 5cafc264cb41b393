package catalog

import (
	"errors"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateItem(item *types.AuctionItem) error {
	return d.db.Create(item).Error
}

func (d *Database) GetItem(itemID string) (*types.AuctionItem, error) {
	var item types.AuctionItem
	if err := d.db.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (d *Database) CountLedgerEntries(itemID string) (int64, error) {
	var count int64
	if err := d.db.Model(&types.LedgerEntry{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetOpenItems returns listings that are still accepting bids, soonest
// ending first.
func (d *Database) GetOpenItems() ([]types.AuctionItem, error) {
	var items []types.AuctionItem
	if err := d.db.Where("closed_at IS NULL AND end_at > ?", time.Now()).
		Order("end_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
