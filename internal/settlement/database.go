package settlement

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

func (d *Database) Begin() *gorm.DB {
	return d.db.Begin()
}

func (d *Database) CreateSettlement(settlement *Settlement) error {
	return d.db.Create(settlement).Error
}

func (d *Database) GetSettlementByItemID(itemID string) (*Settlement, error) {
	var settlement Settlement
	if err := d.db.Where("item_id = ?", itemID).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
}

func (d *Database) GetSettlement(settlementID string) (*Settlement, error) {
	var settlement Settlement
	if err := d.db.Where("settlement_id = ?", settlementID).First(&settlement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement, nil
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

func (d *Database) UpdateItem(item *types.AuctionItem) error {
	return d.db.Save(item).Error
}

// GetExpiredOpenItems returns items whose scheduled end has passed but which
// have not yet been stamped closed.
func (d *Database) GetExpiredOpenItems(now time.Time) ([]types.AuctionItem, error) {
	var items []types.AuctionItem
	if err := d.db.Where("end_at <= ? AND closed_at IS NULL AND sold IS NULL", now).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
