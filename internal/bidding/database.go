package bidding

import (
	"errors"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Begin starts a transaction. Wrap the returned handle in NewDatabase to run
// the query methods transactionally.
func (d *Database) Begin() *gorm.DB {
	return d.db.Begin()
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

func (d *Database) IsRejected(itemID, bidderID string) (bool, error) {
	var count int64
	if err := d.db.Model(&types.RejectionRecord{}).
		Where("item_id = ? AND bidder_id = ?", itemID, bidderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) CreateLedgerEntry(entry *types.LedgerEntry) error {
	return d.db.Create(entry).Error
}

// UpsertProxyBid overwrites the bidder's standing ceiling for the item,
// refreshing the placement time.
func (d *Database) UpsertProxyBid(itemID, bidderID string, maxBid float64, placedAt time.Time) error {
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}, {Name: "bidder_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_bid":   maxBid,
			"placed_at": placedAt,
		}),
	}).Create(&types.ProxyBid{
		ItemID:   itemID,
		BidderID: bidderID,
		MaxBid:   maxBid,
		PlacedAt: placedAt,
	}).Error
}

func (d *Database) GetProxyBid(itemID, bidderID string) (*types.ProxyBid, error) {
	var bid types.ProxyBid
	if err := d.db.Where("item_id = ? AND bidder_id = ?", itemID, bidderID).First(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}
