package rejection

import (
	"errors"

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

// ListProxyBids returns the item's standing ceilings ordered for leaderboard
// recompute: ceiling descending, then placement time ascending (first come).
func (d *Database) ListProxyBids(itemID string) ([]types.ProxyBid, error) {
	var bids []types.ProxyBid
	if err := d.db.Where("item_id = ?", itemID).
		Order("max_bid DESC").
		Order("placed_at ASC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

func (d *Database) CreateRejection(record *types.RejectionRecord) error {
	return d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

// DeleteRejection hard-deletes the record so a later re-reject can not
// collide on the unique index.
func (d *Database) DeleteRejection(itemID, bidderID string) error {
	return d.db.Unscoped().
		Where("item_id = ? AND bidder_id = ?", itemID, bidderID).
		Delete(&types.RejectionRecord{}).Error
}

// PurgeLedgerForBidder hard-deletes the rejected bidder's ledger trace.
func (d *Database) PurgeLedgerForBidder(itemID, bidderID string) error {
	return d.db.Unscoped().
		Where("item_id = ? AND bidder_id = ?", itemID, bidderID).
		Delete(&types.LedgerEntry{}).Error
}

// PurgeProxyBid hard-deletes the rejected bidder's standing ceiling.
func (d *Database) PurgeProxyBid(itemID, bidderID string) error {
	return d.db.Unscoped().
		Where("item_id = ? AND bidder_id = ?", itemID, bidderID).
		Delete(&types.ProxyBid{}).Error
}

func (d *Database) CreateLedgerEntry(entry *types.LedgerEntry) error {
	return d.db.Create(entry).Error
}
