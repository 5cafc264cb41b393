package reputation

import (
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateReview(review *Review) error {
	return d.db.Create(review).Error
}

// CountRatings returns the user's positive and negative review counts.
func (d *Database) CountRatings(userID string) (positives, negatives int64, err error) {
	if err = d.db.Model(&Review{}).
		Where("reviewee_id = ? AND rating = ?", userID, 1).
		Count(&positives).Error; err != nil {
		return 0, 0, err
	}
	if err = d.db.Model(&Review{}).
		Where("reviewee_id = ? AND rating = ?", userID, -1).
		Count(&negatives).Error; err != nil {
		return 0, 0, err
	}
	return positives, negatives, nil
}

func (d *Database) GetReviews(userID string) ([]Review, error) {
	var reviews []Review
	if err := d.db.Where("reviewee_id = ? AND rating != 0", userID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}
