package settings

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetAll() ([]SystemSetting, error) {
	var rows []SystemSetting
	if err := d.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) Upsert(key, value string) error {
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&SystemSetting{Key: key, Value: value}).Error
}
