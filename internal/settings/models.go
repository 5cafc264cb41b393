package settings

import (
	"time"

	"gorm.io/gorm"
)

// SystemSetting is one key/value policy row. Values are stored as strings and
// parsed on read so operators can edit them without a schema change.
type SystemSetting struct {
	gorm.Model `json:"-"`
	Key        string    `gorm:"uniqueIndex" json:"key"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Policy is the resolved, typed view of the policy settings. It is read fresh
// from storage on every bid resolution, so updates take effect immediately.
type Policy struct {
	AutoExtendTriggerMinutes  int     `json:"auto_extend_trigger_minutes"`
	AutoExtendDurationMinutes int     `json:"auto_extend_duration_minutes"`
	MinRatingPoint            float64 `json:"min_rating_point"`
}
