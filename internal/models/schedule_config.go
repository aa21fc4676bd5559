package models

// ScheduleConfig holds the cadences of the periodic jobs. At most one row exists.
type ScheduleConfig struct {
	BaseModel

	UpdateCache     string `gorm:"size:128;not null" json:"update_cache"`
	UpdateCountBlog string `gorm:"size:128;not null" json:"update_count_blog"`
	UpdateCountUser string `gorm:"size:128;not null" json:"update_count_user"`
}
