package models

import (
	"time"
)

// CacheEntry is a row of the database cache backend.
type CacheEntry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:128"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
