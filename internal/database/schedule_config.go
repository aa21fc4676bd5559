package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
)

// LoadScheduleConfig returns the stored schedule record, or nil when none exists.
func LoadScheduleConfig(ctx context.Context, db *gorm.DB) (*models.ScheduleConfig, error) {
	if db == nil {
		return nil, errors.New("schedule config: db is nil")
	}

	var record models.ScheduleConfig
	err := db.WithContext(ctx).Order("created_at DESC").Take(&record).Error
	switch {
	case err == nil:
		return &record, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case strings.Contains(err.Error(), "no such table"):
		return nil, nil
	default:
		return nil, fmt.Errorf("schedule config: load: %w", err)
	}
}

// ReplaceScheduleConfig deletes every stored schedule record and inserts
// record in a single transaction, so at most one record is ever visible.
func ReplaceScheduleConfig(ctx context.Context, db *gorm.DB, record *models.ScheduleConfig) error {
	if db == nil {
		return errors.New("schedule config: db is nil")
	}
	if record == nil {
		return errors.New("schedule config: record is nil")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ScheduleConfig{}).Error; err != nil {
			return fmt.Errorf("schedule config: clear: %w", err)
		}
		record.ID = ""
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("schedule config: create: %w", err)
		}
		return nil
	})
}
