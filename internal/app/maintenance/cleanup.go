package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
)

// PurgeVerificationCodes removes verification codes whose expiry has passed.
func PurgeVerificationCodes(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("purge verification codes: db is required")
	}
	result := db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.VerificationCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge verification codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
