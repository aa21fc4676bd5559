package models

import "time"

// VerificationCode is the one-time code mailed to a newly registered user.
type VerificationCode struct {
	BaseModel

	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	Code      string    `gorm:"size:64;not null;index" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
