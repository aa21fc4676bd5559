package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/crypto"
)

// AdminSeed describes the bootstrap administrator. An empty username or
// password disables seeding.
type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Blog{},
		&models.ScheduleConfig{},
		&models.VerificationCode{},
		&models.CacheEntry{},
	)
}

// SeedAdmin creates the bootstrap administrator when no user with that
// username exists yet. Existing accounts are left untouched.
func SeedAdmin(db *gorm.DB, seed AdminSeed) error {
	username := strings.TrimSpace(seed.Username)
	if username == "" || strings.TrimSpace(seed.Password) == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", username).Take(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:   username,
		Password:   hash,
		Email:      strings.TrimSpace(seed.Email),
		Role:       models.RoleAdmin,
		FirstName:  "System",
		LastName:   "Administrator",
		IsVerified: true,
	}
	return db.Create(&admin).Error
}
