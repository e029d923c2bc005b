package database

import (
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.OtpVerification{},
		&models.RefreshToken{},
		&models.CacheEntry{},
	)
}
