package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// Migrate creates or updates every table used by the service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
