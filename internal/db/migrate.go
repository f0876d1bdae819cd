package db

import (
	"fmt"

	"github.com/ferndale/shiftboard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model the engine persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.TaskInstance{},
		&models.CheckpointRun{},
		&models.TriggerEvent{},
		&models.ReviewLog{},
		&models.ClockState{},
	}
}

// AutoMigrate creates or updates all engine tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
