package models

import "time"

// CheckpointRun dedupes day-boundary resets: one row per (calendar date,
// checkpoint). Insert-if-absent makes a checkpoint fire at most once per day.
type CheckpointRun struct {
	Date         string `gorm:"primaryKey;size:10"` // YYYY-MM-DD
	CheckpointID string `gorm:"primaryKey;size:32"`
	FiredAt      time.Time
}
