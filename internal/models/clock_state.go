package models

import "time"

// ClockState persists the simulated clock offset so a training session
// survives a daemon restart. A single row (ID 1) holds the current offset;
// zero means real time.
type ClockState struct {
	ID            uint  `gorm:"primaryKey"`
	OffsetSeconds int64 `gorm:"default:0"`
	UpdatedAt     time.Time
}
