package models

import "time"

// ReviewLog is the append-only history of review decisions. Unlike the live
// instance map it survives day-boundary resets.
type ReviewLog struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TemplateID   string `gorm:"size:64;index"`
	BusinessDate string `gorm:"size:10;index"`
	SubmissionID string `gorm:"size:36"`
	Decision     string `gorm:"size:16"` // approve | reject
	ReviewerID   string `gorm:"size:64"`
	Reason       string `gorm:"type:text"`
	CreatedAt    time.Time
}
