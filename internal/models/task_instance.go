package models

import "time"

// TaskInstance is the per-(template, business date) submission record. The
// live lifecycle map is hydrated from these rows at startup; after a
// day-boundary reset the rows remain as history.
type TaskInstance struct {
	TemplateID      string `gorm:"primaryKey;size:64"`
	BusinessDate    string `gorm:"primaryKey;size:10"` // YYYY-MM-DD
	Status          string `gorm:"size:16;default:pending;index"`
	SubmissionID    string `gorm:"size:36"` // uuid of the latest submission
	SubmittedBy     string `gorm:"size:64"`
	Evidence        string `gorm:"type:text"` // canonical evidence JSON
	RejectionReason string `gorm:"type:text"`
	ReviewerID      string `gorm:"size:64"`
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
