package models

import "time"

// TriggerEvent records an operator-raised closing trigger. At most one
// unconsumed row exists per (name, business date); consumption is recorded
// rather than deleted so the day's history stays auditable.
type TriggerEvent struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:64;index"`
	BusinessDate string `gorm:"size:10;index"`
	RaisedBy     string `gorm:"size:64"`
	RaisedAt     time.Time
	Consumed     bool `gorm:"default:false"`
	ConsumedAt   *time.Time
}
