package lifecycle

import (
	"fmt"
	"time"

	"github.com/ferndale/shiftboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence contract the engine needs. The live instance map
// is authoritative between resets; the store is the durable record and the
// hydration source.
type Store interface {
	PersistInstance(m *models.TaskInstance) error
	LoadInstancesForDate(date string) ([]models.TaskInstance, error)
	AppendReviewLog(entry *models.ReviewLog) error
	SaveTrigger(name, businessDate, raisedBy string, at time.Time) error
	ConsumeTrigger(name, businessDate string, at time.Time) error
	LoadActiveTriggers(businessDate string) ([]string, error)
}

// GormStore implements Store on a GORM connection.
type GormStore struct {
	DB *gorm.DB
}

// PersistInstance upserts the instance row on its composite key.
func (s *GormStore) PersistInstance(m *models.TaskInstance) error {
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "template_id"}, {Name: "business_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "submission_id", "submitted_by", "evidence",
			"rejection_reason", "reviewer_id", "submitted_at", "reviewed_at", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("lifecycle: persist instance %s/%s: %w", m.TemplateID, m.BusinessDate, err)
	}
	return nil
}

// LoadInstancesForDate returns every instance row for the business date.
func (s *GormStore) LoadInstancesForDate(date string) ([]models.TaskInstance, error) {
	var rows []models.TaskInstance
	if err := s.DB.Where("business_date = ?", date).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lifecycle: load instances for %s: %w", date, err)
	}
	return rows, nil
}

// AppendReviewLog records a review decision in the durable history.
func (s *GormStore) AppendReviewLog(entry *models.ReviewLog) error {
	if err := s.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("lifecycle: append review log: %w", err)
	}
	return nil
}

// SaveTrigger records a raised trigger, one active row per (name, date).
func (s *GormStore) SaveTrigger(name, businessDate, raisedBy string, at time.Time) error {
	var existing models.TriggerEvent
	err := s.DB.Where("name = ? AND business_date = ? AND consumed = ?", name, businessDate, false).
		First(&existing).Error
	if err == nil {
		return nil // already raised
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lifecycle: check trigger %s: %w", name, err)
	}
	ev := models.TriggerEvent{Name: name, BusinessDate: businessDate, RaisedBy: raisedBy, RaisedAt: at}
	if err := s.DB.Create(&ev).Error; err != nil {
		return fmt.Errorf("lifecycle: save trigger %s: %w", name, err)
	}
	return nil
}

// ConsumeTrigger marks the active trigger row consumed.
func (s *GormStore) ConsumeTrigger(name, businessDate string, at time.Time) error {
	err := s.DB.Model(&models.TriggerEvent{}).
		Where("name = ? AND business_date = ? AND consumed = ?", name, businessDate, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": at}).Error
	if err != nil {
		return fmt.Errorf("lifecycle: consume trigger %s: %w", name, err)
	}
	return nil
}

// LoadActiveTriggers returns the unconsumed trigger names for the date.
func (s *GormStore) LoadActiveTriggers(businessDate string) ([]string, error) {
	var rows []models.TriggerEvent
	err := s.DB.Where("business_date = ? AND consumed = ?", businessDate, false).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load triggers for %s: %w", businessDate, err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}
