// Package boundary fires the day-boundary reset checkpoints: fixed
// wall-clock instants at which the live lifecycle state is cleared.
package boundary

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/config"
	"github.com/ferndale/shiftboard/internal/models"
	"github.com/ferndale/shiftboard/internal/period"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultInterval = time.Minute

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Resetter is the engine surface the scheduler drives.
type Resetter interface {
	Reset(checkpointID string)
}

// Scheduler polls the clock and fires each configured checkpoint at most
// once per calendar day, deduped through the checkpoint_runs table so a
// restart inside the same minute cannot re-trigger a reset.
type Scheduler struct {
	DB          *gorm.DB
	Clock       *clock.Clock
	Engine      Resetter
	Checkpoints []config.CheckpointConfig
	Interval    time.Duration
	Out         io.Writer
}

// Run loops until ctx is cancelled, evaluating checkpoints once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("boundary: db is required")
	}
	if s.Clock == nil {
		return fmt.Errorf("boundary: clock is required")
	}
	if s.Engine == nil {
		return fmt.Errorf("boundary: engine is required")
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.Out == nil {
		s.Out = io.Discard
	}

	for _, cp := range s.Checkpoints {
		if next, err := s.NextFire(cp); err == nil {
			fmt.Fprintf(s.Out, "Checkpoint %s next fires at %s\n", cp.ID, next.Format(time.RFC3339))
		}
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Evaluate()
		}
	}
}

// Evaluate fires every due, not-yet-fired checkpoint. The clock is read once
// so all checkpoints in one pass see the same instant.
func (s *Scheduler) Evaluate() {
	now := s.Clock.Now()
	for _, cp := range s.Checkpoints {
		fired, err := s.tryFire(cp, now)
		if err != nil {
			log.Printf("boundary: checkpoint %s: %v", cp.ID, err)
			continue
		}
		if fired {
			fmt.Fprintf(s.Out, "Checkpoint %s fired at %s\n", cp.ID, now.Format("15:04"))
		}
	}
}

// tryFire resets the engine if the checkpoint is due today and has not fired
// today. The insert-if-absent on (date, checkpoint) is the idempotence
// guard: exactly one process wins the row, everyone else sees a no-op.
func (s *Scheduler) tryFire(cp config.CheckpointConfig, now time.Time) (bool, error) {
	cpMinutes, err := period.ParseMinutes(cp.At)
	if err != nil {
		return false, err
	}
	if now.Hour()*60+now.Minute() < cpMinutes {
		return false, nil
	}

	run := models.CheckpointRun{
		Date:         now.Format("2006-01-02"),
		CheckpointID: cp.ID,
		FiredAt:      now,
	}
	result := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&run)
	if result.Error != nil {
		return false, fmt.Errorf("record run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil // already fired today
	}

	s.Engine.Reset(cp.ID)
	return true, nil
}

// NextFire reports when the checkpoint next fires, via its cron schedule.
func (s *Scheduler) NextFire(cp config.CheckpointConfig) (time.Time, error) {
	sched, err := cronParser.Parse(CronExpr(cp))
	if err != nil {
		return time.Time{}, fmt.Errorf("boundary: parse schedule for %s: %w", cp.ID, err)
	}
	return sched.Next(s.Clock.Now()), nil
}

// CronExpr renders a checkpoint's HH:MM as a 5-field cron expression.
func CronExpr(cp config.CheckpointConfig) string {
	m, err := period.ParseMinutes(cp.At)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d %d * * *", m%60, m/60)
}
