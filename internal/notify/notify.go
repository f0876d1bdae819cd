// Package notify bridges engine events to chat platforms (Slack, Discord)
// so rejections, trigger raises and reset digests reach managers off-device.
package notify

import (
	"context"
	"log"

	"github.com/ferndale/shiftboard/internal/lifecycle"
)

// Severity classifies an alert for display (sidebar color, emphasis).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Alert is one engine event formatted for chat delivery.
type Alert struct {
	Title    string
	Body     string
	Severity Severity
	Fields   []Field
}

// Field is a key-value pair displayed alongside an alert.
type Field struct {
	Name  string
	Value string
}

// Notifier delivers alerts to one chat platform.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
	Close() error
}

// Fanout delivers each alert to every notifier, best-effort: one platform
// failing does not stop the others.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, alert Alert) error {
	for _, n := range f {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("notify: send: %v", err)
		}
	}
	return nil
}

func (f Fanout) Close() error {
	for _, n := range f {
		if err := n.Close(); err != nil {
			log.Printf("notify: close: %v", err)
		}
	}
	return nil
}

// colorFor maps a severity to the sidebar color hint shared by both
// platform adapters.
func colorFor(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityWarning:
		return "#daa038"
	case SeverityError:
		return "#cc0000"
	default:
		return "#439fe0"
	}
}

// FromEvent converts an engine event to an alert, or ok=false for events
// that don't warrant a push (plain submissions, approvals).
func FromEvent(ev lifecycle.Event) (Alert, bool) {
	switch ev.Type {
	case lifecycle.EventReviewed:
		if ev.Decision != string(lifecycle.DecisionReject) {
			return Alert{}, false
		}
		return Alert{
			Title:    "Task rejected: " + ev.TemplateID,
			Body:     ev.Reason,
			Severity: SeverityWarning,
			Fields: []Field{
				{Name: "Reviewer", Value: ev.ReviewerID},
				{Name: "Business date", Value: ev.BusinessDate},
			},
		}, true
	case lifecycle.EventUploadFailed:
		return Alert{
			Title:    "Evidence upload failed: " + ev.TemplateID,
			Body:     ev.Reason,
			Severity: SeverityError,
			Fields:   []Field{{Name: "Business date", Value: ev.BusinessDate}},
		}, true
	case lifecycle.EventTriggerRaised:
		return Alert{
			Title:    "Closing trigger raised: " + ev.Trigger,
			Body:     "Duty-manager closing tasks are now actionable.",
			Severity: SeverityInfo,
			Fields:   []Field{{Name: "Business date", Value: ev.BusinessDate}},
		}, true
	case lifecycle.EventTriggerCleared:
		return Alert{
			Title:    "Closing complete: " + ev.Trigger,
			Body:     "All gated closing tasks approved.",
			Severity: SeveritySuccess,
			Fields:   []Field{{Name: "Business date", Value: ev.BusinessDate}},
		}, true
	case lifecycle.EventReset:
		return Alert{
			Title:    "Day boundary reset: " + ev.Checkpoint,
			Body:     "Live checklist state cleared for the new business day.",
			Severity: SeverityInfo,
			Fields:   []Field{{Name: "Business date", Value: ev.BusinessDate}},
		}, true
	default:
		return Alert{}, false
	}
}

// Dispatch consumes engine events and pushes the notable ones to the
// notifier until the channel closes or ctx is cancelled.
func Dispatch(ctx context.Context, events <-chan lifecycle.Event, n Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			alert, notable := FromEvent(ev)
			if !notable {
				continue
			}
			if err := n.Send(ctx, alert); err != nil {
				log.Printf("notify: dispatch: %v", err)
			}
		}
	}
}
