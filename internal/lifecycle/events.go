package lifecycle

import "time"

// EventType classifies engine events published to subscribers.
type EventType string

const (
	EventSubmitted      EventType = "submitted"
	EventReviewed       EventType = "reviewed"
	EventUploadFailed   EventType = "upload-failed"
	EventTriggerRaised  EventType = "trigger-raised"
	EventTriggerCleared EventType = "trigger-cleared"
	EventReset          EventType = "reset"
)

// Event is one engine state change. Delivered to in-process subscribers
// (the SSE stream) after the change has been persisted.
type Event struct {
	Type         EventType `json:"type"`
	TemplateID   string    `json:"template_id,omitempty"`
	BusinessDate string    `json:"business_date,omitempty"`
	Status       Status    `json:"status,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	ReviewerID   string    `json:"reviewer_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Trigger      string    `json:"trigger,omitempty"`
	Checkpoint   string    `json:"checkpoint,omitempty"`
	At           time.Time `json:"at"`
}

// subscriberBuffer bounds each subscriber channel. Slow consumers drop
// events rather than stall the engine.
const subscriberBuffer = 64

// Subscribe registers an event channel. The returned cancel func must be
// called when the consumer goes away.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = ch
	e.mu.Unlock()
	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// publish fans an event out to all subscribers without blocking.
func (e *Engine) publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
