// Package lifecycle is the engine core: it owns the per-day task instance
// map, moves instances through the submission/review state machine, and
// governs trigger gating and day-boundary resets.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/ferndale/shiftboard/internal/catalog"
	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/models"
	"github.com/ferndale/shiftboard/internal/period"
	"github.com/ferndale/shiftboard/internal/verify"
	"github.com/google/uuid"
)

// Well-known closing triggers raised by a manager action.
const (
	TriggerLastCustomerLunch  = "last-customer-left-lunch"
	TriggerLastCustomerDinner = "last-customer-left-dinner"
)

type key struct {
	templateID   string
	businessDate string
}

// Options configures an Engine. Clock, Periods, Catalog and Store are
// required; Verifier defaults to allow-all.
type Options struct {
	Clock          *clock.Clock
	Periods        *period.Table
	Catalog        *catalog.Catalog
	Store          Store
	Assembler      *evidence.Assembler
	Verifier       verify.Verifier
	DayOpenMinutes int // minute-of-day at which the business date rolls
}

// Engine is the single owner of mutable lifecycle state. All mutation goes
// through Submit, Review, RaiseTrigger and Reset; everything else reads.
type Engine struct {
	clock          *clock.Clock
	periods        *period.Table
	catalog        *catalog.Catalog
	store          Store
	assembler      *evidence.Assembler
	verifier       verify.Verifier
	dayOpenMinutes int

	mu        sync.Mutex
	instances map[key]*Instance
	triggers  map[string]bool // raised, unconsumed triggers for the live date
	keyMu     map[key]*sync.Mutex
	subs      map[int]chan Event
	nextSubID int
}

// New builds an Engine. Call Hydrate before serving traffic.
func New(opts Options) (*Engine, error) {
	if opts.Clock == nil {
		return nil, fmt.Errorf("lifecycle: clock is required")
	}
	if opts.Periods == nil {
		return nil, fmt.Errorf("lifecycle: period table is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("lifecycle: catalog is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if opts.Assembler == nil {
		return nil, fmt.Errorf("lifecycle: assembler is required")
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.AllowAll{}
	}
	if opts.DayOpenMinutes <= 0 {
		opts.DayOpenMinutes = 8 * 60
	}
	return &Engine{
		clock:          opts.Clock,
		periods:        opts.Periods,
		catalog:        opts.Catalog,
		store:          opts.Store,
		assembler:      opts.Assembler,
		verifier:       opts.Verifier,
		dayOpenMinutes: opts.DayOpenMinutes,
		instances:      make(map[key]*Instance),
		triggers:       make(map[string]bool),
		keyMu:          make(map[key]*sync.Mutex),
		subs:           make(map[int]chan Event),
	}, nil
}

// BusinessDate maps an instant to its business date: times before the
// day-open checkpoint belong to the previous calendar day.
func BusinessDate(t time.Time, dayOpenMinutes int) string {
	if t.Hour()*60+t.Minute() < dayOpenMinutes {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("2006-01-02")
}

// businessDate reads the clock once and returns the live business date.
func (e *Engine) businessDate() string {
	return BusinessDate(e.clock.Now(), e.dayOpenMinutes)
}

// Hydrate loads the live business date's instances and active triggers from
// the store. Called at startup and after a reset.
func (e *Engine) Hydrate() error {
	date := e.businessDate()
	rows, err := e.store.LoadInstancesForDate(date)
	if err != nil {
		return err
	}
	triggers, err := e.store.LoadActiveTriggers(date)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instances = make(map[key]*Instance, len(rows))
	for i := range rows {
		in, err := fromModel(&rows[i])
		if err != nil {
			return fmt.Errorf("lifecycle: hydrate %s/%s: %w", rows[i].TemplateID, rows[i].BusinessDate, err)
		}
		e.instances[key{in.TemplateID, in.BusinessDate}] = in
	}
	e.triggers = make(map[string]bool, len(triggers))
	for _, name := range triggers {
		e.triggers[name] = true
	}
	return nil
}

// lockKey serializes operations on one (template, date) key. Holding only
// the key lock through evidence assembly keeps uploads for different tasks
// concurrent while submissions for the same task queue.
func (e *Engine) lockKey(k key) func() {
	e.mu.Lock()
	m, ok := e.keyMu[k]
	if !ok {
		m = &sync.Mutex{}
		e.keyMu[k] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Submit records evidence for a template on the live business date. The
// instance transitions to submitted only after normalization and every
// upload have completed; any failure leaves the prior state untouched.
func (e *Engine) Submit(ctx context.Context, templateID, submittedBy string, raw evidence.RawSubmission) (*Instance, error) {
	tmpl, ok := e.catalog.ByID(templateID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	if !tmpl.Actionable() {
		return nil, fmt.Errorf("%w: %s is a notice", ErrNotActionable, templateID)
	}
	if tmpl.Trigger != "" && !e.TriggerRaised(tmpl.Trigger) {
		return nil, fmt.Errorf("%w: waiting on trigger %s", ErrNotActionable, tmpl.Trigger)
	}

	res, err := e.verifier.Verify(ctx, submittedBy)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: verify %s: %w", submittedBy, err)
	}
	if !res.Ok {
		return nil, fmt.Errorf("%w: %s", ErrVerifyDenied, res.Reason)
	}

	now := e.clock.Now()
	k := key{templateID, BusinessDate(now, e.dayOpenMinutes)}
	unlock := e.lockKey(k)
	defer unlock()

	cur := e.statusOf(k)
	if !canTransition(cur, StatusSubmitted) {
		return nil, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, cur)
	}

	ev, err := e.assembler.Assemble(ctx, tmpl.Evidence, raw)
	if err != nil {
		if errors.Is(err, blobstore.ErrUploadFailed) {
			e.publish(Event{
				Type: EventUploadFailed, TemplateID: k.templateID, BusinessDate: k.businessDate,
				Reason: err.Error(), At: now,
			})
		}
		return nil, err
	}
	if err := ev.Matches(tmpl.Evidence); err != nil {
		return nil, err
	}
	if ev.Kind == evidence.KindChecklist && !ev.Checklist.Complete() {
		return nil, fmt.Errorf("%w: template %s", evidence.ErrIncompleteChecklist, templateID)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	// A cancelled dialog must not commit a half-applied transition.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	submittedAt := e.clock.Now()
	in := &Instance{
		TemplateID:   k.templateID,
		BusinessDate: k.businessDate,
		Status:       StatusSubmitted,
		SubmissionID: uuid.NewString(),
		SubmittedBy:  submittedBy,
		Evidence:     ev,
		SubmittedAt:  &submittedAt,
	}
	row, err := in.toModel()
	if err != nil {
		return nil, err
	}
	if err := e.store.PersistInstance(row); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.instances[k] = in
	e.mu.Unlock()

	e.publish(Event{
		Type: EventSubmitted, TemplateID: k.templateID, BusinessDate: k.businessDate,
		Status: StatusSubmitted, At: submittedAt,
	})
	return in.clone(), nil
}

// Decision is a review outcome.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Review applies a reviewer's decision to a submitted instance. Approvals
// may consume a closing trigger once every instance it gates is approved.
func (e *Engine) Review(templateID string, decision Decision, reviewerID, reason string) (*Instance, error) {
	if _, ok := e.catalog.ByID(templateID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("lifecycle: unknown decision %q", decision)
	}
	if decision == DecisionReject && reason == "" {
		return nil, ErrReasonRequired
	}

	now := e.clock.Now()
	k := key{templateID, BusinessDate(now, e.dayOpenMinutes)}
	unlock := e.lockKey(k)
	defer unlock()

	e.mu.Lock()
	cur, ok := e.instances[k]
	e.mu.Unlock()
	if !ok || cur.Status != StatusSubmitted {
		status := StatusPending
		if ok {
			status = cur.Status
		}
		return nil, fmt.Errorf("%w: cannot review from %s", ErrInvalidTransition, status)
	}

	target := StatusApproved
	if decision == DecisionReject {
		target = StatusRejected
	}
	in := cur.clone()
	in.Status = target
	in.ReviewerID = reviewerID
	in.ReviewedAt = &now
	if decision == DecisionReject {
		in.RejectionReason = reason
	} else {
		in.RejectionReason = ""
	}

	row, err := in.toModel()
	if err != nil {
		return nil, err
	}
	if err := e.store.PersistInstance(row); err != nil {
		return nil, err
	}
	if err := e.store.AppendReviewLog(&models.ReviewLog{
		TemplateID:   k.templateID,
		BusinessDate: k.businessDate,
		SubmissionID: in.SubmissionID,
		Decision:     string(decision),
		ReviewerID:   reviewerID,
		Reason:       reason,
	}); err != nil {
		// History write failure must not undo an applied decision.
		log.Printf("lifecycle: review log: %v", err)
	}

	e.mu.Lock()
	e.instances[k] = in
	e.mu.Unlock()

	e.publish(Event{
		Type: EventReviewed, TemplateID: k.templateID, BusinessDate: k.businessDate,
		Status: target, Decision: string(decision), ReviewerID: reviewerID, Reason: reason, At: now,
	})

	if target == StatusApproved {
		e.maybeConsumeTriggers(k.businessDate, now)
	}
	return in.clone(), nil
}

// Query returns the instance for the live business date, or a pending
// placeholder when none exists. Side-effect free.
func (e *Engine) Query(templateID string) *Instance {
	k := key{templateID, e.businessDate()}
	e.mu.Lock()
	defer e.mu.Unlock()
	if in, ok := e.instances[k]; ok {
		return in.clone()
	}
	return &Instance{TemplateID: templateID, BusinessDate: k.businessDate, Status: StatusPending}
}

// statusOf reads the current status for a key (pending when absent).
func (e *Engine) statusOf(k key) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if in, ok := e.instances[k]; ok {
		return in.Status
	}
	return StatusPending
}

// RaiseTrigger records an operator-raised closing trigger, making the
// templates it gates actionable.
func (e *Engine) RaiseTrigger(name, raisedBy string) error {
	if name == "" {
		return fmt.Errorf("lifecycle: trigger name is required")
	}
	now := e.clock.Now()
	date := BusinessDate(now, e.dayOpenMinutes)
	if err := e.store.SaveTrigger(name, date, raisedBy, now); err != nil {
		return err
	}
	e.mu.Lock()
	already := e.triggers[name]
	e.triggers[name] = true
	e.mu.Unlock()
	if !already {
		e.publish(Event{Type: EventTriggerRaised, Trigger: name, BusinessDate: date, At: now})
	}
	return nil
}

// TriggerRaised reports whether the trigger is currently raised.
func (e *Engine) TriggerRaised(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggers[name]
}

// Triggers returns the currently raised trigger names.
func (e *Engine) Triggers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.triggers))
	for name := range e.triggers {
		out = append(out, name)
	}
	return out
}

// maybeConsumeTriggers clears any raised trigger whose gated actionable
// templates are all approved.
func (e *Engine) maybeConsumeTriggers(date string, now time.Time) {
	e.mu.Lock()
	raised := make([]string, 0, len(e.triggers))
	for name := range e.triggers {
		raised = append(raised, name)
	}
	e.mu.Unlock()

	for _, name := range raised {
		gated := e.catalog.GatedBy(name)
		done := true
		for _, tmpl := range gated {
			if !tmpl.Actionable() {
				continue
			}
			if e.statusOf(key{tmpl.ID, date}) != StatusApproved {
				done = false
				break
			}
		}
		if !done || len(gated) == 0 {
			continue
		}
		if err := e.store.ConsumeTrigger(name, date, now); err != nil {
			log.Printf("lifecycle: consume trigger %s: %v", name, err)
			continue
		}
		e.mu.Lock()
		delete(e.triggers, name)
		e.mu.Unlock()
		e.publish(Event{Type: EventTriggerCleared, Trigger: name, BusinessDate: date, At: now})
	}
}

// Reset clears the live instance map and all raised triggers. History stays
// in the store; the working set starts fresh for the new business date.
func (e *Engine) Reset(checkpointID string) {
	now := e.clock.Now()
	date := BusinessDate(now, e.dayOpenMinutes)

	e.mu.Lock()
	cleared := len(e.instances)
	e.instances = make(map[key]*Instance)
	e.keyMu = make(map[key]*sync.Mutex)
	for name := range e.triggers {
		if err := e.store.ConsumeTrigger(name, date, now); err != nil {
			log.Printf("lifecycle: reset trigger %s: %v", name, err)
		}
	}
	e.triggers = make(map[string]bool)
	e.mu.Unlock()

	log.Printf("lifecycle: reset at checkpoint %s cleared %d instances", checkpointID, cleared)
	e.publish(Event{Type: EventReset, Checkpoint: checkpointID, BusinessDate: date, At: now})
}

// TaskView pairs a template with its live instance state for UI listings.
type TaskView struct {
	Template catalog.Template
	Status   Status
}

// TasksNow returns the actionable and notice templates for the role in the
// current period plus the role's floating tasks, annotated with instance
// status. Trigger-gated templates are held back until their trigger fires.
func (e *Engine) TasksNow(role catalog.Role) []TaskView {
	now := e.clock.Now()
	date := BusinessDate(now, e.dayOpenMinutes)

	var templates []catalog.Template
	if p := e.periods.Current(now); p != nil {
		templates = e.catalog.For(p.ID, role)
	}
	templates = append(templates, e.catalog.Floating(role)...)

	out := make([]TaskView, 0, len(templates))
	for _, tmpl := range templates {
		if tmpl.Trigger != "" && !e.TriggerRaised(tmpl.Trigger) {
			continue
		}
		out = append(out, TaskView{Template: tmpl, Status: e.statusOf(key{tmpl.ID, date})})
	}
	return out
}

// CurrentPeriod resolves the live period (nil during closed hours).
func (e *Engine) CurrentPeriod() *period.Period {
	return e.periods.Current(e.clock.Now())
}

// NextPeriod resolves the next upcoming period.
func (e *Engine) NextPeriod() *period.Period {
	return e.periods.Next(e.clock.Now())
}

// OnExternalReviewEvent feeds a review decision made on another device into
// the same Review path. Inbound handler for the realtime collaborator.
func (e *Engine) OnExternalReviewEvent(templateID string, decision Decision, reviewerID, reason string) error {
	_, err := e.Review(templateID, decision, reviewerID, reason)
	return err
}
