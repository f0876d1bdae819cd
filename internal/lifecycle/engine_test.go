package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/ferndale/shiftboard/internal/catalog"
	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/db"
	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/models"
	"github.com/ferndale/shiftboard/internal/period"
	"github.com/ferndale/shiftboard/internal/verify"
)

// upStore is an in-memory object store; failures configurable per test.
type upStore struct {
	calls    int
	failures int // fail the first n uploads
}

func (u *upStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	u.calls++
	if u.calls <= u.failures {
		return "", fmt.Errorf("simulated network fault %d", u.calls)
	}
	return fmt.Sprintf("https://store/obj-%d", u.calls), nil
}

// denyVerifier refuses everyone.
type denyVerifier struct{}

func (denyVerifier) Verify(ctx context.Context, userID string) (verify.Result, error) {
	return verify.Result{Ok: false, Reason: "face not recognized"}, nil
}

type testRig struct {
	engine *Engine
	clock  *clock.Clock
	store  *GormStore
	blobs  *upStore
}

func newRig(t *testing.T, opts ...func(*Options)) *testRig {
	t.Helper()
	conn, err := db.Connect(db.Options{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("db.Connect(): %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("db.AutoMigrate(): %v", err)
	}

	table, err := period.NewTable([]period.Spec{
		{ID: "opening", Start: "08:00", End: "11:30"},
		{ID: "lunch", Start: "11:30", End: "15:00"},
		{ID: "dinner", Start: "17:30", End: "22:00"},
		{ID: "closing", Start: "22:00", End: "23:30"},
	})
	if err != nil {
		t.Fatalf("period.NewTable(): %v", err)
	}
	cat, err := catalog.New([]catalog.Template{
		{ID: "fridge-temps", Title: "Log fridge temperatures", Role: catalog.RoleChef, Evidence: evidence.KindPhoto, PeriodID: "opening"},
		{ID: "line-check", Title: "Line check", Role: catalog.RoleChef, Evidence: evidence.KindChecklist, PeriodID: "opening"},
		{ID: "floor-walk", Title: "Floor walk", Role: catalog.RoleManager, Evidence: evidence.KindText, PeriodID: "lunch"},
		{ID: "allergen-notice", Title: "Allergen matrix posted", Role: catalog.RoleManager, Notice: true, PeriodID: "lunch"},
		{ID: "incident-report", Title: "Incident report", Role: catalog.RoleManager, Evidence: evidence.KindStructured, Floating: true},
		{ID: "lockup", Title: "Lock up", Role: catalog.RoleDutyManager, Evidence: evidence.KindChecklist, PeriodID: "closing", Trigger: TriggerLastCustomerDinner},
		{ID: "till-count", Title: "Count tills", Role: catalog.RoleDutyManager, Evidence: evidence.KindPhoto, PeriodID: "closing", Trigger: TriggerLastCustomerDinner},
	}, table)
	if err != nil {
		t.Fatalf("catalog.New(): %v", err)
	}

	rig := &testRig{
		clock: clock.NewAt(time.Date(2026, 5, 12, 9, 0, 0, 0, time.Local)),
		store: &GormStore{DB: conn},
		blobs: &upStore{},
	}
	engOpts := Options{
		Clock:   rig.clock,
		Periods: table,
		Catalog: cat,
		Store:   rig.store,
		Assembler: &evidence.Assembler{Store: blobstore.WithRetry(rig.blobs, blobstore.RetryPolicy{
			MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond,
		})},
		DayOpenMinutes: 8 * 60,
	}
	for _, o := range opts {
		o(&engOpts)
	}
	eng, err := New(engOpts)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	if err := eng.Hydrate(); err != nil {
		t.Fatalf("Hydrate(): %v", err)
	}
	rig.engine = eng
	return rig
}

func photoRaw() evidence.RawSubmission {
	return evidence.RawSubmission{PhotoGroups: []evidence.RawGroup{{
		SampleIndex: 0,
		Photos:      []evidence.RawImage{{URL: "https://x/1.jpg"}, {URL: "https://x/2.jpg"}},
	}}}
}

func checklistRaw(done bool) evidence.RawSubmission {
	status := evidence.ItemChecked
	if !done {
		status = evidence.ItemUnchecked
	}
	return evidence.RawSubmission{Checklist: []evidence.ChecklistItem{
		{ID: "burners-off", Status: evidence.ItemChecked},
		{ID: "fridge-sealed", Status: status},
	}}
}

func TestSubmit_RoundTrip(t *testing.T) {
	rig := newRig(t)
	in, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw())
	if err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if in.Status != StatusSubmitted || in.SubmittedAt == nil {
		t.Errorf("submitted instance = %+v", in)
	}

	got := rig.engine.Query("fridge-temps")
	if got.Status != StatusSubmitted {
		t.Fatalf("Query() status = %s", got.Status)
	}
	if got.Evidence == nil || got.Evidence.Kind != evidence.KindPhoto {
		t.Fatalf("Query() evidence = %+v", got.Evidence)
	}
	photos := got.Evidence.Photo.Groups[0].Photos
	if len(photos) != 2 || photos[0] != "https://x/1.jpg" || photos[1] != "https://x/2.jpg" {
		t.Errorf("evidence photos = %v", photos)
	}
	if got.BusinessDate != "2026-05-12" {
		t.Errorf("business date = %q", got.BusinessDate)
	}
}

func TestSubmit_EvidenceMismatch(t *testing.T) {
	rig := newRig(t)
	// Photo evidence for a text task.
	_, err := rig.engine.Submit(context.Background(), "floor-walk", "mgr-1", photoRaw())
	if err == nil {
		t.Fatal("Submit() accepted wrong evidence kind")
	}
	if rig.engine.Query("floor-walk").Status != StatusPending {
		t.Error("instance left pending-breaking state after mismatch")
	}
}

func TestSubmit_IncompleteChecklist(t *testing.T) {
	rig := newRig(t)
	_, err := rig.engine.Submit(context.Background(), "line-check", "chef-1", checklistRaw(false))
	if !errors.Is(err, evidence.ErrIncompleteChecklist) {
		t.Fatalf("err = %v, want ErrIncompleteChecklist", err)
	}
	if rig.engine.Query("line-check").Status != StatusPending {
		t.Error("instance not pending after incomplete checklist")
	}

	if _, err := rig.engine.Submit(context.Background(), "line-check", "chef-1", checklistRaw(true)); err != nil {
		t.Fatalf("complete checklist rejected: %v", err)
	}
}

func TestSubmit_UploadFailureLeavesPending(t *testing.T) {
	rig := newRig(t)
	rig.blobs.failures = 100 // every attempt fails
	events, cancel := rig.engine.Subscribe()
	defer cancel()
	raw := evidence.RawSubmission{PhotoGroups: []evidence.RawGroup{{
		Photos: []evidence.RawImage{{Data: "data:image/jpeg;base64,aGk="}},
	}}}
	_, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", raw)
	if !errors.Is(err, blobstore.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	select {
	case ev := <-events:
		if ev.Type != EventUploadFailed || ev.TemplateID != "fridge-temps" {
			t.Errorf("event = %+v, want upload-failed for fridge-temps", ev)
		}
	default:
		t.Error("no upload-failed event published")
	}
	if rig.blobs.calls != 3 {
		t.Errorf("upload attempts = %d, want 3", rig.blobs.calls)
	}
	if got := rig.engine.Query("fridge-temps"); got.Status != StatusPending {
		t.Errorf("status after failed upload = %s, want pending", got.Status)
	}
	// Nothing persisted either.
	rows, err := rig.store.LoadInstancesForDate("2026-05-12")
	if err != nil {
		t.Fatalf("LoadInstancesForDate(): %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("persisted %d rows after failed submit", len(rows))
	}
}

func TestSubmit_CancelledContextDoesNotCommit(t *testing.T) {
	rig := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rig.engine.Submit(ctx, "fridge-temps", "chef-1", photoRaw())
	if err == nil {
		t.Fatal("Submit() committed on cancelled context")
	}
	if got := rig.engine.Query("fridge-temps"); got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestSubmit_NoticeNotActionable(t *testing.T) {
	rig := newRig(t)
	_, err := rig.engine.Submit(context.Background(), "allergen-notice", "mgr-1", evidence.RawSubmission{})
	if !errors.Is(err, ErrNotActionable) {
		t.Fatalf("err = %v, want ErrNotActionable", err)
	}
}

func TestSubmit_UnknownTemplate(t *testing.T) {
	rig := newRig(t)
	_, err := rig.engine.Submit(context.Background(), "nope", "u", evidence.RawSubmission{})
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("err = %v, want ErrUnknownTemplate", err)
	}
}

func TestSubmit_VerifyDenied(t *testing.T) {
	rig := newRig(t, func(o *Options) { o.Verifier = denyVerifier{} })
	_, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw())
	if !errors.Is(err, ErrVerifyDenied) {
		t.Fatalf("err = %v, want ErrVerifyDenied", err)
	}
}

func TestReview_RejectAndResubmit(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}

	in, err := rig.engine.Review("fridge-temps", DecisionReject, "ceo-1", "blurry")
	if err != nil {
		t.Fatalf("Review(reject): %v", err)
	}
	if in.Status != StatusRejected || in.RejectionReason != "blurry" || in.ReviewerID != "ceo-1" {
		t.Errorf("rejected instance = %+v", in)
	}

	firstSubmittedAt := *rig.engine.Query("fridge-temps").SubmittedAt
	rig.clock.SetOffset(rig.clock.Offset() + time.Hour)

	in, err = rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if in.Status != StatusSubmitted {
		t.Errorf("resubmit status = %s", in.Status)
	}
	if in.RejectionReason != "" {
		t.Errorf("rejection reason not cleared: %q", in.RejectionReason)
	}
	if !in.SubmittedAt.After(firstSubmittedAt) {
		t.Errorf("submittedAt not restamped: %v vs %v", in.SubmittedAt, firstSubmittedAt)
	}

	if _, err := rig.engine.Review("fridge-temps", DecisionApprove, "ceo-1", ""); err != nil {
		t.Fatalf("Review(approve): %v", err)
	}
	if got := rig.engine.Query("fridge-temps"); got.Status != StatusApproved {
		t.Errorf("final status = %s", got.Status)
	}
}

func TestReview_InvalidTransitions(t *testing.T) {
	rig := newRig(t)

	// Review before any submission.
	if _, err := rig.engine.Review("fridge-temps", DecisionApprove, "ceo-1", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("review pending: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if _, err := rig.engine.Review("fridge-temps", DecisionApprove, "ceo-1", ""); err != nil {
		t.Fatalf("Review(): %v", err)
	}

	// Approved is terminal: no second review, no resubmission.
	if _, err := rig.engine.Review("fridge-temps", DecisionReject, "ceo-1", "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("review approved: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("submit over approved: err = %v, want ErrInvalidTransition", err)
	}
}

func TestReview_RejectRequiresReason(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if _, err := rig.engine.Review("fridge-temps", DecisionReject, "ceo-1", ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("err = %v, want ErrReasonRequired", err)
	}
}

func TestReview_AppendsLog(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if _, err := rig.engine.Review("fridge-temps", DecisionReject, "ceo-1", "blurry"); err != nil {
		t.Fatalf("Review(): %v", err)
	}
	var logs []models.ReviewLog
	if err := rig.store.DB.Find(&logs).Error; err != nil {
		t.Fatalf("find logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Decision != "reject" || logs[0].Reason != "blurry" {
		t.Errorf("review logs = %+v", logs)
	}
}

func TestTrigger_GatesAndAutoClears(t *testing.T) {
	rig := newRig(t)
	// Move to the closing period.
	rig.clock.SetOffset(rig.clock.Offset() + 13*time.Hour + 30*time.Minute) // 22:30

	// Gated tasks are invisible and unsubmittable before the trigger.
	if views := rig.engine.TasksNow(catalog.RoleDutyManager); len(views) != 0 {
		t.Errorf("duty tasks before trigger = %v", views)
	}
	if _, err := rig.engine.Submit(context.Background(), "lockup", "dm-1", checklistRaw(true)); !errors.Is(err, ErrNotActionable) {
		t.Fatalf("gated submit: err = %v, want ErrNotActionable", err)
	}

	if err := rig.engine.RaiseTrigger(TriggerLastCustomerDinner, "mgr-1"); err != nil {
		t.Fatalf("RaiseTrigger(): %v", err)
	}
	if views := rig.engine.TasksNow(catalog.RoleDutyManager); len(views) != 2 {
		t.Fatalf("duty tasks after trigger = %d, want 2", len(views))
	}

	// Approve both gated tasks; the trigger consumes itself.
	for _, id := range []string{"lockup", "till-count"} {
		raw := checklistRaw(true)
		if id == "till-count" {
			raw = photoRaw()
		}
		if _, err := rig.engine.Submit(context.Background(), id, "dm-1", raw); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
		if _, err := rig.engine.Review(id, DecisionApprove, "mgr-1", ""); err != nil {
			t.Fatalf("Review(%s): %v", id, err)
		}
	}
	if rig.engine.TriggerRaised(TriggerLastCustomerDinner) {
		t.Error("trigger still raised after all gated tasks approved")
	}

	// Consumption persisted.
	var evts []models.TriggerEvent
	if err := rig.store.DB.Find(&evts).Error; err != nil {
		t.Fatalf("find triggers: %v", err)
	}
	if len(evts) != 1 || !evts[0].Consumed {
		t.Errorf("trigger rows = %+v", evts)
	}
}

func TestTrigger_RaiseIsIdempotent(t *testing.T) {
	rig := newRig(t)
	for i := 0; i < 3; i++ {
		if err := rig.engine.RaiseTrigger(TriggerLastCustomerLunch, "mgr-1"); err != nil {
			t.Fatalf("RaiseTrigger() #%d: %v", i, err)
		}
	}
	var count int64
	rig.store.DB.Model(&models.TriggerEvent{}).Count(&count)
	if count != 1 {
		t.Errorf("trigger rows = %d, want 1", count)
	}
}

func TestReset_ClearsLiveStateKeepsHistory(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if err := rig.engine.RaiseTrigger(TriggerLastCustomerDinner, "mgr-1"); err != nil {
		t.Fatalf("RaiseTrigger(): %v", err)
	}

	rig.engine.Reset("late-close")

	if got := rig.engine.Query("fridge-temps"); got.Status != StatusPending {
		t.Errorf("status after reset = %s, want pending", got.Status)
	}
	if rig.engine.TriggerRaised(TriggerLastCustomerDinner) {
		t.Error("trigger survived reset")
	}

	// Durable history remains queryable through the store.
	rows, err := rig.store.LoadInstancesForDate("2026-05-12")
	if err != nil {
		t.Fatalf("LoadInstancesForDate(): %v", err)
	}
	if len(rows) != 1 || rows[0].Status != string(StatusSubmitted) {
		t.Errorf("history rows = %+v", rows)
	}
}

func TestHydrate_RestoresLiveState(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if err := rig.engine.RaiseTrigger(TriggerLastCustomerDinner, "mgr-1"); err != nil {
		t.Fatalf("RaiseTrigger(): %v", err)
	}

	// Drop in-memory state, then hydrate from the store.
	rig.engine.Reset("restart")
	if err := rig.engine.Hydrate(); err != nil {
		t.Fatalf("Hydrate(): %v", err)
	}

	if got := rig.engine.Query("fridge-temps"); got.Status != StatusSubmitted {
		t.Errorf("hydrated status = %s, want submitted", got.Status)
	}
	if got := rig.engine.Query("fridge-temps"); got.Evidence == nil {
		t.Error("hydrated instance lost its evidence")
	}
}

func TestBusinessDate(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, 5, 12, 9, 0, 0, 0, time.Local), "2026-05-12"},
		{time.Date(2026, 5, 12, 23, 50, 0, 0, time.Local), "2026-05-12"},
		{time.Date(2026, 5, 13, 2, 0, 0, 0, time.Local), "2026-05-12"}, // before day-open
		{time.Date(2026, 5, 13, 8, 0, 0, 0, time.Local), "2026-05-13"},
	}
	for _, tt := range tests {
		if got := BusinessDate(tt.at, 8*60); got != tt.want {
			t.Errorf("BusinessDate(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestTasksNow_PeriodAndFloating(t *testing.T) {
	rig := newRig(t) // 09:00, opening period
	chef := rig.engine.TasksNow(catalog.RoleChef)
	if len(chef) != 2 {
		t.Fatalf("chef tasks at 09:00 = %d, want 2", len(chef))
	}
	mgr := rig.engine.TasksNow(catalog.RoleManager)
	if len(mgr) != 1 || mgr[0].Template.ID != "incident-report" {
		t.Errorf("manager tasks at 09:00 = %v (want only the floating task)", mgr)
	}
}

func TestSubscribe_ReceivesLifecycleEvents(t *testing.T) {
	rig := newRig(t)
	ch, cancel := rig.engine.Subscribe()
	defer cancel()

	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	select {
	case ev := <-ch:
		if ev.Type != EventSubmitted || ev.TemplateID != "fridge-temps" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestOnExternalReviewEvent(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.engine.Submit(context.Background(), "fridge-temps", "chef-1", photoRaw()); err != nil {
		t.Fatalf("Submit(): %v", err)
	}
	if err := rig.engine.OnExternalReviewEvent("fridge-temps", DecisionApprove, "ceo-remote", ""); err != nil {
		t.Fatalf("OnExternalReviewEvent(): %v", err)
	}
	if got := rig.engine.Query("fridge-temps"); got.Status != StatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
}

func TestValidTransitions_Table(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusSubmitted, true},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusSubmitted, StatusSubmitted, true}, // last submit wins
		{StatusRejected, StatusSubmitted, true},
		{StatusRejected, StatusApproved, false}, // must pass through submitted
		{StatusPending, StatusApproved, false},
		{StatusApproved, StatusSubmitted, false},
		{StatusApproved, StatusRejected, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
