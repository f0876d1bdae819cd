package lifecycle

import (
	"time"

	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/models"
)

// Status is the lifecycle state of a task instance.
type Status string

const (
	StatusPending   Status = "pending" // implicit: no record yet
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved" // terminal for the business day
	StatusRejected  Status = "rejected"
)

// ValidTransitions maps each status to the statuses it may move to.
// Approved is terminal; a rejected instance can only go back through
// submitted, never straight to approved.
var ValidTransitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted},
	StatusSubmitted: {StatusSubmitted, StatusApproved, StatusRejected},
	StatusRejected:  {StatusSubmitted},
	StatusApproved:  {},
}

func canTransition(from, to Status) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Instance is the in-memory view of one (template, business date) record.
// The engine hands out copies; callers never hold a mutable reference.
type Instance struct {
	TemplateID      string
	BusinessDate    string
	Status          Status
	SubmissionID    string
	SubmittedBy     string
	Evidence        *evidence.Evidence
	RejectionReason string
	ReviewerID      string
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
}

// toModel converts the in-memory instance to its persistence row.
func (in *Instance) toModel() (*models.TaskInstance, error) {
	var evJSON string
	if in.Evidence != nil {
		var err error
		evJSON, err = in.Evidence.MarshalDB()
		if err != nil {
			return nil, err
		}
	}
	return &models.TaskInstance{
		TemplateID:      in.TemplateID,
		BusinessDate:    in.BusinessDate,
		Status:          string(in.Status),
		SubmissionID:    in.SubmissionID,
		SubmittedBy:     in.SubmittedBy,
		Evidence:        evJSON,
		RejectionReason: in.RejectionReason,
		ReviewerID:      in.ReviewerID,
		SubmittedAt:     in.SubmittedAt,
		ReviewedAt:      in.ReviewedAt,
	}, nil
}

// fromModel converts a persistence row back to the in-memory view.
func fromModel(m *models.TaskInstance) (*Instance, error) {
	ev, err := evidence.UnmarshalDB(m.Evidence)
	if err != nil {
		return nil, err
	}
	return &Instance{
		TemplateID:      m.TemplateID,
		BusinessDate:    m.BusinessDate,
		Status:          Status(m.Status),
		SubmissionID:    m.SubmissionID,
		SubmittedBy:     m.SubmittedBy,
		Evidence:        ev,
		RejectionReason: m.RejectionReason,
		ReviewerID:      m.ReviewerID,
		SubmittedAt:     m.SubmittedAt,
		ReviewedAt:      m.ReviewedAt,
	}, nil
}

// clone returns a copy safe to hand outside the engine.
func (in *Instance) clone() *Instance {
	out := *in
	return &out
}
