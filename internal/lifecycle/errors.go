package lifecycle

import (
	"errors"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/ferndale/shiftboard/internal/evidence"
)

var (
	// ErrUnknownTemplate means the template id is not in the catalog.
	ErrUnknownTemplate = errors.New("lifecycle: unknown template")

	// ErrNotActionable means the template is a notice or its gating trigger
	// has not been raised.
	ErrNotActionable = errors.New("lifecycle: task is not actionable")

	// ErrInvalidTransition means the requested operation is not legal from
	// the instance's current status. Indicates caller misuse.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")

	// ErrReasonRequired means a rejection was attempted without a reason.
	ErrReasonRequired = errors.New("lifecycle: rejection requires a reason")

	// ErrVerifyDenied means the identity gate refused the submitter.
	ErrVerifyDenied = errors.New("lifecycle: identity verification failed")
)

// Remedy pairs a surfaced error with the action that fixes it. Every error
// shown to a user carries one of these.
func Remedy(err error) string {
	switch {
	case errors.Is(err, evidence.ErrKindMismatch):
		return "capture the evidence type this task asks for and submit again"
	case errors.Is(err, evidence.ErrIncompleteChecklist):
		return "complete all checklist items before submitting"
	case errors.Is(err, blobstore.ErrUploadFailed):
		return "check the network connection and retry the upload"
	case errors.Is(err, ErrVerifyDenied):
		return "re-run face verification or ask a manager to re-enroll you"
	case errors.Is(err, ErrReasonRequired):
		return "enter a rejection reason so the submitter knows what to fix"
	case errors.Is(err, ErrNotActionable):
		return "wait for this task to become available"
	case errors.Is(err, ErrUnknownTemplate):
		return "refresh the checklist; this task may have been removed"
	case errors.Is(err, ErrInvalidTransition):
		return "refresh the task status and try again"
	default:
		return "try again, and report the problem if it persists"
	}
}
