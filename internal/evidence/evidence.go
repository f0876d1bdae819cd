// Package evidence defines the canonical submission payload shapes and the
// normalization boundary that converts the app's heterogeneous raw inputs
// into them. Downstream code only ever sees the canonical forms.
package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags the evidence a task template requires and a submission carries.
type Kind string

const (
	KindNone       Kind = "none"
	KindPhoto      Kind = "photo"
	KindAudio      Kind = "audio"
	KindText       Kind = "text"
	KindChecklist  Kind = "checklist"
	KindStructured Kind = "structured"
)

// ValidKinds is the canonical set of accepted evidence kind strings.
var ValidKinds = map[Kind]bool{
	KindNone: true, KindPhoto: true, KindAudio: true,
	KindText: true, KindChecklist: true, KindStructured: true,
}

var (
	// ErrKindMismatch means the submission's evidence tag does not match the
	// template's declared requirement.
	ErrKindMismatch = errors.New("evidence: kind does not match template requirement")

	// ErrIncompleteChecklist means at least one checklist item is still
	// unchecked at submit time.
	ErrIncompleteChecklist = errors.New("evidence: checklist has unchecked items")
)

// Evidence is a tagged union: Kind selects which payload pointer is set.
type Evidence struct {
	Kind       Kind                `json:"kind"`
	Photo      *PhotoEvidence      `json:"photo,omitempty"`
	Audio      *AudioEvidence      `json:"audio,omitempty"`
	Text       *TextEvidence       `json:"text,omitempty"`
	Checklist  *ChecklistEvidence  `json:"checklist,omitempty"`
	Structured *StructuredEvidence `json:"structured,omitempty"`
}

// PhotoEvidence is one or more groups of photo references.
type PhotoEvidence struct {
	Groups []PhotoGroup `json:"groups"`
}

// PhotoGroup is a set of photos captured for one sample point.
type PhotoGroup struct {
	ID          string   `json:"id"`
	SampleIndex int      `json:"sample_index"`
	Comment     string   `json:"comment,omitempty"`
	Photos      []string `json:"photos"`
}

// AudioEvidence carries a transcript plus a reference to the recording.
type AudioEvidence struct {
	Transcript string `json:"transcript"`
	BlobRef    string `json:"blob_ref,omitempty"`
}

// TextEvidence is a free-text note.
type TextEvidence struct {
	Content string `json:"content"`
}

// ItemStatus is the state of a single checklist item.
type ItemStatus string

const (
	ItemUnchecked ItemStatus = "unchecked"
	ItemChecked   ItemStatus = "checked"
	ItemFailed    ItemStatus = "failed"
)

// ChecklistEvidence is a list of item outcomes.
type ChecklistEvidence struct {
	Items []ChecklistItem `json:"items"`
}

// ChecklistItem is one line of a checklist submission.
type ChecklistItem struct {
	ID     string     `json:"id"`
	Status ItemStatus `json:"status"`
}

// Complete reports whether every item has a non-unchecked status.
func (c *ChecklistEvidence) Complete() bool {
	for _, it := range c.Items {
		if it.Status == ItemUnchecked || it.Status == "" {
			return false
		}
	}
	return true
}

// StructuredEvidence is a flat key-value form submission.
type StructuredEvidence struct {
	Fields map[string]string `json:"fields"`
}

// Validate checks that exactly the payload selected by Kind is present and
// internally consistent. It does not check template requirements; see Matches.
func (e *Evidence) Validate() error {
	set := 0
	if e.Photo != nil {
		set++
	}
	if e.Audio != nil {
		set++
	}
	if e.Text != nil {
		set++
	}
	if e.Checklist != nil {
		set++
	}
	if e.Structured != nil {
		set++
	}
	switch e.Kind {
	case KindNone:
		if set != 0 {
			return fmt.Errorf("evidence: kind none carries a payload")
		}
	case KindPhoto:
		if e.Photo == nil || set != 1 {
			return fmt.Errorf("evidence: kind photo requires exactly the photo payload")
		}
		if len(e.Photo.Groups) == 0 {
			return fmt.Errorf("evidence: photo evidence has no groups")
		}
		for _, g := range e.Photo.Groups {
			if len(g.Photos) == 0 {
				return fmt.Errorf("evidence: photo group %q has no photos", g.ID)
			}
		}
	case KindAudio:
		if e.Audio == nil || set != 1 {
			return fmt.Errorf("evidence: kind audio requires exactly the audio payload")
		}
	case KindText:
		if e.Text == nil || set != 1 {
			return fmt.Errorf("evidence: kind text requires exactly the text payload")
		}
	case KindChecklist:
		if e.Checklist == nil || set != 1 {
			return fmt.Errorf("evidence: kind checklist requires exactly the checklist payload")
		}
	case KindStructured:
		if e.Structured == nil || set != 1 {
			return fmt.Errorf("evidence: kind structured requires exactly the structured payload")
		}
	default:
		return fmt.Errorf("evidence: unknown kind %q", e.Kind)
	}
	return nil
}

// Matches checks the evidence tag against a template's required kind,
// returning ErrKindMismatch on disagreement.
func (e *Evidence) Matches(required Kind) error {
	if e.Kind != required {
		return fmt.Errorf("%w: have %s, template requires %s", ErrKindMismatch, e.Kind, required)
	}
	return nil
}

// MarshalDB renders the evidence as the JSON stored in the instance row.
func (e *Evidence) MarshalDB() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("evidence: marshal: %w", err)
	}
	return string(data), nil
}

// UnmarshalDB parses the JSON column back into an Evidence value. An empty
// column yields nil (a pending instance has no evidence).
func UnmarshalDB(data string) (*Evidence, error) {
	if data == "" {
		return nil, nil
	}
	var e Evidence
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("evidence: unmarshal: %w", err)
	}
	return &e, nil
}
