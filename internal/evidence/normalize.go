package evidence

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/google/uuid"
)

// RawImage is one photo as the app sends it: either an inline data URI or an
// already-stable URL, with optional per-image metadata from the legacy flat
// evidence format.
type RawImage struct {
	Data        string `json:"data,omitempty"` // data: URI, uploaded during assembly
	URL         string `json:"url,omitempty"`  // stable reference, passed through
	Description string `json:"description,omitempty"`
	SampleIndex *int   `json:"sampleIndex,omitempty"`
}

// RawGroup is an already-grouped set of photos.
type RawGroup struct {
	SampleIndex int        `json:"sampleIndex"`
	Comment     string     `json:"comment,omitempty"`
	Photos      []RawImage `json:"photos"`
}

// RawSubmission is the union of every evidence shape the app has ever sent.
// Exactly one family of fields is expected to be populated; Assemble picks
// the first recognized shape in precedence order.
type RawSubmission struct {
	// Photo shapes, newest first.
	PhotoGroups []RawGroup `json:"photoGroups,omitempty"`
	Evidence    []RawImage `json:"evidence,omitempty"` // legacy flat format
	Photo       *RawImage  `json:"photo,omitempty"`
	Photos      []RawImage `json:"photos,omitempty"`

	// Audio.
	Transcript string `json:"transcript,omitempty"`
	AudioData  string `json:"audioData,omitempty"` // data: URI
	AudioRef   string `json:"audioRef,omitempty"`  // stable reference

	// Text.
	Text string `json:"text,omitempty"`

	// Checklist.
	Checklist []ChecklistItem `json:"checklist,omitempty"`

	// Structured fields.
	Fields map[string]string `json:"fields,omitempty"`
}

// Assembler normalizes raw submissions into canonical Evidence, converting
// inline blobs to stable references through the object store. Assembly is
// atomic: any upload failure fails the whole submission and no partial
// Evidence is returned.
type Assembler struct {
	Store blobstore.Store
}

// Assemble builds the canonical Evidence of the required kind from raw input.
func (a *Assembler) Assemble(ctx context.Context, required Kind, raw RawSubmission) (*Evidence, error) {
	switch required {
	case KindNone:
		return &Evidence{Kind: KindNone}, nil
	case KindPhoto:
		return a.assemblePhoto(ctx, raw)
	case KindAudio:
		return a.assembleAudio(ctx, raw)
	case KindText:
		if raw.Text == "" {
			return nil, fmt.Errorf("evidence: text submission is empty")
		}
		return &Evidence{Kind: KindText, Text: &TextEvidence{Content: raw.Text}}, nil
	case KindChecklist:
		if len(raw.Checklist) == 0 {
			return nil, fmt.Errorf("evidence: checklist submission has no items")
		}
		items := make([]ChecklistItem, len(raw.Checklist))
		copy(items, raw.Checklist)
		for i := range items {
			if items[i].Status == "" {
				items[i].Status = ItemUnchecked
			}
		}
		return &Evidence{Kind: KindChecklist, Checklist: &ChecklistEvidence{Items: items}}, nil
	case KindStructured:
		if len(raw.Fields) == 0 {
			return nil, fmt.Errorf("evidence: structured submission has no fields")
		}
		fields := make(map[string]string, len(raw.Fields))
		for k, v := range raw.Fields {
			fields[k] = v
		}
		return &Evidence{Kind: KindStructured, Structured: &StructuredEvidence{Fields: fields}}, nil
	default:
		return nil, fmt.Errorf("evidence: unknown required kind %q", required)
	}
}

// assemblePhoto recognizes the three historical photo shapes, in order:
// grouped, legacy flat with sample indexes, single photo/photos.
func (a *Assembler) assemblePhoto(ctx context.Context, raw RawSubmission) (*Evidence, error) {
	var groups []RawGroup
	switch {
	case len(raw.PhotoGroups) > 0:
		groups = raw.PhotoGroups
	case len(raw.Evidence) > 0:
		groups = groupBySampleIndex(raw.Evidence)
	case raw.Photo != nil:
		groups = []RawGroup{{SampleIndex: 0, Photos: []RawImage{*raw.Photo}}}
	case len(raw.Photos) > 0:
		groups = []RawGroup{{SampleIndex: 0, Photos: raw.Photos}}
	default:
		return nil, fmt.Errorf("evidence: photo submission carries no photos")
	}

	out := make([]PhotoGroup, 0, len(groups))
	for _, g := range groups {
		pg := PhotoGroup{
			ID:          uuid.NewString(),
			SampleIndex: g.SampleIndex,
			Comment:     g.Comment,
		}
		for _, img := range g.Photos {
			ref, err := a.resolveImage(ctx, img)
			if err != nil {
				return nil, err
			}
			pg.Photos = append(pg.Photos, ref)
		}
		if len(pg.Photos) == 0 {
			return nil, fmt.Errorf("evidence: photo group %d has no photos", g.SampleIndex)
		}
		out = append(out, pg)
	}
	return &Evidence{Kind: KindPhoto, Photo: &PhotoEvidence{Groups: out}}, nil
}

// groupBySampleIndex converts the legacy flat evidence array into groups.
// The first item's description in each group becomes the group comment.
func groupBySampleIndex(items []RawImage) []RawGroup {
	byIndex := make(map[int]*RawGroup)
	for _, it := range items {
		idx := 0
		if it.SampleIndex != nil {
			idx = *it.SampleIndex
		}
		g, ok := byIndex[idx]
		if !ok {
			g = &RawGroup{SampleIndex: idx, Comment: it.Description}
			byIndex[idx] = g
		}
		g.Photos = append(g.Photos, it)
	}
	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([]RawGroup, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, *byIndex[idx])
	}
	return out
}

// resolveImage turns one raw image into a stable reference, uploading inline
// data URIs through the store.
func (a *Assembler) resolveImage(ctx context.Context, img RawImage) (string, error) {
	if img.URL != "" {
		return img.URL, nil
	}
	if img.Data == "" {
		return "", fmt.Errorf("evidence: image has neither url nor data")
	}
	if !strings.HasPrefix(img.Data, "data:") {
		// Tolerate callers that put a plain URL in the data field.
		return img.Data, nil
	}
	data, contentType, err := decodeDataURI(img.Data)
	if err != nil {
		return "", err
	}
	ref, err := a.Store.Upload(ctx, data, contentType)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (a *Assembler) assembleAudio(ctx context.Context, raw RawSubmission) (*Evidence, error) {
	if raw.Transcript == "" && raw.AudioData == "" && raw.AudioRef == "" {
		return nil, fmt.Errorf("evidence: audio submission has no transcript or recording")
	}
	ev := &AudioEvidence{Transcript: raw.Transcript, BlobRef: raw.AudioRef}
	if ev.BlobRef == "" && raw.AudioData != "" {
		data, contentType, err := decodeDataURI(raw.AudioData)
		if err != nil {
			return nil, err
		}
		ref, err := a.Store.Upload(ctx, data, contentType)
		if err != nil {
			return nil, err
		}
		ev.BlobRef = ref
	}
	return &Evidence{Kind: KindAudio, Audio: ev}, nil
}

// decodeDataURI parses "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("evidence: not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("evidence: malformed data URI")
	}
	contentType, _ := strings.CutSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("evidence: decode data URI: %w", err)
	}
	return data, contentType, nil
}
