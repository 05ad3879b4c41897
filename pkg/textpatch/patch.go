package textpatch

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrPatchMismatch signals that the file no longer contains the text the
// patch was computed against. This is the one failure that must surface to
// the caller instead of being skipped.
var ErrPatchMismatch = errors.New("original document text not found in file")

// Patch carries one document rewrite. When Span has a range it points at the
// original embedding inside the file; otherwise Apply falls back to a single
// literal replacement of Original.
type Patch struct {
	DocumentID  string `json:"documentId"`
	File        string `json:"file"`
	Span        Span   `json:"span"`
	Original    string `json:"original"`
	Transformed string `json:"transformed"`
}

// Apply produces the new file body for one patch. It never writes anything
// itself, so callers can diff or dry-run the result.
func Apply(fileText []byte, patch Patch) ([]byte, error) {
	if patch.Span.HasRange() {
		if !patch.Span.validFor(len(fileText)) {
			return nil, fmt.Errorf("patch %s: span [%d,%d) out of range for %s: %w",
				patch.DocumentID, patch.Span.Start, patch.Span.End, patch.File, ErrPatchMismatch)
		}
		if patch.Original != "" && !bytes.Equal(fileText[patch.Span.Start:patch.Span.End], []byte(patch.Original)) {
			return nil, fmt.Errorf("patch %s: span content of %s changed since extraction: %w",
				patch.DocumentID, patch.File, ErrPatchMismatch)
		}
		return SpliceText(fileText, patch.Span, []byte(patch.Transformed))
	}
	if patch.Original == "" {
		return nil, fmt.Errorf("patch %s: no span and no original text to match", patch.DocumentID)
	}
	idx := bytes.Index(fileText, []byte(patch.Original))
	if idx < 0 {
		return nil, fmt.Errorf("patch %s: %s: %w", patch.DocumentID, patch.File, ErrPatchMismatch)
	}
	return SpliceText(fileText, Span{Start: idx, End: idx + len(patch.Original)}, []byte(patch.Transformed))
}

// ApplyAll applies multiple patches against one file, highest offset first so
// that earlier spans stay valid. Patches without a span are applied last.
func ApplyAll(fileText []byte, patches []Patch) ([]byte, error) {
	ordered := make([]Patch, len(patches))
	copy(ordered, patches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Span.HasRange() != ordered[j].Span.HasRange() {
			return ordered[i].Span.HasRange()
		}
		return ordered[i].Span.Start > ordered[j].Span.Start
	})
	out := fileText
	for _, p := range ordered {
		var err error
		out, err = Apply(out, p)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
