package migration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jensneuse/graphql-migrate/pkg/deprecation"
	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/resolve"
	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
	"github.com/jensneuse/graphql-migrate/pkg/variants"
)

// VariantReport couples one conditional variant with its transform outcome.
type VariantReport struct {
	Variant   variants.Variant   `json:"variant"`
	Transform deprecation.Result `json:"transform"`
}

// DocumentReport is everything the run learned about one extracted document.
type DocumentReport struct {
	Document  extraction.Document      `json:"document"`
	Resolved  resolve.ResolvedDocument `json:"resolved"`
	Variants  []VariantReport          `json:"variants,omitempty"`
	Transform *deprecation.Result      `json:"transform,omitempty"`
	Patch     *textpatch.Patch         `json:"patch,omitempty"`
	Errors    []string                 `json:"errors,omitempty"`
}

// Summary counts what the run produced.
type Summary struct {
	Files     int   `json:"files"`
	Documents int   `json:"documents"`
	Fragments int   `json:"fragments"`
	Variants  int64 `json:"variants"`
	Changes   int64 `json:"changes"`
	Warnings  int64 `json:"warnings"`
	Patches   int64 `json:"patches"`
	CacheHits int64 `json:"cacheHits"`
	Errors    int64 `json:"errors"`
}

// Report is the complete result of one migration run, ordered by document ID
// so repeated runs over the same tree produce identical output.
type Report struct {
	Summary   Summary          `json:"summary"`
	Documents []DocumentReport `json:"documents"`
}

func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

func (r *Report) Error() string {
	var sb strings.Builder
	for _, doc := range r.Documents {
		for _, msg := range doc.Errors {
			fmt.Fprintf(&sb, "%s: %s\n", doc.Document.ID, msg)
		}
	}
	return sb.String()
}

// Patches returns the applicable patches of the run in document ID order.
func (r *Report) Patches() []textpatch.Patch {
	var patches []textpatch.Patch
	for _, doc := range r.Documents {
		if doc.Patch != nil {
			patches = append(patches, *doc.Patch)
		}
	}
	return patches
}

// JSON dumps the report indented, stable enough for golden file comparison.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
