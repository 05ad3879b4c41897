package extraction

import (
	"errors"

	"github.com/jensneuse/abstractlogger"
)

// Hybrid runs the source AST strategy and falls back to plucking, both for
// whole files the AST strategy cannot handle and for templates only the
// textual scan finds. On overlapping spans the AST result wins, since it has
// exact span and structured hole information.
type Hybrid struct {
	ast   *SourceAST
	pluck *Pluck
	log   abstractlogger.Logger
}

func NewHybrid(tags []string, logger abstractlogger.Logger) *Hybrid {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Hybrid{
		ast:   NewSourceAST(tags, logger),
		pluck: NewPluck(tags, logger),
		log:   logger,
	}
}

func (h *Hybrid) Name() string { return "hybrid" }

func (h *Hybrid) ExtractFile(file string, src []byte) ([]Document, error) {
	astDocs, err := h.ast.ExtractFile(file, src)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedFile) {
			h.log.Debug("extraction: ast strategy failed, falling back to pluck",
				abstractlogger.String("file", file),
				abstractlogger.Error(err),
			)
		}
		return h.pluck.ExtractFile(file, src)
	}

	pluckDocs, pluckErr := h.pluck.ExtractFile(file, src)
	if pluckErr != nil {
		return astDocs, nil
	}
	merged := astDocs
	for _, doc := range pluckDocs {
		if overlapsAny(doc, astDocs) {
			continue
		}
		merged = append(merged, doc)
	}
	sortDocumentsBySpan(merged)
	return merged, nil
}

func overlapsAny(doc Document, docs []Document) bool {
	for _, other := range docs {
		if doc.Span.Start < other.Span.End && other.Span.Start < doc.Span.End {
			return true
		}
	}
	return false
}
