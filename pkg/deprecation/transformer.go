package deprecation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/cachestore"
	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

const cacheNamespace = "transform"

type ChangeKind string

const (
	ChangeRename      ChangeKind = "field-rename"
	ChangeRestructure ChangeKind = "nested-replacement"
	ChangeCommentOut  ChangeKind = "comment-out"
)

// Change records one applied edit.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	Path        string     `json:"path"`
	Field       string     `json:"field"`
	Replacement string     `json:"replacement,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Warning records a finding that needs a human, with the position of the
// offending field in the input text.
type Warning struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Result is the outcome of one transform run.
type Result struct {
	Transformed string    `json:"transformed"`
	Changes     []Change  `json:"changes,omitempty"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Cached      bool      `json:"-"`
}

type Options struct {
	// CommentOutVague removes fields whose rule is marked vague. When
	// false those fields are left in place and reported as warnings.
	CommentOutVague bool
	// DeprecationComments leaves a comment line where a field was
	// removed.
	DeprecationComments bool
	// RootType is the name of the root query type.
	RootType string
}

func DefaultOptions() Options {
	return Options{
		CommentOutVague:     true,
		DeprecationComments: true,
		RootType:            RootTypeName,
	}
}

func (o Options) fingerprint() []byte {
	return []byte(fmt.Sprintf("%v|%v|%s", o.CommentOutVague, o.DeprecationComments, o.RootType))
}

// Transformer applies deprecation rules to document text. Results are
// memoized in the configured store, keyed by text, rule set and options, so
// repeated runs over an unchanged codebase skip the rewrite entirely.
type Transformer struct {
	store cachestore.Store
	log   abstractlogger.Logger
}

func NewTransformer(store cachestore.Store, logger abstractlogger.Logger) *Transformer {
	if store == nil {
		store = cachestore.Nop{}
	}
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Transformer{store: store, log: logger}
}

// edit is one pending splice on the original text.
type edit struct {
	span        textpatch.Span
	replacement string
	change      Change
}

// Transform rewrites text according to the rules in idx. The input is
// returned unchanged, with a warning, when it does not parse.
func (t *Transformer) Transform(text string, idx *Index, opts Options) Result {
	if opts.RootType == "" {
		opts.RootType = RootTypeName
	}

	key := cachestore.Fingerprint([]byte(text), []byte(idx.Fingerprint()), opts.fingerprint())
	if data, ok := t.store.Get(cacheNamespace, key); ok {
		var cached Result
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Cached = true
			return cached
		}
	}

	result := t.transform(text, idx, opts)

	if data, err := json.Marshal(result); err == nil {
		t.store.Set(cacheNamespace, key, data)
	}
	return result
}

func (t *Transformer) transform(text string, idx *Index, opts Options) Result {
	doc, err := parser.ParseQuery(&ast.Source{Name: "document", Input: text})
	if err != nil {
		t.log.Warn("deprecation: document does not parse, leaving unchanged",
			abstractlogger.Error(err),
		)
		return Result{
			Transformed: text,
			Warnings: []Warning{{
				Message: fmt.Sprintf("document does not parse: %v", err),
			}},
		}
	}

	w := &walker{idx: idx, opts: opts, text: text}
	for _, op := range doc.Operations {
		w.selectionSet(op.SelectionSet, nil, "", true)
	}
	for _, frag := range doc.Fragments {
		w.selectionSet(frag.SelectionSet, nil, frag.TypeCondition, false)
	}

	transformed, applied := t.apply(text, w.edits)

	result := Result{Transformed: transformed, Warnings: w.warnings}
	for _, e := range applied {
		result.Changes = append(result.Changes, e.change)
	}
	return result
}

// apply splices edits into text, highest offset first so earlier spans stay
// valid. An edit nested inside another edit's span is dropped: the outer
// splice rewrites those bytes wholesale, and applying the inner edit first
// would leave the outer span pointing at stale offsets.
func (t *Transformer) apply(text string, edits []edit) (string, []edit) {
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].span.Start != edits[j].span.Start {
			return edits[i].span.Start < edits[j].span.Start
		}
		return edits[i].span.End > edits[j].span.End
	})

	kept := make([]edit, 0, len(edits))
	for _, e := range edits {
		contained := false
		for _, k := range kept {
			if e.span.Start >= k.span.Start && e.span.End <= k.span.End {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, e)
		}
	}

	buf := []byte(text)
	for i := len(kept) - 1; i >= 0; i-- {
		spliced, err := textpatch.SpliceText(buf, kept[i].span, []byte(kept[i].replacement))
		if err != nil {
			t.log.Error("deprecation: edit out of range, skipping",
				abstractlogger.Int("start", kept[i].span.Start),
				abstractlogger.Int("end", kept[i].span.End),
			)
			continue
		}
		buf = spliced
	}
	return string(buf), kept
}

type walker struct {
	idx  *Index
	opts Options
	text string

	edits    []edit
	warnings []Warning
}

func (w *walker) selectionSet(set ast.SelectionSet, path []string, enclosingType string, atRoot bool) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			w.field(s, path, enclosingType, atRoot)
		case *ast.InlineFragment:
			w.selectionSet(s.SelectionSet, path, s.TypeCondition, atRoot)
		case *ast.FragmentSpread:
			// resolved separately through the fragment definition
		}
	}
}

func (w *walker) field(f *ast.Field, path []string, enclosingType string, atRoot bool) {
	fieldPath := append(append([]string(nil), path...), f.Name)

	typeName := InferOwningType(Inference{Path: fieldPath, EnclosingType: enclosingType})
	if typeName == RootTypeName && w.opts.RootType != RootTypeName {
		typeName = w.opts.RootType
	}

	if typeName != TypeUnknown {
		if rule, ok := w.idx.Lookup(typeName, f.Name, atRoot); ok {
			w.applyRule(f, rule, fieldPath)
		}
	}

	w.selectionSet(f.SelectionSet, fieldPath, "", false)
}

func (w *walker) applyRule(f *ast.Field, rule Rule, path []string) {
	pathStr := strings.Join(path, ".")
	start := 0
	if f.Position != nil {
		start = f.Position.Start
	}

	switch {
	case rule.Action == ActionReplace && len(rule.Replacement) == 1:
		span := fieldNameSpan(w.text, start)
		w.edits = append(w.edits, edit{
			span:        span,
			replacement: rule.Replacement[0],
			change: Change{
				Kind:        ChangeRename,
				Path:        pathStr,
				Field:       f.Name,
				Replacement: rule.Replacement[0],
				Reason:      rule.Reason,
			},
		})

	case rule.Action == ActionReplace && len(rule.Replacement) == 2:
		// the field moves under a new parent selection
		name := fieldNameSpan(w.text, start)
		span := fieldSpan(w.text, start)
		span.Start = name.Start
		w.edits = append(w.edits, edit{
			span:        span,
			replacement: fmt.Sprintf("%s { %s }", rule.Replacement[0], rule.Replacement[1]),
			change: Change{
				Kind:        ChangeRestructure,
				Path:        pathStr,
				Field:       f.Name,
				Replacement: strings.Join(rule.Replacement, "."),
				Reason:      rule.Reason,
			},
		})

	case rule.Vague || rule.Action == ActionCommentOut:
		if !w.opts.CommentOutVague {
			w.warn(f, fmt.Sprintf("field %s is deprecated without a replacement: %s", pathStr, rule.Reason))
			return
		}
		fSpan := fieldSpan(w.text, start)
		span := removalSpan(w.text, fSpan)
		replacement := ""
		// the comment only fits when the field sat alone on its lines
		if w.opts.DeprecationComments && span != fSpan {
			replacement = fmt.Sprintf("%s# deprecated field removed: %s (%s)\n",
				lineIndent(w.text, start), f.Name, rule.Reason)
			if !strings.HasSuffix(w.text[span.Start:span.End], "\n") {
				replacement = strings.TrimSuffix(replacement, "\n")
			}
		}
		w.edits = append(w.edits, edit{
			span:        span,
			replacement: replacement,
			change: Change{
				Kind:   ChangeCommentOut,
				Path:   pathStr,
				Field:  f.Name,
				Reason: rule.Reason,
			},
		})

	default:
		w.warn(f, fmt.Sprintf("field %s needs manual review: %s", pathStr, rule.Reason))
	}
}

func (w *walker) warn(f *ast.Field, message string) {
	warning := Warning{Message: message}
	if f.Position != nil {
		warning.Line = f.Position.Line
		warning.Column = f.Position.Column
	}
	w.warnings = append(w.warnings, warning)
}
