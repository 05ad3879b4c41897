// Package extraction finds GraphQL documents embedded in application source
// files. Strategies are interchangeable: a textual pluck scan, a source AST
// walk, or a hybrid of both.
package extraction

import (
	"regexp"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
	KindFragment     Kind = "fragment"
)

// SourceSpan pins a document to the exact byte range it occupies in its file.
// It is the only handle that allows patching the file later without
// re-parsing it.
type SourceSpan struct {
	File   string `json:"file"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Raw    string `json:"raw"`
}

// Hole is one unresolved interpolation inside an embedded document. Span is
// relative to the document's raw text and covers the full interpolation
// token including its delimiters.
type Hole struct {
	Span        textpatch.Span `json:"span"`
	Expr        string         `json:"expr"`
	AfterSpread bool           `json:"afterSpread"`

	// ternary metadata, filled by the source AST strategy when the hole
	// expression is a conditional between two string literals
	CondIdent  string `json:"condIdent,omitempty"`
	TrueValue  string `json:"trueValue,omitempty"`
	FalseValue string `json:"falseValue,omitempty"`
}

var ternaryExpr = regexp.MustCompile(`^\s*([A-Za-z_$][A-Za-z0-9_$.]*)\s*\?\s*['"]([A-Za-z0-9_]+)['"]\s*:\s*['"]([A-Za-z0-9_]+)['"]\s*$`)

// Conditional reports the hole's switch shape: a driving identifier and the
// two literal branch values, when the expression is a two-branch conditional.
// AST metadata wins; the textual strategies fall back to a regex over Expr.
func (h Hole) Conditional() (ident, trueValue, falseValue string, ok bool) {
	if h.CondIdent != "" && h.TrueValue != "" && h.FalseValue != "" {
		return h.CondIdent, h.TrueValue, h.FalseValue, true
	}
	m := ternaryExpr.FindStringSubmatch(h.Expr)
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

// Document is one extracted query, mutation, subscription or fragment.
type Document struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	Name          string     `json:"name,omitempty"`
	TypeCondition string     `json:"typeCondition,omitempty"`
	Raw           string     `json:"raw"`
	Span          SourceSpan `json:"span"`
	SpreadNames   []string   `json:"spreadNames,omitempty"`
	Holes         []Hole     `json:"holes,omitempty"`
}

// RenderHoles rewrites the document text with each hole replaced by the value
// the callback chooses. When the callback declines a hole it is elided, and
// for holes sitting in spread position the dangling "..." marker is removed
// with it so the remaining text stays parseable.
func RenderHoles(raw string, holes []Hole, value func(Hole) (string, bool)) string {
	if len(holes) == 0 {
		return raw
	}
	var out strings.Builder
	out.Grow(len(raw))
	last := 0
	for _, hole := range holes {
		if hole.Span.Start < last || hole.Span.End > len(raw) {
			continue
		}
		segment := raw[last:hole.Span.Start]
		replacement, ok := value(hole)
		if !ok && hole.AfterSpread {
			segment = trimTrailingSpread(segment)
		}
		out.WriteString(segment)
		if ok {
			out.WriteString(replacement)
		}
		last = hole.Span.End
	}
	out.WriteString(raw[last:])
	return out.String()
}

func trimTrailingSpread(segment string) string {
	trimmed := strings.TrimRight(segment, " \t\r\n")
	return strings.TrimSuffix(trimmed, "...")
}

// ParseableText substitutes every conditional hole with its true-branch value
// and elides the rest, yielding text suitable for metadata parsing.
func ParseableText(raw string, holes []Hole) string {
	return RenderHoles(raw, holes, func(h Hole) (string, bool) {
		if _, trueValue, _, ok := h.Conditional(); ok {
			return trueValue, true
		}
		return "", false
	})
}

// SpreadNames collects every fragment spread name in the document in
// appearance order, each name once.
func SpreadNames(doc *ast.QueryDocument) []string {
	seen := map[string]struct{}{}
	var names []string
	var visit func(set ast.SelectionSet)
	visit = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				visit(s.SelectionSet)
			case *ast.InlineFragment:
				visit(s.SelectionSet)
			case *ast.FragmentSpread:
				if _, ok := seen[s.Name]; !ok {
					seen[s.Name] = struct{}{}
					names = append(names, s.Name)
				}
			}
		}
	}
	for _, op := range doc.Operations {
		visit(op.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		visit(frag.SelectionSet)
	}
	return names
}

var docHeader = regexp.MustCompile(`(?s)^\s*(query|mutation|subscription|fragment)\b\s*([A-Za-z_][A-Za-z0-9_]*)?`)

// fillMetadata parses the (hole substituted) document text and fills kind,
// name, type condition and spread names. Parse failures leave the document
// with whatever a cheap header regex can tell; they never discard it.
func (d *Document) fillMetadata() {
	text := ParseableText(d.Raw, d.Holes)
	doc, err := parser.ParseQuery(&ast.Source{Name: d.Span.File, Input: text})
	if err != nil {
		if m := docHeader.FindStringSubmatch(d.Raw); m != nil {
			d.Kind = Kind(m[1])
			d.Name = m[2]
		} else if strings.HasPrefix(strings.TrimSpace(d.Raw), "{") {
			d.Kind = KindQuery
		}
		return
	}
	d.SpreadNames = SpreadNames(doc)
	switch {
	case len(doc.Operations) > 0:
		op := doc.Operations[0]
		d.Kind = Kind(op.Operation)
		d.Name = op.Name
	case len(doc.Fragments) > 0:
		frag := doc.Fragments[0]
		d.Kind = KindFragment
		d.Name = frag.Name
		d.TypeCondition = frag.TypeCondition
	}
}
