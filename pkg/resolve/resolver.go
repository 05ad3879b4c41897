// Package resolve computes the transitive fragment closure of an extracted
// document and inlines exactly the fragments it reaches.
package resolve

import (
	"strings"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/fragments"
)

// ResolvedDocument is an extracted document plus everything it needs to stand
// alone: the closure of fragment definitions it spreads, directly or
// transitively, appended in first-discovered order.
type ResolvedDocument struct {
	Document       extraction.Document    `json:"document"`
	Text           string                 `json:"text"`
	Fragments      []fragments.Definition `json:"fragments,omitempty"`
	MissingSpreads []string               `json:"missingSpreads,omitempty"`
}

type Resolver struct {
	log abstractlogger.Logger
}

func NewResolver(logger abstractlogger.Logger) *Resolver {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Resolver{log: logger}
}

// Resolve inlines the fragment closure of doc. A spread whose definition is
// missing from the store is a warning, not an error; the spread is simply
// left out of the inlined output.
func (r *Resolver) Resolve(doc extraction.Document, store *fragments.Store) ResolvedDocument {
	text := extraction.ParseableText(doc.Raw, doc.Holes)
	seed := doc.SpreadNames
	if len(seed) == 0 {
		seed = spreadNamesOf(doc.Span.File, text)
	}
	resolvedText, used, missing := r.closure(doc.Span.File, text, seed, store)
	return ResolvedDocument{
		Document:       doc,
		Text:           resolvedText,
		Fragments:      used,
		MissingSpreads: missing,
	}
}

// ResolveText resolves already substituted document text, as produced by the
// variant generator.
func (r *Resolver) ResolveText(file, text string, store *fragments.Store) (string, []fragments.Definition, []string) {
	return r.closure(file, text, spreadNamesOf(file, text), store)
}

// closure runs the worklist: pop a name, look it up, record it once, enqueue
// the spreads inside its body. Names enter the worklist at most once, which
// terminates even on mutually spreading fragments. Fragments already defined
// inside the document text itself are skipped, they stand inline and
// appending their store copy would duplicate them.
func (r *Resolver) closure(file, text string, seed []string, store *fragments.Store) (string, []fragments.Definition, []string) {
	worklist := append([]string{}, seed...)
	seen := make(map[string]struct{}, len(seed))
	for _, name := range seed {
		seen[name] = struct{}{}
	}
	local := definedFragments(file, text)

	var used []fragments.Definition
	var missing []string
	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]

		if _, inline := local[name]; inline {
			continue
		}

		def, ok := store.Get(name)
		if !ok {
			r.log.Warn("resolve: fragment not found, spread omitted",
				abstractlogger.String("fragment", name),
				abstractlogger.String("file", file),
			)
			missing = append(missing, name)
			continue
		}
		used = append(used, def)

		for _, inner := range spreadNamesOf(def.File, def.Body) {
			if _, enqueued := seen[inner]; enqueued {
				continue
			}
			seen[inner] = struct{}{}
			worklist = append(worklist, inner)
		}
	}

	var out strings.Builder
	out.WriteString(strings.TrimRight(text, " \t\r\n"))
	for _, def := range used {
		out.WriteString("\n\n")
		out.WriteString(strings.TrimSpace(def.Body))
	}
	out.WriteString("\n")
	return out.String(), used, missing
}

// definedFragments names the fragment definitions the document text already
// carries. Spreads inside their bodies are still reached through the seed,
// which covers the whole text.
func definedFragments(file, text string) map[string]struct{} {
	doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: text})
	if err != nil {
		return nil
	}
	names := make(map[string]struct{}, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		names[frag.Name] = struct{}{}
	}
	return names
}

func spreadNamesOf(file, text string) []string {
	doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: text})
	if err != nil {
		return nil
	}
	return extraction.SpreadNames(doc)
}
