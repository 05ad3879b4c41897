// Package variants expands documents whose shape depends on build or runtime
// switches into one fully resolved document per switch combination.
package variants

import (
	"errors"
	"fmt"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/fragments"
	"github.com/jensneuse/graphql-migrate/pkg/resolve"
)

// ErrTooManySwitches guards the combination space: enumeration is exponential
// in the switch count, so documents over the cap fail generation outright
// instead of silently producing an intractable variant set.
var ErrTooManySwitches = errors.New("switch count exceeds cap")

const DefaultMaxSwitches = 10

type SwitchKind string

const SwitchBoolean SwitchKind = "boolean"

// Switch is one condition identifier steering document shape. Two holes
// driven by the same identifier are the same switch.
type Switch struct {
	Ident   string     `json:"ident"`
	Kind    SwitchKind `json:"kind"`
	Values  []string   `json:"values"`
	FoundIn string     `json:"foundIn"`
}

// Variant is one document with every switch fixed to a concrete value.
type Variant struct {
	ID         string                   `json:"id"`
	DocumentID string                   `json:"documentId"`
	Conditions map[string]string        `json:"conditions"`
	Resolved   resolve.ResolvedDocument `json:"resolved"`
}

type Generator struct {
	resolver    *resolve.Resolver
	maxSwitches int
	log         abstractlogger.Logger
}

func NewGenerator(resolver *resolve.Resolver, maxSwitches int, logger abstractlogger.Logger) *Generator {
	if maxSwitches <= 0 {
		maxSwitches = DefaultMaxSwitches
	}
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Generator{
		resolver:    resolver,
		maxSwitches: maxSwitches,
		log:         logger,
	}
}

// switchHole pairs a hole with its per-hole branch values. Branch values may
// differ between holes of the same switch.
type switchHole struct {
	hole       extraction.Hole
	ident      string
	trueValue  string
	falseValue string
}

func classifyHoles(doc extraction.Document) []switchHole {
	var qualified []switchHole
	for _, hole := range doc.Holes {
		if !hole.AfterSpread {
			continue
		}
		ident, trueValue, falseValue, ok := hole.Conditional()
		if !ok {
			continue
		}
		qualified = append(qualified, switchHole{
			hole:       hole,
			ident:      ident,
			trueValue:  trueValue,
			falseValue: falseValue,
		})
	}
	return qualified
}

// Switches returns the distinct switches of a document in first-appearance
// order.
func (g *Generator) Switches(doc extraction.Document) []Switch {
	var switches []Switch
	seen := map[string]struct{}{}
	for _, sh := range classifyHoles(doc) {
		if _, ok := seen[sh.ident]; ok {
			continue
		}
		seen[sh.ident] = struct{}{}
		switches = append(switches, Switch{
			Ident:   sh.ident,
			Kind:    SwitchBoolean,
			Values:  []string{"false", "true"},
			FoundIn: doc.ID,
		})
	}
	return switches
}

// Generate enumerates the full combination space of the document's switches.
// Assignments are generated in numeric bitmask order (switch 0 is the least
// significant digit), so variant IDs are stable across runs. A document
// without switches generates no variants: it is not its own variant.
func (g *Generator) Generate(doc extraction.Document, store *fragments.Store) ([]Variant, error) {
	holes := classifyHoles(doc)
	switches := g.Switches(doc)
	if len(switches) == 0 {
		return nil, nil
	}
	if len(switches) > g.maxSwitches {
		return nil, fmt.Errorf("%w: document %s has %d switches, cap is %d",
			ErrTooManySwitches, doc.ID, len(switches), g.maxSwitches)
	}

	index := make(map[string]int, len(switches))
	for i, sw := range switches {
		index[sw.Ident] = i
	}

	total := 1
	for _, sw := range switches {
		total *= len(sw.Values)
	}

	variants := make([]Variant, 0, total)
	for mask := 0; mask < total; mask++ {
		digits := decode(mask, switches)
		conditions := make(map[string]string, len(switches))
		for i, sw := range switches {
			conditions[sw.Ident] = sw.Values[digits[i]]
		}

		text := extraction.RenderHoles(doc.Raw, doc.Holes, func(h extraction.Hole) (string, bool) {
			for _, sh := range holes {
				if sh.hole.Span != h.Span {
					continue
				}
				if digits[index[sh.ident]] == 1 {
					return sh.trueValue, true
				}
				return sh.falseValue, true
			}
			return "", false // unqualified hole, elide
		})

		if _, err := parser.ParseQuery(&ast.Source{Name: doc.Span.File, Input: text}); err != nil {
			g.log.Error("variants: substituted text does not parse, dropping variant",
				abstractlogger.String("document", doc.ID),
				abstractlogger.Int("mask", mask),
				abstractlogger.Error(err),
			)
			continue
		}

		resolvedText, used, missing := g.resolver.ResolveText(doc.Span.File, text, store)
		variants = append(variants, Variant{
			ID:         fmt.Sprintf("%s@%d", doc.ID, mask),
			DocumentID: doc.ID,
			Conditions: conditions,
			Resolved: resolve.ResolvedDocument{
				Document:       doc,
				Text:           resolvedText,
				Fragments:      used,
				MissingSpreads: missing,
			},
		})
	}
	return variants, nil
}

// decode splits mask into one digit per switch, mixed radix, switch 0 least
// significant. All switches are boolean today, making this plain bitmasking,
// but the generator does not depend on that.
func decode(mask int, switches []Switch) []int {
	digits := make([]int, len(switches))
	for i, sw := range switches {
		radix := len(sw.Values)
		digits[i] = mask % radix
		mask /= radix
	}
	return digits
}
