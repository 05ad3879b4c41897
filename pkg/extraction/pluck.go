package extraction

import (
	"strings"

	"github.com/jensneuse/abstractlogger"

	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

// DefaultTags are the template tag names treated as GraphQL embeddings.
var DefaultTags = []string{"gql", "graphql"}

// Pluck is the substring strategy: it scans raw source text for tagged
// template literals without parsing the host language. Fast, dependency free
// and tolerant of files the AST strategy cannot handle.
type Pluck struct {
	tags map[string]struct{}
	log  abstractlogger.Logger
}

func NewPluck(tags []string, logger abstractlogger.Logger) *Pluck {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return &Pluck{tags: set, log: logger}
}

func (p *Pluck) Name() string { return "pluck" }

func (p *Pluck) ExtractFile(file string, src []byte) ([]Document, error) {
	text := string(src)
	var docs []Document
	for i := 0; i < len(text); i++ {
		if text[i] != '`' {
			continue
		}
		if !p.taggedAt(text, i) {
			continue
		}
		contentStart := i + 1
		contentEnd, holes, ok := scanTemplate(text, contentStart)
		if !ok {
			// unterminated template, give up on the rest of the file
			break
		}
		raw := text[contentStart:contentEnd]
		line, column := lineColumn(text, contentStart)
		docs = append(docs, Document{
			Raw: raw,
			Span: SourceSpan{
				File:   file,
				Start:  contentStart,
				End:    contentEnd,
				Line:   line,
				Column: column,
				Raw:    raw,
			},
			Holes: holes,
		})
		i = contentEnd
	}
	return docs, nil
}

// taggedAt reports whether the backtick at idx is preceded by one of the
// configured tags.
func (p *Pluck) taggedAt(text string, idx int) bool {
	j := idx
	for j > 0 && (text[j-1] == ' ' || text[j-1] == '\t') {
		j--
	}
	end := j
	for j > 0 && isIdentByte(text[j-1]) {
		j--
	}
	if j == end {
		return false
	}
	if j > 0 && (isIdentByte(text[j-1]) || text[j-1] == '.') {
		return false
	}
	_, ok := p.tags[text[j:end]]
	return ok
}

// scanTemplate walks a template literal body starting right after the opening
// backtick, returning the offset of the closing backtick and every
// interpolation hole found on the way.
func scanTemplate(text string, start int) (end int, holes []Hole, ok bool) {
	i := start
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
		case '`':
			return i, holes, true
		case '$':
			if i+1 < len(text) && text[i+1] == '{' {
				holeStart := i
				exprStart := i + 2
				exprEnd, closed := scanHole(text, exprStart)
				if !closed {
					return 0, nil, false
				}
				holes = append(holes, Hole{
					Span:        textpatch.Span{Start: holeStart - start, End: exprEnd + 1 - start},
					Expr:        text[exprStart:exprEnd],
					AfterSpread: spreadBefore(text[start:holeStart]),
				})
				i = exprEnd + 1
				continue
			}
			i++
		default:
			i++
		}
	}
	return 0, nil, false
}

// scanHole consumes a ${...} expression body, balancing braces and skipping
// string literals, and returns the offset of the closing brace.
func scanHole(text string, start int) (end int, ok bool) {
	depth := 1
	i := start
	for i < len(text) {
		switch c := text[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		case '\'', '"', '`':
			i = skipString(text, i)
			continue
		}
		i++
	}
	return 0, false
}

func skipString(text string, start int) int {
	quote := text[start]
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return i
}

func spreadBefore(prefix string) bool {
	trimmed := strings.TrimRight(prefix, " \t\r\n")
	return strings.HasSuffix(trimmed, "...")
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func lineColumn(text string, offset int) (line, column int) {
	line = 1
	last := -1
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			last = i
		}
	}
	return line, offset - last
}
