package deprecation

import (
	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

// Offset scanners over the original document text. The parser is only
// trusted for the start offset of each field token; everything after that is
// measured on the raw bytes so edits splice exactly what the author wrote.

// fieldNameSpan returns the span of the field name token at start, skipping
// a leading alias if one is present.
func fieldNameSpan(text string, start int) textpatch.Span {
	nameStart := start
	nameEnd := scanIdent(text, nameStart)
	i := skipIgnored(text, nameEnd)
	if i < len(text) && text[i] == ':' {
		nameStart = skipIgnored(text, i+1)
		nameEnd = scanIdent(text, nameStart)
	}
	return textpatch.Span{Start: nameStart, End: nameEnd}
}

// fieldSpan returns the span of the entire field at start: alias, name,
// arguments, directives and selection set included.
func fieldSpan(text string, start int) textpatch.Span {
	name := fieldNameSpan(text, start)
	i := name.End

	// arguments
	if j := skipIgnored(text, i); j < len(text) && text[j] == '(' {
		i = scanBalanced(text, j, '(', ')')
	}

	// directives
	for {
		j := skipIgnored(text, i)
		if j >= len(text) || text[j] != '@' {
			break
		}
		j = scanIdent(text, j+1)
		k := skipIgnored(text, j)
		if k < len(text) && text[k] == '(' {
			j = scanBalanced(text, k, '(', ')')
		}
		i = j
	}

	// selection set
	j := skipIgnored(text, i)
	if j < len(text) && text[j] == '{' {
		i = scanBalanced(text, j, '{', '}')
	}

	return textpatch.Span{Start: start, End: i}
}

// removalSpan widens a field span to whole lines when the field is alone on
// them, so removing it does not leave blank lines behind.
func removalSpan(text string, span textpatch.Span) textpatch.Span {
	lineStart := span.Start
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	for i := lineStart; i < span.Start; i++ {
		if text[i] != ' ' && text[i] != '\t' {
			return span
		}
	}
	end := span.End
	for end < len(text) && (text[end] == ' ' || text[end] == '\t' || text[end] == ',') {
		end++
	}
	if end < len(text) && text[end] == '\n' {
		return textpatch.Span{Start: lineStart, End: end + 1}
	}
	if end == len(text) {
		return textpatch.Span{Start: lineStart, End: end}
	}
	return span
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(text string, offset int) string {
	lineStart := offset
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	i := lineStart
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return text[lineStart:i]
}

func scanIdent(text string, start int) int {
	i := start
	for i < len(text) && isNameByte(text[i]) {
		i++
	}
	return i
}

// scanBalanced consumes a balanced open..close group starting at the open
// byte and returns the offset just past the matching close. Strings and
// comments inside the group do not count toward nesting.
func scanBalanced(text string, start int, open, close byte) int {
	depth := 0
	i := start
	for i < len(text) {
		switch text[i] {
		case open:
			depth++
			i++
		case close:
			depth--
			i++
			if depth == 0 {
				return i
			}
		case '"':
			i = skipString(text, i)
		case '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		default:
			i++
		}
	}
	return i
}

func skipString(text string, start int) int {
	if start+2 < len(text) && text[start+1] == '"' && text[start+2] == '"' {
		// block string
		i := start + 3
		for i+2 < len(text) {
			if text[i] == '"' && text[i+1] == '"' && text[i+2] == '"' {
				return i + 3
			}
			i++
		}
		return len(text)
	}
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipIgnored(text string, start int) int {
	i := start
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', ',':
			i++
		case '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

func isNameByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
