// Package textpatch applies document rewrites back into source files by
// replacing exactly one byte span, leaving every other byte untouched.
package textpatch

import "fmt"

// Span is a half-open byte range [Start,End) over some buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int {
	return s.End - s.Start
}

// HasRange reports whether the span selects at least one byte.
func (s Span) HasRange() bool {
	return s.End > s.Start
}

func (s Span) validFor(n int) bool {
	return s.Start >= 0 && s.End >= s.Start && s.End <= n
}

// SpliceText returns a new buffer with span replaced by replacement.
// buf is never mutated.
func SpliceText(buf []byte, span Span, replacement []byte) ([]byte, error) {
	if !span.validFor(len(buf)) {
		return nil, fmt.Errorf("span [%d,%d) out of range for buffer of %d bytes", span.Start, span.End, len(buf))
	}
	out := make([]byte, 0, len(buf)-span.Len()+len(replacement))
	out = append(out, buf[:span.Start]...)
	out = append(out, replacement...)
	out = append(out, buf[span.End:]...)
	return out, nil
}
