// Package inline implements the inline-suggestion session core: it classifies
// editor events, keeps at most one live suggestion session per editor, and
// reconciles rendered suggestions against further input until they are
// accepted, hidden or superseded.
package inline

import (
	"strings"
)

// Element is one renderable chunk of a suggestion.
// A suggestion is the ordered concatenation of its elements.
type Element struct {
	// Text is the virtual text drawn after the anchor.
	Text string
	// Meta is optional provider data carried alongside the text.
	Meta map[string]string
}

// Range is a half-open byte range [Start, End) in a document.
type Range struct {
	Start int
	End   int
}

// Len returns the size of the range.
func (r Range) Len() int { return r.End - r.Start }

// concat returns the text of all elements joined left to right.
func concat(elems []Element) string {
	var sb strings.Builder
	for _, e := range elems {
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// hasText reports whether any element carries non-empty text.
func hasText(elems []Element) bool {
	for _, e := range elems {
		if e.Text != "" {
			return true
		}
	}
	return false
}

// truncatePrefix removes the first n bytes of text from elems.
// Elements entirely covered by the prefix are dropped, the element the prefix
// ends in is cut, and the rest is kept as is. The input slice is not modified.
func truncatePrefix(elems []Element, n int) []Element {
	consumed := 0
	for i, e := range elems {
		if consumed+len(e.Text) <= n {
			consumed += len(e.Text)
			continue
		}
		out := make([]Element, 0, len(elems)-i)
		out = append(out, Element{Text: e.Text[n-consumed:], Meta: e.Meta})
		return append(out, elems[i+1:]...)
	}
	return nil
}
