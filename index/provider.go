package index

import (
	"context"
	"iter"
	"strings"

	"github.com/Paranoid-AF/ghostline/inline"
)

// HistoryID is the provider id of History.
const HistoryID = "history"

// relevantTopK bounds the semantic neighbours fetched per request.
const relevantTopK = 8

// History suggests lines the user has written before: first the most
// recent line extending the current one, then a semantic neighbour that
// does, and on an empty line the line that followed the previous one.
type History struct {
	idx *Indexer
}

// NewHistory creates a provider over idx.
func NewHistory(idx *Indexer) *History {
	return &History{idx: idx}
}

func (h *History) ID() string { return HistoryID }

// IsEnabled claims typing only when a remembered line matches, so other
// providers handle the rest.
func (h *History) IsEnabled(t inline.Trigger) bool {
	switch t := t.(type) {
	case inline.DirectCall:
		return true
	case inline.DocumentChange:
		switch typing := t.Typing.(type) {
		case inline.OneSymbol:
			prefix := currentLine(t.Editor.Document(), typing.Range().End)
			_, ok := h.idx.MatchRecent(prefix)
			return ok
		case inline.NewLine:
			prev := previousLine(t.Editor.Document(), typing.Span.End)
			_, ok := h.idx.Successor(prev)
			return ok
		}
	}
	return false
}

// RequiresInvalidation drops the session on line breaks; the next line is
// a different suggestion.
func (h *History) RequiresInvalidation(t inline.Trigger) bool {
	dc, ok := t.(inline.DocumentChange)
	if !ok {
		return false
	}
	_, nl := dc.Typing.(inline.NewLine)
	return nl
}

func (h *History) Proposals(ctx context.Context, req *inline.Request) iter.Seq2[inline.Element, error] {
	return func(yield func(inline.Element, error) bool) {
		text, source, err := h.suggest(ctx, req)
		if err != nil {
			yield(inline.Element{}, err)
			return
		}
		if text == "" {
			return
		}
		yield(inline.Element{Text: text, Meta: map[string]string{"source": source}}, nil)
	}
}

func (h *History) suggest(ctx context.Context, req *inline.Request) (string, string, error) {
	prefix := currentLine(req.Document, req.EndOffset)
	if prefix == "" {
		prev := previousLine(req.Document, req.EndOffset)
		if prev == "" {
			return "", "", nil
		}
		if next, ok := h.idx.Successor(prev); ok {
			return next, "next", nil
		}
		related, err := h.idx.SearchRelevant(ctx, Redact(req.File, prev), relevantTopK)
		if err != nil {
			return "", "", err
		}
		for _, r := range related {
			if next, ok := h.idx.Successor(r); ok {
				return next, "related", nil
			}
		}
		return "", "", nil
	}

	if line, ok := h.idx.MatchRecent(prefix); ok {
		return line[len(prefix):], "recent", nil
	}
	related, err := h.idx.SearchRelevant(ctx, Redact(req.File, prefix), relevantTopK)
	if err != nil {
		return "", "", err
	}
	for _, r := range related {
		if len(r) > len(prefix) && strings.HasPrefix(r, prefix) {
			return r[len(prefix):], "related", nil
		}
	}
	return "", "", nil
}

// currentLine returns the text between the indentation of the caret's line
// and the caret.
func currentLine(doc inline.Document, offset int) string {
	return strings.TrimLeft(inline.LinePrefix(doc, offset), " \t")
}

// previousLine returns the trimmed last non-blank line before the caret's
// line.
func previousLine(doc inline.Document, offset int) string {
	start := offset - len(inline.LinePrefix(doc, offset))
	for start > 0 {
		end := start - 1
		l := strings.TrimSpace(inline.LinePrefix(doc, end))
		if l != "" {
			return l
		}
		start = end - len(inline.LinePrefix(doc, end))
	}
	return ""
}
