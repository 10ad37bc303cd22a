package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paranoid-AF/ghostline/inline"
)

type stubEditor struct {
	text string
}

func (e *stubEditor) ID() string                { return "ed" }
func (e *stubEditor) File() string              { return "main.go" }
func (e *stubEditor) Carets() []int             { return []int{len(e.text)} }
func (e *stubEditor) Document() inline.Document { return inline.StringDocument(e.text) }
func (e *stubEditor) Insert(int, string)        {}
func (e *stubEditor) MoveCaret(int)             {}
func (e *stubEditor) Inlays() inline.Renderer   { return nil }

func suggest(t *testing.T, h *History, text string) (inline.Element, bool) {
	t.Helper()
	req, err := inline.NewRequest(inline.DirectCall{Editor: &stubEditor{text: text}}, false)
	require.NoError(t, err)
	var (
		out inline.Element
		got bool
	)
	for el, err := range h.Proposals(context.Background(), req) {
		require.NoError(t, err)
		out, got = el, true
	}
	return out, got
}

func TestHistoryPrefixMatch(t *testing.T) {
	idx := NewIndexer(nil, 100, time.Hour, nil)
	idx.AddText("main.go", "if err != nil {\n\treturn err\n}\n")
	h := NewHistory(idx)

	el, ok := suggest(t, h, "func f() error {\n\tif err ")
	require.True(t, ok)
	assert.Equal(t, "!= nil {", el.Text)
	assert.Equal(t, "recent", el.Meta["source"])

	_, ok = suggest(t, h, "x := ")
	assert.False(t, ok)
}

func TestHistoryNextLine(t *testing.T) {
	idx := NewIndexer(nil, 100, time.Hour, nil)
	idx.AddText("main.go", "if err != nil {\n\treturn err\n}\n")
	h := NewHistory(idx)

	el, ok := suggest(t, h, "\tif err != nil {\n\t\t")
	require.True(t, ok)
	assert.Equal(t, "return err", el.Text)
	assert.Equal(t, "next", el.Meta["source"])

	_, ok = suggest(t, h, "")
	assert.False(t, ok)
}

func TestHistoryRelated(t *testing.T) {
	srv := newEmbedServer(t)
	idx := NewIndexer(NewEmbedder(srv.URL, "k", "m"), 100, time.Hour, nil)
	idx.AddText("main.go", "print hello world\nflush output buffer\n")
	require.NoError(t, idx.IndexPending(context.Background()))
	h := NewHistory(idx)

	// No exact previous line, but a close neighbour has a successor.
	el, ok := suggest(t, h, "print hello worlds\n")
	require.True(t, ok)
	assert.Equal(t, "flush output buffer", el.Text)
	assert.Equal(t, "related", el.Meta["source"])
}

func TestHistoryTriggers(t *testing.T) {
	idx := NewIndexer(nil, 100, time.Hour, nil)
	idx.AddText("main.go", "if err != nil {\n\treturn err\n}\n")
	h := NewHistory(idx)

	match := &stubEditor{text: "if e"}
	miss := &stubEditor{text: "for "}
	nl := &stubEditor{text: "if err != nil {\n\t"}

	assert.True(t, h.IsEnabled(inline.DirectCall{Editor: miss}))
	assert.True(t, h.IsEnabled(inline.DocumentChange{Editor: match, Typing: inline.OneSymbol{Symbol: 'e', Offset: 3}}))
	assert.False(t, h.IsEnabled(inline.DocumentChange{Editor: miss, Typing: inline.OneSymbol{Symbol: ' ', Offset: 3}}))
	newline := inline.DocumentChange{Editor: nl, Typing: inline.NewLine{Text: "\n\t", Span: inline.Range{Start: 15, End: 17}}}
	assert.True(t, h.IsEnabled(newline))
	assert.False(t, h.IsEnabled(inline.LookupChange{Editor: match}))

	assert.True(t, h.RequiresInvalidation(newline))
	assert.False(t, h.RequiresInvalidation(inline.CaretMove{Editor: match}))
}
