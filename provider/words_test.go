package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paranoid-AF/ghostline/inline"
)

type testEditor struct {
	text string
}

func (e *testEditor) ID() string                { return "ed" }
func (e *testEditor) File() string              { return "notes.txt" }
func (e *testEditor) Carets() []int             { return []int{len(e.text)} }
func (e *testEditor) Document() inline.Document { return inline.StringDocument(e.text) }
func (e *testEditor) Insert(int, string)        {}
func (e *testEditor) MoveCaret(int)             {}
func (e *testEditor) Inlays() inline.Renderer   { return nil }

func request(t *testing.T, text string) *inline.Request {
	t.Helper()
	req, err := inline.NewRequest(inline.DirectCall{Editor: &testEditor{text: text}}, false)
	require.NoError(t, err)
	return req
}

func drain(t *testing.T, p inline.Provider, req *inline.Request) []inline.Element {
	t.Helper()
	var out []inline.Element
	for el, err := range p.Proposals(context.Background(), req) {
		require.NoError(t, err)
		out = append(out, el)
	}
	return out
}

const dict = `# test dictionary
hello 10
help 30
helmet 30
world 5
rare 0
`

func TestWordsLoad(t *testing.T) {
	w := NewWords(2, 1)
	require.NoError(t, w.Load(strings.NewReader(dict)))
	assert.Equal(t, 5, w.Len())

	w.Add("Hello", 5)
	assert.Equal(t, 5, w.Len())

	err := w.Load(strings.NewReader("word many\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestWordsLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte(dict), 0o644))
	w := NewWords(2, 1)
	require.NoError(t, w.LoadFile(path))
	assert.Equal(t, 5, w.Len())

	assert.Error(t, w.LoadFile(filepath.Join(t.TempDir(), "missing.txt")))
}

func TestWordsBest(t *testing.T) {
	w := NewWords(2, 1)
	require.NoError(t, w.Load(strings.NewReader(dict)))

	tests := []struct {
		prefix string
		want   string
		ok     bool
	}{
		{"hel", "help", true},
		{"Hel", "Help", true},
		{"HELM", "HELMET", true},
		{"wor", "world", true},
		{"world", "", false},
		{"ra", "", false},
		{"zz", "", false},
	}
	for _, tt := range tests {
		got, _, ok := w.Best(tt.prefix)
		assert.Equal(t, tt.ok, ok, tt.prefix)
		assert.Equal(t, tt.want, got, tt.prefix)
	}
}

func TestWordsProposals(t *testing.T) {
	w := NewWords(2, 1)
	require.NoError(t, w.Load(strings.NewReader(dict)))

	elems := drain(t, w, request(t, "say Wor"))
	require.Len(t, elems, 1)
	assert.Equal(t, "ld", elems[0].Text)
	assert.Equal(t, "World", elems[0].Meta["word"])

	assert.Empty(t, drain(t, w, request(t, "say w")))
	assert.Empty(t, drain(t, w, request(t, "say ")))
}

func TestWordsTriggers(t *testing.T) {
	w := NewWords(2, 1)
	ed := &testEditor{text: "ab"}
	letter := inline.DocumentChange{Editor: ed, Typing: inline.OneSymbol{Symbol: 'b', Offset: 1}}
	space := inline.DocumentChange{Editor: ed, Typing: inline.OneSymbol{Symbol: ' ', Offset: 1}}

	assert.True(t, w.IsEnabled(inline.DirectCall{Editor: ed}))
	assert.True(t, w.IsEnabled(letter))
	assert.False(t, w.IsEnabled(space))
	assert.False(t, w.IsEnabled(inline.LookupChange{Editor: ed}))

	assert.False(t, w.RequiresInvalidation(letter))
	assert.True(t, w.RequiresInvalidation(space))
	assert.False(t, w.RequiresInvalidation(inline.CaretMove{Editor: ed}))
}

func TestWordsObserve(t *testing.T) {
	w := NewWords(2, 1)
	w.Observe("func handleRequest(ctx context.Context) { handleRequest(ctx) }")
	word, freq, ok := w.Best("hand")
	require.True(t, ok)
	assert.Equal(t, "handlerequest", word)
	assert.Equal(t, 2, freq)
	_, _, ok = w.Best("ct")
	assert.True(t, ok)
}
