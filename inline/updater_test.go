package inline

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncatePrefix(t *testing.T) {
	meta := map[string]string{"k": "v"}
	elems := []Element{{Text: "ab"}, {Text: "cd", Meta: meta}, {Text: "e"}}

	tests := []struct {
		n    int
		want []Element
	}{
		{0, []Element{{Text: "ab"}, {Text: "cd", Meta: meta}, {Text: "e"}}},
		{1, []Element{{Text: "b"}, {Text: "cd", Meta: meta}, {Text: "e"}}},
		{2, []Element{{Text: "cd", Meta: meta}, {Text: "e"}}},
		{3, []Element{{Text: "d", Meta: meta}, {Text: "e"}}},
		{5, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncatePrefix(elems, tt.n), "n=%d", tt.n)
	}
	assert.Equal(t, "ab", elems[0].Text)
}

func session(text string, anchor int) *Session {
	return &Session{
		provider: &fakeProvider{id: "p"},
		elements: []Element{{Text: text}},
		anchor:   anchor,
	}
}

func TestDefaultUpdaters(t *testing.T) {
	ed := newEditor("Hello, ")
	p := &fakeProvider{id: "p"}

	tests := []struct {
		name     string
		session  *Session
		trigger  Trigger
		provider Provider
		want     Update
	}{
		{
			name:     "typed prefix",
			session:  session("world", 7),
			trigger:  DocumentChange{Editor: ed, Typing: OneSymbol{Symbol: 'w', Offset: 7}},
			provider: p,
			want:     Update{Outcome: Changed, Elements: []Element{{Text: "orld"}}, Anchor: 8},
		},
		{
			name:     "typed elsewhere",
			session:  session("world", 7),
			trigger:  DocumentChange{Editor: ed, Typing: OneSymbol{Symbol: 'w', Offset: 2}},
			provider: p,
		},
		{
			name:     "mismatch",
			session:  session("world", 7),
			trigger:  DocumentChange{Editor: ed, Typing: OneSymbol{Symbol: 'x', Offset: 7}},
			provider: p,
		},
		{
			name:     "last character",
			session:  session("w", 7),
			trigger:  DocumentChange{Editor: ed, Typing: OneSymbol{Symbol: 'w', Offset: 7}},
			provider: p,
		},
		{
			name:    "typed prefix without provider",
			session: session("world", 7),
			trigger: DocumentChange{Editor: ed, Typing: OneSymbol{Symbol: 'w', Offset: 7}},
			want:    Update{Outcome: Changed, Elements: []Element{{Text: "orld"}}, Anchor: 8},
		},
		{
			name:    "caret on anchor",
			session: session("world", 7),
			trigger: CaretMove{Editor: ed, Offset: 7},
			want:    Update{Outcome: Same},
		},
		{
			name:    "caret away",
			session: session("world", 7),
			trigger: CaretMove{Editor: ed, Offset: 1},
			want:    Update{Outcome: Invalidated},
		},
		{
			name:     "lookup while pending",
			session:  &Session{anchor: 7},
			trigger:  LookupChange{Editor: ed},
			provider: p,
			want:     Update{Outcome: Same},
		},
		{
			name:     "lookup while displaying",
			session:  session("world", 7),
			trigger:  LookupChange{Editor: ed},
			provider: p,
			want:     Update{Outcome: Invalidated},
		},
		{
			name:    "no provider",
			session: session("world", 7),
			trigger: DirectCall{Editor: ed},
			want:    Update{Outcome: Invalidated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runChain(DefaultUpdaters(), &UpdateContext{
				Session:  tt.session,
				Trigger:  tt.trigger,
				Provider: tt.provider,
			}, slog.Default())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunChainSkipsPanickingUpdater(t *testing.T) {
	chain := []Updater{
		UpdaterFunc(func(*UpdateContext) Update { panic("broken") }),
		UpdaterFunc(func(*UpdateContext) Update { return Update{Outcome: Same} }),
	}
	got := runChain(chain, &UpdateContext{Trigger: DirectCall{}}, slog.Default())
	assert.Equal(t, Same, got.Outcome)
	assert.Equal(t, "same", got.Outcome.String())
}
