package inline

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type rendered struct {
	Element Element
	Offset  int
}

type fakeRenderer struct {
	mu    sync.Mutex
	items []rendered
}

func (r *fakeRenderer) Render(e Element, offset int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, rendered{e, offset})
}

func (r *fakeRenderer) DisposeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

func (r *fakeRenderer) Bounds() (Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Rect{}, false
	}
	return Rect{X: r.items[0].Offset, Width: len(concat(r.elements()))}, true
}

func (r *fakeRenderer) elements() []Element {
	out := make([]Element, len(r.items))
	for i, it := range r.items {
		out[i] = it.Element
	}
	return out
}

func (r *fakeRenderer) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return concat(r.elements())
}

type fakeEditor struct {
	id   string
	file string

	mu     sync.Mutex
	text   string
	carets []int
	inlays fakeRenderer
}

func newEditor(text string) *fakeEditor {
	return &fakeEditor{id: "ed1", file: "main.go", text: text, carets: []int{len(text)}}
}

func (e *fakeEditor) ID() string   { return e.id }
func (e *fakeEditor) File() string { return e.file }

func (e *fakeEditor) Carets() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.carets...)
}

func (e *fakeEditor) Document() Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StringDocument(e.text)
}

func (e *fakeEditor) Insert(offset int, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = e.text[:offset] + text + e.text[offset:]
}

func (e *fakeEditor) MoveCaret(offset int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.carets = []int{offset}
}

func (e *fakeEditor) Inlays() Renderer { return &e.inlays }

func (e *fakeEditor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

// typeText applies a typed insertion at the caret and returns the trigger a
// host would deliver for it.
func (e *fakeEditor) typeText(s string) DocumentChange {
	e.mu.Lock()
	at := e.carets[0]
	e.text = e.text[:at] + s + e.text[at:]
	e.carets = []int{at + len(s)}
	e.mu.Unlock()
	return DocumentChange{Editor: e, Change: Change{Offset: at, NewText: s}}
}

// fakeProvider streams a fixed set of elements.
type fakeProvider struct {
	id       string
	elems    []Element
	err      error
	panicMsg string
	// block holds Proposals until closed.
	block chan struct{}
	// enabled filters triggers; nil enables all.
	enabled func(Trigger) bool
	// invalidate backs RequiresInvalidation when non-nil.
	invalidate func(Trigger) bool

	mu    sync.Mutex
	calls []*Request
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) IsEnabled(t Trigger) bool {
	if p.enabled == nil {
		return true
	}
	return p.enabled(t)
}

func (p *fakeProvider) Proposals(ctx context.Context, req *Request) iter.Seq2[Element, error] {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	return func(yield func(Element, error) bool) {
		if p.block != nil {
			select {
			case <-p.block:
			case <-ctx.Done():
				yield(Element{}, ctx.Err())
				return
			}
		}
		if p.panicMsg != "" {
			panic(p.panicMsg)
		}
		for _, el := range p.elems {
			if !yield(el, nil) {
				return
			}
		}
		if p.err != nil {
			yield(Element{}, p.err)
		}
	}
}

func (p *fakeProvider) Calls() []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Request(nil), p.calls...)
}

type invalidatingProvider struct {
	*fakeProvider
}

func (p invalidatingProvider) RequiresInvalidation(t Trigger) bool {
	return p.invalidate(t)
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) Last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var errBoom = errors.New("boom")

func awaitIdle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.AwaitIdle(ctx))
}

func newTestEngine(t *testing.T, providers ...Provider) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := New(Options{Providers: providers, Listeners: []Listener{rec}})
	t.Cleanup(e.Close)
	return e, rec
}
