package inline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultDebounce is the settle delay before an unforced request.
const DefaultDebounce = 75 * time.Millisecond

// Options configures an Engine.
type Options struct {
	// Providers in registration order. The first enabled one wins.
	Providers []Provider
	// Updaters replaces DefaultUpdaters when non-nil.
	Updaters []Updater
	// Listeners receive events in order.
	Listeners []Listener
	// Debounce delays requests for unforced triggers. Zero means no delay.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Engine reconciles editor events with inline suggestions. Its methods
// enqueue work on the engine's UI loop and return immediately; events for
// one editor are processed in the order they were handed in.
type Engine struct {
	log       *slog.Logger
	loop      *Loop
	store     *SessionStore
	updaters  []Updater
	listeners []Listener

	// Owned by the loop.
	debounce  time.Duration
	providers []Provider
	executors map[string]*Executor
}

// New creates an engine and starts its UI loop.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	updaters := opts.Updaters
	if updaters == nil {
		updaters = DefaultUpdaters()
	}
	loop := NewLoop(log)
	return &Engine{
		log:       log,
		loop:      loop,
		store:     NewSessionStore(loop, log),
		updaters:  updaters,
		listeners: slices.Clone(opts.Listeners),
		debounce:  opts.Debounce,
		providers: slices.Clone(opts.Providers),
		executors: make(map[string]*Executor),
	}
}

// Handle processes an editor event.
func (e *Engine) Handle(t Trigger) error {
	return e.loop.Post(func() { e.handle(t) })
}

// Insert accepts the displayed suggestion of ed.
func (e *Engine) Insert(ed Editor) error {
	return e.loop.Post(func() { e.insert(ed) })
}

// Hide discards the session of ed, if any.
func (e *Engine) Hide(ed Editor) error {
	return e.loop.Post(func() { e.hide(ed) })
}

// CloseEditor hides ed's session and shuts down its executor.
func (e *Engine) CloseEditor(ed Editor) error {
	return e.loop.Post(func() {
		e.hide(ed)
		if x, ok := e.executors[ed.ID()]; ok {
			x.Cancel()
			delete(e.executors, ed.ID())
		}
	})
}

// SetProviders replaces the provider list. Sessions of providers that are
// gone are invalidated by the next event that resolves a different provider.
func (e *Engine) SetProviders(ps []Provider) error {
	ps = slices.Clone(ps)
	return e.loop.Post(func() { e.providers = ps })
}

// SetDebounce changes the settle delay for requests started afterwards.
func (e *Engine) SetDebounce(d time.Duration) error {
	return e.loop.Post(func() { e.debounce = d })
}

// Snapshot describes the session of one editor.
type Snapshot struct {
	State    State
	Provider string
	Anchor   int
	Text     string
	Elements []Element
}

// Snapshot returns the current session of ed. It waits for queued events,
// so it must not be called from a Listener.
func (e *Engine) Snapshot(ed Editor) Snapshot {
	var snap Snapshot
	_ = e.loop.Do(func() {
		s := e.store.Get(ed)
		if s == nil {
			return
		}
		snap = Snapshot{
			State:    s.State(),
			Provider: s.provider.ID(),
			Anchor:   s.anchor,
			Text:     s.Text(),
			Elements: s.Elements(),
		}
	})
	return snap
}

// Bounds returns the on-screen bounds of ed's displayed suggestion. Like
// Snapshot it waits on the loop.
func (e *Engine) Bounds(ed Editor) (Rect, bool) {
	var (
		r  Rect
		ok bool
	)
	_ = e.loop.Do(func() {
		if s := e.store.Get(ed); s != nil && s.Displaying() {
			r, ok = ed.Inlays().Bounds()
		}
	})
	return r, ok
}

// AwaitIdle waits until every queued event and every provider job has
// finished. It exists for tests and must not be called from a Listener.
func (e *Engine) AwaitIdle(ctx context.Context) error {
	for {
		busy := false
		if err := e.loop.Call(ctx, func() {
			for _, x := range e.executors {
				if x.Alive() > 0 {
					busy = true
				}
			}
		}); err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Close cancels all work and stops the UI loop. It waits on the loop.
func (e *Engine) Close() {
	_ = e.loop.Do(func() {
		for id, x := range e.executors {
			x.Cancel()
			delete(e.executors, id)
		}
		for _, s := range e.store.sessions {
			e.store.Remove(s.editor)
		}
	})
	e.loop.Close()
}

func (e *Engine) handle(t Trigger) {
	if dc, ok := t.(DocumentChange); ok && dc.Typing == nil {
		dc.Typing = Classify(dc.Change)
		t = dc
	}
	ed := t.Target()
	session := e.store.Get(ed)

	req, err := NewRequest(t, session != nil)
	if err != nil {
		e.log.Debug("no request", "editor", ed.ID(), "trigger", t.Kind(), "reason", err)
		if session != nil && !errors.Is(err, ErrNoActiveSession) {
			e.invalidate(session)
		}
		return
	}

	provider := e.resolve(t)

	if session != nil {
		if pa, ok := t.(PartialAccept); ok {
			e.partialAccept(session, pa)
			return
		}
		if provider == nil && !session.Displaying() {
			return
		}
		if e.reconcile(session, t, req, provider) {
			return
		}
		if !startsSession(t) {
			return
		}
	}
	e.start(t, req, provider)
}

// resolve returns the first provider enabled for t.
func (e *Engine) resolve(t Trigger) Provider {
	for _, p := range e.providers {
		ok, err := isEnabled(p, t)
		if err != nil {
			e.log.Warn("provider check failed", "provider", p.ID(), "error", err)
			continue
		}
		if ok {
			return p
		}
	}
	return nil
}

// reconcile patches session for t. It reports whether the session survived;
// when it did not, the session has already been torn down.
func (e *Engine) reconcile(s *Session, t Trigger, req *Request, provider Provider) bool {
	switched := provider != nil && provider.ID() != s.provider.ID()
	if switched || requiresInvalidation(s.provider, t) {
		e.invalidate(s)
		return false
	}

	res := runChain(e.updaters, &UpdateContext{
		Session:  s,
		Trigger:  t,
		Request:  req,
		Provider: provider,
	}, e.log)

	switch res.Outcome {
	case Changed:
		e.apply(s, res.Elements, res.Anchor)
		return true
	case Same:
		return true
	}
	e.invalidate(s)
	return false
}

// apply replaces the rendered suggestion of s.
func (e *Engine) apply(s *Session, elems []Element, anchor int) {
	before := len(s.Text())
	inlays := s.editor.Inlays()
	inlays.DisposeAll()
	s.elements = slices.Clone(elems)
	s.anchor = anchor
	for _, el := range s.elements {
		if el.Text != "" {
			inlays.Render(el, anchor)
		}
	}
	e.emit(Event{
		Kind:        EventChange,
		Editor:      s.editor.ID(),
		Provider:    s.provider.ID(),
		Request:     s.request,
		LengthDelta: len(s.Text()) - before,
	})
}

func (e *Engine) invalidate(s *Session) {
	displaying := s.Displaying()
	e.store.Remove(s.editor)
	e.emit(Event{
		Kind:       EventInvalidated,
		Editor:     s.editor.ID(),
		Provider:   s.provider.ID(),
		Request:    s.request,
		Displaying: displaying,
	})
}

func (e *Engine) hide(ed Editor) {
	s := e.store.Remove(ed)
	if s == nil {
		return
	}
	e.emit(Event{
		Kind:       EventHide,
		Editor:     ed.ID(),
		Provider:   s.provider.ID(),
		Request:    s.request,
		Displaying: s.Displaying(),
	})
}

func (e *Engine) insert(ed Editor) {
	s := e.store.Get(ed)
	if s == nil || !s.Displaying() {
		return
	}
	text, anchor := s.Text(), s.anchor
	e.store.Remove(ed)
	ed.Insert(anchor, text)
	ed.MoveCaret(anchor + len(text))
	e.emit(Event{
		Kind:     EventInsert,
		Editor:   ed.ID(),
		Provider: s.provider.ID(),
		Request:  s.request,
		Element:  Element{Text: text},
	})
}

func (e *Engine) partialAccept(s *Session, pa PartialAccept) {
	if !s.Displaying() {
		return
	}
	text := s.Text()
	var n int
	switch pa.Unit {
	case AcceptLine:
		n = nextLineLen(text)
	default:
		n = nextWordLen(text)
	}
	if n >= len(text) {
		e.insert(s.editor)
		return
	}
	ed, anchor := s.editor, s.anchor
	ed.Insert(anchor, text[:n])
	ed.MoveCaret(anchor + n)
	e.apply(s, truncatePrefix(s.elements, n), anchor+n)
}

// start opens a session for t and hands the provider call to the editor's
// executor.
func (e *Engine) start(t Trigger, req *Request, provider Provider) {
	if provider == nil {
		return
	}
	ed := t.Target()
	s, err := e.store.Init(ed, provider, req)
	if err != nil {
		return
	}
	delay := e.debounce
	if forced(t) {
		delay = 0
	}
	job := e.executor(ed).Submit(func(ctx context.Context) {
		e.run(ctx, s, delay)
	})
	if job == nil {
		e.store.Remove(ed)
		return
	}
	s.job = job
}

func (e *Engine) executor(ed Editor) *Executor {
	x, ok := e.executors[ed.ID()]
	if !ok {
		x = NewExecutor(e.log.With("editor", ed.ID()))
		e.executors[ed.ID()] = x
	}
	return x
}

// live reports whether s is still the session of its editor and its job has
// not been cancelled. Must run on the loop.
func (e *Engine) live(ctx context.Context, s *Session) bool {
	return ctx.Err() == nil && e.store.Get(s.editor) == s
}

// run is the body of a provider job. It runs on the executor and touches the
// session only from tasks posted to the loop.
func (e *Engine) run(ctx context.Context, s *Session, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	var req *Request
	if err := e.loop.Call(ctx, func() {
		if !e.live(ctx, s) {
			return
		}
		actual, err := s.request.actualize()
		if err != nil {
			e.log.Debug("request dropped", "editor", s.editor.ID(), "reason", err)
			e.store.Remove(s.editor)
			return
		}
		s.request, s.anchor = actual, actual.EndOffset
		req = actual
		e.emit(Event{
			Kind:     EventRequest,
			Time:     time.Now(),
			Editor:   s.editor.ID(),
			Provider: s.provider.ID(),
			Request:  actual,
		})
	}); err != nil || req == nil {
		return
	}

	index := 0
	ferr := fetch(ctx, s.provider, req, func(el Element) bool {
		err := e.loop.Call(ctx, func() {
			if !e.live(ctx, s) {
				return
			}
			e.emit(Event{Kind: EventComputed, Editor: s.editor.ID(), Provider: s.provider.ID(), Request: req, Element: el, Index: index})
			if el.Text != "" {
				s.elements = append(slices.Clone(s.elements), el)
				s.editor.Inlays().Render(el, s.anchor)
				e.emit(Event{Kind: EventShow, Editor: s.editor.ID(), Provider: s.provider.ID(), Request: req, Element: el, Index: index})
			}
			index++
		})
		return err == nil
	})

	_ = e.loop.Call(ctx, func() {
		if !e.live(ctx, s) {
			return
		}
		id, pid := s.editor.ID(), s.provider.ID()
		if ferr != nil {
			e.log.Warn("provider failed", "editor", id, "provider", pid, "error", ferr)
			displaying := s.Displaying()
			e.store.Remove(s.editor)
			e.emit(Event{Kind: EventCompletion, Editor: id, Provider: pid, Request: req, Err: ferr})
			e.emit(Event{Kind: EventHide, Editor: id, Provider: pid, Request: req, Displaying: displaying})
			return
		}
		if !s.Displaying() {
			e.store.Remove(s.editor)
			e.emit(Event{Kind: EventNoVariants, Editor: id, Provider: pid, Request: req})
			e.emit(Event{Kind: EventCompletion, Editor: id, Provider: pid, Request: req})
			return
		}
		e.emit(Event{Kind: EventCompletion, Editor: id, Provider: pid, Request: req, Active: true})
	})
}

func (e *Engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, l := range e.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("listener panicked", "event", ev.Kind.String(), "panic", r)
				}
			}()
			l.OnEvent(ev)
		}()
	}
}

// nextWordLen returns the length of the leading whitespace plus the next
// word of s, or of a single symbol when s does not start with a word.
func nextWordLen(s string) int {
	i := len(s) - len(strings.TrimLeft(s, " \t"))
	start := i
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	if i == start && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// nextLineLen returns the length of s up to its first line break, or of the
// line break itself when s starts with one.
func nextLineLen(s string) int {
	switch i := strings.IndexByte(s, '\n'); {
	case i < 0:
		return len(s)
	case i == 0:
		return 1
	default:
		return i
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
