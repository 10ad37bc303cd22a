package inline

import (
	"errors"
	"log/slog"
	"slices"
)

// ErrSessionExists is returned by SessionStore.Init when the editor already
// has a session. It always indicates a caller bug.
var ErrSessionExists = errors.New("session already exists")

// State is the reconciliation state of one editor.
type State int

const (
	// Idle means no session.
	Idle State = iota
	// Pending means a request is in flight and nothing is rendered yet.
	Pending
	// Displaying means at least one non-empty element is rendered.
	Displaying
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Displaying:
		return "displaying"
	}
	return "idle"
}

// Session is the live suggestion of one editor. It is only touched on the
// UI loop. The element list is replaced as a whole, never edited in place.
type Session struct {
	editor   Editor
	provider Provider
	request  *Request
	elements []Element
	anchor   int
	// job is a back-reference for cancellation; the executor owns it.
	job *Job
}

func (s *Session) Editor() Editor     { return s.editor }
func (s *Session) Provider() Provider { return s.provider }
func (s *Session) Request() *Request  { return s.request }

// Anchor returns the offset the suggestion is rendered at.
func (s *Session) Anchor() int { return s.anchor }

// Elements returns a copy of the current elements.
func (s *Session) Elements() []Element { return slices.Clone(s.elements) }

// Text returns the concatenated suggestion.
func (s *Session) Text() string { return concat(s.elements) }

// Displaying reports whether any text is rendered.
func (s *Session) Displaying() bool { return hasText(s.elements) }

func (s *Session) State() State {
	if s.Displaying() {
		return Displaying
	}
	return Pending
}

// SessionStore holds at most one session per editor.
// All methods must be called on the UI loop.
type SessionStore struct {
	loop     *Loop
	log      *slog.Logger
	sessions map[string]*Session
}

// NewSessionStore creates a store bound to loop.
func NewSessionStore(loop *Loop, log *slog.Logger) *SessionStore {
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		loop:     loop,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of ed, or nil.
func (st *SessionStore) Get(ed Editor) *Session {
	st.loop.AssertOn("SessionStore.Get")
	return st.sessions[ed.ID()]
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	return len(st.sessions)
}

// Init creates the session of ed. A session must not already exist; callers
// remove the old one first.
func (st *SessionStore) Init(ed Editor, p Provider, req *Request) (*Session, error) {
	st.loop.AssertOn("SessionStore.Init")
	if _, ok := st.sessions[ed.ID()]; ok {
		st.log.Error("session initialized twice", "editor", ed.ID(), "provider", p.ID())
		return nil, ErrSessionExists
	}
	s := &Session{
		editor:   ed,
		provider: p,
		request:  req,
		anchor:   req.EndOffset,
	}
	st.sessions[ed.ID()] = s
	return s, nil
}

// Remove disposes the rendered elements of ed's session, cancels its job and
// forgets it. It returns the removed session, or nil when there was none.
func (st *SessionStore) Remove(ed Editor) *Session {
	st.loop.AssertOn("SessionStore.Remove")
	s, ok := st.sessions[ed.ID()]
	if !ok {
		return nil
	}
	ed.Inlays().DisposeAll()
	if s.job != nil {
		s.job.Cancel()
	}
	delete(st.sessions, ed.ID())
	return s
}
