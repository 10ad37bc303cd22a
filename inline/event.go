package inline

import (
	"time"
)

// EventKind identifies a notification.
type EventKind int

const (
	// EventRequest precedes every provider call.
	EventRequest EventKind = iota
	// EventNoVariants reports a provider result with no text.
	EventNoVariants
	// EventComputed reports an element pulled from a provider.
	EventComputed
	// EventShow reports an element rendered.
	EventShow
	// EventChange reports a session patched in place.
	EventChange
	// EventInvalidated reports a session discarded by reconciliation.
	EventInvalidated
	// EventInsert reports an accepted suggestion.
	EventInsert
	// EventHide reports a session hidden on request or after a failure.
	EventHide
	// EventCompletion reports the end of a provider call.
	EventCompletion
)

var eventNames = [...]string{
	EventRequest:     "request",
	EventNoVariants:  "no_variants",
	EventComputed:    "computed",
	EventShow:        "show",
	EventChange:      "change",
	EventInvalidated: "invalidated",
	EventInsert:      "insert",
	EventHide:        "hide",
	EventCompletion:  "completion",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is a notification about a session. Events are purely observational.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Editor   string
	Provider string
	Request  *Request

	// Element and Index are set for EventComputed and EventShow.
	Element Element
	Index   int
	// LengthDelta is the change in suggestion length for EventChange.
	LengthDelta int
	// Displaying reports whether text was on screen, for EventHide and
	// EventInvalidated.
	Displaying bool
	// Active and Err are set for EventCompletion.
	Active bool
	Err    error
}

// Listener receives events on the UI loop, after the state change they
// describe has been committed. A listener may call the Engine methods that
// only enqueue work (Handle, Insert, Hide, CloseEditor, SetProviders,
// SetDebounce); that work runs after the listener returns. Snapshot, Bounds,
// AwaitIdle and Close wait on the loop and deadlock when called from a
// listener.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }
