package inline

// Trigger is an editor event that may start, patch or end a session.
// The set of implementations is closed.
type Trigger interface {
	// Target returns the editor the event happened in.
	Target() Editor
	// Kind names the event class, for logs and metrics.
	Kind() string

	trigger()
}

// DirectCall is an explicit request for a suggestion. It skips the debounce.
type DirectCall struct {
	Editor Editor
}

// DocumentChange is an edit of the document. Typing is filled in by the
// engine from Change when left nil.
type DocumentChange struct {
	Editor Editor
	Change Change
	Typing TypingEvent
}

// CaretMove is a caret movement that did not come with an edit.
type CaretMove struct {
	Editor Editor
	Offset int
}

// LookupChange is a selection change in the host's completion popup.
type LookupChange struct {
	Editor Editor
	Item   string
}

// LookupCancel is the completion popup closing without a choice.
type LookupCancel struct {
	Editor Editor
}

// AcceptUnit is how much of a suggestion a partial accept inserts.
type AcceptUnit int

const (
	AcceptWord AcceptUnit = iota
	AcceptLine
)

// PartialAccept inserts the next word or line of the displayed suggestion.
type PartialAccept struct {
	Editor Editor
	Unit   AcceptUnit
}

func (t DirectCall) Target() Editor     { return t.Editor }
func (t DocumentChange) Target() Editor { return t.Editor }
func (t CaretMove) Target() Editor      { return t.Editor }
func (t LookupChange) Target() Editor   { return t.Editor }
func (t LookupCancel) Target() Editor   { return t.Editor }
func (t PartialAccept) Target() Editor  { return t.Editor }

func (DirectCall) Kind() string     { return "direct" }
func (DocumentChange) Kind() string { return "typing" }
func (CaretMove) Kind() string      { return "caret" }
func (LookupChange) Kind() string   { return "lookup" }
func (LookupCancel) Kind() string   { return "lookup_cancel" }
func (PartialAccept) Kind() string  { return "partial_accept" }

func (DirectCall) trigger()     {}
func (DocumentChange) trigger() {}
func (CaretMove) trigger()      {}
func (LookupChange) trigger()   {}
func (LookupCancel) trigger()   {}
func (PartialAccept) trigger()  {}

// forced reports whether t skips the debounce delay.
func forced(t Trigger) bool {
	_, ok := t.(DirectCall)
	return ok
}

// startsSession reports whether t may start a new session on its own.
// Caret moves only ever end sessions, and partial accepts need one.
func startsSession(t Trigger) bool {
	switch t.(type) {
	case CaretMove, PartialAccept:
		return false
	}
	return true
}
