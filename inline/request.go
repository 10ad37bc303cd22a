package inline

import (
	"errors"

	"github.com/google/uuid"
)

// Expected outcomes of NewRequest. They mean "take no action" and are never
// surfaced to the user.
var (
	ErrNoAssociatedFile = errors.New("no associated file")
	ErrMultipleCarets   = errors.New("multiple carets")
	ErrNoActiveSession  = errors.New("no active session")
)

// Request is a snapshot of a trigger handed to a provider.
type Request struct {
	ID       uuid.UUID
	Trigger  Trigger
	File     string
	Editor   Editor
	Document Document

	StartOffset int
	EndOffset   int
}

// NewRequest builds a request for t. hasSession reports whether the target
// editor currently has a session; partial accepts require one.
// It only reads editor state.
func NewRequest(t Trigger, hasSession bool) (*Request, error) {
	ed := t.Target()
	file := ed.File()
	if file == "" {
		return nil, ErrNoAssociatedFile
	}
	caret, err := singleCaret(ed)
	if err != nil {
		return nil, err
	}
	if _, ok := t.(PartialAccept); ok && !hasSession {
		return nil, ErrNoActiveSession
	}

	start, end := caret, caret
	switch t := t.(type) {
	case DocumentChange:
		if t.Typing != nil {
			r := t.Typing.Range()
			start, end = r.Start, r.End
		}
	case CaretMove:
		start, end = t.Offset, t.Offset
	}

	return &Request{
		ID:          uuid.New(),
		Trigger:     t,
		File:        file,
		Editor:      ed,
		Document:    ed.Document(),
		StartOffset: start,
		EndOffset:   end,
	}, nil
}

// actualize re-reads the caret right before the provider is called. Hosts
// move the caret for paired insertions after the raw event was delivered,
// so the offsets of such requests follow the caret. Must run on the UI loop.
func (r *Request) actualize() (*Request, error) {
	caret, err := singleCaret(r.Editor)
	if err != nil {
		return nil, err
	}
	out := *r
	out.Document = r.Editor.Document()
	if dc, ok := r.Trigger.(DocumentChange); ok {
		if _, paired := dc.Typing.(PairedEnclosure); paired {
			out.StartOffset, out.EndOffset = caret, caret
		}
	}
	return &out, nil
}

func singleCaret(ed Editor) (int, error) {
	carets := ed.Carets()
	if len(carets) != 1 {
		return 0, ErrMultipleCarets
	}
	return carets[0], nil
}
