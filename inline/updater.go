package inline

import (
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// Outcome is the verdict of an Updater.
type Outcome int

const (
	// Undefined means the updater does not handle the event.
	Undefined Outcome = iota
	// Changed means the session gets new elements.
	Changed
	// Same means the event is handled and nothing changes.
	Same
	// Invalidated means the session must be discarded.
	Invalidated
)

func (o Outcome) String() string {
	switch o {
	case Changed:
		return "changed"
	case Same:
		return "same"
	case Invalidated:
		return "invalidated"
	}
	return "undefined"
}

// Update is the result of an Updater. Elements and Anchor are only
// meaningful when Outcome is Changed.
type Update struct {
	Outcome  Outcome
	Elements []Element
	Anchor   int
}

// UpdateContext is what an Updater sees. Session must not be modified.
type UpdateContext struct {
	Session *Session
	Trigger Trigger
	Request *Request
	// Provider is the provider resolved for Trigger, or nil.
	Provider Provider
}

// Updater tries to patch a session for one event shape.
type Updater interface {
	Update(uc *UpdateContext) Update
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(uc *UpdateContext) Update

func (f UpdaterFunc) Update(uc *UpdateContext) Update { return f(uc) }

// DefaultUpdaters returns the standard chain, in evaluation order.
func DefaultUpdaters() []Updater {
	return []Updater{
		UpdaterFunc(caretUpdate),
		UpdaterFunc(prefixUpdate),
		UpdaterFunc(lookupUpdate),
		UpdaterFunc(noProviderUpdate),
	}
}

// runChain returns the first defined update of the chain, or Undefined.
// A panicking updater is logged and skipped.
func runChain(updaters []Updater, uc *UpdateContext, log *slog.Logger) Update {
	for i, u := range updaters {
		res, err := safeUpdate(u, uc)
		if err != nil {
			log.Warn("updater failed", "index", i, "trigger", uc.Trigger.Kind(), "error", err)
			continue
		}
		if res.Outcome != Undefined {
			return res
		}
	}
	return Update{Outcome: Undefined}
}

func safeUpdate(u Updater, uc *UpdateContext) (res Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return u.Update(uc), nil
}

// caretUpdate keeps the session when the caret moves onto its anchor,
// which is where hosts echo the caret after typing.
func caretUpdate(uc *UpdateContext) Update {
	cm, ok := uc.Trigger.(CaretMove)
	if !ok {
		return Update{}
	}
	if cm.Offset == uc.Session.Anchor() {
		return Update{Outcome: Same}
	}
	return Update{}
}

// prefixUpdate consumes one typed character that matches the start of the
// suggestion. A mismatch, or typing the last remaining character, is left
// undefined so the session gets invalidated.
func prefixUpdate(uc *UpdateContext) Update {
	dc, ok := uc.Trigger.(DocumentChange)
	if !ok {
		return Update{}
	}
	sym, ok := dc.Typing.(OneSymbol)
	if !ok || sym.Offset != uc.Session.Anchor() {
		return Update{}
	}

	text := uc.Session.Text()
	first, size := utf8.DecodeRuneInString(text)
	if text == "" || first != sym.Symbol || len(text) <= size {
		return Update{}
	}
	return Update{
		Outcome:  Changed,
		Elements: truncatePrefix(uc.Session.Elements(), size),
		Anchor:   sym.Offset + size,
	}
}

// lookupUpdate lets popup changes pass while nothing is displayed and
// discards a displayed suggestion otherwise.
func lookupUpdate(uc *UpdateContext) Update {
	if _, ok := uc.Trigger.(LookupChange); !ok {
		return Update{}
	}
	if uc.Session.Displaying() {
		return Update{Outcome: Invalidated}
	}
	return Update{Outcome: Same}
}

func noProviderUpdate(uc *UpdateContext) Update {
	if uc.Provider == nil {
		return Update{Outcome: Invalidated}
	}
	return Update{}
}
