package inline

import (
	"strings"
	"unicode/utf8"
)

// Change is the delta of a single edit operation on a document.
type Change struct {
	// Offset is where the replaced range starts.
	Offset int
	// OldText is the text removed by the edit.
	OldText string
	// NewText is the text inserted by the edit.
	NewText string
	// CaretStays reports that the caret did not advance past the inserted
	// text, as with an auto-inserted closing bracket or quote.
	CaretStays bool
}

// TypingEvent is a classified document change. The set of implementations
// is closed: OneSymbol, NewLine and PairedEnclosure.
type TypingEvent interface {
	// Typed returns the inserted text.
	Typed() string
	// Range returns the document range the caret covers after the edit.
	Range() Range

	typingEvent()
}

// OneSymbol is a single typed character.
type OneSymbol struct {
	Symbol rune
	Offset int
}

func (e OneSymbol) Typed() string { return string(e.Symbol) }
func (e OneSymbol) Range() Range {
	return Range{Start: e.Offset, End: e.Offset + utf8.RuneLen(e.Symbol)}
}
func (OneSymbol) typingEvent() {}

// NewLine is a line break, possibly followed by auto-indent whitespace.
type NewLine struct {
	Text string
	Span Range
}

func (e NewLine) Typed() string { return e.Text }
func (e NewLine) Range() Range  { return e.Span }
func (NewLine) typingEvent()    {}

// PairedEnclosure is an auto-inserted closer. The caret stays in front of it,
// so its range is empty.
type PairedEnclosure struct {
	Text   string
	Offset int
}

func (e PairedEnclosure) Typed() string { return e.Text }
func (e PairedEnclosure) Range() Range  { return Range{Start: e.Offset, End: e.Offset} }
func (PairedEnclosure) typingEvent()    {}

const closers = ")]}>\"'`"

// Classify turns the delta of one edit into a typing event.
// It returns nil when the edit cannot be reconciled incrementally (deletions,
// replacements, pastes), in which case a displayed suggestion is invalidated.
func Classify(c Change) TypingEvent {
	if c.OldText != "" || c.NewText == "" {
		return nil
	}

	if !c.CaretStays && utf8.RuneCountInString(c.NewText) == 1 {
		r, _ := utf8.DecodeRuneInString(c.NewText)
		if r != utf8.RuneError && r != '\n' && r != '\r' {
			return OneSymbol{Symbol: r, Offset: c.Offset}
		}
	}

	if isLineBreak(c.NewText) {
		return NewLine{
			Text: c.NewText,
			Span: Range{Start: c.Offset, End: c.Offset + len(c.NewText)},
		}
	}

	if c.CaretStays && strings.Trim(c.NewText, closers) == "" {
		return PairedEnclosure{Text: c.NewText, Offset: c.Offset}
	}

	return nil
}

// isLineBreak reports whether s is a line terminator followed only by
// indentation.
func isLineBreak(s string) bool {
	var rest string
	switch {
	case strings.HasPrefix(s, "\r\n"):
		rest = s[2:]
	case strings.HasPrefix(s, "\n"):
		rest = s[1:]
	default:
		return false
	}
	return strings.Trim(rest, " \t") == ""
}
