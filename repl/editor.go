package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/Paranoid-AF/ghostline/inline"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// closers maps an opening character to the one inserted after the caret.
var closers = map[rune]string{'(': ")", '[': "]", '{': "}", '"': `"`, '\'': "'", '`': "`"}

var ghostStyle = lipgloss.NewStyle().Faint(true)

// Line is a single-line editor on a raw terminal. It is the inline.Editor
// the engine serves; suggestions are drawn faint after the anchor.
type Line struct {
	file   string
	prompt string
	out    io.Writer
	engine *inline.Engine

	mu     sync.Mutex
	buf    string
	pos    int
	ghost  []string
	anchor int
}

// NewLine creates an editor drawing to out. file names the edited
// document for providers.
func NewLine(file, prompt string, out io.Writer) *Line {
	return &Line{file: file, prompt: prompt, out: out}
}

// Attach sets the engine that key presses are reported to.
func (l *Line) Attach(e *inline.Engine) { l.engine = e }

// ReadLine reads keys until Enter and returns the line. It returns io.EOF
// on Ctrl-D with an empty line and ErrInterrupt on Ctrl-C.
func (l *Line) ReadLine(in *bufio.Reader) (string, error) {
	l.mu.Lock()
	l.buf, l.pos = "", 0
	l.redraw()
	l.mu.Unlock()

	for {
		k, err := readKey(in)
		if err != nil {
			return "", err
		}
		line, done, err := l.press(k)
		if done || err != nil {
			return line, err
		}
	}
}

// press applies one key. It reports done when the line is finished.
func (l *Line) press(k key) (string, bool, error) {
	eng := l.engine
	switch k.code {
	case keyEnter:
		eng.Hide(l)
		l.mu.Lock()
		line := l.buf
		fmt.Fprint(l.out, "\r\n")
		l.mu.Unlock()
		return line, true, nil

	case keyInterrupt:
		eng.Hide(l)
		fmt.Fprint(l.out, "\r\n")
		return "", true, ErrInterrupt

	case keyEOF:
		l.mu.Lock()
		empty := l.buf == ""
		l.mu.Unlock()
		if empty {
			fmt.Fprint(l.out, "\r\n")
			return "", true, io.EOF
		}

	case keyRune:
		l.typeRune(k.r)

	case keyBackspace:
		l.mu.Lock()
		if l.pos == 0 {
			l.mu.Unlock()
			break
		}
		_, size := utf8.DecodeLastRuneInString(l.buf[:l.pos])
		ch := l.replace(l.pos-size, l.buf[l.pos-size:l.pos], "", l.pos-size)
		l.mu.Unlock()
		eng.Handle(inline.DocumentChange{Editor: l, Change: ch})

	case keyDelete:
		l.mu.Lock()
		if l.pos == len(l.buf) {
			l.mu.Unlock()
			break
		}
		_, size := utf8.DecodeRuneInString(l.buf[l.pos:])
		ch := l.replace(l.pos, l.buf[l.pos:l.pos+size], "", l.pos)
		l.mu.Unlock()
		eng.Handle(inline.DocumentChange{Editor: l, Change: ch})

	case keyClear:
		l.mu.Lock()
		ch := l.replace(0, l.buf, "", 0)
		l.mu.Unlock()
		eng.Handle(inline.DocumentChange{Editor: l, Change: ch})

	case keyLeft, keyRight, keyHome, keyEnd:
		if k.code == keyRight && l.acceptAtEnd() {
			eng.Insert(l)
			break
		}
		l.mu.Lock()
		l.pos = l.moved(k.code)
		pos := l.pos
		l.redraw()
		l.mu.Unlock()
		eng.Handle(inline.CaretMove{Editor: l, Offset: pos})

	case keyTab:
		if l.showing() {
			eng.Insert(l)
		} else {
			eng.Handle(inline.DirectCall{Editor: l})
		}

	case keyAcceptWord:
		eng.Handle(inline.PartialAccept{Editor: l, Unit: inline.AcceptWord})

	case keyInvoke:
		eng.Handle(inline.DirectCall{Editor: l})

	case keyEsc:
		eng.Hide(l)
	}
	return "", false, nil
}

// typeRune inserts r at the caret, followed by its closer when r opens a
// pair.
func (l *Line) typeRune(r rune) {
	l.mu.Lock()
	closer, pairs := closers[r]
	if pairs && strings.ContainsRune(`"'`+"`", r) && l.pos > 0 {
		prev, _ := utf8.DecodeLastRuneInString(l.buf[:l.pos])
		pairs = !unicode.IsLetter(prev) && !unicode.IsDigit(prev)
	}
	typed := l.replace(l.pos, "", string(r), l.pos+utf8.RuneLen(r))
	var closed inline.Change
	if pairs {
		closed = l.replace(l.pos, "", closer, l.pos)
		closed.CaretStays = true
	}
	l.mu.Unlock()

	l.engine.Handle(inline.DocumentChange{Editor: l, Change: typed})
	if pairs {
		l.engine.Handle(inline.DocumentChange{Editor: l, Change: closed})
	}
}

// replace edits the buffer and places the caret. Caller holds mu.
func (l *Line) replace(offset int, old, text string, caret int) inline.Change {
	l.buf = l.buf[:offset] + text + l.buf[offset+len(old):]
	l.pos = caret
	l.redraw()
	return inline.Change{Offset: offset, OldText: old, NewText: text}
}

// moved returns the caret after a movement key. Caller holds mu.
func (l *Line) moved(code keyCode) int {
	switch code {
	case keyLeft:
		_, size := utf8.DecodeLastRuneInString(l.buf[:l.pos])
		return l.pos - size
	case keyRight:
		_, size := utf8.DecodeRuneInString(l.buf[l.pos:])
		return l.pos + size
	case keyHome:
		return 0
	}
	return len(l.buf)
}

func (l *Line) showing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ghost) > 0
}

func (l *Line) acceptAtEnd() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ghost) > 0 && l.pos == len(l.buf)
}

// Text returns the line and the caret offset.
func (l *Line) Text() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf, l.pos
}

// Ghost returns the suggestion text on screen.
func (l *Line) Ghost() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.ghost, "")
}

func (l *Line) ID() string   { return "repl" }
func (l *Line) File() string { return l.file }

func (l *Line) Carets() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return []int{l.pos}
}

func (l *Line) Document() inline.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return inline.StringDocument(l.buf)
}

func (l *Line) Insert(offset int, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset = max(0, min(offset, len(l.buf)))
	l.buf = l.buf[:offset] + text + l.buf[offset:]
	l.redraw()
}

func (l *Line) MoveCaret(offset int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pos = max(0, min(offset, len(l.buf)))
	l.redraw()
}

func (l *Line) Inlays() inline.Renderer { return l }

func (l *Line) Render(e inline.Element, offset int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ghost = append(l.ghost, e.Text)
	l.anchor = offset
	l.redraw()
}

func (l *Line) DisposeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ghost = nil
	l.redraw()
}

// Bounds is measured in terminal cells on the prompt row.
func (l *Line) Bounds() (inline.Rect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ghost) == 0 {
		return inline.Rect{}, false
	}
	x := lipgloss.Width(l.prompt) + lipgloss.Width(l.buf[:min(l.anchor, len(l.buf))])
	return inline.Rect{X: x, Width: lipgloss.Width(l.visibleGhost()), Height: 1}, true
}

// visibleGhost is the part of the suggestion that fits on the prompt row.
func (l *Line) visibleGhost() string {
	text, _, _ := strings.Cut(strings.Join(l.ghost, ""), "\n")
	return text
}

// redraw repaints the prompt row. Caller holds mu.
func (l *Line) redraw() {
	anchor := min(l.anchor, len(l.buf))
	ghost := l.visibleGhost()
	if ghost == "" {
		anchor = len(l.buf)
	}

	var sb strings.Builder
	// \r = carriage return, \x1b[K = clear to end of line
	sb.WriteString("\r\x1b[K")
	sb.WriteString(l.prompt)
	sb.WriteString(l.buf[:anchor])
	if ghost != "" {
		sb.WriteString(ghostStyle.Render(ghost))
	}
	sb.WriteString(l.buf[anchor:])

	// Move the cursor back over everything drawn after the caret.
	var tail int
	if l.pos >= anchor {
		tail = utf8.RuneCountInString(l.buf[l.pos:])
	} else {
		tail = utf8.RuneCountInString(l.buf[l.pos:]) + lipgloss.Width(ghost)
	}
	if tail > 0 {
		fmt.Fprintf(&sb, "\x1b[%dD", tail)
	}
	io.WriteString(l.out, sb.String())
}
