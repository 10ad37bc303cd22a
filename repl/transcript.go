package main

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	"github.com/Paranoid-AF/ghostline/inline"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// Acceptance is one suggestion taken into the line.
type Acceptance struct {
	Provider string `toml:"provider"`
	Text     string `toml:"text"`
}

// Entry is one finished line of the transcript.
type Entry struct {
	Time     time.Time    `toml:"time"`
	Line     string       `toml:"line"`
	Accepted []Acceptance `toml:"accepted,omitempty"`
	Shown    int          `toml:"shown"`
	Errors   []string     `toml:"errors,omitempty"`
}

// Transcript collects engine events for the line being edited and writes
// one [[entry]] table per finished line.
type Transcript struct {
	w io.Writer

	mu      sync.Mutex
	current Entry
}

func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

func (t *Transcript) OnEvent(ev inline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Kind {
	case inline.EventShow:
		t.current.Shown++
	case inline.EventInsert:
		t.current.Accepted = append(t.current.Accepted, Acceptance{Provider: ev.Provider, Text: ev.Element.Text})
	case inline.EventCompletion:
		if ev.Err != nil {
			t.current.Errors = append(t.current.Errors, ev.Err.Error())
		}
	}
}

// Finish writes the entry for line and starts a new one.
func (t *Transcript) Finish(line string) error {
	t.mu.Lock()
	entry := t.current
	t.current = Entry{}
	t.mu.Unlock()

	entry.Time = time.Now().Truncate(time.Second)
	entry.Line = line
	doc := struct {
		Entry []Entry `toml:"entry"`
	}{Entry: []Entry{entry}}
	return toml.NewEncoder(t.w).Encode(doc)
}
