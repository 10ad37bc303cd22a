// Command ghostline-repl is an interactive terminal host for ghostline.
// It edits one line at a time in raw mode, draws suggestions as faint
// text after the caret, and writes a TOML transcript to stdout.
//
// Keys: Tab or Right at the end of the line accepts, Alt-f accepts a word,
// Ctrl-Space asks for a suggestion, Esc hides it.
//
// Usage:
//
//	./ghostline-repl              # interactive, transcript on screen
//	./ghostline-repl > log.toml   # prompt on screen, transcript to file
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/inline"
	"github.com/Paranoid-AF/ghostline/provider"
)

const prompt = "> "

func main() {
	file := flag.String("file", "repl.sh", "document name reported to providers")
	verbose := flag.Bool("verbose", false, "log debug output to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(*file, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, log *slog.Logger) error {
	cfg, err := ghostline.LoadConfig()
	if err != nil {
		return err
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open /dev/tty: %w", err)
	}
	defer tty.Close()
	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(int(tty.Fd()), old)

	if cwd, err := os.Getwd(); err == nil {
		file = filepath.Join(cwd, file)
	}

	fmt.Fprintf(tty, "\033[2J\033[H") // clear screen
	fmt.Fprintf(tty, "ghostline repl (%s)\r\n", file)
	for _, w := range ghostline.ValidateConfig(cfg) {
		fmt.Fprintf(tty, "warning: %s\r\n", w)
	}
	fmt.Fprintf(tty, "\r\nTab accept, Alt-f word, Ctrl-Space suggest, Esc hide, :quit exit\r\n\r\n")

	stack := provider.BuildStack(cfg, log)
	defer stack.Close()

	transcript := NewTranscript(termWriter(os.Stdout))
	line := NewLine(file, prompt, tty)
	engine := inline.New(inline.Options{
		Providers: stack.Providers,
		Listeners: []inline.Listener{transcript},
		Debounce:  ghostline.Debounce(cfg),
		Logger:    log,
	})
	defer engine.Close()
	line.Attach(engine)

	in := bufio.NewReader(tty)
	for {
		text, err := line.ReadLine(in)
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupt) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if text == ":quit" || text == ":q" {
			return nil
		}
		if text == "" {
			continue
		}
		stack.Learn(file, text+"\n")
		if err := transcript.Finish(text); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}
}
