// Package provider holds reusable suggestion providers and wrappers.
package provider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/Paranoid-AF/ghostline/inline"
)

// WordsID is the provider id of Words.
const WordsID = "words"

// Words completes the word in front of the caret from a frequency
// dictionary.
type Words struct {
	minPrefix    int
	minFrequency int

	mu   sync.RWMutex
	trie *patricia.Trie
	size int
}

// NewWords creates an empty dictionary. Words shorter than minPrefix runes
// are not completed, and entries below minFrequency are never suggested.
func NewWords(minPrefix, minFrequency int) *Words {
	return &Words{
		minPrefix:    max(1, minPrefix),
		minFrequency: minFrequency,
		trie:         patricia.NewTrie(),
	}
}

// LoadFile reads a dictionary file, see Load.
func (w *Words) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := w.Load(f); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads "word [frequency]" lines. Blank lines and lines starting with
// # are skipped; a missing frequency counts as 1.
func (w *Words) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		freq := 1
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: bad frequency %q", line, fields[1])
			}
			freq = n
		}
		w.Add(fields[0], freq)
	}
	return scanner.Err()
}

// Add adds freq to the count of word.
func (w *Words) Add(word string, freq int) {
	key := patricia.Prefix(strings.ToLower(word))
	w.mu.Lock()
	defer w.mu.Unlock()
	if item := w.trie.Get(key); item != nil {
		freq += item.(int)
	} else {
		w.size++
	}
	w.trie.Set(key, freq)
}

// Observe adds every word of text once.
func (w *Words) Observe(text string) {
	for word := range strings.FieldsFuncSeq(text, func(r rune) bool { return !isWordRune(r) }) {
		if utf8.RuneCountInString(word) > w.minPrefix {
			w.Add(word, 1)
		}
	}
}

// Len returns the number of distinct words.
func (w *Words) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Best returns the most frequent word that extends prefix. Ties go to the
// shorter word.
func (w *Words) Best(prefix string) (string, int, bool) {
	lower := strings.ToLower(prefix)
	var (
		best     string
		bestFreq int
	)
	w.mu.RLock()
	_ = w.trie.VisitSubtree(patricia.Prefix(lower), func(p patricia.Prefix, item patricia.Item) error {
		word := string(p)
		if word == lower {
			return nil
		}
		freq, _ := item.(int)
		if freq < w.minFrequency {
			return nil
		}
		if freq > bestFreq || (freq == bestFreq && len(word) < len(best)) {
			best, bestFreq = word, freq
		}
		return nil
	})
	w.mu.RUnlock()
	if best == "" {
		return "", 0, false
	}
	return applyCase(best, prefix), bestFreq, true
}

func (w *Words) ID() string { return WordsID }

// IsEnabled accepts direct calls and typed word characters.
func (w *Words) IsEnabled(t inline.Trigger) bool {
	switch t := t.(type) {
	case inline.DirectCall:
		return true
	case inline.DocumentChange:
		sym, ok := t.Typing.(inline.OneSymbol)
		return ok && isWordRune(sym.Symbol)
	}
	return false
}

// RequiresInvalidation drops the session once the word ends.
func (w *Words) RequiresInvalidation(t inline.Trigger) bool {
	dc, ok := t.(inline.DocumentChange)
	if !ok {
		return false
	}
	sym, ok := dc.Typing.(inline.OneSymbol)
	return !ok || !isWordRune(sym.Symbol)
}

func (w *Words) Proposals(ctx context.Context, req *inline.Request) iter.Seq2[inline.Element, error] {
	return func(yield func(inline.Element, error) bool) {
		prefix := wordBefore(req.Document, req.EndOffset)
		if utf8.RuneCountInString(prefix) < w.minPrefix {
			return
		}
		word, freq, ok := w.Best(prefix)
		if !ok {
			return
		}
		yield(inline.Element{
			Text: dropRunes(word, utf8.RuneCountInString(prefix)),
			Meta: map[string]string{"word": word, "frequency": strconv.Itoa(freq)},
		}, nil)
	}
}

// wordBefore returns the word characters directly in front of offset.
func wordBefore(doc inline.Document, offset int) string {
	line := inline.LinePrefix(doc, offset)
	i := len(line)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:i])
		if !isWordRune(r) {
			break
		}
		i -= size
	}
	return line[i:]
}

// applyCase copies the capitalization of typed onto word. typed and word
// share a case-insensitive prefix.
func applyCase(word, typed string) string {
	var sb strings.Builder
	rest := word
	for _, tr := range typed {
		wr, size := utf8.DecodeRuneInString(rest)
		if size == 0 {
			break
		}
		rest = rest[size:]
		if unicode.IsUpper(tr) {
			wr = unicode.ToUpper(wr)
		}
		sb.WriteRune(wr)
	}
	allUpper := typed != "" && strings.ToUpper(typed) == typed && strings.ToLower(typed) != typed && utf8.RuneCountInString(typed) > 1
	if allUpper {
		rest = strings.ToUpper(rest)
	}
	sb.WriteString(rest)
	return sb.String()
}

func dropRunes(s string, n int) string {
	for ; n > 0 && s != ""; n-- {
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	return s
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
