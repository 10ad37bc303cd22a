package generate

import "strings"

const fence = "```"

// cleaner turns raw model deltas into suggestion text. It drops an opening
// code fence and any echo of the text before the caret, and stops at a
// closing fence or, in single-line mode, at the first line break.
type cleaner struct {
	echo      string
	multiline bool

	head    strings.Builder
	pending string
	fenced  bool
	body    bool
	done    bool
}

func newCleaner(linePrefix string, multiline bool) *cleaner {
	return &cleaner{echo: strings.TrimLeft(linePrefix, " \t"), multiline: multiline}
}

// feed consumes one delta and returns the text to show.
func (c *cleaner) feed(delta string) string {
	if c.done {
		return ""
	}
	if c.body {
		return c.emit(delta)
	}
	c.head.WriteString(delta)
	text := c.head.String()
	if !c.fenced {
		if strings.HasPrefix(fence, text) {
			return ""
		}
		if strings.HasPrefix(text, fence) {
			_, rest, ok := strings.Cut(text, "\n")
			if !ok {
				return ""
			}
			c.fenced = true
			c.head.Reset()
			c.head.WriteString(rest)
			text = rest
		}
	}
	if c.echo != "" && len(text) < len(c.echo) && strings.HasPrefix(c.echo, text) {
		return ""
	}
	return c.flushHead(text)
}

// finish returns whatever is still held back once the stream ended.
func (c *cleaner) finish() string {
	if c.done {
		return ""
	}
	var out string
	if !c.body {
		text := c.head.String()
		if !c.fenced && (strings.HasPrefix(text, fence) || strings.HasPrefix(fence, text)) {
			c.done = true
			return ""
		}
		out = c.flushHead(text)
	}
	out += c.pending
	c.pending = ""
	return out
}

func (c *cleaner) flushHead(text string) string {
	c.body = true
	if c.echo != "" {
		text = strings.TrimPrefix(text, c.echo)
	}
	return c.emit(text)
}

func (c *cleaner) emit(text string) string {
	text = c.pending + text
	c.pending = ""
	if i := strings.Index(text, fence); i >= 0 {
		text = text[:i]
		c.done = true
	}
	if !c.multiline {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
			c.done = true
		}
	}
	// Hold back trailing backticks that may open a fence in the next delta.
	if !c.done {
		if n := len(text) - len(strings.TrimRight(text, "`")); n > 0 && n < len(fence) {
			c.pending = text[len(text)-n:]
			text = text[:len(text)-n]
		}
	}
	return text
}
