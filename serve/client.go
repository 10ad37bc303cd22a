package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/inline"
)

const (
	maxMessageSize = 16 << 20
	replyBuffer    = 256
)

var errOutOfSync = errors.New("edit does not match the buffer")

// client is one editor connected over the socket. It mirrors the editor's
// buffer so the engine can read it, and forwards renders, inserts and events
// back as replies.
type client struct {
	id   string
	srv  *Server
	conn net.Conn
	log  *slog.Logger

	out  chan ghostline.Reply
	done chan struct{}

	mu    sync.Mutex
	file  string
	text  string
	caret int
}

func newClient(id string, srv *Server, conn net.Conn) *client {
	return &client{
		id:   id,
		srv:  srv,
		conn: conn,
		log:  srv.log.With("editor", id),
		out:  make(chan ghostline.Reply, replyBuffer),
		done: make(chan struct{}),
	}
}

// serve reads messages until the connection closes.
func (c *client) serve() {
	go c.writeLoop()
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		c.log.Debug("message", "data", string(raw))

		var msg ghostline.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			c.sendError("invalid_request", err.Error())
			continue
		}
		c.handle(&msg)
	}
	if err := scanner.Err(); err != nil {
		c.log.Debug("connection closed", "error", err)
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case r := <-c.out:
			data, err := json.Marshal(r)
			if err != nil {
				c.log.Error("failed to marshal reply", "error", err)
				continue
			}
			c.log.Debug("reply", "data", string(data))
			if _, err := c.conn.Write(append(data, '\n')); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) send(r ghostline.Reply) {
	select {
	case c.out <- r:
	case <-c.done:
	}
}

func (c *client) sendError(code, message string) {
	c.send(ghostline.Reply{Type: ghostline.TypeError, Error: &ghostline.Error{Code: code, Message: message}})
}

func (c *client) handle(msg *ghostline.Message) {
	eng := c.srv.engine
	var err error
	switch msg.Type {
	case ghostline.TypeOpen:
		c.mu.Lock()
		c.file, c.text, c.caret = msg.File, msg.Text, clamp(msg.Caret, len(msg.Text))
		c.mu.Unlock()
		err = eng.Hide(c)
		c.srv.learn(msg.File, msg.Text)

	case ghostline.TypeChange:
		var ch inline.Change
		ch, err = c.applyChange(msg)
		if err == nil {
			err = eng.Handle(inline.DocumentChange{Editor: c, Change: ch})
		}

	case ghostline.TypeCaret:
		c.mu.Lock()
		c.caret = clamp(msg.Caret, len(c.text))
		offset := c.caret
		c.mu.Unlock()
		err = eng.Handle(inline.CaretMove{Editor: c, Offset: offset})

	case ghostline.TypeInvoke:
		err = eng.Handle(inline.DirectCall{Editor: c})
	case ghostline.TypeLookup:
		err = eng.Handle(inline.LookupChange{Editor: c, Item: msg.Item})
	case ghostline.TypeLookupCancel:
		err = eng.Handle(inline.LookupCancel{Editor: c})
	case ghostline.TypeAccept:
		err = eng.Insert(c)
	case ghostline.TypeAcceptWord:
		err = eng.Handle(inline.PartialAccept{Editor: c, Unit: inline.AcceptWord})
	case ghostline.TypeAcceptLine:
		err = eng.Handle(inline.PartialAccept{Editor: c, Unit: inline.AcceptLine})
	case ghostline.TypeEscape:
		err = eng.Hide(c)

	case ghostline.TypeConfig:
		c.send(c.srv.handleConfig(msg.Action))

	default:
		c.sendError("unknown_type", "unknown message type: "+msg.Type)
		return
	}

	switch {
	case errors.Is(err, errOutOfSync):
		c.sendError("out_of_sync", err.Error())
	case err != nil:
		c.log.Warn("message dropped", "type", msg.Type, "error", err)
		c.sendError("unavailable", err.Error())
	}
}

// applyChange updates the mirror with one edit.
func (c *client) applyChange(msg *ghostline.Message) (inline.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := msg.Offset + len(msg.OldText)
	if msg.Offset < 0 || end > len(c.text) || c.text[msg.Offset:end] != msg.OldText {
		return inline.Change{}, fmt.Errorf("%w at offset %d", errOutOfSync, msg.Offset)
	}
	c.text = c.text[:msg.Offset] + msg.NewText + c.text[end:]
	c.caret = clamp(msg.Caret, len(c.text))

	if strings.Contains(msg.NewText, "\n") {
		line := lineBefore(c.text, c.caret)
		go c.srv.learn(c.file, line)
	}
	return inline.Change{
		Offset:     msg.Offset,
		OldText:    msg.OldText,
		NewText:    msg.NewText,
		CaretStays: msg.CaretStays,
	}, nil
}

// currentLine returns the line the caret is on.
func (c *client) currentLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := strings.LastIndexByte(c.text[:c.caret], '\n') + 1
	end := len(c.text)
	if i := strings.IndexByte(c.text[c.caret:], '\n'); i >= 0 {
		end = c.caret + i
	}
	return c.text[start:end]
}

func (c *client) ID() string { return c.id }

func (c *client) File() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

func (c *client) Carets() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []int{c.caret}
}

func (c *client) Document() inline.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return inline.StringDocument(c.text)
}

// Insert applies an accepted suggestion to the mirror and tells the editor
// to do the same.
func (c *client) Insert(offset int, text string) {
	c.mu.Lock()
	offset = clamp(offset, len(c.text))
	c.text = c.text[:offset] + text + c.text[offset:]
	c.mu.Unlock()
	c.send(ghostline.Reply{Type: ghostline.TypeInsert, Offset: offset, Text: text, Caret: offset + len(text)})
}

func (c *client) MoveCaret(offset int) {
	c.mu.Lock()
	c.caret = clamp(offset, len(c.text))
	c.mu.Unlock()
}

func (c *client) Inlays() inline.Renderer { return c }

func (c *client) Render(e inline.Element, offset int) {
	c.send(ghostline.Reply{Type: ghostline.TypeRender, Offset: offset, Text: e.Text})
}

func (c *client) DisposeAll() {
	c.send(ghostline.Reply{Type: ghostline.TypeDispose})
}

// Bounds is unknown: the editor draws the text itself.
func (c *client) Bounds() (inline.Rect, bool) { return inline.Rect{}, false }

func clamp(offset, n int) int {
	return max(0, min(offset, n))
}

// lineBefore returns the line above the one containing offset.
func lineBefore(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n')
	if start < 0 {
		return ""
	}
	prev := strings.LastIndexByte(text[:start], '\n') + 1
	return text[prev:start]
}
