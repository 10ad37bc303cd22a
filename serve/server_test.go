package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/inline"
	"github.com/Paranoid-AF/ghostline/provider"
)

// staticProvider suggests the same text for every request.
type staticProvider struct {
	id    string
	parts []string
	err   error
	// block holds Proposals until closed or cancelled.
	block chan struct{}
}

func (p *staticProvider) ID() string { return p.id }

func (p *staticProvider) IsEnabled(t inline.Trigger) bool {
	switch t := t.(type) {
	case inline.DirectCall:
		return true
	case inline.DocumentChange:
		return t.Typing != nil
	}
	return false
}

func (p *staticProvider) Proposals(ctx context.Context, _ *inline.Request) iter.Seq2[inline.Element, error] {
	return func(yield func(inline.Element, error) bool) {
		if p.block != nil {
			select {
			case <-p.block:
			case <-ctx.Done():
				yield(inline.Element{}, ctx.Err())
				return
			}
		}
		for _, part := range p.parts {
			if !yield(inline.Element{Text: part}, nil) {
				return
			}
		}
		if p.err != nil {
			yield(inline.Element{}, p.err)
		}
	}
}

func staticBuild(ps ...inline.Provider) BuildFunc {
	return func(*ghostline.Config, *slog.Logger) *provider.Stack {
		return &provider.Stack{Providers: ps}
	}
}

var testSocketCounter atomic.Int64

func testConfig(t *testing.T) *ghostline.Config {
	t.Helper()
	t.Setenv("GHOSTLINE_CONFIG_DIR", t.TempDir())
	t.Setenv("GHOSTLINE_GENERATION_API_KEY", "")
	t.Setenv("GHOSTLINE_EMBEDDING_API_KEY", "")
	cfg := ghostline.DefaultConfig()
	cfg.Engine.DebounceMS = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *ghostline.Config, build BuildFunc) *Server {
	t.Helper()
	// Use /tmp directly to avoid macOS 104-char Unix socket path limit
	n := testSocketCounter.Add(1)
	sockPath := fmt.Sprintf("/tmp/ghostline-t%d-%d.sock", time.Now().UnixNano()%1e6, n)
	srv, err := NewServer(sockPath, Options{Config: cfg, Build: build})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	go srv.Serve()
	return srv
}

type testConn struct {
	t       *testing.T
	conn    net.Conn
	scanner *bufio.Scanner
}

func dial(t *testing.T, srv *Server) *testConn {
	t.Helper()
	conn, err := net.Dial("unix", srv.sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn, scanner: bufio.NewScanner(conn)}
}

func (c *testConn) send(msg ghostline.Message) {
	c.t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	_, err = c.conn.Write(append(data, '\n'))
	require.NoError(c.t, err)
}

func (c *testConn) next() (ghostline.Reply, bool) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if !c.scanner.Scan() {
		return ghostline.Reply{}, false
	}
	var r ghostline.Reply
	require.NoError(c.t, json.Unmarshal(c.scanner.Bytes(), &r))
	return r, true
}

// waitFor reads replies until match accepts one.
func (c *testConn) waitFor(match func(ghostline.Reply) bool) ghostline.Reply {
	c.t.Helper()
	for {
		r, ok := c.next()
		if !ok {
			c.t.Fatal("no matching reply from server")
		}
		if match(r) {
			return r
		}
	}
}

func ofType(typ string) func(ghostline.Reply) bool {
	return func(r ghostline.Reply) bool { return r.Type == typ }
}

func event(name string) func(ghostline.Reply) bool {
	return func(r ghostline.Reply) bool { return r.Type == ghostline.TypeEvent && r.Event == name }
}

func TestConfigDefaults(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeConfig, Action: "defaults"})
	r := c.waitFor(ofType(ghostline.TypeConfig))
	require.NotNil(t, r.Config)
	require.Equal(t, 75, r.Config.Engine.DebounceMS)
	require.Nil(t, r.Error)
}

func TestConfigDefaultPrompt(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeConfig, Action: "default_prompt"})
	r := c.waitFor(ofType(ghostline.TypeConfig))
	require.Contains(t, r.Prompt, "<CARET>")
}

func TestConfigValidate(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeConfig, Action: "validate"})
	r := c.waitFor(ofType(ghostline.TypeConfig))
	require.Nil(t, r.Error)
	// Defaults enable generation without an API key.
	require.NotEmpty(t, r.Warnings)
}

func TestConfigUnknownAction(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeConfig, Action: "explode"})
	r := c.waitFor(ofType(ghostline.TypeConfig))
	require.NotNil(t, r.Error)
	require.Equal(t, "unknown_action", r.Error.Code)
}

func TestUnknownMessageType(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: "teleport"})
	r := c.waitFor(ofType(ghostline.TypeError))
	require.Equal(t, "unknown_type", r.Error.Code)
}

func TestInvalidJSON(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	_, err := c.conn.Write([]byte("{not json\n"))
	require.NoError(t, err)
	r := c.waitFor(ofType(ghostline.TypeError))
	require.Equal(t, "invalid_request", r.Error.Code)
}

func TestChangeOutOfSync(t *testing.T) {
	srv := newTestServer(t, testConfig(t), staticBuild())
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeOpen, File: "a.go", Text: "abc", Caret: 3})
	c.send(ghostline.Message{Type: ghostline.TypeChange, Offset: 1, OldText: "x", NewText: "y", Caret: 2})
	r := c.waitFor(ofType(ghostline.TypeError))
	require.Equal(t, "out_of_sync", r.Error.Code)
}

func TestProviderErrorIsForwarded(t *testing.T) {
	p := &staticProvider{id: "flaky", parts: []string{"par"}, err: errors.New("quota exceeded")}
	srv := newTestServer(t, testConfig(t), staticBuild(p))
	c := dial(t, srv)

	c.send(ghostline.Message{Type: ghostline.TypeOpen, File: "a.go", Text: "x", Caret: 1})
	c.send(ghostline.Message{Type: ghostline.TypeInvoke})
	r := c.waitFor(event("completion"))
	require.NotNil(t, r.Error)
	require.Equal(t, "provider_error", r.Error.Code)
	require.Contains(t, r.Error.Message, "quota exceeded")
	c.waitFor(event("hide"))
}

func TestLineBefore(t *testing.T) {
	tests := []struct {
		text   string
		offset int
		want   string
	}{
		{"one\ntwo\n", 8, "two"},
		{"one\ntwo", 5, "one"},
		{"one", 3, ""},
		{"\nx", 2, ""},
	}
	for _, tt := range tests {
		if got := lineBefore(tt.text, tt.offset); got != tt.want {
			t.Errorf("lineBefore(%q, %d) = %q, want %q", tt.text, tt.offset, got, tt.want)
		}
	}
}
