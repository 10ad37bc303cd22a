// Package ghostline defines the wire protocol between editors and the
// ghostline daemon, and the daemon's configuration.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
package ghostline

// Message types sent by the editor.
const (
	TypeOpen         = "open"
	TypeChange       = "change"
	TypeCaret        = "caret"
	TypeInvoke       = "invoke"
	TypeLookup       = "lookup"
	TypeLookupCancel = "lookup_cancel"
	TypeAccept       = "accept"
	TypeAcceptWord   = "accept_word"
	TypeAcceptLine   = "accept_line"
	TypeEscape       = "escape"
	TypeConfig       = "config"
)

// Reply types sent by the daemon.
const (
	TypeRender  = "render"
	TypeDispose = "dispose"
	TypeInsert  = "insert"
	TypeEvent   = "event"
	TypeError   = "error"
)

// Message is sent from the editor to the daemon. Which fields are set
// depends on Type.
type Message struct {
	Type string `json:"type"`

	// File is the path of the edited file ("open"). Empty means the buffer
	// has no file and never gets suggestions.
	File string `json:"file,omitempty"`
	// Text is the full buffer ("open").
	Text string `json:"text,omitempty"`
	// Caret is the caret byte offset after the message applies ("open",
	// "change", "caret").
	Caret int `json:"caret"`

	// Offset, OldText and NewText describe one edit ("change").
	Offset  int    `json:"offset,omitempty"`
	OldText string `json:"old_text,omitempty"`
	NewText string `json:"new_text,omitempty"`
	// CaretStays is set when the editor auto-inserted a closer and kept the
	// caret in front of it ("change").
	CaretStays bool `json:"caret_stays,omitempty"`

	// Item is the selected completion popup entry ("lookup").
	Item string `json:"item,omitempty"`

	// Action is the config operation: "get", "reload", "defaults",
	// "default_prompt" or "validate" ("config").
	Action string `json:"action,omitempty"`
}

// Reply is sent from the daemon to the editor.
type Reply struct {
	Type string `json:"type"`

	// Offset and Text carry virtual text to draw ("render") or text to
	// write into the buffer ("insert").
	Offset int    `json:"offset,omitempty"`
	Text   string `json:"text,omitempty"`
	// Caret is where the caret goes after an insert ("insert").
	Caret int `json:"caret,omitempty"`

	// Event names a notification ("event"), e.g. "show" or "completion".
	Event    string `json:"event,omitempty"`
	Provider string `json:"provider,omitempty"`

	// Config, Prompt and Warnings answer a "config" message.
	Config   *Config  `json:"config,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Error is set when the daemon cannot fulfil a message, or on a
	// "completion" event whose provider failed.
	Error *Error `json:"error,omitempty"`
}

// Error describes a daemon-side error returned to the editor.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "bad_request",
	// "provider_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}
