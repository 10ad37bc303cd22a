// Package generate streams inline suggestions from a language model.
package generate

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/template"

	ghostline "github.com/Paranoid-AF/ghostline"
	defaults "github.com/Paranoid-AF/ghostline/default"
	"github.com/Paranoid-AF/ghostline/index"
	"github.com/Paranoid-AF/ghostline/inline"
)

// GenerationID is the provider id of Provider.
const GenerationID = "generation"

const (
	beforeMaxBytes = 2000
	afterMaxBytes  = 500
)

// ErrNotConfigured is returned when no generation API key is set.
var ErrNotConfigured = errors.New("generation API key not configured; set GHOSTLINE_GENERATION_API_KEY")

// userMessage asks for the continuation; the context is in the system prompt.
const userMessage = "Continue the text at <CARET>."

// Provider suggests a continuation of the text before the caret.
type Provider struct {
	client    *Client
	gatherer  *Gatherer
	prompt    *template.Template
	multiline bool
	log       *slog.Logger
}

// New creates a generation provider from cfg. history may be nil. A custom
// prompt at ghostline.PromptPath replaces the built-in one.
func New(cfg *ghostline.Config, history *index.Indexer, projects *ProjectCache, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		cfg = ghostline.DefaultConfig()
	}

	var client *Client
	if key := ghostline.ResolveGenerationAPIKey(cfg); key != "" {
		client = NewClient(
			ghostline.ResolveGenerationBaseURL(cfg),
			key,
			ghostline.ResolveGenerationModel(cfg),
			cfg.Generation.MaxTokens,
			cfg.Generation.Temperature,
			cfg.Generation.Stop,
		)
	} else {
		log.Warn("generation API key not configured")
	}

	return &Provider{
		client:    client,
		gatherer:  NewGatherer(history, projects),
		prompt:    parsePrompt(loadCustomPrompt(log), log),
		multiline: ghostline.Multiline(cfg),
		log:       log,
	}
}

// loadCustomPrompt returns the user's prompt template, or "".
func loadCustomPrompt(log *slog.Logger) string {
	path := ghostline.PromptPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	log.Info("loaded custom prompt", "path", path)
	return string(data)
}

// parsePrompt parses src, falling back to the built-in template.
func parsePrompt(src string, log *slog.Logger) *template.Template {
	if src != "" {
		t, err := template.New("prompt").Parse(src)
		if err == nil {
			return t
		}
		log.Warn("failed to parse prompt template, falling back to default", "error", err)
	}
	return template.Must(template.New("prompt").Parse(defaults.DefaultPrompt))
}

func (p *Provider) ID() string { return GenerationID }

// Configured reports whether an API key is set.
func (p *Provider) Configured() bool { return p.client != nil }

// IsEnabled accepts explicit calls and typing, but not popup changes.
func (p *Provider) IsEnabled(t inline.Trigger) bool {
	if p.client == nil {
		return false
	}
	switch t := t.(type) {
	case inline.DirectCall, inline.LookupCancel:
		return true
	case inline.DocumentChange:
		return t.Typing != nil
	}
	return false
}

// PromptData holds the data passed to the prompt template.
type PromptData struct {
	File      string
	Multiline bool
	Recent    []string
	Related   []string
	Project   *Project
	Before    string
	After     string
}

func (p *Provider) Proposals(ctx context.Context, req *inline.Request) iter.Seq2[inline.Element, error] {
	return func(yield func(inline.Element, error) bool) {
		if p.client == nil {
			yield(inline.Element{}, ErrNotConfigured)
			return
		}

		doc := req.Document
		linePrefix := inline.LinePrefix(doc, req.EndOffset)
		info := p.gatherer.Gather(ctx, req.File, strings.TrimSpace(linePrefix))
		data := PromptData{
			File:      req.File,
			Multiline: p.multiline,
			Recent:    info.Recent,
			Related:   info.Related,
			Project:   info.Project,
			Before:    index.Redact(req.File, doc.Slice(req.EndOffset-beforeMaxBytes, req.EndOffset)),
			After:     index.Redact(req.File, doc.Slice(req.EndOffset, req.EndOffset+afterMaxBytes)),
		}
		var sb strings.Builder
		if err := p.prompt.Execute(&sb, data); err != nil {
			yield(inline.Element{}, err)
			return
		}
		system := strings.TrimRight(sb.String(), " \t\n")
		p.log.Debug("prompt", "system", system)

		clean := newCleaner(linePrefix, p.multiline)
		chunk := 0
		emit := func(text string) bool {
			if text == "" {
				return true
			}
			chunk++
			return yield(inline.Element{Text: text, Meta: map[string]string{"chunk": strconv.Itoa(chunk)}}, nil)
		}
		for delta, err := range p.client.Stream(ctx, system, userMessage) {
			if err != nil {
				yield(inline.Element{}, err)
				return
			}
			if !emit(clean.feed(delta)) || clean.done {
				return
			}
		}
		emit(clean.finish())
	}
}
