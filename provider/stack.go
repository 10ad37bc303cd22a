package provider

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/generate"
	"github.com/Paranoid-AF/ghostline/index"
	"github.com/Paranoid-AF/ghostline/inline"
)

const historyCacheFile = "history.msgpack"

// Stack is the set of providers built from one configuration, plus the
// stores they learn from.
type Stack struct {
	Providers []inline.Provider

	log       *slog.Logger
	history   *index.Indexer
	words     *Words
	projects  *generate.ProjectCache
	cached    []*Cached
	cachePath string
}

// BuildStack creates the providers listed in cfg.Engine.Providers, in order.
// Unknown ids are skipped; ValidateConfig reports them.
func BuildStack(cfg *ghostline.Config, log *slog.Logger) *Stack {
	if log == nil {
		log = slog.Default()
	}
	s := &Stack{log: log}
	ids := cfg.Engine.Providers

	if slices.Contains(ids, ghostline.ProviderHistory) {
		var embedder *index.Embedder
		if ghostline.EmbeddingEnabled(cfg) {
			embedder = index.NewEmbedder(
				ghostline.ResolveEmbeddingBaseURL(cfg),
				ghostline.ResolveEmbeddingAPIKey(cfg),
				ghostline.ResolveEmbeddingModel(cfg),
			)
		}
		s.history = index.NewIndexer(embedder, cfg.Embedding.MaxHistoryLines,
			time.Duration(cfg.Embedding.TTLMinutes)*time.Minute, log)
		s.cachePath = filepath.Join(ghostline.DataDir(), historyCacheFile)
		if err := s.history.LoadCache(s.cachePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to load history cache", "path", s.cachePath, "error", err)
		}
		go s.history.StartRefreshLoop()
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		var p inline.Provider
		switch id {
		case ghostline.ProviderHistory:
			p = index.NewHistory(s.history)
		case ghostline.ProviderWords:
			s.words = NewWords(cfg.Words.MinPrefix, cfg.Words.MinFrequency)
			if cfg.Words.Path != "" {
				if err := s.words.LoadFile(cfg.Words.Path); err != nil {
					log.Warn("failed to load words", "path", cfg.Words.Path, "error", err)
				}
			}
			// Dictionary lookups are local and cheap; no cache.
			s.Providers = append(s.Providers, s.words)
			continue
		case ghostline.ProviderGeneration:
			s.projects = generate.NewProjectCache(log)
			p = generate.New(cfg, s.history, s.projects, log)
		default:
			log.Warn("unknown provider", "id", id)
			continue
		}
		if cfg.Cache.Capacity > 0 && ttl > 0 {
			c := NewCached(p, ttl, cfg.Cache.Capacity, log)
			s.cached = append(s.cached, c)
			p = c
		}
		s.Providers = append(s.Providers, p)
	}
	log.Info("providers ready", "providers", ids)
	return s
}

// Learn feeds text written in file to the history index and the
// dictionary.
func (s *Stack) Learn(file, text string) {
	if text == "" {
		return
	}
	if s.history != nil {
		s.history.AddText(file, text)
	}
	if s.words != nil {
		s.words.Observe(text)
	}
}

// Close saves the history cache and stops background work.
func (s *Stack) Close() {
	for _, c := range s.cached {
		c.Close()
	}
	if s.projects != nil {
		s.projects.Close()
	}
	if s.history != nil {
		s.history.Close()
		if s.history.Len() > 0 {
			if err := s.history.SaveCache(s.cachePath); err != nil {
				s.log.Warn("failed to save history cache", "path", s.cachePath, "error", err)
			}
		}
	}
}
