// Package index keeps a history of lines the user has written and finds
// earlier lines that extend or follow the text in front of the caret.
package index

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

const (
	indexBatchSize = 32
	// minLineLen is the shortest trimmed line worth remembering.
	minLineLen = 4
)

// line is one remembered line. Text is already redacted.
type line struct {
	Hash string
	Text string
	// Next is the line written after this one, if any.
	Next string
}

// Indexer remembers recent lines in write order and, when an embedder is
// configured, keeps a semantic index over them.
type Indexer struct {
	embedder *Embedder
	maxLines int
	ttl      time.Duration
	log      *slog.Logger

	mu    sync.RWMutex
	order []string          // hashes, oldest first
	lines map[string]*line  // hash -> line
	tails map[string]string // file -> hash of the last line added
	graph *hnsw.Graph[string]

	stopCh    chan struct{}
	initDone  chan struct{}
	initOnce  sync.Once
	closeOnce sync.Once
}

// NewIndexer creates an empty index holding at most maxLines lines.
// If embedder is nil, semantic search is disabled; prefix matching still works.
func NewIndexer(embedder *Embedder, maxLines int, ttl time.Duration, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Indexer{
		embedder: embedder,
		maxLines: max(1, maxLines),
		ttl:      ttl,
		log:      log,
		lines:    make(map[string]*line),
		tails:    make(map[string]string),
		graph:    hnsw.NewGraph[string](),
		stopCh:   make(chan struct{}),
		initDone: make(chan struct{}),
	}
}

// Semantic reports whether an embedder is configured.
func (idx *Indexer) Semantic() bool {
	return idx.embedder != nil
}

// AddText remembers every line of text in order. file selects the
// redaction rules; the first line follows the last one added for file.
func (idx *Indexer) AddText(file, text string) {
	idx.mu.RLock()
	prev := idx.tails[file]
	idx.mu.RUnlock()
	defer func() {
		idx.mu.Lock()
		idx.tails[file] = prev
		idx.mu.Unlock()
	}()
	for raw := range strings.Lines(text) {
		cur := idx.add(file, raw)
		if cur == "" {
			continue
		}
		if prev != "" && prev != cur {
			idx.link(prev, cur)
		}
		prev = cur
	}
}

// Add remembers one line and returns its hash, or "" when the line is too
// short to be useful.
func (idx *Indexer) Add(file, text string) string {
	return idx.add(file, text)
}

func (idx *Indexer) add(file, raw string) string {
	text := strings.TrimSpace(raw)
	if len(text) < minLineLen {
		return ""
	}
	text = Redact(file, text)
	hash := hashLine(text)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.lines[hash]; ok {
		idx.touch(hash)
		return hash
	}
	idx.lines[hash] = &line{Hash: hash, Text: text}
	idx.order = append(idx.order, hash)
	for len(idx.order) > idx.maxLines {
		old := idx.order[0]
		idx.order = idx.order[1:]
		delete(idx.lines, old)
		idx.graph.Delete(old)
	}
	return hash
}

// touch moves hash to the most recent position. Caller holds mu.
func (idx *Indexer) touch(hash string) {
	for i, h := range idx.order {
		if h == hash {
			idx.order = append(append(idx.order[:i:i], idx.order[i+1:]...), hash)
			return
		}
	}
}

func (idx *Indexer) link(prevHash, nextHash string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	prev, ok := idx.lines[prevHash]
	next, ok2 := idx.lines[nextHash]
	if ok && ok2 {
		prev.Next = next.Text
	}
}

// Len returns the number of remembered lines.
func (idx *Indexer) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// Recent returns the last n lines, oldest first.
func (idx *Indexer) Recent(n int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	start := max(0, len(idx.order)-n)
	out := make([]string, 0, len(idx.order)-start)
	for _, h := range idx.order[start:] {
		out = append(out, idx.lines[h].Text)
	}
	return out
}

// MatchRecent returns the most recent line that starts with prefix and is
// longer than it.
func (idx *Indexer) MatchRecent(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for i := len(idx.order) - 1; i >= 0; i-- {
		text := idx.lines[idx.order[i]].Text
		if len(text) > len(prefix) && strings.HasPrefix(text, prefix) {
			return text, true
		}
	}
	return "", false
}

// Successor returns the line last written after a line equal to text.
func (idx *Indexer) Successor(text string) (string, bool) {
	text = strings.TrimSpace(text)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	l, ok := idx.lines[hashLine(text)]
	if !ok || l.Next == "" {
		return "", false
	}
	return l.Next, true
}

// IndexPending embeds every remembered line that is not in the semantic
// index yet.
func (idx *Indexer) IndexPending(ctx context.Context) error {
	if idx.embedder == nil {
		return nil
	}

	idx.mu.RLock()
	var toEmbed []*line
	for _, h := range idx.order {
		if _, exists := idx.graph.Lookup(h); !exists {
			l := *idx.lines[h]
			toEmbed = append(toEmbed, &l)
		}
	}
	idx.mu.RUnlock()

	if len(toEmbed) == 0 {
		return nil
	}

	var nodes []hnsw.Node[string]
	var firstErr error
	for batch := range slices.Chunk(toEmbed, indexBatchSize) {
		texts := make([]string, len(batch))
		for j, l := range batch {
			texts[j] = l.Text
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			idx.log.Warn("batch embed error", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for j, l := range batch {
			nodes = append(nodes, hnsw.MakeNode(l.Hash, vectors[j]))
		}
	}

	// Single graph insertion under one write lock
	if len(nodes) > 0 {
		idx.mu.Lock()
		for _, n := range nodes {
			if _, ok := idx.lines[n.Key]; ok {
				idx.graph.Add(n)
			}
		}
		idx.mu.Unlock()
	}
	return firstErr
}

// StartRefreshLoop indexes pending lines immediately, then every TTL
// interval. It blocks until Close is called. Without an embedder it closes
// InitDone and returns.
func (idx *Indexer) StartRefreshLoop() {
	if idx.embedder == nil {
		idx.initOnce.Do(func() { close(idx.initDone) })
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-idx.stopCh
		cancel()
	}()

	if err := idx.IndexPending(ctx); err != nil {
		idx.log.Warn("initial indexing error", "error", err)
	}
	idx.initOnce.Do(func() { close(idx.initDone) })

	ticker := time.NewTicker(idx.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-idx.stopCh:
			return
		case <-ticker.C:
			if err := idx.IndexPending(ctx); err != nil {
				idx.log.Warn("periodic re-indexing error", "error", err)
			}
		}
	}
}

// InitDone returns a channel that is closed after the first indexing pass.
func (idx *Indexer) InitDone() <-chan struct{} {
	return idx.initDone
}

// SearchRelevant embeds query and returns the topK most similar lines.
func (idx *Indexer) SearchRelevant(ctx context.Context, query string, topK int) ([]string, error) {
	if idx.embedder == nil || topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	empty := idx.graph.Len() == 0
	idx.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	neighbors := idx.graph.Search(queryVec, topK)
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if l, ok := idx.lines[n.Key]; ok {
			out = append(out, l.Text)
		}
	}
	return out, nil
}

// Close stops the refresh loop.
func (idx *Indexer) Close() {
	idx.closeOnce.Do(func() {
		close(idx.stopCh)
	})
}

func hashLine(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
