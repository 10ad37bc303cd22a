package index

import (
	"fmt"
	"os"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
	"github.com/vmihailenco/msgpack/v5"
)

type cacheFile struct {
	Model string       `msgpack:"model"`
	Lines []cacheEntry `msgpack:"lines"`
}

type cacheEntry struct {
	Hash      string    `msgpack:"hash"`
	Text      string    `msgpack:"text"`
	Next      string    `msgpack:"next,omitempty"`
	Embedding []float32 `msgpack:"embedding,omitempty"`
}

// EmbeddingModel returns the model name used by the embedder, or empty if disabled.
func (idx *Indexer) EmbeddingModel() string {
	if idx.embedder == nil {
		return ""
	}
	return idx.embedder.Model()
}

// SaveCache writes the remembered lines and their embeddings to path.
func (idx *Indexer) SaveCache(path string) error {
	idx.mu.RLock()
	cf := cacheFile{
		Model: idx.EmbeddingModel(),
		Lines: make([]cacheEntry, 0, len(idx.order)),
	}
	for _, h := range idx.order {
		l := idx.lines[h]
		entry := cacheEntry{Hash: h, Text: l.Text, Next: l.Next}
		if vec, ok := idx.graph.Lookup(h); ok {
			entry.Embedding = vec
		}
		cf.Lines = append(cf.Lines, entry)
	}
	idx.mu.RUnlock()

	data, err := msgpack.Marshal(&cf)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o600)
}

// LoadCache restores lines saved by SaveCache. Embeddings made with a
// different model are dropped and recomputed by the next indexing pass.
func (idx *Indexer) LoadCache(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := msgpack.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	keepVectors := cf.Model != "" && cf.Model == idx.EmbeddingModel()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	var nodes []hnsw.Node[string]
	for _, e := range cf.Lines {
		if _, ok := idx.lines[e.Hash]; ok {
			continue
		}
		idx.lines[e.Hash] = &line{Hash: e.Hash, Text: e.Text, Next: e.Next}
		idx.order = append(idx.order, e.Hash)
		if keepVectors && len(e.Embedding) > 0 {
			nodes = append(nodes, hnsw.MakeNode(e.Hash, e.Embedding))
		}
	}
	for len(idx.order) > idx.maxLines {
		delete(idx.lines, idx.order[0])
		idx.order = idx.order[1:]
	}
	for _, n := range nodes {
		if _, ok := idx.lines[n.Key]; ok {
			idx.graph.Add(n)
		}
	}

	if len(nodes) > 0 {
		// Searches can use cached vectors before the first indexing pass.
		idx.initOnce.Do(func() { close(idx.initDone) })
	}
	return nil
}
