package generate

import (
	"context"
	"path/filepath"

	"github.com/Paranoid-AF/ghostline/index"
)

const (
	recentLines  = 8
	relatedLines = 5
)

// Info holds gathered context for a generation request.
type Info struct {
	Recent  []string
	Related []string
	Project *Project
}

// Gatherer collects context for generation requests.
type Gatherer struct {
	history  *index.Indexer
	projects *ProjectCache
}

// NewGatherer creates a context gatherer. history may be nil.
func NewGatherer(history *index.Indexer, projects *ProjectCache) *Gatherer {
	return &Gatherer{history: history, projects: projects}
}

// Gather collects context for a request on file whose current line is
// query. It never waits for indexing or project inspection; what is not
// ready yet is left out and started in the background.
func (g *Gatherer) Gather(ctx context.Context, file, query string) *Info {
	info := &Info{}

	if g.projects != nil && file != "" {
		dir := filepath.Dir(file)
		if p := g.projects.Get(dir); p != nil {
			info.Project = p
		} else {
			go g.projects.Gather(context.WithoutCancel(ctx), dir)
		}
	}

	if g.history == nil {
		return info
	}
	info.Recent = g.history.Recent(recentLines)

	if g.history.Semantic() && query != "" {
		select {
		case <-g.history.InitDone():
			if lines, err := g.history.SearchRelevant(ctx, index.Redact(file, query), relatedLines); err == nil {
				info.Related = lines
			}
		default:
			// Indexing still in progress, skip semantic search
		}
	}
	return info
}
