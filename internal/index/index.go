package index

import "context"

// Key identifies one indexed note.
type Key struct {
	ProjectID string
	NoteID    string
}

// Searcher is the read side used by the HTTP and MCP surfaces.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

var (
	_ Searcher = (*DB)(nil)
	_ Searcher = (*Indexer)(nil)
)
