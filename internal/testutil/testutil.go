// Package testutil wires the notebook components over temporary directories
// for transport-level tests.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/archive"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/blob"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/images"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

// Env is a fully wired notebook over a temporary data directory.
type Env struct {
	DataDir  string
	Storage  storage.Provider
	Notebook *notebook.Store
	Index    *index.Indexer
	Blobs    blob.Store
	Images   *images.Library
	Archive  *archive.Transfer
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a SQLite index that is closed when the test ends.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewEnv builds an Env with an in-memory blob store. Observers receive
// notebook events after the index has applied them.
func NewEnv(t *testing.T, observers ...notebook.Observer) *Env {
	t.Helper()
	dir := t.TempDir()
	provider, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := Logger()

	env := &Env{DataDir: dir, Storage: provider, Blobs: blob.NewMemory()}
	opts := []notebook.Option{
		notebook.WithLogger(logger),
		notebook.WithObserver(func(ev notebook.Event) { env.Index.Apply(ev) }),
	}
	for _, o := range observers {
		opts = append(opts, notebook.WithObserver(o))
	}
	env.Notebook = notebook.New(provider, opts...)
	env.Index = index.NewIndexer(TestDB(t), env.Notebook, logger)
	env.Images = images.NewLibrary(images.NewRegistry(provider), env.Blobs, "/uploads",
		images.WithLogger(logger))
	env.Archive = archive.New(env.Notebook, provider,
		archive.WithTempDir(t.TempDir()),
		archive.WithLogger(logger))
	return env
}
