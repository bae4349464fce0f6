package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/archive"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/blob"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/images"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/metrics"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/sse"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

const changeThrottle = 2 * time.Second

// Components is the wired notebook shared by the server and the CLI commands.
type Components struct {
	Config   *Config
	Logger   *slog.Logger
	Storage  storage.Provider
	Metrics  *metrics.Metrics
	Broker   *sse.Broker
	Notebook *notebook.Store
	Blobs    blob.Store
	Images   *images.Library
	Archive  *archive.Transfer
	DB       *index.DB
	Index    *index.Indexer
}

// NewLogger returns the JSON logger used by every component.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open creates the data directory and wires every component over it.
// Notebook events reach the search index first, then the SSE broker.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	provider, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Storage: provider,
		Broker:  sse.NewBroker(changeThrottle),
	}
	if cfg.Metrics.Enabled {
		c.Metrics = metrics.New()
	}

	c.Notebook = notebook.New(provider,
		notebook.WithLogger(logger),
		notebook.WithMetrics(c.Metrics),
		notebook.WithObserver(func(ev notebook.Event) { c.Index.Apply(ev) }),
		notebook.WithObserver(c.Broker.Notebook),
	)

	if cfg.Images.Driver == string(blob.DriverFilesystem) {
		if err := os.MkdirAll(cfg.Images.FS.Root, 0o755); err != nil {
			c.Broker.Close()
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
	}
	c.Blobs, err = blob.Open(ctx, cfg.Images.Blob())
	if err != nil {
		c.Broker.Close()
		return nil, fmt.Errorf("init image storage: %w", err)
	}
	c.Images = images.NewLibrary(images.NewRegistry(provider), c.Blobs, cfg.Images.BaseURL,
		images.WithAllowedExtensions(cfg.Images.AllowedExtensions),
		images.WithLogger(logger),
		images.WithMetrics(c.Metrics),
		images.WithNotifier(c.Broker.Image),
	)

	filter, err := archive.NewFilter(cfg.Archive.Allow, cfg.Archive.Deny)
	if err != nil {
		c.Broker.Close()
		return nil, fmt.Errorf("archive filter: %w", err)
	}
	c.Archive = archive.New(c.Notebook, provider,
		archive.WithFilter(filter),
		archive.WithMaxBytes(cfg.Archive.MaxBytes),
		archive.WithLogger(logger),
		archive.WithMetrics(c.Metrics),
	)

	c.DB, err = index.Open(cfg.SQLite.Path)
	if err != nil {
		c.Broker.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}
	c.Index = index.NewIndexer(c.DB, c.Notebook, logger)
	return c, nil
}

// Close releases the index and stops the broker.
func (c *Components) Close() error {
	c.Broker.Close()
	return c.DB.Close()
}
