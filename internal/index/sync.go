package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/parser"
)

// Indexer keeps the DB in step with a notebook.
type Indexer struct {
	db     *DB
	nb     *notebook.Store
	logger *slog.Logger
	resync chan string
}

// NewIndexer creates an Indexer. Call Run to process deferred project resyncs.
func NewIndexer(db *DB, nb *notebook.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, nb: nb, logger: logger, resync: make(chan string, 64)}
}

// DB returns the underlying database.
func (ix *Indexer) DB() *DB { return ix.db }

// Search delegates to the database.
func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	return ix.db.Search(ctx, query, limit)
}

// Sync brings the whole index up to date with the notebook and drops rows of
// projects that no longer exist.
func (ix *Indexer) Sync(ctx context.Context) error {
	projects, err := ix.nb.ListProjects(ctx)
	if err != nil {
		return err
	}
	indexed, err := ix.db.Hashes("")
	if err != nil {
		return err
	}
	live := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		live[p.ID] = struct{}{}
		if err := ix.syncProject(ctx, &p); err != nil {
			ix.logger.Warn("sync: project failed",
				slog.String("project_id", p.ID),
				slog.String("error", err.Error()))
		}
	}
	dropped := make(map[string]struct{})
	for k := range indexed {
		if _, ok := live[k.ProjectID]; ok {
			continue
		}
		if _, done := dropped[k.ProjectID]; done {
			continue
		}
		dropped[k.ProjectID] = struct{}{}
		if err := ix.db.DeleteProject(k.ProjectID); err != nil {
			return err
		}
		ix.logger.Debug("sync: removed stale project", slog.String("project_id", k.ProjectID))
	}
	ix.logger.Info("index synced", slog.Int("projects", len(projects)))
	return nil
}

// SyncProject re-reads one project. A project that no longer exists is dropped.
func (ix *Indexer) SyncProject(ctx context.Context, projectID string) error {
	p, err := ix.nb.GetProject(ctx, projectID)
	if errors.Is(err, apperr.ErrNotFound) {
		return ix.db.DeleteProject(projectID)
	}
	if err != nil {
		return err
	}
	return ix.syncProject(ctx, p)
}

func (ix *Indexer) syncProject(ctx context.Context, p *models.Project) error {
	indexed, err := ix.db.Hashes(p.ID)
	if err != nil {
		return err
	}
	for _, n := range p.Notes {
		k := Key{ProjectID: p.ID, NoteID: n.ID}
		hash, ok := indexed[k]
		delete(indexed, k)
		if ok && hash == n.Hash {
			continue
		}
		if err := ix.RefreshNote(ctx, p.ID, n); err != nil {
			ix.logger.Warn("sync: note failed",
				slog.String("project_id", p.ID),
				slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
		}
	}
	for k := range indexed {
		if err := ix.db.Delete(k.ProjectID, k.NoteID); err != nil {
			return err
		}
	}
	return nil
}

// RefreshNote re-reads a note body and indexes it under the metadata entry.
func (ix *Indexer) RefreshNote(ctx context.Context, projectID string, meta models.NoteMeta) error {
	body, err := ix.nb.NoteBody(ctx, projectID, meta.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		body = ""
	} else if err != nil {
		return err
	}
	return ix.put(projectID, meta.ID, meta.Title, meta.Hash, body, meta.UpdatedAt)
}

func (ix *Indexer) put(projectID, noteID, title, hash, body string, updated time.Time) error {
	doc := parser.Parse(body)
	return ix.db.Upsert(Row{
		ProjectID: projectID,
		NoteID:    noteID,
		Title:     title,
		Hash:      hash,
		Tags:      doc.Tags,
		UpdatedAt: updated,
	}, body)
}

// Apply is a notebook.Observer. It only touches the database; changes that
// need the notebook are queued for Run.
func (ix *Indexer) Apply(ev notebook.Event) {
	var err error
	switch ev.Kind {
	case notebook.NoteCreated, notebook.NoteUpdated:
		err = ix.put(ev.ProjectID, ev.NoteID, ev.Title, ev.Hash, ev.Body, time.Now())
	case notebook.NoteDeleted:
		err = ix.db.Delete(ev.ProjectID, ev.NoteID)
	case notebook.NoteMoved:
		err = ix.db.Move(ev.FromProjectID, ev.ProjectID, ev.NoteID)
	case notebook.ProjectDeleted:
		err = ix.db.DeleteProject(ev.ProjectID)
	case notebook.ProjectImported:
		ix.Resync(ev.ProjectID)
	}
	if err != nil {
		ix.logger.Warn("index: apply event failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("project_id", ev.ProjectID),
			slog.String("note_id", ev.NoteID),
			slog.String("error", err.Error()))
	}
}

// Resync queues a project for SyncProject. A full queue drops the request.
func (ix *Indexer) Resync(projectID string) {
	select {
	case ix.resync <- projectID:
	default:
		ix.logger.Warn("index: resync queue full", slog.String("project_id", projectID))
	}
}

// Run processes queued resyncs until ctx is cancelled.
func (ix *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-ix.resync:
			if err := ix.SyncProject(ctx, id); err != nil {
				ix.logger.Warn("index: resync failed",
					slog.String("project_id", id),
					slog.String("error", err.Error()))
			}
		}
	}
}
