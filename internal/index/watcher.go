package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
)

const settleDelay = 200 * time.Millisecond

// DriftFunc receives a report for each note body found not to match its stored hash.
type DriftFunc func(models.HashReport)

type pendingProject struct {
	resync bool
	notes  map[string]struct{}
}

// Watch follows the data directory until ctx is cancelled. Edits to note
// bodies made outside the notebook are verified, reported to onDrift when
// they no longer match the stored hash, and re-indexed. Metadata changes and
// project directories appearing or disappearing trigger a project resync.
// Events are batched until the directory has been quiet for a short while.
func Watch(ctx context.Context, ix *Indexer, root string, onDrift DriftFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	ix.logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]*pendingProject)
	mark := func(projectID string) *pendingProject {
		pp, ok := pending[projectID]
		if !ok {
			pp = &pendingProject{notes: make(map[string]struct{})}
			pending[projectID] = pp
		}
		return pp
	}

	var timer *time.Timer
	var settled <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(settleDelay)
			settled = timer.C
			return
		}
		timer.Reset(settleDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-settled:
			batch := pending
			pending = make(map[string]*pendingProject)
			ix.flush(ctx, batch, onDrift)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if hidden(parts[0]) || !notebook.ValidID(parts[0]) {
				continue
			}
			projectID := parts[0]

			switch len(parts) {
			case 1:
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					info, err := os.Stat(ev.Name)
					if err != nil || !info.IsDir() {
						continue
					}
					if err := w.Add(ev.Name); err != nil {
						ix.logger.Warn("watcher: add dir failed",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
				}
				mark(projectID).resync = true
				schedule()

			case 2:
				name := parts[1]
				switch {
				case hidden(name):
					continue
				case name == notebook.MetadataFile:
					mark(projectID).resync = true
				case strings.HasSuffix(name, notebook.NoteExt):
					pp := mark(projectID)
					if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
						pp.notes[strings.TrimSuffix(name, notebook.NoteExt)] = struct{}{}
					} else {
						pp.resync = true
					}
				default:
					continue
				}
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (ix *Indexer) flush(ctx context.Context, batch map[string]*pendingProject, onDrift DriftFunc) {
	for projectID, pp := range batch {
		if pp.resync {
			if err := ix.SyncProject(ctx, projectID); err != nil {
				ix.logger.Warn("watcher: resync failed",
					slog.String("project_id", projectID),
					slog.String("error", err.Error()))
			}
		}
		for noteID := range pp.notes {
			ix.checkNote(ctx, projectID, noteID, onDrift)
		}
	}
}

// checkNote verifies one body. Files that are not listed notes are ignored.
func (ix *Indexer) checkNote(ctx context.Context, projectID, noteID string, onDrift DriftFunc) {
	report, err := ix.nb.VerifyNote(ctx, projectID, noteID)
	if errors.Is(err, apperr.ErrNotFound) {
		return
	}
	if err != nil {
		ix.logger.Warn("watcher: verify failed",
			slog.String("project_id", projectID),
			slog.String("note_id", noteID),
			slog.String("error", err.Error()))
		return
	}
	if report.Valid {
		return
	}
	ix.logger.Warn("note body changed outside the notebook",
		slog.String("project_id", projectID),
		slog.String("note_id", noteID),
		slog.String("stored_hash", report.StoredHash),
		slog.String("current_hash", report.CurrentHash))
	if onDrift != nil {
		onDrift(report)
	}

	p, err := ix.nb.GetProject(ctx, projectID)
	if err != nil {
		return
	}
	if meta, ok := p.Note(noteID); ok {
		if err := ix.RefreshNote(ctx, projectID, *meta); err != nil {
			ix.logger.Warn("watcher: reindex failed",
				slog.String("project_id", projectID),
				slog.String("note_id", noteID),
				slog.String("error", err.Error()))
		}
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
