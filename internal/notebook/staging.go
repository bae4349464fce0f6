package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

const stagingPrefix = ".staging-"

// Staging is a hidden directory reserved for a project that is still being
// assembled. It is invisible to every read operation until committed.
type Staging struct {
	ID  string
	Dir string
}

// Path returns the provider-relative path of name inside the staging dir.
func (st Staging) Path(name string) string {
	return path.Join(st.Dir, name)
}

// Stage reserves a fresh project id and creates its staging directory.
func (s *Store) Stage(_ context.Context) (Staging, error) {
	id := s.newID()
	st := Staging{ID: id, Dir: stagingPrefix + id}
	if err := s.fs.MkdirAll(st.Dir); err != nil {
		return Staging{}, fmt.Errorf("notebook: create staging dir: %w", err)
	}
	return st, nil
}

// Discard removes a staging directory and everything written into it.
func (s *Store) Discard(_ context.Context, st Staging) error {
	if err := s.fs.RemoveAll(st.Dir); err != nil {
		return fmt.Errorf("notebook: discard staging dir: %w", err)
	}
	return nil
}

// Commit validates the staged metadata, assigns the staged id and fresh
// timestamps, and renames the directory into place. Note entries are kept
// as-is; bodies missing from the staged directory are logged.
// Returns apperr.ErrNotFound when no metadata was staged and
// apperr.ErrCorrupt when it does not parse.
func (s *Store) Commit(_ context.Context, st Staging) (p *models.Project, err error) {
	defer s.observe("commit_import", time.Now(), &err)

	unlock := s.locks.Lock(st.ID)
	defer unlock()

	data, err := s.fs.Read(st.Path(MetadataFile))
	if err != nil {
		return nil, notFoundOr(err, "notebook: read staged metadata")
	}
	p, err = decodeMetadata(data)
	if err != nil {
		return nil, err
	}
	originalID := p.ID
	now := s.now()
	p.ID = st.ID
	p.CreatedAt = now
	p.UpdatedAt = now

	encoded, err := encodeMetadata(p)
	if err != nil {
		return nil, fmt.Errorf("notebook: encode metadata %s: %w", p.ID, err)
	}
	if err := s.fs.Write(st.Path(MetadataFile), encoded); err != nil {
		return nil, fmt.Errorf("notebook: write staged metadata: %w", err)
	}
	for _, n := range p.Notes {
		ok, err := s.fs.Exists(st.Path(n.ID + NoteExt))
		if err != nil {
			return nil, fmt.Errorf("notebook: check staged note: %w", err)
		}
		if !ok {
			s.logger.Warn("imported metadata lists a note without a body",
				slog.String("project_id", p.ID),
				slog.String("note_id", n.ID))
		}
	}
	if err := s.fs.Move(st.Dir, p.ID); err != nil {
		return nil, fmt.Errorf("notebook: commit staged project: %w", err)
	}

	s.logger.Info("project imported",
		slog.String("project_id", p.ID),
		slog.String("original_id", originalID),
		slog.Int("notes", len(p.Notes)))
	s.emit(Event{Kind: ProjectImported, ProjectID: p.ID, Title: p.Name})
	return view(p), nil
}
