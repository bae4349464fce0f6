package notebook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/checksum"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/metrics"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

// CreateNote adds a note with the placeholder body. An empty title becomes "Untitled".
func (s *Store) CreateNote(_ context.Context, projectID, title string) (note *models.NoteMeta, err error) {
	defer s.observe("create_note", time.Now(), &err)

	if strings.TrimSpace(title) == "" {
		title = DefaultNoteTitle
	}
	var created models.NoteMeta
	_, err = s.update(projectID, func(p *models.Project) (Event, error) {
		id := s.newID()
		if err := s.fs.Write(notePath(projectID, id), []byte(PlaceholderBody)); err != nil {
			return Event{}, fmt.Errorf("notebook: write note body: %w", err)
		}
		now := s.now()
		created = models.NoteMeta{
			ID:        id,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
			Hash:      checksum.SumString(PlaceholderBody),
		}
		p.Notes = append(p.Notes, created)
		p.UpdatedAt = now
		return Event{
			Kind:      NoteCreated,
			ProjectID: projectID,
			NoteID:    id,
			Title:     title,
			Hash:      created.Hash,
			Body:      PlaceholderBody,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// NoteBody reads the note file directly. Metadata is not consulted.
func (s *Store) NoteBody(_ context.Context, projectID, noteID string) (body string, err error) {
	defer s.observe("note_body", time.Now(), &err)

	if !ValidID(projectID) || !ValidID(noteID) {
		return "", apperr.ErrNotFound
	}
	data, err := s.fs.Read(notePath(projectID, noteID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("notebook: read note: %w", err)
	}
	return string(data), nil
}

// UpdateNote replaces a note's title and body and refreshes its digest.
func (s *Store) UpdateNote(_ context.Context, projectID, noteID, title, content string) (note *models.NoteMeta, err error) {
	defer s.observe("update_note", time.Now(), &err)

	if err := (validation.Errors{
		"title":   validation.Validate(title, validation.Required),
		"content": validation.Validate(content, validation.Required),
	}).Filter(); err != nil {
		return nil, apperr.FromValidation(err)
	}

	var updated models.NoteMeta
	_, err = s.update(projectID, func(p *models.Project) (Event, error) {
		meta, ok := p.Note(noteID)
		if !ok {
			return Event{}, apperr.ErrNotFound
		}
		if err := s.fs.Write(notePath(projectID, noteID), []byte(content)); err != nil {
			return Event{}, fmt.Errorf("notebook: write note body: %w", err)
		}
		now := s.now()
		meta.Title = title
		meta.Hash = checksum.SumString(content)
		meta.UpdatedAt = now
		p.UpdatedAt = now
		updated = *meta
		return Event{
			Kind:      NoteUpdated,
			ProjectID: projectID,
			NoteID:    noteID,
			Title:     title,
			Hash:      meta.Hash,
			Body:      content,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteNote removes the note entry and its body. A body already gone is not an error.
func (s *Store) DeleteNote(_ context.Context, projectID, noteID string) (err error) {
	defer s.observe("delete_note", time.Now(), &err)

	bodyRemoved := false
	_, err = s.update(projectID, func(p *models.Project) (Event, error) {
		if _, ok := p.RemoveNote(noteID); !ok {
			return Event{}, apperr.ErrNotFound
		}
		if err := s.fs.Delete(notePath(projectID, noteID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Event{}, fmt.Errorf("notebook: delete note body: %w", err)
		}
		bodyRemoved = true
		p.UpdatedAt = s.now()
		return Event{Kind: NoteDeleted, ProjectID: projectID, NoteID: noteID}, nil
	})
	if err != nil && bodyRemoved {
		s.logger.Error("note body deleted but metadata still lists it",
			slog.String("project_id", projectID),
			slog.String("note_id", noteID),
			slog.String("error", err.Error()))
	}
	return err
}

// MoveNote relocates a note body and its metadata entry to another project.
// The two metadata writes are not atomic; a failure between them is logged
// with both project ids.
func (s *Store) MoveNote(_ context.Context, sourceID, targetID, noteID string) (err error) {
	defer s.observe("move_note", time.Now(), &err)

	if sourceID == targetID {
		return apperr.Invalid("source and target project are the same")
	}
	if !ValidID(sourceID) || !ValidID(targetID) || !ValidID(noteID) {
		return apperr.ErrNotFound
	}
	unlock := s.locks.LockPair(sourceID, targetID)
	defer unlock()

	source, err := s.load(sourceID)
	if err != nil {
		return err
	}
	target, err := s.load(targetID)
	if err != nil {
		return err
	}
	meta, ok := source.RemoveNote(noteID)
	if !ok {
		return apperr.ErrNotFound
	}
	exists, err := s.fs.Exists(notePath(sourceID, noteID))
	if err != nil {
		return fmt.Errorf("notebook: move note: %w", err)
	}
	if !exists {
		return apperr.ErrNotFound
	}

	if err := s.fs.Move(notePath(sourceID, noteID), notePath(targetID, noteID)); err != nil {
		return fmt.Errorf("notebook: move note body: %w", err)
	}

	now := s.now()
	source.UpdatedAt = now
	if err := s.save(source); err != nil {
		s.logger.Error("note body moved but source metadata still lists it",
			slog.String("project_id", sourceID),
			slog.String("target_project_id", targetID),
			slog.String("note_id", noteID),
			slog.String("error", err.Error()))
		return err
	}

	meta.UpdatedAt = now
	target.Notes = append(target.Notes, meta)
	target.UpdatedAt = now
	if err := s.save(target); err != nil {
		s.logger.Error("note removed from source but target metadata not written",
			slog.String("project_id", sourceID),
			slog.String("target_project_id", targetID),
			slog.String("note_id", noteID),
			slog.String("error", err.Error()))
		return err
	}

	s.emit(Event{
		Kind:          NoteMoved,
		ProjectID:     targetID,
		FromProjectID: sourceID,
		NoteID:        noteID,
		Title:         meta.Title,
		Hash:          meta.Hash,
	})
	return nil
}

// VerifyNote compares the stored digest with the digest of the body on disk.
func (s *Store) VerifyNote(_ context.Context, projectID, noteID string) (report models.HashReport, err error) {
	defer s.observe("verify_note", time.Now(), &err)

	if !ValidID(projectID) || !ValidID(noteID) {
		return models.HashReport{}, apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	p, err := s.load(projectID)
	if err != nil {
		return models.HashReport{}, err
	}
	meta, ok := p.Note(noteID)
	if !ok {
		return models.HashReport{}, apperr.ErrNotFound
	}
	report, err = s.verify(projectID, *meta)
	if err != nil {
		return models.HashReport{}, err
	}
	if report.Missing {
		return models.HashReport{}, apperr.ErrNotFound
	}
	return report, nil
}

// VerifyProject verifies every note of a project. Missing bodies are
// reported rather than failing the whole run.
func (s *Store) VerifyProject(_ context.Context, projectID string) (reports []models.HashReport, err error) {
	defer s.observe("verify_project", time.Now(), &err)

	if !ValidID(projectID) {
		return nil, apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	p, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	reports = make([]models.HashReport, 0, len(p.Notes))
	for _, meta := range p.Notes {
		r, err := s.verify(projectID, meta)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Store) verify(projectID string, meta models.NoteMeta) (models.HashReport, error) {
	report := models.HashReport{
		ProjectID:  projectID,
		NoteID:     meta.ID,
		Title:      meta.Title,
		StoredHash: meta.Hash,
	}
	data, err := s.fs.Read(notePath(projectID, meta.ID))
	if errors.Is(err, fs.ErrNotExist) {
		report.Missing = true
		s.metrics.ObserveVerification(metrics.VerifyMissing)
		s.logger.Warn("note body missing",
			slog.String("project_id", projectID),
			slog.String("note_id", meta.ID))
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("notebook: read note: %w", err)
	}
	report.CurrentHash = checksum.Sum(data)
	report.Valid = report.CurrentHash == meta.Hash
	if report.Valid {
		s.metrics.ObserveVerification(metrics.VerifyValid)
	} else {
		s.metrics.ObserveVerification(metrics.VerifyMismatch)
		s.logger.Warn("note digest mismatch",
			slog.String("project_id", projectID),
			slog.String("note_id", meta.ID),
			slog.String("stored_hash", meta.Hash),
			slog.String("current_hash", report.CurrentHash))
	}
	return report, nil
}

// NoteFile returns a note body with a download filename derived from its title.
func (s *Store) NoteFile(ctx context.Context, projectID, noteID string) (filename, body string, err error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return "", "", err
	}
	meta, ok := p.Note(noteID)
	if !ok {
		return "", "", apperr.ErrNotFound
	}
	body, err = s.NoteBody(ctx, projectID, noteID)
	if err != nil {
		return "", "", err
	}
	return SafeFilename(meta.Title, DefaultNoteTitle) + NoteExt, body, nil
}

// SafeFilename strips path separators and control characters from name.
func SafeFilename(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return fallback
	}
	return name
}
