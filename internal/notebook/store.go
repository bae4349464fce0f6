// Package notebook stores projects and their Markdown notes as plain files
// with one metadata.json sidecar per project directory.
package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/metrics"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

// Layout constants.
const (
	MetadataFile     = "metadata.json"
	NoteExt          = ".md"
	PlaceholderBody  = "# New Note\nStart writing here..."
	DefaultNoteTitle = "Untitled"
	MaxNameLength    = 200
)

// Store owns every project directory under the data root. All metadata
// read-modify-write cycles for one project are serialised by a per-project lock.
type Store struct {
	fs        storage.Provider
	locks     *keyedMutex
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
	observers []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides UUID generation for project and note ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithObserver registers a callback for committed changes.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// New creates a Store over the given provider.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		fs:     provider,
		locks:  newKeyedMutex(),
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func metaPath(projectID string) string {
	return path.Join(projectID, MetadataFile)
}

func notePath(projectID, noteID string) string {
	return path.Join(projectID, noteID+NoteExt)
}

// NotePath returns the provider-relative path of a note body.
func NotePath(projectID, noteID string) string {
	return notePath(projectID, noteID)
}

func (s *Store) observe(op string, start time.Time, errp *error) {
	s.metrics.ObserveOp(op, start, *errp)
}

// load reads and validates one project's metadata without locking.
func (s *Store) load(projectID string) (*models.Project, error) {
	data, err := s.fs.Read(metaPath(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notebook: read metadata %s: %w", projectID, err)
	}
	p, err := decodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("notebook: project %s: %w", projectID, err)
	}
	if p.ID != projectID {
		return nil, fmt.Errorf("notebook: project %s: %w", projectID,
			apperr.Corrupt(MetadataFile, fmt.Errorf("id %q does not match directory", p.ID)))
	}
	return p, nil
}

// save overwrites a project's metadata atomically without locking.
func (s *Store) save(p *models.Project) error {
	data, err := encodeMetadata(p)
	if errors.Is(err, apperr.ErrValidation) {
		return err
	}
	if err != nil {
		return fmt.Errorf("notebook: encode metadata %s: %w", p.ID, err)
	}
	if err := s.fs.Write(metaPath(p.ID), data); err != nil {
		return fmt.Errorf("notebook: write metadata %s: %w", p.ID, err)
	}
	return nil
}

// view returns the read-time presentation of p: notes newest first.
func view(p *models.Project) *models.Project {
	sort.SliceStable(p.Notes, func(i, j int) bool {
		return p.Notes[i].CreatedAt.After(p.Notes[j].CreatedAt)
	})
	return p
}

// ListProjects returns every readable project, newest first. Directories
// without metadata are not projects; corrupt ones are logged and skipped.
func (s *Store) ListProjects(_ context.Context) (out []models.Project, err error) {
	defer s.observe("list_projects", time.Now(), &err)

	dirs, err := s.fs.Dirs("")
	if err != nil {
		return nil, fmt.Errorf("notebook: list projects: %w", err)
	}
	out = []models.Project{}
	for _, dir := range dirs {
		if !ValidID(dir) {
			continue
		}
		p, err := s.load(dir)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable project",
				slog.String("project_id", dir),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, *view(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CreateProject makes a new empty project.
func (s *Store) CreateProject(_ context.Context, name string) (p *models.Project, err error) {
	defer s.observe("create_project", time.Now(), &err)

	name = strings.TrimSpace(name)
	if err := validation.Validate(name,
		validation.Required.Error("project name is required"),
		validation.RuneLength(1, MaxNameLength),
	); err != nil {
		return nil, apperr.FromValidation(err)
	}

	id := s.newID()
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.fs.MkdirAll(id); err != nil {
		return nil, fmt.Errorf("notebook: create project dir: %w", err)
	}
	now := s.now()
	p = &models.Project{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Notes:     []models.NoteMeta{},
		Images:    []json.RawMessage{},
	}
	if err := s.save(p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", slog.String("project_id", id))
	s.emit(Event{Kind: ProjectCreated, ProjectID: id, Title: name})
	return p, nil
}

// GetProject returns the project or apperr.ErrNotFound.
func (s *Store) GetProject(_ context.Context, projectID string) (p *models.Project, err error) {
	defer s.observe("get_project", time.Now(), &err)

	if !ValidID(projectID) {
		return nil, apperr.ErrNotFound
	}
	p, err = s.load(projectID)
	if err != nil {
		return nil, err
	}
	return view(p), nil
}

// DeleteProject removes the project directory and everything in it.
func (s *Store) DeleteProject(_ context.Context, projectID string) (err error) {
	defer s.observe("delete_project", time.Now(), &err)

	if !ValidID(projectID) {
		return apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	ok, err := s.fs.Exists(metaPath(projectID))
	if err != nil {
		return fmt.Errorf("notebook: delete project: %w", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	if err := s.fs.RemoveAll(projectID); err != nil {
		return fmt.Errorf("notebook: delete project: %w", err)
	}
	s.logger.Info("project deleted", slog.String("project_id", projectID))
	s.emit(Event{Kind: ProjectDeleted, ProjectID: projectID})
	return nil
}

// SaveMetadata overwrites the metadata of an existing project directory.
func (s *Store) SaveMetadata(_ context.Context, projectID string, p *models.Project) (err error) {
	defer s.observe("save_metadata", time.Now(), &err)

	if p == nil || p.ID != projectID {
		return apperr.Invalid("metadata id does not match project %q", projectID)
	}
	if !ValidID(projectID) {
		return apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	ok, err := s.fs.Exists(metaPath(projectID))
	if err != nil {
		return fmt.Errorf("notebook: save metadata: %w", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return s.save(p)
}

// update runs fn on freshly loaded metadata under the project lock, saves
// the result when fn succeeds and then emits the event fn returned.
func (s *Store) update(projectID string, fn func(p *models.Project) (Event, error)) (*models.Project, error) {
	if !ValidID(projectID) {
		return nil, apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	p, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	ev, err := fn(p)
	if err != nil {
		return nil, err
	}
	if err := s.save(p); err != nil {
		return nil, err
	}
	s.emit(ev)
	return p, nil
}

// Snapshot calls fn with the project metadata while holding the project
// lock, so no note can change underneath fn.
func (s *Store) Snapshot(_ context.Context, projectID string, fn func(p *models.Project) error) error {
	if !ValidID(projectID) {
		return apperr.ErrNotFound
	}
	unlock := s.locks.Lock(projectID)
	defer unlock()

	p, err := s.load(projectID)
	if err != nil {
		return err
	}
	return fn(p)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
