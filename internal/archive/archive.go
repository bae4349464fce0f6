// Package archive exports projects as zip archives and imports them back
// under a fresh identity.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/metrics"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

// Defaults.
const (
	DefaultMaxBytes int64 = 100 << 20
	ArchiveExt            = ".zip"
)

// DefaultAllow extracts only the files a project is made of.
var DefaultAllow = []string{notebook.MetadataFile, "*" + notebook.NoteExt}

// Transfer packs and unpacks project directories.
type Transfer struct {
	notebook *notebook.Store
	fs       storage.Provider
	filter   *Filter
	maxBytes int64
	tempDir  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Transfer.
type Option func(*Transfer)

// WithFilter sets the import entry filter.
func WithFilter(f *Filter) Option {
	return func(t *Transfer) { t.filter = f }
}

// WithMaxBytes caps both the archive size and its total uncompressed size on import.
func WithMaxBytes(n int64) Option {
	return func(t *Transfer) { t.maxBytes = n }
}

// WithTempDir sets where export archives are assembled.
func WithTempDir(dir string) Option {
	return func(t *Transfer) { t.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transfer) { t.logger = l }
}

// WithMetrics records export and import outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transfer) { t.metrics = m }
}

// New creates a Transfer over the notebook and the provider it is rooted on.
func New(nb *notebook.Store, provider storage.Provider, opts ...Option) *Transfer {
	t := &Transfer{
		notebook: nb,
		fs:       provider,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.filter == nil {
		t.filter, _ = NewFilter(DefaultAllow, nil)
	}
	return t
}

// Export is a packed project archive backed by a temporary file that is
// removed on Close.
type Export struct {
	// Filename is the suggested download name, "<project name>.zip".
	Filename string
	Size     int64
	file     *os.File
}

func (e *Export) Read(p []byte) (int, error) {
	return e.file.Read(p)
}

// Close releases and deletes the temporary archive.
func (e *Export) Close() error {
	name := e.file.Name()
	closeErr := e.file.Close()
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return closeErr
}

// Export packs every file of the project directory, rooted at the directory,
// while holding the project lock.
func (t *Transfer) Export(ctx context.Context, projectID string) (exp *Export, err error) {
	start := time.Now()
	defer func() {
		var size int64
		if exp != nil {
			size = exp.Size
		}
		t.metrics.ObserveArchive(metrics.Export, start, size, err)
	}()

	tmp, err := os.CreateTemp(t.tempDir, "mdnotes-export-*"+ArchiveExt)
	if err != nil {
		return nil, fmt.Errorf("archive: create temp: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var name string
	err = t.notebook.Snapshot(ctx, projectID, func(p *models.Project) error {
		name = p.Name
		return t.pack(tmp, projectID)
	})
	if err != nil {
		return nil, err
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("archive: size: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("archive: rewind: %w", err)
	}
	success = true
	t.logger.Info("project exported",
		slog.String("project_id", projectID),
		slog.Int64("bytes", size))
	return &Export{
		Filename: notebook.SafeFilename(name, projectID) + ArchiveExt,
		Size:     size,
		file:     tmp,
	}, nil
}

func (t *Transfer) pack(w io.Writer, projectID string) error {
	files, err := t.fs.Files(projectID)
	if err != nil {
		return fmt.Errorf("archive: list project files: %w", err)
	}
	zw := zip.NewWriter(w)
	for _, name := range files {
		data, err := t.fs.Read(path.Join(projectID, name))
		if err != nil {
			return fmt.Errorf("archive: read %s: %w", name, err)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("archive: add %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("archive: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: finish: %w", err)
	}
	return nil
}

// Import unpacks a zip archive into a new project. The archive must carry
// metadata.json at its root. The project receives a fresh id and timestamps;
// note entries and hashes are kept as they are. On any failure nothing of the
// archive remains on disk.
func (t *Transfer) Import(ctx context.Context, r io.ReaderAt, size int64) (p *models.Project, err error) {
	start := time.Now()
	defer func() { t.metrics.ObserveArchive(metrics.Import, start, size, err) }()

	if size > t.maxBytes {
		return nil, apperr.Invalid("archive exceeds %d bytes", t.maxBytes)
	}
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, apperr.Invalid("not a zip archive: %v", err)
	}

	st, err := t.notebook.Stage(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if derr := t.notebook.Discard(ctx, st); derr != nil {
			t.logger.Error("failed to discard staged import",
				slog.String("dir", st.Dir), slog.String("error", derr.Error()))
		}
	}()

	if err := t.extract(zr, st); err != nil {
		return nil, err
	}

	p, err = t.notebook.Commit(ctx, st)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Invalid("archive has no %s at its root", notebook.MetadataFile)
	case errors.Is(err, apperr.ErrCorrupt):
		return nil, apperr.Invalid("archive metadata is invalid: %v", err)
	case err != nil:
		return nil, err
	}
	committed = true
	return p, nil
}

// ImportFile imports the archive at path.
func (t *Transfer) ImportFile(ctx context.Context, path string) (*models.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("archive: stat: %w", err)
	}
	return t.Import(ctx, f, info.Size())
}

func (t *Transfer) extract(zr *zip.Reader, st notebook.Staging) error {
	budget := t.maxBytes
	skipped := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := entryName(f.Name)
		if err != nil {
			return err
		}
		if !t.filter.Allowed(name) {
			skipped++
			continue
		}
		if f.UncompressedSize64 > uint64(budget) {
			return apperr.Invalid("archive expands beyond %d bytes", t.maxBytes)
		}
		data, err := readEntry(f, budget)
		if err != nil {
			return err
		}
		budget -= int64(len(data))
		if err := t.fs.Write(st.Path(name), data); err != nil {
			return fmt.Errorf("archive: extract %s: %w", name, err)
		}
	}
	if skipped > 0 {
		t.logger.Debug("skipped archive entries", slog.Int("count", skipped))
	}
	return nil
}

func readEntry(f *zip.File, budget int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Invalid("unreadable archive entry %q: %v", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, budget+1))
	if err != nil {
		return nil, apperr.Invalid("unreadable archive entry %q: %v", f.Name, err)
	}
	if int64(len(data)) > budget {
		return nil, apperr.Invalid("archive expands beyond its size limit")
	}
	return data, nil
}

// entryName rejects names that would land outside the project directory.
func entryName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) || strings.Contains(name, ":") {
		return "", apperr.Invalid("unsafe archive entry %q", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", apperr.Invalid("unsafe archive entry %q", name)
		}
	}
	return path.Clean(name), nil
}
