package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/blob"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/checksum"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/metrics"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

// Event kinds passed to the notifier.
const (
	EventUploaded = "image.uploaded"
	EventDeleted  = "image.deleted"
)

// UploadResult is returned by Upload.
type UploadResult struct {
	Image     models.Image `json:"image"`
	URL       string       `json:"url"`
	Markdown  string       `json:"md"`
	Duplicate bool         `json:"duplicate"`
}

// Library combines the registry with the blob store holding the bytes.
// Upload and Delete are serialised so the duplicate check and the registry
// append cannot interleave.
type Library struct {
	registry *Registry
	blobs    blob.Store
	baseURL  string
	allowed  map[string]bool

	mu      sync.Mutex
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics
	notify  func(kind string, img models.Image)
}

// Option configures a Library.
type Option func(*Library)

// WithAllowedExtensions restricts uploads to the given extensions (case-insensitive, with dot).
func WithAllowedExtensions(exts []string) Option {
	return func(l *Library) {
		if len(exts) == 0 {
			return
		}
		l.allowed = make(map[string]bool, len(exts))
		for _, e := range exts {
			l.allowed[strings.ToLower(e)] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// WithMetrics records upload outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Library) { l.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithNotifier receives a callback after each committed upload or delete.
func WithNotifier(fn func(kind string, img models.Image)) Option {
	return func(l *Library) { l.notify = fn }
}

// NewLibrary creates a Library. baseURL prefixes every blob key to form the public URL.
func NewLibrary(registry *Registry, blobs blob.Store, baseURL string, opts ...Option) *Library {
	l := &Library{
		registry: registry,
		blobs:    blobs,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns the registry in insertion order.
func (l *Library) List(ctx context.Context) ([]models.Image, error) {
	return l.registry.List(ctx)
}

// URLFor returns the public URL of a blob key.
func (l *Library) URLFor(key string) string {
	return l.baseURL + "/" + key
}

// Upload stores data unless an image with identical content and extension
// is already registered, in which case the existing URL is returned.
func (l *Library) Upload(ctx context.Context, data []byte, originalName string) (res UploadResult, err error) {
	defer func() {
		switch {
		case err != nil:
			l.metrics.ObserveUpload(metrics.Status(err))
		case res.Duplicate:
			l.metrics.ObserveUpload("duplicate")
		default:
			l.metrics.ObserveUpload("stored")
		}
	}()

	if strings.TrimSpace(originalName) == "" {
		return UploadResult{}, apperr.Invalid("no file selected")
	}
	ext := filepath.Ext(originalName)
	if l.allowed != nil && !l.allowed[strings.ToLower(ext)] {
		return UploadResult{}, apperr.Invalid("file extension %q is not allowed", ext)
	}
	filename := checksum.Sum(data) + ext

	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.registry.List(ctx)
	if err != nil {
		return UploadResult{}, err
	}
	for _, img := range all {
		if img.Filename == filename {
			return UploadResult{Image: img, URL: img.URL, Markdown: markdownFor(img.URL), Duplicate: true}, nil
		}
	}

	now := l.now()
	key := path.Join(now.Format("2006/01/02"), filename)
	_, err = l.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: mime.TypeByExtension(strings.ToLower(ext)),
		Metadata:    map[string]string{"original-name": originalName},
	})
	if errors.Is(err, blob.ErrExists) {
		// Bytes survived a registry entry that was removed by hand.
		l.logger.Warn("reusing unregistered image blob", slog.String("key", key))
	} else if err != nil {
		return UploadResult{}, fmt.Errorf("images: store blob: %w", err)
	}

	img := models.Image{
		ID:         l.newID(),
		Filename:   filename,
		URL:        l.URLFor(key),
		UploadedAt: now,
	}
	if err := l.registry.Register(ctx, img); err != nil {
		return UploadResult{}, err
	}
	l.logger.Info("image uploaded", slog.String("image_id", img.ID), slog.String("key", key))
	if l.notify != nil {
		l.notify(EventUploaded, img)
	}
	return UploadResult{Image: img, URL: img.URL, Markdown: markdownFor(img.URL)}, nil
}

// Delete removes the image's bytes and registry entry. Failing to locate or
// remove the bytes is logged; the entry is removed regardless.
func (l *Library) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.registry.List(ctx)
	if err != nil {
		return err
	}
	var target *models.Image
	for i := range all {
		if all[i].ID == id {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return apperr.ErrNotFound
	}

	if key, ok := l.keyFor(target.URL); !ok {
		l.logger.Warn("cannot derive blob key from image url",
			slog.String("image_id", id), slog.String("url", target.URL))
	} else if _, err := l.blobs.Delete(ctx, key); err != nil {
		l.logger.Warn("failed to delete image blob",
			slog.String("image_id", id), slog.String("key", key), slog.String("error", err.Error()))
	}

	if _, _, err := l.registry.Remove(ctx, id); err != nil {
		return err
	}
	l.logger.Info("image deleted", slog.String("image_id", id))
	if l.notify != nil {
		l.notify(EventDeleted, *target)
	}
	return nil
}

// Open streams the bytes stored under key.
func (l *Library) Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return blob.Info{}, nil, apperr.ErrNotFound
	}
	info, rc, err := l.blobs.Get(ctx, k)
	if errors.Is(err, blob.ErrNotExist) {
		return blob.Info{}, nil, apperr.ErrNotFound
	}
	if err != nil {
		return blob.Info{}, nil, err
	}
	return info, rc, nil
}

// keyFor recovers the blob key from a registry URL. URLs written by older
// releases point at ".../uploads/<key>".
func (l *Library) keyFor(url string) (string, bool) {
	if rest, ok := strings.CutPrefix(url, l.baseURL+"/"); ok && rest != "" {
		return rest, true
	}
	if i := strings.LastIndex(url, "/uploads/"); i >= 0 {
		if rest := url[i+len("/uploads/"):]; rest != "" {
			return rest, true
		}
	}
	return "", false
}

func markdownFor(url string) string {
	return "![](" + url + ")"
}
