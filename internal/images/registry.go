// Package images keeps the shared image library: uploaded bytes in a blob
// store and a flat images.json registry in the data directory.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

// RegistryFile is the registry path relative to the data root.
const RegistryFile = "images.json"

type imageDoc struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	UploadedAt string `json:"uploaded_at"`
}

func (d imageDoc) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Filename, validation.Required),
		validation.Field(&d.URL, validation.Required),
		validation.Field(&d.UploadedAt, validation.Required, validation.By(func(v any) error {
			s, _ := v.(string)
			_, err := models.ParseTime(s)
			return err
		})),
	)
}

// Registry is the images.json document. Every method reads the whole file
// and every mutation rewrites it, under one mutex.
type Registry struct {
	fs storage.Provider
	mu sync.Mutex
}

// NewRegistry returns a registry stored in the provider root.
func NewRegistry(provider storage.Provider) *Registry {
	return &Registry{fs: provider}
}

// List returns all images in insertion order, creating an empty registry on first use.
func (r *Registry) List(_ context.Context) ([]models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Register appends img.
func (r *Registry) Register(_ context.Context, img models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return err
	}
	return r.save(append(all, img))
}

// Remove drops the entry with the given id.
func (r *Registry) Remove(_ context.Context, id string) (models.Image, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return models.Image{}, false, err
	}
	for i, img := range all {
		if img.ID == id {
			rest := append(all[:i:i], all[i+1:]...)
			if err := r.save(rest); err != nil {
				return models.Image{}, false, err
			}
			return img, true, nil
		}
	}
	return models.Image{}, false, nil
}

func (r *Registry) load() ([]models.Image, error) {
	data, err := r.fs.Read(RegistryFile)
	if errors.Is(err, fs.ErrNotExist) {
		empty := []models.Image{}
		if err := r.save(empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("images: read registry: %w", err)
	}
	var docs []imageDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, apperr.Corrupt(RegistryFile, err)
	}
	if docs == nil {
		return nil, apperr.Corrupt(RegistryFile, errors.New("expected a list"))
	}
	if err := validation.Validate(docs); err != nil {
		return nil, apperr.Corrupt(RegistryFile, err)
	}
	out := make([]models.Image, 0, len(docs))
	for _, d := range docs {
		img := models.Image{ID: d.ID, Filename: d.Filename, URL: d.URL}
		img.UploadedAt, _ = models.ParseTime(d.UploadedAt)
		out = append(out, img)
	}
	return out, nil
}

func (r *Registry) save(all []models.Image) error {
	docs := make([]imageDoc, 0, len(all))
	for _, img := range all {
		docs = append(docs, imageDoc{
			ID:         img.ID,
			Filename:   img.Filename,
			URL:        img.URL,
			UploadedAt: models.FormatTime(img.UploadedAt),
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("images: encode registry: %w", err)
	}
	if err := r.fs.Write(RegistryFile, buf.Bytes()); err != nil {
		return fmt.Errorf("images: write registry: %w", err)
	}
	return nil
}
