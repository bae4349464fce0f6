package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/checksum"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

// metadataDoc is the on-disk shape of metadata.json.
type metadataDoc struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Notes     []noteDoc         `json:"notes"`
	Images    []json.RawMessage `json:"images"`
}

type noteDoc struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Hash      string `json:"hash"`
}

var (
	idRule        = validation.By(checkID)
	timestampRule = validation.By(checkTimestamp)
	digestRule    = validation.By(checkDigest)
)

func (d metadataDoc) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required, idRule),
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.CreatedAt, validation.Required, timestampRule),
		validation.Field(&d.UpdatedAt, validation.Required, timestampRule),
		validation.Field(&d.Notes, validation.NotNil),
	)
}

func (d noteDoc) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required, idRule),
		validation.Field(&d.CreatedAt, validation.Required, timestampRule),
		validation.Field(&d.UpdatedAt, validation.Required, timestampRule),
		validation.Field(&d.Hash, validation.Required, digestRule),
	)
}

func checkID(v any) error {
	if s, _ := v.(string); !ValidID(s) {
		return errors.New("must be a plain identifier")
	}
	return nil
}

func checkTimestamp(v any) error {
	s, _ := v.(string)
	_, err := models.ParseTime(s)
	return err
}

func checkDigest(v any) error {
	if s, _ := v.(string); !checksum.Valid(s) {
		return errors.New("must be a hex sha-256 digest")
	}
	return nil
}

// ValidID reports whether id can name a project directory or note file.
// Hidden names are reserved for staging.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// decodeMetadata parses and validates a metadata.json document.
func decodeMetadata(data []byte) (*models.Project, error) {
	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Corrupt(MetadataFile, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, apperr.Corrupt(MetadataFile, err)
	}

	p := &models.Project{
		ID:     doc.ID,
		Name:   doc.Name,
		Notes:  make([]models.NoteMeta, 0, len(doc.Notes)),
		Images: doc.Images,
	}
	// Validate has already checked every timestamp.
	p.CreatedAt, _ = models.ParseTime(doc.CreatedAt)
	p.UpdatedAt, _ = models.ParseTime(doc.UpdatedAt)
	for _, n := range doc.Notes {
		meta := models.NoteMeta{ID: n.ID, Title: n.Title, Hash: n.Hash}
		meta.CreatedAt, _ = models.ParseTime(n.CreatedAt)
		meta.UpdatedAt, _ = models.ParseTime(n.UpdatedAt)
		p.Notes = append(p.Notes, meta)
	}
	if p.Images == nil {
		p.Images = []json.RawMessage{}
	}
	return p, nil
}

// encodeMetadata renders p as indented JSON with non-ASCII text kept verbatim.
// A project that decodeMetadata would reject is refused with a ValidationError.
func encodeMetadata(p *models.Project) ([]byte, error) {
	doc := metadataDoc{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: models.FormatTime(p.CreatedAt),
		UpdatedAt: models.FormatTime(p.UpdatedAt),
		Notes:     make([]noteDoc, 0, len(p.Notes)),
		Images:    p.Images,
	}
	if doc.Images == nil {
		doc.Images = []json.RawMessage{}
	}
	for _, n := range p.Notes {
		doc.Notes = append(doc.Notes, noteDoc{
			ID:        n.ID,
			Title:     n.Title,
			CreatedAt: models.FormatTime(n.CreatedAt),
			UpdatedAt: models.FormatTime(n.UpdatedAt),
			Hash:      n.Hash,
		})
	}

	if err := doc.Validate(); err != nil {
		return nil, apperr.FromValidation(err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
