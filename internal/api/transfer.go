package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
)

// multipart overhead allowed on top of the archive limit
const formSlack = 1 << 20

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

// ExportProject handles GET /api/projects/{projectID}/export.
func (h *Handler) ExportProject(w http.ResponseWriter, r *http.Request) {
	exp, err := h.transfer.Export(r.Context(), projectID(r))
	if err != nil {
		h.writeError(w, r, "export project", err)
		return
	}
	defer exp.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(exp.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(exp.Size, 10))
	if _, err := io.Copy(w, exp); err != nil {
		h.logger.Warn("export stream interrupted",
			slog.String("project_id", projectID(r)),
			slog.String("error", err.Error()))
	}
}

// ImportProject handles POST /api/projects/import (multipart/form-data, field "file").
func (h *Handler) ImportProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImport+formSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, "import project", apperr.Invalid("archive exceeds %d bytes", h.maxImport))
			return
		}
		h.writeError(w, r, "import project", apperr.Invalid("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, "import project", apperr.Invalid("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	p, err := h.transfer.Import(r.Context(), file, header.Size)
	if err != nil {
		h.writeError(w, r, "import project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
