package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
)

const maxImageBytes = 50 << 20

// ListImages handles GET /api/images.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	all, err := h.images.List(r.Context())
	if err != nil {
		h.writeError(w, r, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// UploadImage handles POST /api/images (multipart/form-data, field "file").
// A byte-identical image already in the library is returned with 200.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+formSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, "upload image", apperr.Invalid("image exceeds %d bytes", maxImageBytes))
			return
		}
		h.writeError(w, r, "upload image", apperr.Invalid("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, "upload image", apperr.Invalid("no file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, "upload image", err)
		return
	}
	res, err := h.images.Upload(r.Context(), data, header.Filename)
	if err != nil {
		h.writeError(w, r, "upload image", err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// DeleteImage handles DELETE /api/images/{imageID}.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.images.Delete(r.Context(), chi.URLParam(r, "imageID")); err != nil {
		h.writeError(w, r, "delete image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeUpload streams image bytes for GET <base_url>/*.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	info, rc, err := h.images.Open(r.Context(), chi.URLParam(r, "*"))
	if errors.Is(err, apperr.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("open upload failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	_, _ = io.Copy(w, rc)
}
