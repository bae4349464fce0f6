package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/archive"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/images"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
)

// Deps are the components behind the API.
type Deps struct {
	Notebook *notebook.Store
	Archive  *archive.Transfer
	Images   *images.Library
	Search   index.Searcher
	// Events, if set, is served at GET /events.
	Events http.Handler
	// MaxArchiveBytes bounds import uploads. Zero means archive.DefaultMaxBytes.
	MaxArchiveBytes int64
	Logger          *slog.Logger
}

// Handler holds API route handlers.
type Handler struct {
	nb        *notebook.Store
	transfer  *archive.Transfer
	images    *images.Library
	search    index.Searcher
	events    http.Handler
	maxImport int64
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		nb:        d.Notebook,
		transfer:  d.Archive,
		images:    d.Images,
		search:    d.Search,
		events:    d.Events,
		maxImport: d.MaxArchiveBytes,
		logger:    d.Logger,
	}
	if h.maxImport <= 0 {
		h.maxImport = archive.DefaultMaxBytes
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

func projectID(r *http.Request) string { return chi.URLParam(r, "projectID") }

func noteID(r *http.Request) string { return chi.URLParam(r, "noteID") }

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.nb.ListProjects(r.Context())
	if err != nil {
		h.writeError(w, r, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "create project", err)
		return
	}
	p, err := h.nb.CreateProject(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{projectID}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.nb.GetProject(r.Context(), projectID(r))
	if err != nil {
		h.writeError(w, r, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{projectID}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.DeleteProject(r.Context(), projectID(r)); err != nil {
		h.writeError(w, r, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyProject handles GET /api/projects/{projectID}/verify.
func (h *Handler) VerifyProject(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	reports, err := h.nb.VerifyProject(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "verify project", err)
		return
	}
	resp := VerifyProjectResponse{ProjectID: id, Valid: true, Notes: reports}
	for _, rep := range reports {
		if !rep.Valid {
			resp.Valid = false
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNote handles POST /api/projects/{projectID}/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "create note", err)
		return
	}
	note, err := h.nb.CreateNote(r.Context(), projectID(r), req.Title)
	if err != nil {
		h.writeError(w, r, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, NoteResponse{NoteMeta: *note, Content: notebook.PlaceholderBody})
}

// GetNote handles GET /api/projects/{projectID}/notes/{noteID}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	pid, nid := projectID(r), noteID(r)
	p, err := h.nb.GetProject(r.Context(), pid)
	if err != nil {
		h.writeError(w, r, "get note", err)
		return
	}
	meta, ok := p.Note(nid)
	if !ok {
		h.writeError(w, r, "get note", apperr.ErrNotFound)
		return
	}
	body, err := h.nb.NoteBody(r.Context(), pid, nid)
	if err != nil {
		h.writeError(w, r, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{NoteMeta: *meta, Content: body})
}

// UpdateNote handles PUT /api/projects/{projectID}/notes/{noteID}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "update note", err)
		return
	}
	note, err := h.nb.UpdateNote(r.Context(), projectID(r), noteID(r), req.Title, req.Content)
	if err != nil {
		h.writeError(w, r, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{NoteMeta: *note, Content: req.Content})
}

// DeleteNote handles DELETE /api/projects/{projectID}/notes/{noteID}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.DeleteNote(r.Context(), projectID(r), noteID(r)); err != nil {
		h.writeError(w, r, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles PUT /api/projects/{projectID}/notes/{noteID}/move.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "move note", err)
		return
	}
	if req.TargetProjectID == "" {
		h.writeError(w, r, "move note", apperr.Invalid("target_project_id is required"))
		return
	}
	if err := h.nb.MoveNote(r.Context(), projectID(r), req.TargetProjectID, noteID(r)); err != nil {
		h.writeError(w, r, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "note moved"})
}

// VerifyNote handles GET /api/projects/{projectID}/notes/{noteID}/verify.
func (h *Handler) VerifyNote(w http.ResponseWriter, r *http.Request) {
	report, err := h.nb.VerifyNote(r.Context(), projectID(r), noteID(r))
	if err != nil {
		h.writeError(w, r, "verify note", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DownloadNote handles GET /api/projects/{projectID}/notes/{noteID}/download.
func (h *Handler) DownloadNote(w http.ResponseWriter, r *http.Request) {
	filename, body, err := h.nb.NoteFile(r.Context(), projectID(r), noteID(r))
	if err != nil {
		h.writeError(w, r, "download note", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write([]byte(body))
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, r, "search", apperr.Invalid("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.search.Search(r.Context(), q, limit)
	if err != nil {
		h.writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
