package api

import (
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
)

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// CreateNoteRequest is the body of POST /projects/{id}/notes. Title may be empty.
type CreateNoteRequest struct {
	Title string `json:"title"`
}

// UpdateNoteRequest is the body of PUT /projects/{id}/notes/{noteID}.
type UpdateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MoveNoteRequest is the body of PUT .../move.
type MoveNoteRequest struct {
	TargetProjectID string `json:"target_project_id"`
}

// NoteResponse is a note entry with its body.
type NoteResponse struct {
	models.NoteMeta
	Content string `json:"content"`
}

// VerifyProjectResponse lists one report per note.
type VerifyProjectResponse struct {
	ProjectID string              `json:"project_id"`
	Valid     bool                `json:"valid"`
	Notes     []models.HashReport `json:"notes"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results []index.Hit `json:"results"`
}

type messageResponse struct {
	Message string `json:"message"`
}
