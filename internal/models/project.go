// Package models defines the domain types for the notebook store.
package models

import (
	"encoding/json"
	"time"
)

// Project is a named container of notes backed by one directory.
type Project struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Notes     []NoteMeta        `json:"notes"`
	Images    []json.RawMessage `json:"images"`
}

// NoteIndex returns the position of the note with the given id, or -1.
func (p *Project) NoteIndex(noteID string) int {
	for i := range p.Notes {
		if p.Notes[i].ID == noteID {
			return i
		}
	}
	return -1
}

// Note returns a pointer into Notes for the given id.
func (p *Project) Note(noteID string) (*NoteMeta, bool) {
	i := p.NoteIndex(noteID)
	if i < 0 {
		return nil, false
	}
	return &p.Notes[i], true
}

// RemoveNote drops the note entry and reports whether it was present.
func (p *Project) RemoveNote(noteID string) (NoteMeta, bool) {
	i := p.NoteIndex(noteID)
	if i < 0 {
		return NoteMeta{}, false
	}
	removed := p.Notes[i]
	p.Notes = append(p.Notes[:i], p.Notes[i+1:]...)
	return removed, true
}

// NoteMeta describes one note; the body lives in "<id>.md" next to the project metadata.
type NoteMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Hash      string    `json:"hash"`
}

// HashReport is the outcome of comparing a stored digest with the body on disk.
type HashReport struct {
	ProjectID   string `json:"project_id"`
	NoteID      string `json:"note_id"`
	Title       string `json:"title,omitempty"`
	Valid       bool   `json:"valid"`
	StoredHash  string `json:"stored_hash"`
	CurrentHash string `json:"current_hash,omitempty"`
	Missing     bool   `json:"missing,omitempty"`
}
