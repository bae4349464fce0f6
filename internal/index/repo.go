package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
)

// DefaultSearchLimit applies when the caller passes a non-positive limit.
const DefaultSearchLimit = 20

// Row is one indexed note.
type Row struct {
	ProjectID string
	NoteID    string
	Title     string
	Hash      string
	Tags      []string
	UpdatedAt time.Time
}

// Hit is one search result.
type Hit struct {
	ProjectID string `json:"project_id"`
	NoteID    string `json:"note_id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

// Upsert inserts or replaces a note and its full-text entry.
func (db *DB) Upsert(r Row, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if r.Tags == nil {
		r.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("index: encode tags: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO notes (project_id, note_id, title, hash, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, note_id) DO UPDATE SET
			title      = excluded.title,
			hash       = excluded.hash,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.ProjectID, r.NoteID, r.Title, r.Hash, string(tagsJSON), body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	if err := ftsUpsert(tx, r, body); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes one note.
func (db *DB) Delete(projectID, noteID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, projectID, noteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE project_id = ? AND note_id = ?`, projectID, noteID); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// DeleteProject removes every note of a project.
func (db *DB) DeleteProject(projectID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDeleteProject(tx, projectID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("index: delete project: %w", err)
	}
	return tx.Commit()
}

// Move re-keys a note to another project.
func (db *DB) Move(fromProjectID, toProjectID, noteID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM notes WHERE project_id = ? AND note_id = ?`, toProjectID, noteID); err != nil {
		return fmt.Errorf("index: move note: %w", err)
	}
	if _, err := tx.Exec(`UPDATE notes SET project_id = ? WHERE project_id = ? AND note_id = ?`,
		toProjectID, fromProjectID, noteID); err != nil {
		return fmt.Errorf("index: move note: %w", err)
	}
	if err := ftsMove(tx, fromProjectID, toProjectID, noteID); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns one row, or apperr.ErrNotFound.
func (db *DB) Get(projectID, noteID string) (*Row, error) {
	var (
		r    Row
		tags string
	)
	err := db.conn.QueryRow(`
		SELECT project_id, note_id, title, hash, tags, updated_at
		FROM notes WHERE project_id = ? AND note_id = ?
	`, projectID, noteID).Scan(&r.ProjectID, &r.NoteID, &r.Title, &r.Hash, &tags, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("index: decode tags: %w", err)
	}
	return &r, nil
}

// Hashes returns the indexed hash of every note, optionally limited to one project.
func (db *DB) Hashes(projectID string) (map[Key]string, error) {
	q := `SELECT project_id, note_id, hash FROM notes`
	var args []any
	if projectID != "" {
		q += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: hashes: %w", err)
	}
	defer rows.Close()
	out := make(map[Key]string)
	for rows.Next() {
		var (
			k    Key
			hash string
		)
		if err := rows.Scan(&k.ProjectID, &k.NoteID, &hash); err != nil {
			return nil, err
		}
		out[k] = hash
	}
	return out, rows.Err()
}

// Search runs a full-text query. Results carry a short snippet of the body.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	rows, err := db.search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ProjectID, &h.NoteID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
