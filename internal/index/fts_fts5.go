//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			project_id UNINDEXED,
			note_id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, r Row, body string) error {
	if err := ftsDelete(tx, r.ProjectID, r.NoteID); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO notes_fts (project_id, note_id, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		r.ProjectID, r.NoteID, r.Title, body, strings.Join(r.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, projectID, noteID string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE project_id = ? AND note_id = ?`, projectID, noteID); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

func ftsDeleteProject(tx *sql.Tx, projectID string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

func ftsMove(tx *sql.Tx, fromProjectID, toProjectID, noteID string) error {
	if err := ftsDelete(tx, toProjectID, noteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE notes_fts SET project_id = ? WHERE project_id = ? AND note_id = ?`,
		toProjectID, fromProjectID, noteID); err != nil {
		return fmt.Errorf("index: move fts: %w", err)
	}
	return nil
}

func (db *DB) search(ctx context.Context, query string, limit int) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, `
		SELECT project_id,
		       note_id,
		       title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 64)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
}
