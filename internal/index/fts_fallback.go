//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"strings"
)

// Without FTS5 the body column of the notes table is searched with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ Row, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _, _ string) error { return nil }

func ftsDeleteProject(_ *sql.Tx, _ string) error { return nil }

func ftsMove(_ *sql.Tx, _, _, _ string) error { return nil }

func (db *DB) search(ctx context.Context, query string, limit int) (*sql.Rows, error) {
	like := "%" + escapeLike(query) + "%"
	return db.conn.QueryContext(ctx, `
		SELECT project_id, note_id, title, substr(body, 1, 200)
		FROM notes
		WHERE title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, like, limit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
