//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS elements_fts USING fts5(
			id UNINDEXED,
			layer UNINDEXED,
			name,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, layer, name, description string) error {
	_, _ = tx.Exec(`DELETE FROM elements_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO elements_fts (id, layer, name, description) VALUES (?, ?, ?, ?)`,
		id, layer, name, description)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM elements_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search over element names and
// descriptions, returning matches with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       layer,
		       name,
		       snippet(elements_fts, 3, '<b>', '</b>', '...', 64)
		FROM elements_fts
		WHERE elements_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Layer, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
