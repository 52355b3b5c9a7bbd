package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/strata/internal/model"
)

// ElementRow is one indexed element.
type ElementRow struct {
	ID          string
	Layer       string
	Type        string
	Name        string
	Description string
}

// SearchResult is one search hit.
type SearchResult struct {
	ID      string
	Layer   string
	Name    string
	Snippet string
}

// ReplaceLayer reindexes one layer inside a transaction: stale rows for the
// layer are dropped, the current elements and their outgoing edges are
// inserted, and the layer's file checksum is recorded.
func (db *DB) ReplaceLayer(layer, checksum string, elements []*model.Element) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	ids, err := layerElementIDs(tx, layer)
	if err != nil {
		return err
	}
	for _, id := range ids {
		ftsDelete(tx, id)
	}
	if _, err := tx.Exec(`DELETE FROM edges WHERE source IN (SELECT id FROM elements WHERE layer = ?)`, layer); err != nil {
		return fmt.Errorf("index: drop layer edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM elements WHERE layer = ?`, layer); err != nil {
		return fmt.Errorf("index: drop layer elements: %w", err)
	}

	elemStmt, err := tx.Prepare(`INSERT INTO elements (id, layer, type, name, description, properties) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare element insert: %w", err)
	}
	defer elemStmt.Close()
	edgeStmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, target, kind, label) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range elements {
		props, _ := json.Marshal(e.Properties)
		if _, err := elemStmt.Exec(e.ID, layer, e.Type, e.Name, e.Description, string(props)); err != nil {
			return fmt.Errorf("index: insert element %s: %w", e.ID, err)
		}
		if err := ftsUpsert(tx, e.ID, layer, e.Name, e.Description); err != nil {
			return err
		}
		for _, ref := range e.References {
			src := ref.Source
			if src == "" {
				src = e.ID
			}
			if _, err := edgeStmt.Exec(src, ref.Target, "reference", ref.Type); err != nil {
				return fmt.Errorf("index: insert reference edge: %w", err)
			}
		}
		for _, rel := range e.Relationships {
			if _, err := edgeStmt.Exec(e.ID, rel.Target, "relationship", rel.Predicate); err != nil {
				return fmt.Errorf("index: insert relationship edge: %w", err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO layer_state (name, checksum) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET checksum = excluded.checksum
	`, layer, checksum); err != nil {
		return fmt.Errorf("index: record layer state: %w", err)
	}

	return tx.Commit()
}

// DeleteLayer removes a layer's elements, edges, FTS entries, and state.
func (db *DB) DeleteLayer(layer string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids, err := layerElementIDs(tx, layer)
	if err != nil {
		return err
	}
	for _, id := range ids {
		ftsDelete(tx, id)
	}
	if _, err := tx.Exec(`DELETE FROM edges WHERE source IN (SELECT id FROM elements WHERE layer = ?)`, layer); err != nil {
		return fmt.Errorf("index: drop layer edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM elements WHERE layer = ?`, layer); err != nil {
		return fmt.Errorf("index: drop layer elements: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM layer_state WHERE name = ?`, layer); err != nil {
		return fmt.Errorf("index: drop layer state: %w", err)
	}

	return tx.Commit()
}

// LayerChecksums returns the recorded file checksum per indexed layer.
func (db *DB) LayerChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM layer_state`)
	if err != nil {
		return nil, fmt.Errorf("index: layer checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}

// GetElement returns one indexed element, or nil when absent.
func (db *DB) GetElement(id string) (*ElementRow, error) {
	var r ElementRow
	err := db.conn.QueryRow(`
		SELECT id, layer, type, name, description FROM elements WHERE id = ?
	`, id).Scan(&r.ID, &r.Layer, &r.Type, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // absent is a normal case for the index
	}
	if err != nil {
		return nil, fmt.Errorf("index: get element %s: %w", id, err)
	}
	return &r, nil
}

// Backlinks returns the ids of elements with an edge pointing at target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM edges WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountByLayer returns indexed element counts keyed by layer name.
func (db *DB) CountByLayer() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT layer, COUNT(*) FROM elements GROUP BY layer`)
	if err != nil {
		return nil, fmt.Errorf("index: count by layer: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var layer string
		var n int
		if err := rows.Scan(&layer, &n); err != nil {
			return nil, err
		}
		out[layer] = n
	}
	return out, rows.Err()
}

func layerElementIDs(tx querier, layer string) ([]string, error) {
	rows, err := tx.Query(`SELECT id FROM elements WHERE layer = ?`, layer)
	if err != nil {
		return nil, fmt.Errorf("index: layer element ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
