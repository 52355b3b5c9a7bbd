package index

import (
	"database/sql"

	"github.com/starford/strata/internal/model"
)

// ElementIndex defines the index operations consumers depend on. Callers
// should use this interface rather than the concrete *DB type to facilitate
// testing with substitutes.
type ElementIndex interface {
	ReplaceLayer(layer, checksum string, elements []*model.Element) error
	DeleteLayer(layer string) error
	LayerChecksums() (map[string]string, error)
	GetElement(id string) (*ElementRow, error)
	Backlinks(target string) ([]string, error)
	CountByLayer() (map[string]int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies ElementIndex at compile time.
var _ ElementIndex = (*DB)(nil)

// querier is the subset of sql.Tx / sql.DB used by shared query helpers.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}
