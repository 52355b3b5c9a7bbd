// Package apperr defines the error kinds shared across the model engine.
// Fatal errors wrap one of these sentinels together with the offending
// identifier so callers can classify with errors.Is and still build an
// actionable message.
package apperr

import "errors"

var (
	ErrModelNotFound     = errors.New("model not found")
	ErrInvalidJSON       = errors.New("invalid json")
	ErrDuplicateElement  = errors.New("duplicate element")
	ErrElementNotFound   = errors.New("element not found")
	ErrLayerNotFound     = errors.New("layer not found")
	ErrChangesetNotFound = errors.New("changeset not found")
	ErrChangesetExists   = errors.New("changeset already exists")
	ErrNoMigrationPath   = errors.New("no migration path")
)
