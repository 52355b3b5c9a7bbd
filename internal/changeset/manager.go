package changeset

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/strata/internal/apperr"
	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// Dir holds changeset documents relative to the model root.
const Dir = "changesets"

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the storage slug for a changeset name.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// Manager loads, saves, applies, and reverts changesets stored alongside a
// model. The current layout is changesets/{slug}/changeset.json; the flat
// changesets/{slug}.json layout of pre-2.0.0 models is still readable so
// the migration flow can inspect them.
type Manager struct {
	store storage.Provider
}

// NewManager creates a manager over the model's storage provider.
func NewManager(store storage.Provider) *Manager {
	return &Manager{store: store}
}

func docPath(slug string) string {
	return path.Join(Dir, slug, "changeset.json")
}

func legacyPath(slug string) string {
	return path.Join(Dir, slug+".json")
}

// Create registers a new draft changeset and persists it. A changeset with
// the same name must not already exist.
func (m *Manager) Create(name, description string) (*Changeset, error) {
	if name == "" {
		return nil, fmt.Errorf("changeset: name is required")
	}
	slug := Slug(name)
	for _, p := range []string{docPath(slug), legacyPath(slug)} {
		exists, err := m.store.Exists(p)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("changeset: %q: %w", name, apperr.ErrChangesetExists)
		}
	}
	cs := &Changeset{Name: name, Description: description, Status: StatusDraft}
	if err := m.Save(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Load reads a changeset by name, trying the current layout first and the
// legacy flat layout second.
func (m *Manager) Load(name string) (*Changeset, error) {
	slug := Slug(name)
	for _, p := range []string{docPath(slug), legacyPath(slug)} {
		exists, err := m.store.Exists(p)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		data, err := m.store.Read(p)
		if err != nil {
			return nil, err
		}
		var cs Changeset
		if err := json.Unmarshal(data, &cs); err != nil {
			return nil, fmt.Errorf("changeset: parse %s: %v: %w", p, err, apperr.ErrInvalidJSON)
		}
		if cs.Status == "" {
			cs.Status = StatusDraft
		}
		return &cs, nil
	}
	return nil, fmt.Errorf("changeset: %q: %w", name, apperr.ErrChangesetNotFound)
}

// Save persists the changeset's change list and status. It never touches
// the target model. Saving always writes the current layout; a changeset
// that was loaded from the legacy flat file is promoted and the flat file
// removed, so the two layouts never hold diverging copies.
func (m *Manager) Save(cs *Changeset) error {
	slug := Slug(cs.Name)
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return fmt.Errorf("changeset: encode %s: %w", cs.Name, err)
	}
	if err := m.store.Write(docPath(slug), data); err != nil {
		return err
	}
	stale, err := m.store.Exists(legacyPath(slug))
	if err != nil {
		return err
	}
	if stale {
		return m.store.Delete(legacyPath(slug))
	}
	return nil
}

// List returns every stored changeset sorted by name.
func (m *Manager) List() ([]*Changeset, error) {
	infos, err := m.store.List(Dir)
	if err != nil {
		return nil, err
	}
	var out []*Changeset
	for _, info := range infos {
		current := path.Base(info.Path) == "changeset.json"
		legacy := path.Dir(info.Path) == Dir
		if !current && !legacy {
			continue
		}
		data, err := m.store.Read(info.Path)
		if err != nil {
			return nil, err
		}
		var cs Changeset
		if err := json.Unmarshal(data, &cs); err != nil {
			return nil, fmt.Errorf("changeset: parse %s: %v: %w", info.Path, err, apperr.ErrInvalidJSON)
		}
		out = append(out, &cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Apply runs the named changeset against the model in ascending sequence
// order. When every change succeeds the status transitions to applied and
// is persisted in the same call, so the returned result and the stored
// status never drift apart. A run with failures leaves the status alone;
// callers inspect the result and decide whether to persist the model.
func (m *Manager) Apply(mdl *model.Model, name string) (*Result, error) {
	cs, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	res := cs.Apply(mdl)
	if res.Failed == 0 {
		cs.Status = StatusApplied
		if err := m.Save(cs); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Revert runs the named changeset's inverses in descending sequence order,
// with the same folded status handling as Apply.
func (m *Manager) Revert(mdl *model.Model, name string) (*Result, error) {
	cs, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	res := cs.Revert(mdl)
	if res.Failed == 0 {
		cs.Status = StatusReverted
		if err := m.Save(cs); err != nil {
			return res, err
		}
	}
	return res, nil
}
