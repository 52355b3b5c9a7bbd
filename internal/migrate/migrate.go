// Package migrate resolves and runs specification-version migrations over a
// model directory. The registry holds one step per known version; a
// migration between two versions is the chain of steps linking them.
package migrate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/strata/internal/apperr"
	"github.com/starford/strata/internal/changeset"
	"github.com/starford/strata/internal/model"
	"github.com/starford/strata/internal/storage"
)

// LatestVersion is the specification version this build writes and
// migrates toward by default.
const LatestVersion = "2.0.0"

// MarkerFile is the small version marker at the model root used by the
// migration flow. It exists alongside manifest.specVersion so a migration
// interrupted between steps can resume from the right place.
const MarkerFile = ".spec-version"

// Step migrates a model directory from one spec version to its successor.
type Step struct {
	From        string
	To          string
	Description string
	// Transform rewrites the on-disk model. Nil means a marker-only bump.
	Transform func(store storage.Provider) error
}

// Registry maps each known spec version to the step leading to its
// successor.
type Registry struct {
	steps map[string]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds a step. At most one step may start from a given version.
func (r *Registry) Register(step Step) error {
	if step.From == "" || step.To == "" {
		return fmt.Errorf("migrate: step needs both versions (from=%q to=%q)", step.From, step.To)
	}
	if existing, ok := r.steps[step.From]; ok {
		return fmt.Errorf("migrate: version %s already migrates to %s", step.From, existing.To)
	}
	r.steps[step.From] = step
	return nil
}

// Path walks the version chain from one version to another. Equal versions
// yield an empty path; an unreachable target is ErrNoMigrationPath, never a
// silently truncated chain.
func (r *Registry) Path(from, to string) ([]Step, error) {
	if from == to {
		return nil, nil
	}
	var steps []Step
	visited := map[string]struct{}{from: {}}
	current := from
	for {
		step, ok := r.steps[current]
		if !ok {
			return nil, fmt.Errorf("migrate: %s -> %s: %w", from, to, apperr.ErrNoMigrationPath)
		}
		steps = append(steps, step)
		current = step.To
		if current == to {
			return steps, nil
		}
		if _, loop := visited[current]; loop {
			return nil, fmt.Errorf("migrate: %s -> %s: %w", from, to, apperr.ErrNoMigrationPath)
		}
		visited[current] = struct{}{}
	}
}

// Summary describes what a migration between two versions would change.
type Summary struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Steps []string `json:"steps"`
	Count int      `json:"count"`
}

// Summary resolves the path and returns its ordered step descriptions. A
// from == to summary has zero migrations.
func (r *Registry) Summary(from, to string) (*Summary, error) {
	steps, err := r.Path(from, to)
	if err != nil {
		return nil, err
	}
	out := &Summary{From: from, To: to, Count: len(steps)}
	for _, s := range steps {
		out.Steps = append(out.Steps, fmt.Sprintf("%s -> %s: %s", s.From, s.To, s.Description))
	}
	return out, nil
}

// Run applies every step on the path in order, updating the version marker
// after each successful step so an interrupted run resumes cleanly.
func (r *Registry) Run(store storage.Provider, from, to string, logger *slog.Logger) error {
	steps, err := r.Path(from, to)
	if err != nil {
		return err
	}
	for _, step := range steps {
		logger.Info("migrate: applying step",
			slog.String("from", step.From),
			slog.String("to", step.To),
			slog.String("description", step.Description))
		if step.Transform != nil {
			if err := step.Transform(store); err != nil {
				return fmt.Errorf("migrate: step %s -> %s: %w", step.From, step.To, err)
			}
		}
		if err := WriteVersion(store, step.To); err != nil {
			return err
		}
	}
	return nil
}

// ReadVersion returns the marker file's version, or ok=false when no marker
// has been written yet (first-generation models).
func ReadVersion(store storage.Provider) (string, bool, error) {
	exists, err := store.Exists(MarkerFile)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}
	data, err := store.Read(MarkerFile)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteVersion atomically updates the marker file.
func WriteVersion(store storage.Provider, version string) error {
	return store.Write(MarkerFile, []byte(version+"\n"))
}

// Default returns the registry with the built-in steps for the known spec
// versions.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(Step{
		From:        "1.0.0",
		To:          "1.1.0",
		Description: "backfill relationships arrays on layer documents",
		Transform:   backfillRelationships,
	})
	_ = r.Register(Step{
		From:        "1.1.0",
		To:          "2.0.0",
		Description: "restructure flat changeset files into per-changeset directories",
		Transform:   restructureChangesets,
	})
	return r
}

// backfillRelationships rewrites every layer document so each element
// carries a relationships key; 1.0.0 writers omitted it entirely.
func backfillRelationships(store storage.Provider) error {
	infos, err := store.List(model.LayersDir)
	if err != nil {
		return err
	}
	for _, info := range infos {
		data, err := store.Read(info.Path)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %v: %w", info.Path, err, apperr.ErrInvalidJSON)
		}
		elements, _ := doc["elements"].([]any)
		changed := false
		for _, raw := range elements {
			el, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if _, has := el["relationships"]; !has {
				el["relationships"] = []any{}
				changed = true
			}
		}
		if !changed {
			continue
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if err := store.Write(info.Path, out); err != nil {
			return err
		}
	}
	return nil
}

// restructureChangesets moves changesets/{slug}.json into the
// changesets/{slug}/changeset.json layout introduced in 2.0.0.
func restructureChangesets(store storage.Provider) error {
	infos, err := store.List(changeset.Dir)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if path.Dir(info.Path) != changeset.Dir {
			continue // already in the directory layout
		}
		slug := strings.TrimSuffix(path.Base(info.Path), ".json")
		target := path.Join(changeset.Dir, slug, "changeset.json")
		if err := store.Rename(info.Path, target); err != nil {
			return err
		}
	}
	return nil
}
