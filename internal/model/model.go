package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/strata/internal/apperr"
	"github.com/starford/strata/internal/storage"
)

const (
	// ManifestFile is the manifest's path relative to the model root.
	ManifestFile = "manifest.json"
	// LayersDir holds one JSON document per materialized layer.
	LayersDir = "layers"
)

// LayerPath returns the on-disk path of a layer document relative to the
// model root.
func LayerPath(name string) string {
	return path.Join(LayersDir, name+".json")
}

// Options controls model loading.
type Options struct {
	// LazyLoad defers layer parsing to the first GetLayer call. When false,
	// every layer file is parsed during Load.
	LazyLoad bool
}

// Model owns the manifest and the lazily-loadable map of layers.
//
// A Model is not safe for concurrent mutation; callers serialize access.
// There is no cross-process lock either: two processes editing the same
// model root can race.
type Model struct {
	store    *storage.Dir
	manifest *Manifest
	layers   map[string]*Layer // only loaded or explicitly added layers
}

// Init creates a new model directory with a manifest and an empty layers
// directory, and returns the loaded model.
func Init(root string, manifest *Manifest) (*Model, error) {
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("model: invalid manifest: %w", err)
	}
	if err := os.MkdirAll(path.Join(root, LayersDir), 0o755); err != nil {
		return nil, fmt.Errorf("model: create model dirs: %w", err)
	}
	store, err := storage.NewDir(root)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if manifest.Created.IsZero() {
		manifest.Created = now
	}
	manifest.Modified = now
	m := &Model{store: store, manifest: manifest, layers: make(map[string]*Layer)}
	if err := m.SaveManifest(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load opens the model at root. A missing root or manifest is a
// ErrModelNotFound; a malformed manifest or layer file is ErrInvalidJSON.
func Load(root string, opts Options) (*Model, error) {
	store, err := storage.NewDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model: root %s: %w", root, apperr.ErrModelNotFound)
		}
		return nil, err
	}

	exists, err := store.Exists(ManifestFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("model: %s in %s: %w", ManifestFile, root, apperr.ErrModelNotFound)
	}
	data, err := store.Read(ManifestFile)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("model: parse %s: %v: %w", ManifestFile, err, apperr.ErrInvalidJSON)
	}

	m := &Model{store: store, manifest: &manifest, layers: make(map[string]*Layer)}
	if !opts.LazyLoad {
		if err := m.loadAllLayers(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// loadAllLayers parses every layer file eagerly. The parses are independent
// reads, so they fan out through an errgroup; results land in the layer map
// under a mutex before Load returns.
func (m *Model) loadAllLayers() error {
	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())
	for _, name := range Names {
		name := name
		g.Go(func() error {
			layer, err := m.readLayer(name)
			if err != nil {
				return err
			}
			mu.Lock()
			m.layers[name] = layer
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// readLayer parses one layer file. An absent file is a legitimate empty
// layer, distinct from a parse failure.
func (m *Model) readLayer(name string) (*Layer, error) {
	layer, err := NewLayer(name)
	if err != nil {
		return nil, err
	}
	p := LayerPath(name)
	exists, err := m.store.Exists(p)
	if err != nil {
		return nil, err
	}
	if !exists {
		return layer, nil
	}
	data, err := m.store.Read(p)
	if err != nil {
		return nil, err
	}
	var doc layerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("model: parse layer %s: %v: %w", name, err, apperr.ErrInvalidJSON)
	}
	for _, e := range doc.Elements {
		if err := layer.Add(e); err != nil {
			return nil, err
		}
	}
	layer.markClean()
	return layer, nil
}

// Manifest returns the model's manifest.
func (m *Model) Manifest() *Manifest { return m.manifest }

// Root returns the absolute model root path.
func (m *Model) Root() string { return m.store.Root() }

// Store exposes the model's storage provider to collaborators (changesets,
// migrations) that persist alongside the model.
func (m *Model) Store() storage.Provider { return m.store }

// GetLayer returns the named layer, loading it on first access. An unknown
// layer name is ErrLayerNotFound; an absent layer file is an empty layer.
func (m *Model) GetLayer(name string) (*Layer, error) {
	if !IsLayerName(name) {
		return nil, fmt.Errorf("model: layer %q: %w", name, apperr.ErrLayerNotFound)
	}
	if layer, ok := m.layers[name]; ok {
		return layer, nil
	}
	layer, err := m.readLayer(name)
	if err != nil {
		return nil, err
	}
	m.layers[name] = layer
	return layer, nil
}

// AddLayer registers an in-memory layer and marks it dirty.
func (m *Model) AddLayer(layer *Layer) {
	layer.dirty = true
	m.layers[layer.Name()] = layer
}

// LoadedLayers returns the layers that are currently materialized in
// memory, in canonical layer order.
func (m *Model) LoadedLayers() []*Layer {
	out := make([]*Layer, 0, len(m.layers))
	for _, name := range Names {
		if layer, ok := m.layers[name]; ok {
			out = append(out, layer)
		}
	}
	return out
}

// FindElement locates an element by id anywhere in the model, loading
// layers as needed. Returns the element and its layer name, or
// ErrElementNotFound.
func (m *Model) FindElement(id string) (*Element, string, error) {
	for _, name := range Names {
		layer, err := m.GetLayer(name)
		if err != nil {
			return nil, "", err
		}
		if e, ok := layer.Get(id); ok {
			return e, name, nil
		}
	}
	return nil, "", fmt.Errorf("model: element %q: %w", id, apperr.ErrElementNotFound)
}

// AddElement inserts an element into the named layer, enforcing id
// uniqueness across the whole model, not just the target layer.
func (m *Model) AddElement(layerName string, e *Element) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("model: element %q: %w", e.ID, err)
	}
	_, owner, err := m.FindElement(e.ID)
	if err == nil {
		return fmt.Errorf("model: element %q already in layer %s: %w", e.ID, owner, apperr.ErrDuplicateElement)
	}
	// Only a confirmed miss may proceed; a layer that failed to load would
	// make the uniqueness scan incomplete.
	if !errors.Is(err, apperr.ErrElementNotFound) {
		return err
	}
	layer, err := m.GetLayer(layerName)
	if err != nil {
		return err
	}
	return layer.Add(e)
}

// UpdateElement merges fields into an element in the named layer.
func (m *Model) UpdateElement(layerName, id string, fields map[string]any) error {
	layer, err := m.GetLayer(layerName)
	if err != nil {
		return err
	}
	return layer.Update(id, fields)
}

// DeleteElement removes an element from the named layer and returns its
// final state.
func (m *Model) DeleteElement(layerName, id string) (*Element, error) {
	layer, err := m.GetLayer(layerName)
	if err != nil {
		return nil, err
	}
	return layer.Delete(id)
}

// SaveManifest atomically persists the manifest, bumping its modified
// timestamp.
func (m *Model) SaveManifest() error {
	m.manifest.Touch(time.Now())
	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("model: encode manifest: %w", err)
	}
	return m.store.Write(ManifestFile, data)
}

// SaveLayer atomically persists one loaded layer and clears its dirty flag.
func (m *Model) SaveLayer(name string) error {
	layer, ok := m.layers[name]
	if !ok {
		return fmt.Errorf("model: layer %q not loaded: %w", name, apperr.ErrLayerNotFound)
	}
	doc := layerDocument{Elements: layer.Elements()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("model: encode layer %s: %w", name, err)
	}
	if err := m.store.Write(LayerPath(name), data); err != nil {
		return err
	}
	layer.markClean()
	return nil
}

// SaveDirtyLayers persists every loaded layer with unsaved changes.
func (m *Model) SaveDirtyLayers() error {
	for _, layer := range m.LoadedLayers() {
		if !layer.Dirty() {
			continue
		}
		if err := m.SaveLayer(layer.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Save persists dirty layers and the manifest.
func (m *Model) Save() error {
	if err := m.SaveDirtyLayers(); err != nil {
		return err
	}
	return m.SaveManifest()
}
