package model

import (
	"fmt"
	"sort"

	"github.com/starford/strata/internal/apperr"
)

// Names lists the twelve fixed layer identifiers in canonical order.
var Names = []string{
	"motivation",
	"business",
	"security",
	"application",
	"technology",
	"api",
	"data-model",
	"data-store",
	"ux",
	"navigation",
	"apm",
	"testing",
}

var nameSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(Names))
	for _, n := range Names {
		s[n] = struct{}{}
	}
	return s
}()

// IsLayerName reports whether name is one of the fixed layer identifiers.
func IsLayerName(name string) bool {
	_, ok := nameSet[name]
	return ok
}

// Layer is a named collection of elements for one of the fixed layer names.
// The dirty flag drives lazy persistence: only dirty layers are rewritten by
// SaveDirtyLayers.
type Layer struct {
	name     string
	elements map[string]*Element
	dirty    bool
}

// NewLayer creates an empty in-memory layer. The name must be one of the
// fixed layer identifiers.
func NewLayer(name string) (*Layer, error) {
	if !IsLayerName(name) {
		return nil, fmt.Errorf("model: layer %q: %w", name, apperr.ErrLayerNotFound)
	}
	return &Layer{name: name, elements: make(map[string]*Element)}, nil
}

// Name returns the layer's fixed identifier.
func (l *Layer) Name() string { return l.name }

// Dirty reports whether the layer has unsaved changes.
func (l *Layer) Dirty() bool { return l.dirty }

// Len returns the number of elements in the layer.
func (l *Layer) Len() int { return len(l.elements) }

// Get returns the element with the given id, or false if absent.
func (l *Layer) Get(id string) (*Element, bool) {
	e, ok := l.elements[id]
	return e, ok
}

// Add inserts a new element. The id must not already exist in this layer;
// cross-layer uniqueness is enforced by Model.AddElement.
func (l *Layer) Add(e *Element) error {
	if _, exists := l.elements[e.ID]; exists {
		return fmt.Errorf("model: element %q in layer %s: %w", e.ID, l.name, apperr.ErrDuplicateElement)
	}
	l.elements[e.ID] = e
	l.dirty = true
	return nil
}

// Update merges fields into an existing element.
func (l *Layer) Update(id string, fields map[string]any) error {
	e, ok := l.elements[id]
	if !ok {
		return fmt.Errorf("model: element %q in layer %s: %w", id, l.name, apperr.ErrElementNotFound)
	}
	if err := e.Merge(fields); err != nil {
		return err
	}
	l.dirty = true
	return nil
}

// Delete removes an element by id and returns its final state.
func (l *Layer) Delete(id string) (*Element, error) {
	e, ok := l.elements[id]
	if !ok {
		return nil, fmt.Errorf("model: element %q in layer %s: %w", id, l.name, apperr.ErrElementNotFound)
	}
	delete(l.elements, id)
	l.dirty = true
	return e, nil
}

// Elements returns the layer's elements sorted by id, so output never
// depends on map iteration order.
func (l *Layer) Elements() []*Element {
	out := make([]*Element, 0, len(l.elements))
	for _, e := range l.elements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// markClean clears the dirty flag after a successful save.
func (l *Layer) markClean() { l.dirty = false }

// layerDocument is the on-disk shape of layers/{name}.json.
type layerDocument struct {
	Elements []*Element `json:"elements"`
}
