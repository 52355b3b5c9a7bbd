// Package model defines the architecture model domain: elements grouped into
// the twelve fixed layers, the manifest, and load/save with atomic writes.
package model

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Reference is a directed, typed edge from one element to another.
// Targets may name ids that do not (yet) exist anywhere in the model.
type Reference struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Validate validates the reference's structural fields.
func (r Reference) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Target, validation.Required),
		validation.Field(&r.Type, validation.Required),
	)
}

// Relationship is a predicate-labelled edge with optional edge properties.
type Relationship struct {
	Predicate  string         `json:"predicate"`
	Target     string         `json:"target"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Validate validates the relationship's structural fields.
func (r Relationship) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Predicate, validation.Required),
		validation.Field(&r.Target, validation.Required),
	)
}

// Element is the atomic model unit. IDs are globally unique across the whole
// model, conventionally {layer}-{type}-{slug}. Properties hold JSON values
// (string, number, bool, null, array, object); their shape is validated by
// an external collaborator, not here.
type Element struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Properties    map[string]any `json:"properties"`
	References    []Reference    `json:"references,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Validate checks the element's structural invariants: identity fields are
// present and every outgoing edge has both endpoints and a label.
func (e *Element) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Type, validation.Required),
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.References),
		validation.Field(&e.Relationships),
	)
}

// Clone returns a deep copy via a JSON round trip. Properties are JSON
// values, so the round trip copies exactly what persistence would.
func (e *Element) Clone() *Element {
	data, err := json.Marshal(e)
	if err != nil {
		// Element fields are all JSON-encodable; this cannot fail for a
		// well-formed element.
		panic(fmt.Sprintf("model: clone element %s: %v", e.ID, err))
	}
	var out Element
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("model: clone element %s: %v", e.ID, err))
	}
	return &out
}

// Merge overlays the given top-level fields onto the element. Only keys
// present in fields change; Properties merge key-wise, slices are replaced
// wholesale (encoding/json semantics). The element id cannot be changed.
func (e *Element) Merge(fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	id := e.ID
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("model: encode merge fields for %s: %w", id, err)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("model: merge fields into %s: %w", id, err)
	}
	e.ID = id
	return nil
}

// Fields returns the element's current values for the given top-level JSON
// keys, suitable for recording the inverse of a pending merge.
func (e *Element) Fields(keys []string) map[string]any {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var full map[string]any
	if err := json.Unmarshal(data, &full); err != nil {
		return nil
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := full[k]; ok {
			out[k] = v
		}
	}
	return out
}
