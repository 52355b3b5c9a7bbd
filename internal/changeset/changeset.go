// Package changeset records ordered batches of element mutations and
// applies or reverts them against a model with per-change failure
// accounting.
package changeset

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/starford/strata/internal/model"
)

// Status is the changeset lifecycle state. Applied and reverted are both
// re-enterable: a changeset can be applied, reverted, and applied again.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApplied  Status = "applied"
	StatusReverted Status = "reverted"
)

// Type discriminates the three change operations.
type Type string

const (
	TypeAdd    Type = "add"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
)

// Change is one element mutation. Add carries the new element state in
// After; delete carries the removed state in Before; update carries the
// changed fields in After and their prior values in Before. Seq fixes the
// application order.
type Change struct {
	Seq       int            `json:"seq"`
	Type      Type           `json:"type"`
	ElementID string         `json:"elementId"`
	Layer     string         `json:"layer"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
}

// Changeset is a named, ordered, reversible batch of changes.
type Changeset struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Changes     []Change `json:"changes"`
}

// AddChange appends a change with the next sequence number. There is no
// cross-validation against any model here: changesets can be authored
// before the model reaches the state they refer to.
func (cs *Changeset) AddChange(t Type, elementID, layer string, before, after map[string]any) Change {
	next := 1
	for _, c := range cs.Changes {
		if c.Seq >= next {
			next = c.Seq + 1
		}
	}
	c := Change{Seq: next, Type: t, ElementID: elementID, Layer: layer, Before: before, After: after}
	cs.Changes = append(cs.Changes, c)
	return c
}

// ChangeError pairs a failed change with its error message.
type ChangeError struct {
	Change Change `json:"change"`
	Err    string `json:"error"`
}

// Result reports a batch run. Every change is attempted; failures never
// stop the batch, so partial success is always inspectable.
type Result struct {
	Applied int           `json:"applied"`
	Failed  int           `json:"failed"`
	Errors  []ChangeError `json:"errors,omitempty"`
}

// Apply executes the changes in ascending sequence order against the model.
// Changes that succeed in-memory are not rolled back when later ones fail;
// callers persist the model only when Failed == 0.
func (cs *Changeset) Apply(m *model.Model) *Result {
	res := &Result{}
	for _, c := range cs.ordered(false) {
		if err := applyChange(m, c); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ChangeError{Change: c, Err: err.Error()})
			continue
		}
		res.Applied++
	}
	return res
}

// Revert executes the inverse of each change in descending sequence order:
// adds are deleted, deletes re-insert the recorded before state, updates
// restore the before fields. Accounting matches Apply.
func (cs *Changeset) Revert(m *model.Model) *Result {
	res := &Result{}
	for _, c := range cs.ordered(true) {
		if err := revertChange(m, c); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ChangeError{Change: c, Err: err.Error()})
			continue
		}
		res.Applied++
	}
	return res
}

// ordered returns the changes sorted by sequence number, descending when
// reverse is set. Later changes may depend on earlier ones (an edge to an
// element a prior change just added), so this ordering is part of the
// contract.
func (cs *Changeset) ordered(reverse bool) []Change {
	out := append([]Change(nil), cs.Changes...)
	sort.Slice(out, func(i, j int) bool {
		if reverse {
			return out[i].Seq > out[j].Seq
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func applyChange(m *model.Model, c Change) error {
	switch c.Type {
	case TypeAdd:
		e, err := elementFromState(c.ElementID, c.After)
		if err != nil {
			return err
		}
		return m.AddElement(c.Layer, e)
	case TypeUpdate:
		return m.UpdateElement(c.Layer, c.ElementID, c.After)
	case TypeDelete:
		_, err := m.DeleteElement(c.Layer, c.ElementID)
		return err
	default:
		return fmt.Errorf("changeset: unknown change type %q", c.Type)
	}
}

func revertChange(m *model.Model, c Change) error {
	switch c.Type {
	case TypeAdd:
		_, err := m.DeleteElement(c.Layer, c.ElementID)
		return err
	case TypeUpdate:
		return m.UpdateElement(c.Layer, c.ElementID, c.Before)
	case TypeDelete:
		e, err := elementFromState(c.ElementID, c.Before)
		if err != nil {
			return err
		}
		return m.AddElement(c.Layer, e)
	default:
		return fmt.Errorf("changeset: unknown change type %q", c.Type)
	}
}

// elementFromState decodes a recorded element state. The change's element
// id wins over whatever the state object carries.
func elementFromState(id string, state map[string]any) (*model.Element, error) {
	if state == nil {
		return nil, fmt.Errorf("changeset: element %s: missing element state", id)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("changeset: encode element state for %s: %w", id, err)
	}
	var e model.Element
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("changeset: decode element state for %s: %w", id, err)
	}
	if e.ID == "" {
		e.ID = id
	}
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return &e, nil
}
