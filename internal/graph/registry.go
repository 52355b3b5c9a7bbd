// Package graph builds the cross-layer dependency graph from element
// references and relationships, and provides the pure query algorithms used
// for impact analysis and cycle detection.
package graph

import (
	"sort"

	"github.com/starford/strata/internal/model"
)

// Registry scans elements and accumulates their outgoing edges. A registry
// is built fresh from a model snapshot for each analysis session; it is not
// incrementally maintained and there is no process-wide instance.
type Registry struct {
	nodes    map[string]struct{}
	forward  map[string]map[string]struct{} // id -> ids it depends on
	backward map[string]map[string]struct{} // id -> ids that depend on it
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:    make(map[string]struct{}),
		forward:  make(map[string]map[string]struct{}),
		backward: make(map[string]map[string]struct{}),
	}
}

// RegisterElement indexes every reference and relationship edge originating
// from e. Edge targets become graph nodes even when no element with that id
// was ever registered: dangling references are first-class nodes, not errors.
func (r *Registry) RegisterElement(e *model.Element) {
	r.nodes[e.ID] = struct{}{}
	for _, ref := range e.References {
		src := ref.Source
		if src == "" {
			src = e.ID
		}
		r.addEdge(src, ref.Target)
	}
	for _, rel := range e.Relationships {
		r.addEdge(e.ID, rel.Target)
	}
}

// RegisterModel walks every layer of the model (loading as needed) and
// registers all elements.
func (r *Registry) RegisterModel(m *model.Model) error {
	for _, name := range model.Names {
		layer, err := m.GetLayer(name)
		if err != nil {
			return err
		}
		for _, e := range layer.Elements() {
			r.RegisterElement(e)
		}
	}
	return nil
}

func (r *Registry) addEdge(source, target string) {
	if source == "" || target == "" {
		return
	}
	r.nodes[source] = struct{}{}
	r.nodes[target] = struct{}{}
	if r.forward[source] == nil {
		r.forward[source] = make(map[string]struct{})
	}
	r.forward[source][target] = struct{}{}
	if r.backward[target] == nil {
		r.backward[target] = make(map[string]struct{})
	}
	r.backward[target][source] = struct{}{}
}

// Graph returns an immutable snapshot of everything registered so far.
// Adjacency is set-based, so registration order cannot change query results.
func (r *Registry) Graph() *Graph {
	g := &Graph{
		nodes:    make(map[string]struct{}, len(r.nodes)),
		forward:  make(map[string][]string, len(r.forward)),
		backward: make(map[string][]string, len(r.backward)),
	}
	for id := range r.nodes {
		g.nodes[id] = struct{}{}
	}
	for id, set := range r.forward {
		g.forward[id] = sortedKeys(set)
		g.edgeCount += len(set)
	}
	for id, set := range r.backward {
		g.backward[id] = sortedKeys(set)
	}
	return g
}

// Graph is an immutable dependency graph snapshot: the node set plus
// forward (dependencies) and backward (dependents) adjacency, both kept in
// sorted order for deterministic traversal.
type Graph struct {
	nodes     map[string]struct{}
	forward   map[string][]string
	backward  map[string][]string
	edgeCount int
}

// Nodes returns every node id in sorted order.
func (g *Graph) Nodes() []string {
	return sortedKeys(g.nodes)
}

// HasNode reports whether id appears in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Dependencies returns the direct forward neighbors of id. Unknown ids
// yield an empty result.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.forward[id]...)
}

// Dependents returns the direct backward neighbors of id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.backward[id]...)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
