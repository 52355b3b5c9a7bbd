package graph

import (
	"sort"
	"strings"
)

// Tracker answers dependency queries over one immutable Graph snapshot.
// All algorithms are visited-set bounded, so they terminate on cyclic input,
// and unknown ids yield empty results rather than errors. If the underlying
// model changes, the snapshot is stale and must be rebuilt.
type Tracker struct {
	g *Graph
}

// NewTracker creates a tracker over the given snapshot.
func NewTracker(g *Graph) *Tracker {
	return &Tracker{g: g}
}

// Dependencies returns the ids that id directly depends on.
func (t *Tracker) Dependencies(id string) []string {
	return t.g.Dependencies(id)
}

// Dependents returns the ids that directly depend on id.
func (t *Tracker) Dependents(id string) []string {
	return t.g.Dependents(id)
}

// TransitiveDependencies returns the closure of ids reachable from id along
// forward edges. The start id is excluded unless a cycle loops back to it,
// in which case it appears exactly once.
func (t *Tracker) TransitiveDependencies(id string) []string {
	return t.closure(id, t.g.Dependencies)
}

// TransitiveDependents returns the closure of ids that transitively depend
// on id, with the same self-inclusion rule as TransitiveDependencies.
func (t *Tracker) TransitiveDependents(id string) []string {
	return t.closure(id, t.g.Dependents)
}

// closure is a BFS over next() neighbors. The start node is not seeded into
// the visited set, so it enters the result only when a cycle reaches it.
func (t *Tracker) closure(start string, next func(string) []string) []string {
	visited := make(map[string]struct{})
	queue := next(start)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, next(id)...)
	}
	out := sortedKeys(visited)
	return out
}

// ImpactRadius returns the exact number of elements transitively affected
// if id changes.
func (t *Tracker) ImpactRadius(id string) int {
	return len(t.TransitiveDependents(id))
}

// DependencyDepth returns the length of the longest forward chain from id
// to a terminal (no outgoing edges) node. Edges that would revisit a node
// already on the current chain are skipped, so cycles cannot extend a chain
// indefinitely.
func (t *Tracker) DependencyDepth(id string) int {
	if !t.g.HasNode(id) {
		return 0
	}
	onPath := make(map[string]struct{})
	return t.longestChain(id, onPath)
}

func (t *Tracker) longestChain(id string, onPath map[string]struct{}) int {
	onPath[id] = struct{}{}
	defer delete(onPath, id)

	best := 0
	for _, next := range t.g.Dependencies(id) {
		if _, active := onPath[next]; active {
			continue
		}
		if d := 1 + t.longestChain(next, onPath); d > best {
			best = d
		}
	}
	return best
}

// DetectCycles returns every distinct elementary cycle as an ordered id
// sequence starting at the cycle's smallest id. Rotations and reflections
// of the same cycle are reported once; an acyclic graph yields an empty
// slice.
func (t *Tracker) DetectCycles() [][]string {
	var cycles [][]string
	seen := make(map[string]struct{})

	// Each cycle is discovered from its lexicographically smallest node by
	// restricting the search to ids >= the start id. That fixes the
	// rotation; reflections are folded by a canonical key comparison.
	for _, start := range t.g.Nodes() {
		path := []string{start}
		onPath := map[string]struct{}{start: {}}
		t.cycleSearch(start, start, path, onPath, &cycles, seen)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], "\x00") < strings.Join(cycles[j], "\x00")
	})
	return cycles
}

func (t *Tracker) cycleSearch(start, current string, path []string, onPath map[string]struct{}, cycles *[][]string, seen map[string]struct{}) {
	for _, next := range t.g.Dependencies(current) {
		if next == start {
			key := cycleKey(path)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				*cycles = append(*cycles, append([]string(nil), path...))
			}
			continue
		}
		if next < start {
			continue
		}
		if _, active := onPath[next]; active {
			continue
		}
		onPath[next] = struct{}{}
		t.cycleSearch(start, next, append(path, next), onPath, cycles, seen)
		delete(onPath, next)
	}
}

// cycleKey folds a cycle and its reversal into one canonical key. The path
// already starts at the smallest id, so reversing and rotating back to that
// id identifies the mirrored traversal of the same node set.
func cycleKey(path []string) string {
	forward := strings.Join(path, "\x00")
	if len(path) < 3 {
		return forward
	}
	rev := make([]string, len(path))
	rev[0] = path[0]
	for i := 1; i < len(path); i++ {
		rev[i] = path[len(path)-i]
	}
	backward := strings.Join(rev, "\x00")
	if backward < forward {
		return backward
	}
	return forward
}

// Metrics summarizes the graph: node and edge counts, the number of
// connected components in the undirected view, and the cycle count.
type Metrics struct {
	NodeCount           int `json:"nodeCount"`
	EdgeCount           int `json:"edgeCount"`
	ConnectedComponents int `json:"connectedComponents"`
	CycleCount          int `json:"cycleCount"`
}

// Metrics computes aggregate graph metrics.
func (t *Tracker) Metrics() Metrics {
	return Metrics{
		NodeCount:           t.g.NodeCount(),
		EdgeCount:           t.g.EdgeCount(),
		ConnectedComponents: t.connectedComponents(),
		CycleCount:          len(t.DetectCycles()),
	}
}

// connectedComponents counts components over the undirected view of the
// graph via BFS from each unvisited node.
func (t *Tracker) connectedComponents() int {
	visited := make(map[string]struct{})
	count := 0
	for _, start := range t.g.Nodes() {
		if _, seen := visited[start]; seen {
			continue
		}
		count++
		queue := []string{start}
		visited[start] = struct{}{}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, n := range t.g.Dependencies(id) {
				if _, seen := visited[n]; !seen {
					visited[n] = struct{}{}
					queue = append(queue, n)
				}
			}
			for _, n := range t.g.Dependents(id) {
				if _, seen := visited[n]; !seen {
					visited[n] = struct{}{}
					queue = append(queue, n)
				}
			}
		}
	}
	return count
}
