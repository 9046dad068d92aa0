// Package dag provides the mutable build dependency graph: a directed
// acyclic graph of build nodes with adjacency in both directions, root
// selections, and the invalidation-dirty bookkeeping the codegen engine
// relies on when it splices synthetic nodes into the graph.
package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when an edge would introduce a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// Node represents a single build unit in the graph.
type Node struct {
	ID      string
	Kind    string   // target kind, e.g. "proto_library"
	Path    string   // address path relative to the build root
	Sources []string // declared source files, relative to Path

	// Synthetic marks nodes materialized by the codegen engine to wrap
	// generated output. DerivedFrom holds the originating node's ID and is
	// empty for declared nodes.
	Synthetic   bool
	DerivedFrom string

	// HashDirty is set when a transitive input changed underneath this node,
	// forcing its fingerprint to be recomputed rather than read from cache.
	HashDirty bool
}

// DAG represents the build dependency graph. Edges point from a node to its
// dependencies: if A depends on B, there is an edge from A to B.
type DAG struct {
	nodes map[string]*Node
	// adjacency maps nodeID → set of dependency IDs (forward edges).
	adjacency map[string]map[string]bool
	// reverse maps nodeID → set of dependent IDs (backward edges).
	reverse map[string]map[string]bool
	// roots is the build's root selection set.
	roots map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
		roots:     make(map[string]bool),
	}
}

// AddNode adds a node to the graph. Returns ErrDuplicateNode if a node with
// the same ID already exists.
func (d *DAG) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrNodeNotFound)
	}
	if _, exists := d.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	d.nodes[n.ID] = n
	d.adjacency[n.ID] = make(map[string]bool)
	d.reverse[n.ID] = make(map[string]bool)
	return nil
}

// AddEdge adds a dependency edge: from depends on to. Both nodes must
// already exist. Returns an error if either node is missing, the edge
// would create a self-loop, or the edge would introduce a cycle.
func (d *DAG) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfEdge, from)
	}
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	// Skip if edge already exists.
	if d.adjacency[from][to] {
		return nil
	}
	// Adding from→to creates a cycle iff 'to' can already reach 'from'.
	if d.hasPath(to, from) {
		return fmt.Errorf("%w: edge %s → %s would create a cycle", ErrCycle, from, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// InjectDependents adds an edge from every listed dependent to dependency in
// one pass. Cycle checking is amortized: the dependency's forward reach is
// computed once, so the cost is O(reachable + len(dependents)) rather than
// one full path query per injected edge.
func (d *DAG) InjectDependents(dependency string, dependents []string) error {
	if _, ok := d.nodes[dependency]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, dependency)
	}
	reach := d.reachable(dependency)
	for _, dep := range dependents {
		if dep == dependency {
			return fmt.Errorf("%w: %s", ErrSelfEdge, dep)
		}
		if _, ok := d.nodes[dep]; !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, dep)
		}
		if reach[dep] {
			return fmt.Errorf("%w: edge %s → %s would create a cycle", ErrCycle, dep, dependency)
		}
	}
	for _, dep := range dependents {
		d.adjacency[dep][dependency] = true
		d.reverse[dependency][dep] = true
	}
	return nil
}

// InjectDependencies adds an edge from dependent to every listed dependency
// in one pass, with the same amortized cycle check as InjectDependents.
func (d *DAG) InjectDependencies(dependent string, dependencies []string) error {
	if _, ok := d.nodes[dependent]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, dependent)
	}
	for _, dep := range dependencies {
		if dep == dependent {
			return fmt.Errorf("%w: %s", ErrSelfEdge, dep)
		}
		if _, ok := d.nodes[dep]; !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, dep)
		}
	}
	// One reverse walk from the dependent covers every candidate edge.
	back := d.reachableReverse(dependent)
	back[dependent] = true
	for _, dep := range dependencies {
		if back[dep] {
			return fmt.Errorf("%w: edge %s → %s would create a cycle", ErrCycle, dependent, dep)
		}
	}
	for _, dep := range dependencies {
		d.adjacency[dependent][dep] = true
		d.reverse[dep][dependent] = true
	}
	return nil
}

// Remove removes a node and all its associated edges from the DAG.
// Returns ErrNodeNotFound if the node does not exist.
func (d *DAG) Remove(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for dep := range d.adjacency[id] {
		delete(d.reverse[dep], id)
	}
	delete(d.adjacency, id)

	for dependent := range d.reverse[id] {
		delete(d.adjacency[dependent], id)
	}
	delete(d.reverse, id)

	delete(d.nodes, id)
	delete(d.roots, id)
	return nil
}

// PruneSynthetics removes every synthetic node from the graph. Synthetic
// nodes are recreated fresh each execution round; carrying the previous
// round's nodes forward would let stale source lists survive a regeneration.
func (d *DAG) PruneSynthetics() int {
	var stale []string
	for id, n := range d.nodes {
		if n.Synthetic {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		_ = d.Remove(id)
	}
	return len(stale)
}

// Node returns the node with the given ID, or nil if not found.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all node IDs in the DAG, sorted alphabetically.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// Dependencies returns the direct dependencies of id, sorted alphabetically.
func (d *DAG) Dependencies(id string) []string {
	return sortedKeys(d.adjacency[id])
}

// Dependents returns the direct dependents of id, sorted alphabetically.
func (d *DAG) Dependents(id string) []string {
	return sortedKeys(d.reverse[id])
}

// AddRoot marks a node as part of the build's root selection set.
// Returns ErrNodeNotFound if the node does not exist.
func (d *DAG) AddRoot(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	d.roots[id] = true
	return nil
}

// IsRoot reports whether a node is part of the root selection set.
func (d *DAG) IsRoot(id string) bool {
	return d.roots[id]
}

// Roots returns the root selection set, sorted alphabetically.
func (d *DAG) Roots() []string {
	return sortedKeys(d.roots)
}

// TopologicalSort returns node IDs in a valid topological order
// (dependencies come before dependents), with alphabetical ordering
// among ties. Returns ErrCycle if the graph contains a cycle.
func (d *DAG) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = len(d.adjacency[id])
	}

	queue := d.zeroDegreeNodes(inDegree)
	sort.Strings(queue)

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []string
		for dependent := range d.reverse[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		if len(freed) > 0 {
			sort.Strings(freed)
			queue = append(queue, freed...)
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("%w: not all nodes could be ordered (%d of %d)",
			ErrCycle, len(sorted), len(d.nodes))
	}
	return sorted, nil
}

// Ancestors returns all transitive dependencies of the given node
// (everything it transitively depends on), sorted alphabetically.
// Returns nil if the node has no dependencies or does not exist.
func (d *DAG) Ancestors(id string) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return sortedKeys(d.reachable(id))
}

// Descendants returns all transitive dependents of the given node
// (everything that transitively depends on it), sorted alphabetically.
// Returns nil if the node has no dependents or does not exist.
func (d *DAG) Descendants(id string) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return sortedKeys(d.reachableReverse(id))
}

// MarkDependeesDirty walks the transitive dependee (dependent) graph from
// every seed node, setting HashDirty on each node reached, seeds included.
// A single visited set is shared across all seeds so that a node reachable
// via multiple paths is visited exactly once per call. Returns the number of
// nodes marked.
func (d *DAG) MarkDependeesDirty(seeds []string) int {
	visited := make(map[string]bool)
	queue := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := d.nodes[id]; !ok || visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, id)
	}
	marked := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		d.nodes[id].HashDirty = true
		marked++
		for dependent := range d.reverse[id] {
			if !visited[dependent] {
				visited[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}
	return marked
}

// hasPath reports whether there is a directed path from src to dst
// through the dependency graph (forward edges).
func (d *DAG) hasPath(src, dst string) bool {
	if src == dst {
		return false
	}
	return d.reachable(src)[dst]
}

// reachable returns the set of nodes reachable from src over forward edges
// (the transitive dependencies). src itself is excluded.
func (d *DAG) reachable(src string) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.adjacency[cur] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	delete(visited, src)
	return visited
}

// reachableReverse returns the set of nodes reachable from src over reverse
// edges (the transitive dependents). src itself is excluded.
func (d *DAG) reachableReverse(src string) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.reverse[cur] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	delete(visited, src)
	return visited
}

// zeroDegreeNodes returns IDs from the in-degree map that have zero value.
func (d *DAG) zeroDegreeNodes(inDegree map[string]int) []string {
	var result []string
	for id, deg := range inDegree {
		if deg == 0 {
			result = append(result, id)
		}
	}
	return result
}

// sortedKeys returns the keys of a string set, sorted alphabetically.
func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
