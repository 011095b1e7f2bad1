// # Modified from https://github.com/kro-run/kro/blob/7e437f2fe159a1e1c59d8eefd2bfa55320df4489/pkg/graph/dag/dag.go under Apache 2.0 License
//
// Original License:
//
// Copyright 2025 The Kube Resource Orchestrator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//     http://aws.amazon.com/apache2.0/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package dag implements a directed acyclic graph whose outgoing edges keep
// the order in which they were added.
package dag

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	ErrSelfReference = errors.New("self-references are not allowed")
	ErrAlreadyExists = errors.New("vertex already exists in the graph")
	ErrNotFound      = errors.New("vertex does not exist in the graph")
)

// AttributeOrderIndex is set on every edge to its position among the
// outgoing edges of its source vertex.
const AttributeOrderIndex = "dag/order-index"

// Vertex represents a node/vertex in a directed acyclic graph.
type Vertex[T cmp.Ordered] struct {
	// ID is a unique identifier for the node
	ID T
	// Attributes stores the attributes of the node.
	Attributes map[string]any

	edges     []T
	edgeAttrs map[T]map[string]any
}

// Edges returns the targets of the outgoing edges in insertion order.
func (v *Vertex[T]) Edges() []T {
	return slices.Clone(v.edges)
}

// EdgeAttributes returns the attributes of the edge to the given target.
func (v *Vertex[T]) EdgeAttributes(to T) (map[string]any, bool) {
	attrs, ok := v.edgeAttrs[to]
	return attrs, ok
}

// Attribute returns a typed vertex attribute.
func Attribute[V any, T cmp.Ordered](v *Vertex[T], key string) (V, bool) {
	raw, ok := v.Attributes[key]
	if !ok {
		var zero V
		return zero, false
	}
	val, ok := raw.(V)
	return val, ok
}

// DirectedAcyclicGraph represents a directed acyclic graph.
// It is safe for concurrent use.
type DirectedAcyclicGraph[T cmp.Ordered] struct {
	mu       sync.RWMutex
	vertices map[T]*Vertex[T]
	inDegree map[T]int
}

// NewDirectedAcyclicGraph creates a new directed acyclic graph.
func NewDirectedAcyclicGraph[T cmp.Ordered]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{
		vertices: make(map[T]*Vertex[T]),
		inDegree: make(map[T]int),
	}
}

// AddVertex adds a new node to the graph.
func (d *DirectedAcyclicGraph[T]) AddVertex(id T, attributes ...map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.vertices[id]; exists {
		return fmt.Errorf("node %v already exists: %w", id, ErrAlreadyExists)
	}
	vertex := &Vertex[T]{
		ID:         id,
		Attributes: make(map[string]any),
		edgeAttrs:  make(map[T]map[string]any),
	}
	for _, attrs := range attributes {
		maps.Copy(vertex.Attributes, attrs)
	}
	d.vertices[id] = vertex
	d.inDegree[id] = 0
	return nil
}

type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("the graph would contain a cycle: %s", strings.Join(e.Cycle, " -> "))
}

// AddEdge adds a directed edge from one node to another. Adding an existing
// edge again only merges the attributes.
func (d *DirectedAcyclicGraph[T]) AddEdge(from, to T, attributes ...map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fromNode, ok := d.vertices[from]
	if !ok {
		return fmt.Errorf("node %v: %w", from, ErrNotFound)
	}
	if _, ok := d.vertices[to]; !ok {
		return fmt.Errorf("node %v: %w", to, ErrNotFound)
	}
	if from == to {
		return ErrSelfReference
	}

	attrs, exists := fromNode.edgeAttrs[to]
	if !exists {
		if path := d.path(to, from); path != nil {
			cycle := make([]string, 0, len(path)+1)
			cycle = append(cycle, fmt.Sprint(from))
			for _, p := range path {
				cycle = append(cycle, fmt.Sprint(p))
			}
			return fmt.Errorf("adding an edge from %v to %v: %w", from, to, &CycleError{Cycle: cycle})
		}
		attrs = map[string]any{AttributeOrderIndex: len(fromNode.edges)}
		fromNode.edges = append(fromNode.edges, to)
		fromNode.edgeAttrs[to] = attrs
		d.inDegree[to]++
	}
	for _, a := range attributes {
		maps.Copy(attrs, a)
	}
	return nil
}

// path returns a path from -> ... -> to if one exists. Callers hold the lock.
func (d *DirectedAcyclicGraph[T]) path(from, to T) []T {
	visited := make(map[T]bool)
	var walk func(T) []T
	walk = func(node T) []T {
		if node == to {
			return []T{node}
		}
		visited[node] = true
		for _, next := range d.vertices[node].edges {
			if visited[next] {
				continue
			}
			if rest := walk(next); rest != nil {
				return append([]T{node}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

func (d *DirectedAcyclicGraph[T]) GetVertex(id T) (*Vertex[T], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.vertices[id]
	return v, ok
}

func (d *DirectedAcyclicGraph[T]) Contains(id T) bool {
	_, ok := d.GetVertex(id)
	return ok
}

func (d *DirectedAcyclicGraph[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.vertices)
}

// Neighbors returns the outgoing edges of id in insertion order.
func (d *DirectedAcyclicGraph[T]) Neighbors(id T) []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if v, ok := d.vertices[id]; ok {
		return slices.Clone(v.edges)
	}
	return nil
}

func (d *DirectedAcyclicGraph[T]) GetInDegree(id T) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	in, ok := d.inDegree[id]
	return in, ok
}

// GetVertices returns the nodes in the graph in sorted order.
func (d *DirectedAcyclicGraph[T]) GetVertices() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.vertices))
}

// Roots returns all vertices without incoming edges in sorted order.
func (d *DirectedAcyclicGraph[T]) Roots() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var roots []T
	for id, in := range d.inDegree {
		if in == 0 {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}

// TopologicalSort returns the vertices so that every vertex is listed after
// all vertices it has an edge to. The order is deterministic.
func (d *DirectedAcyclicGraph[T]) TopologicalSort() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()

	visited := make(map[T]bool, len(d.vertices))
	order := make([]T, 0, len(d.vertices))
	var dfs func(T)
	dfs = func(node T) {
		visited[node] = true
		for _, neighbor := range d.vertices[node].edges {
			if !visited[neighbor] {
				dfs(neighbor)
			}
		}
		order = append(order, node)
	}
	for _, node := range slices.Sorted(maps.Keys(d.vertices)) {
		if !visited[node] {
			dfs(node)
		}
	}
	return order
}

// Reverse converts Parent → Child to Child → Parent.
func (d *DirectedAcyclicGraph[T]) Reverse() *DirectedAcyclicGraph[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reverse := NewDirectedAcyclicGraph[T]()
	ids := slices.Sorted(maps.Keys(d.vertices))
	for _, id := range ids {
		reverse.vertices[id] = &Vertex[T]{
			ID:         id,
			Attributes: maps.Clone(d.vertices[id].Attributes),
			edgeAttrs:  make(map[T]map[string]any),
		}
		reverse.inDegree[id] = 0
	}
	for _, id := range ids {
		for _, child := range d.vertices[id].edges {
			rv := reverse.vertices[child]
			rv.edgeAttrs[id] = map[string]any{AttributeOrderIndex: len(rv.edges)}
			rv.edges = append(rv.edges, id)
			reverse.inDegree[id]++
		}
	}
	return reverse
}

// VertexMapRepresentation is a map-based representation of a vertex for easier testing and inspection.
type VertexMapRepresentation[T cmp.Ordered] struct {
	ID         T
	Attributes map[string]any
	Edges      []T
}

// ToMap converts the graph into a plain map for testing and inspection.
func (d *DirectedAcyclicGraph[T]) ToMap() map[T]*VertexMapRepresentation[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[T]*VertexMapRepresentation[T], len(d.vertices))
	for id, v := range d.vertices {
		out[id] = &VertexMapRepresentation[T]{
			ID:         id,
			Attributes: maps.Clone(v.Attributes),
			Edges:      slices.Clone(v.edges),
		}
	}
	return out
}
