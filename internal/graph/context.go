// Package graph provides the request-scoped graph context that subgraph
// construction and analytics operate on. A Context is built for a single
// analysis call and discarded with it; it is never shared between requests.
package graph

import (
	"errors"
	"fmt"
)

// NodeKind identifies the closed set of node variants in a graph context.
type NodeKind string

const (
	NodeSubject NodeKind = "subject"
	NodeBank    NodeKind = "bank"
	NodeEntity  NodeKind = "entity"
)

// EdgeTransaction is the edge kind for money movement between two nodes.
const EdgeTransaction = "transaction"

var (
	// ErrDanglingEdge indicates an edge referencing a node that is not part
	// of the context. This is a builder defect, not user input.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrInvalidNode indicates a node with an empty id or an unknown kind.
	ErrInvalidNode = errors.New("invalid node")
)

// Node is a vertex in the graph context, unique by ID.
type Node struct {
	ID         string            `json:"id"`
	Kind       NodeKind          `json:"kind"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Edge is a directed edge carrying the transaction amount as weight and the
// originating transaction id as reference. Analytics treat edges as
// undirected. Parallel edges between the same pair are allowed; each
// transaction contributes its own edge.
type Edge struct {
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	Kind        string  `json:"kind"`
	Weight      float64 `json:"weight"`
	ReferenceID string  `json:"reference_id"`
}

// Context owns the node and edge sets for one analysis request. It records
// node insertion order so that exports and analytics iterate
// deterministically. Not safe for concurrent mutation; each request builds
// its own.
type Context struct {
	nodes map[string]*Node
	order []string
	edges []Edge
}

// NewContext creates an empty graph context.
func NewContext() *Context {
	return &Context{
		nodes: make(map[string]*Node),
	}
}

func validKind(kind NodeKind) bool {
	switch kind {
	case NodeSubject, NodeBank, NodeEntity:
		return true
	}
	return false
}

// AddNode adds a node to the context. Nodes are deduplicated by id: adding
// an id that is already present leaves the existing node untouched and
// returns false.
func (c *Context) AddNode(node Node) (bool, error) {
	if node.ID == "" || !validKind(node.Kind) {
		return false, fmt.Errorf("%w: id=%q kind=%q", ErrInvalidNode, node.ID, node.Kind)
	}
	if _, exists := c.nodes[node.ID]; exists {
		return false, nil
	}
	n := node
	c.nodes[node.ID] = &n
	c.order = append(c.order, node.ID)
	return true, nil
}

// AddEdge appends an edge. Endpoint existence is checked by Validate, not
// here, so builders may add edges in any order relative to their nodes.
func (c *Context) AddEdge(edge Edge) {
	c.edges = append(c.edges, edge)
}

// Node returns the node with the given id.
func (c *Context) Node(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// HasNode reports whether the context contains the given node id.
func (c *Context) HasNode(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

// NodeIDs returns node ids in insertion order.
func (c *Context) NodeIDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Nodes returns all nodes in insertion order.
func (c *Context) Nodes() []Node {
	nodes := make([]Node, 0, len(c.order))
	for _, id := range c.order {
		nodes = append(nodes, *c.nodes[id])
	}
	return nodes
}

// Edges returns all edges in insertion order.
func (c *Context) Edges() []Edge {
	edges := make([]Edge, len(c.edges))
	copy(edges, c.edges)
	return edges
}

// NodeCount returns the number of nodes.
func (c *Context) NodeCount() int {
	return len(c.nodes)
}

// EdgeCount returns the number of edges.
func (c *Context) EdgeCount() int {
	return len(c.edges)
}

// Validate checks structural invariants. A failure indicates a defect in
// graph construction rather than bad user input.
func (c *Context) Validate() error {
	for _, edge := range c.edges {
		if !c.HasNode(edge.SourceID) {
			return fmt.Errorf("%w: source %q (ref %s)", ErrDanglingEdge, edge.SourceID, edge.ReferenceID)
		}
		if !c.HasNode(edge.TargetID) {
			return fmt.Errorf("%w: target %q (ref %s)", ErrDanglingEdge, edge.TargetID, edge.ReferenceID)
		}
	}
	return nil
}
