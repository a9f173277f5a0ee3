package graph

import (
	"maps"
	"slices"
	"strings"
)

// Attributes holds the key/value data attached to a node or an edge.
type Attributes map[string]any

// EdgeKey identifies an undirected edge. U and V are stored in canonical
// order (U sorts before or equal to V), so {a,b} and {b,a} share one key.
type EdgeKey struct {
	U string `json:"source"`
	V string `json:"target"`
}

// NewEdgeKey returns the canonical key for the pair u, v.
func NewEdgeKey(u, v string) EdgeKey {
	if lessID(v, u) {
		u, v = v, u
	}
	return EdgeKey{U: u, V: v}
}

// Graph is an undirected attributed graph keyed by account identifiers.
//
// A Graph is not safe for concurrent mutation. Builders create and fill a
// graph on a single goroutine and hand it off afterwards.
type Graph struct {
	Name string

	nodes map[string]Attributes
	edges map[EdgeKey]Attributes
}

// New creates an empty graph with the given name.
func New(name string) *Graph {
	return &Graph{
		Name:  name,
		nodes: make(map[string]Attributes),
		edges: make(map[EdgeKey]Attributes),
	}
}

// AddNode adds id to the graph. If the node already exists, attrs are merged
// into its attributes with attrs winning on equal keys.
func (g *Graph) AddNode(id string, attrs Attributes) {
	cur, ok := g.nodes[id]
	if !ok {
		cur = make(Attributes, len(attrs))
		g.nodes[id] = cur
	}
	maps.Copy(cur, attrs)
}

// AddEdge adds the undirected edge u-v, creating missing endpoints. Existing
// edge attributes are merged with attrs winning on equal keys.
func (g *Graph) AddEdge(u, v string, attrs Attributes) {
	if _, ok := g.nodes[u]; !ok {
		g.nodes[u] = make(Attributes)
	}
	if _, ok := g.nodes[v]; !ok {
		g.nodes[v] = make(Attributes)
	}
	key := NewEdgeKey(u, v)
	cur, ok := g.edges[key]
	if !ok {
		cur = make(Attributes, len(attrs))
		g.edges[key] = cur
	}
	maps.Copy(cur, attrs)
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// HasEdge reports whether the undirected edge u-v exists.
func (g *Graph) HasEdge(u, v string) bool {
	_, ok := g.edges[NewEdgeKey(u, v)]
	return ok
}

// NodeAttributes returns a copy of the attributes of id.
func (g *Graph) NodeAttributes(id string) (Attributes, bool) {
	attrs, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(attrs), true
}

// EdgeAttributes returns a copy of the attributes of edge u-v.
func (g *Graph) EdgeAttributes(u, v string) (Attributes, bool) {
	attrs, ok := g.edges[NewEdgeKey(u, v)]
	if !ok {
		return nil, false
	}
	return maps.Clone(attrs), true
}

// Nodes returns all node ids in canonical order.
func (g *Graph) Nodes() []string {
	ids := slices.Collect(maps.Keys(g.nodes))
	slices.SortFunc(ids, compareID)
	return ids
}

// Edges returns all edge keys in canonical order.
func (g *Graph) Edges() []EdgeKey {
	keys := slices.Collect(maps.Keys(g.edges))
	slices.SortFunc(keys, func(a, b EdgeKey) int {
		if c := compareID(a.U, b.U); c != 0 {
			return c
		}
		return compareID(a.V, b.V)
	})
	return keys
}

// NumberOfNodes returns the node count.
func (g *Graph) NumberOfNodes() int {
	return len(g.nodes)
}

// NumberOfEdges returns the edge count.
func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

// Degree returns the number of edges incident to id.
func (g *Graph) Degree(id string) int {
	n := 0
	for key := range g.edges {
		if key.U == id || key.V == id {
			n++
		}
	}
	return n
}

// Copy returns a graph with the same name, nodes and edges. Attribute maps
// are copied; attribute values are shared.
func (g *Graph) Copy() *Graph {
	out := &Graph{
		Name:  g.Name,
		nodes: make(map[string]Attributes, len(g.nodes)),
		edges: make(map[EdgeKey]Attributes, len(g.edges)),
	}
	for id, attrs := range g.nodes {
		out.nodes[id] = maps.Clone(attrs)
	}
	for key, attrs := range g.edges {
		out.edges[key] = maps.Clone(attrs)
	}
	return out
}

// RemoveNodes deletes the given nodes and every edge touching them.
func (g *Graph) RemoveNodes(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(g.nodes, id)
	}
	for key := range g.edges {
		_, u := drop[key.U]
		_, v := drop[key.V]
		if u || v {
			delete(g.edges, key)
		}
	}
}

// compareID orders canonical numeric ids numerically and places every other
// id after them in lexical order.
func compareID(a, b string) int {
	an, bn := IsValidNodeID(a), IsValidNodeID(b)
	switch {
	case an && bn:
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) - len(tb)
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case an:
		return -1
	case bn:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func lessID(a, b string) bool {
	return compareID(a, b) < 0
}
