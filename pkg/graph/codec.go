package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type nodeLinkNode struct {
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
}

type nodeLinkEdge struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Attributes Attributes `json:"attributes"`
}

type nodeLinkGraph struct {
	Directed bool           `json:"directed"`
	Name     string         `json:"name"`
	Nodes    []nodeLinkNode `json:"nodes"`
	Links    []nodeLinkEdge `json:"links"`
}

// Encode writes g as node-link JSON. Nodes and links are written in
// canonical order and attribute keys sorted, so equal graphs always encode
// to identical bytes.
func Encode(w io.Writer, g *Graph) error {
	doc := nodeLinkGraph{
		Name:  g.Name,
		Nodes: make([]nodeLinkNode, 0, g.NumberOfNodes()),
		Links: make([]nodeLinkEdge, 0, g.NumberOfEdges()),
	}
	for _, id := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, nodeLinkNode{ID: id, Attributes: nonNil(g.nodes[id])})
	}
	for _, key := range g.Edges() {
		doc.Links = append(doc.Links, nodeLinkEdge{Source: key.U, Target: key.V, Attributes: nonNil(g.edges[key])})
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graph %s: %w", g.Name, err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a graph written by Encode. JSON numbers are restored as
// int64 when integral and float64 otherwise.
func Decode(r io.Reader) (*Graph, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var doc nodeLinkGraph
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	if doc.Directed {
		return nil, fmt.Errorf("graph %s: directed graphs are not supported", doc.Name)
	}

	g := New(doc.Name)
	for _, n := range doc.Nodes {
		g.AddNode(n.ID, restoreNumbers(n.Attributes))
	}
	for _, e := range doc.Links {
		g.AddEdge(e.Source, e.Target, restoreNumbers(e.Attributes))
	}
	return g, nil
}

func nonNil(attrs Attributes) Attributes {
	if attrs == nil {
		return Attributes{}
	}
	return attrs
}

func restoreNumbers(attrs Attributes) Attributes {
	for k, v := range attrs {
		attrs[k] = restoreValue(v)
	}
	return attrs
}

func restoreValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = restoreValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = restoreValue(t[k])
		}
		return t
	default:
		return v
	}
}

// MarshalAttributes encodes an attribute map as a JSON object.
func MarshalAttributes(attrs Attributes) ([]byte, error) {
	return json.Marshal(nonNil(attrs))
}

// UnmarshalAttributes decodes a JSON object written by MarshalAttributes
// with the same number handling as Decode.
func UnmarshalAttributes(data []byte) (Attributes, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var attrs Attributes
	if err := decoder.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("failed to parse attributes: %w", err)
	}
	return restoreNumbers(nonNil(attrs)), nil
}
