package graph

import "maps"

// Graph names of the five similarity networks and the fused network.
const (
	NameCoRetweet   = "coRT"
	NameCoURL       = "coURL"
	NameHashtagSeq  = "hashSeq"
	NameFastRetweet = "fastRT"
	NameTweetSim    = "tweetSim"
	NameFused       = "fusedNet"
)

// FusionOrder is the fixed order in which similarity networks are composed.
// Later networks overwrite identically named attributes of earlier ones, so
// tweet similarity has the final say on shared keys such as "weight".
var FusionOrder = []string{
	NameCoRetweet,
	NameCoURL,
	NameHashtagSeq,
	NameFastRetweet,
	NameTweetSim,
}

// Compose returns a new graph holding the union of g and h. For nodes and
// edges present in both, attributes from h overwrite same-named attributes
// from g while keys unique to either side are preserved. Neither input is
// modified. The result carries the name of g.
func Compose(g, h *Graph) *Graph {
	var out *Graph
	if g == nil {
		out = New("")
	} else {
		out = g.Copy()
	}
	if h == nil {
		return out
	}

	for id, attrs := range h.nodes {
		cur, ok := out.nodes[id]
		if !ok {
			out.nodes[id] = maps.Clone(attrs)
			continue
		}
		maps.Copy(cur, attrs)
	}

	for key, attrs := range h.edges {
		cur, ok := out.edges[key]
		if !ok {
			out.edges[key] = maps.Clone(attrs)
			continue
		}
		maps.Copy(cur, attrs)
	}

	return out
}

// Fuse composes graphs in the given order into a single graph named
// NameFused. Nil entries are treated as empty graphs.
//
// The caller owns the order; the pipeline always passes networks in
// FusionOrder so attribute conflicts resolve the same way in every run.
func Fuse(graphs ...*Graph) *Graph {
	fused := New(NameFused)
	for _, g := range graphs {
		fused = Compose(fused, g)
	}
	fused.Name = NameFused
	return fused
}
