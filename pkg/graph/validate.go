package graph

// maxReportedInvalid caps the invalid ids kept in a report for logging.
const maxReportedInvalid = 20

// ValidationReport describes what CorrectNodeIDs found in a graph.
type ValidationReport struct {
	Graph        string   `json:"graph"`
	ValidNodes   int      `json:"valid_nodes"`
	InvalidNodes int      `json:"invalid_nodes"`
	EdgesBefore  int      `json:"edges_before"`
	EdgesAfter   int      `json:"edges_after"`
	EdgesLost    int      `json:"edges_lost"`
	InvalidIDs   []string `json:"invalid_ids,omitempty"`
}

// IsValidNodeID reports whether id is a canonical account identifier: a
// non-empty string of ASCII digits.
func IsValidNodeID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// CorrectNodeIDs returns a copy of g without nodes whose id is not
// canonical, together with a report of what was removed. g is not modified.
//
// Invalid ids point at an identity parsing defect upstream; the report is
// meant to be logged even when the corrected graph is not used.
func CorrectNodeIDs(g *Graph) (*Graph, ValidationReport) {
	report := ValidationReport{
		Graph:       g.Name,
		EdgesBefore: g.NumberOfEdges(),
	}

	invalid := make([]string, 0)
	for _, id := range g.Nodes() {
		if IsValidNodeID(id) {
			report.ValidNodes++
			continue
		}
		invalid = append(invalid, id)
	}
	report.InvalidNodes = len(invalid)

	corrected := g.Copy()
	corrected.RemoveNodes(invalid...)

	report.EdgesAfter = corrected.NumberOfEdges()
	report.EdgesLost = report.EdgesBefore - report.EdgesAfter
	if len(invalid) > maxReportedInvalid {
		invalid = invalid[:maxReportedInvalid]
	}
	if len(invalid) > 0 {
		report.InvalidIDs = invalid
	}

	return corrected, report
}
