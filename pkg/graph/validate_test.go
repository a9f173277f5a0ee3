package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNodeID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"123", true},
		{"0", true},
		{"1183742049021300737", true},
		{"", false},
		{"abc", false},
		{"-5", false},
		{"12.0", false},
		{" 12", false},
		{"１２", false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidNodeID(tc.in))
		})
	}
}

func TestCorrectNodeIDs(t *testing.T) {
	g := New(NameCoRetweet)
	g.AddNode("123", nil)
	g.AddNode("abc", nil)
	g.AddNode("45", nil)
	g.AddEdge("123", "abc", nil)
	g.AddEdge("abc", "45", nil)
	g.AddEdge("123", "45", Attributes{"weight": int64(3)})

	corrected, report := CorrectNodeIDs(g)

	assert.Equal(t, []string{"45", "123"}, corrected.Nodes())
	assert.Equal(t, 2, report.ValidNodes)
	assert.Equal(t, 1, report.InvalidNodes)
	assert.Equal(t, 3, report.EdgesBefore)
	assert.Equal(t, 1, report.EdgesAfter)
	assert.Equal(t, 2, report.EdgesLost)
	assert.Equal(t, []string{"abc"}, report.InvalidIDs)
	assert.Equal(t, NameCoRetweet, report.Graph)

	assert.False(t, corrected.HasEdge("123", "abc"))
	assert.True(t, corrected.HasEdge("45", "123"))

	// the input graph is left as it was
	assert.Equal(t, 3, g.NumberOfNodes())
	assert.Equal(t, 3, g.NumberOfEdges())
}

func TestCorrectNodeIDsAllValid(t *testing.T) {
	g := edgeGraph("x", [2]string{"1", "2"})

	corrected, report := CorrectNodeIDs(g)

	assert.Zero(t, report.InvalidNodes)
	assert.Zero(t, report.EdgesLost)
	assert.Nil(t, report.InvalidIDs)
	assert.Equal(t, g.Nodes(), corrected.Nodes())
}

func TestCorrectNodeIDsCapsReportedIDs(t *testing.T) {
	g := New("x")
	for i := range maxReportedInvalid + 5 {
		g.AddNode("bad"+string(rune('a'+i)), nil)
	}

	_, report := CorrectNodeIDs(g)

	assert.Equal(t, maxReportedInvalid+5, report.InvalidNodes)
	assert.Len(t, report.InvalidIDs, maxReportedInvalid)
}
