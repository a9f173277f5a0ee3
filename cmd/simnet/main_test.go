package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
	"github.com/OFFIS-RIT/coordnet/pkg/store/fs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	g := graph.New(graph.NameCoRetweet)
	g.AddEdge("123", "abc", graph.Attributes{"weight": int64(1)})
	g.AddEdge("123", "45", graph.Attributes{"weight": int64(2)})

	dir := t.TempDir()
	in := filepath.Join(dir, "coRT.json.gz")
	data, err := store.EncodeGraph(g)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, data, 0o644))
	out := filepath.Join(dir, "corrected.json.gz")

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"validate", in, "--output", out})
	require.NoError(t, cmd.Execute())

	var report graph.ValidationReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 2, report.ValidNodes)
	assert.Equal(t, 1, report.InvalidNodes)
	assert.Equal(t, 1, report.EdgesLost)
	assert.Equal(t, []string{"abc"}, report.InvalidIDs)

	corrected, err := fs.ReadGraphFile(out)
	require.NoError(t, err)
	assert.False(t, corrected.HasNode("abc"))
	assert.True(t, corrected.HasEdge("45", "123"))
}

func TestValidateCommandRequiresPath(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"validate"})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "simnet dev\n", stdout.String())
}
