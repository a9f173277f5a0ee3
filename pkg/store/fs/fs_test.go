package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *graph.Graph {
	g := graph.New(graph.NameCoURL)
	g.AddNode("1", graph.Attributes{"population": "control"})
	g.AddNode("2", graph.Attributes{"population": "suspect"})
	g.AddEdge("1", "2", graph.Attributes{"weight": int64(4), "coURL_weight": int64(4)})
	return g
}

func TestSaveAndLoadGraph(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveGraph(ctx, "cuba", sample()))
	assert.FileExists(t, filepath.Join(root, "cuba", "coURL.json.gz"))

	g, err := s.LoadGraph(ctx, "cuba", graph.NameCoURL)
	require.NoError(t, err)

	want, err := graph.Marshal(sample())
	require.NoError(t, err)
	got, err := graph.Marshal(g)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Join(root, "cuba"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestSaveIsByteIdentical(t *testing.T) {
	s, err := NewFSStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveGraph(ctx, "cuba", sample()))
	first, err := os.ReadFile(s.GraphPath("cuba", graph.NameCoURL))
	require.NoError(t, err)

	require.NoError(t, s.SaveGraph(ctx, "cuba", sample()))
	second, err := os.ReadFile(s.GraphPath("cuba", graph.NameCoURL))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadMissing(t *testing.T) {
	s, err := NewFSStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadGraph(context.Background(), "cuba", "coRT")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.LoadManifest(context.Background(), "cuba")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManifest(t *testing.T) {
	s, err := NewFSStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveManifest(ctx, "iran", []byte(`{"run_id":"x"}`)))
	m, err := s.LoadManifest(ctx, "iran")
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"x"}`, string(m))
}

func TestRejectsPathTraversal(t *testing.T) {
	s, err := NewFSStorage(t.TempDir())
	require.NoError(t, err)

	err = s.SaveGraph(context.Background(), "../escape", sample())
	assert.Error(t, err)

	g := sample()
	g.Name = "a/b"
	assert.Error(t, s.SaveGraph(context.Background(), "cuba", g))
}
