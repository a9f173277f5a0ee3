package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "graphs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadGraph(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	g := graph.New(graph.NameHashtagSeq)
	g.AddNode("1", graph.Attributes{"population": "control"})
	g.AddNode("3", nil)
	g.AddEdge("1", "2", graph.Attributes{"weight": int64(2), "hashSeq_weight": int64(2)})
	require.NoError(t, s.SaveGraph(ctx, "cuba", g))

	out, err := s.LoadGraph(ctx, "cuba", graph.NameHashtagSeq)
	require.NoError(t, err)

	want, err := graph.Marshal(g)
	require.NoError(t, err)
	got, err := graph.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestSaveReplacesGraph(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	first := graph.New("coRT")
	first.AddEdge("1", "2", graph.Attributes{"weight": int64(1)})
	first.AddEdge("2", "3", graph.Attributes{"weight": int64(1)})
	require.NoError(t, s.SaveGraph(ctx, "cuba", first))

	second := graph.New("coRT")
	second.AddEdge("1", "2", graph.Attributes{"weight": int64(7)})
	require.NoError(t, s.SaveGraph(ctx, "cuba", second))

	out, err := s.LoadGraph(ctx, "cuba", "coRT")
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumberOfEdges())
	assert.Equal(t, 2, out.NumberOfNodes())
	attrs, _ := out.EdgeAttributes("1", "2")
	assert.Equal(t, int64(7), attrs["weight"])
}

func TestGraphsAreScopedByDataset(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGraph(ctx, "cuba", graph.New("coRT")))

	_, err := s.LoadGraph(ctx, "iran", "coRT")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManifestUpsert(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	_, err := s.LoadManifest(ctx, "cuba")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveManifest(ctx, "cuba", []byte(`{"run_id":"a"}`)))
	require.NoError(t, s.SaveManifest(ctx, "cuba", []byte(`{"run_id":"b"}`)))

	m, err := s.LoadManifest(ctx, "cuba")
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"b"}`, string(m))
}
