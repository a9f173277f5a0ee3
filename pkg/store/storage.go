package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// ErrNotFound is returned when a graph or manifest does not exist.
var ErrNotFound = errors.New("not found")

// GraphStorage defines the interface for persisting the networks of a run.
// Graphs are keyed by dataset and graph name. Saving a graph replaces any
// previous graph with the same key.
type GraphStorage interface {
	SaveGraph(ctx context.Context, dataset string, g *graph.Graph) error
	LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error)

	// SaveManifest stores the run manifest of a dataset. It is the last
	// write of a run.
	SaveManifest(ctx context.Context, dataset string, manifest []byte) error
	LoadManifest(ctx context.Context, dataset string) ([]byte, error)

	Close() error
}
