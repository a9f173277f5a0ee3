package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
)

// MemoryStorage keeps graphs in process. It stores copies, so callers may
// keep mutating the graphs they saved.
type MemoryStorage struct {
	mu        sync.RWMutex
	graphs    map[string]*graph.Graph
	manifests map[string][]byte
	saves     []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		graphs:    make(map[string]*graph.Graph),
		manifests: make(map[string][]byte),
	}
}

func key(dataset, name string) string {
	return dataset + "/" + name
}

func (s *MemoryStorage) SaveGraph(ctx context.Context, dataset string, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[key(dataset, g.Name)] = g.Copy()
	s.saves = append(s.saves, g.Name)
	return nil
}

func (s *MemoryStorage) LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[key(dataset, name)]
	if !ok {
		return nil, fmt.Errorf("graph %s/%s: %w", dataset, name, store.ErrNotFound)
	}
	return g.Copy(), nil
}

func (s *MemoryStorage) SaveManifest(ctx context.Context, dataset string, manifest []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[dataset] = append([]byte(nil), manifest...)
	s.saves = append(s.saves, store.ManifestName)
	return nil
}

func (s *MemoryStorage) LoadManifest(ctx context.Context, dataset string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[dataset]
	if !ok {
		return nil, fmt.Errorf("manifest %s: %w", dataset, store.ErrNotFound)
	}
	return append([]byte(nil), m...), nil
}

// Saves lists the names of everything saved so far, in write order.
func (s *MemoryStorage) Saves() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.saves...)
}

func (s *MemoryStorage) Close() error {
	return nil
}
