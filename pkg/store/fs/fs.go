package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
)

// FSStorage writes graphs as gzip compressed node-link JSON below a root
// directory, one directory per dataset:
//
//	<root>/<dataset>/<name>.json.gz
//	<root>/<dataset>/manifest.json
//
// Files are written to a temporary file first and renamed into place, so
// readers never observe partial graphs.
type FSStorage struct {
	root string
}

func NewFSStorage(root string) (*FSStorage, error) {
	if root == "" {
		return nil, errors.New("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSStorage{root: root}, nil
}

// GraphPath returns where a graph is stored.
func (s *FSStorage) GraphPath(dataset, name string) string {
	return filepath.Join(s.root, dataset, name+store.GraphExtension)
}

func (s *FSStorage) SaveGraph(ctx context.Context, dataset string, g *graph.Graph) error {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return err
	}
	if err := store.ValidateKey("graph", g.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := store.EncodeGraph(g)
	if err != nil {
		return err
	}
	return writeAtomic(s.GraphPath(dataset, g.Name), data)
}

func (s *FSStorage) LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error) {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return nil, err
	}
	if err := store.ValidateKey("graph", name); err != nil {
		return nil, err
	}
	return ReadGraphFile(s.GraphPath(dataset, name))
}

// ReadGraphFile decodes a single stored graph file.
func ReadGraphFile(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("graph %s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeGraph(bytes.NewReader(data))
}

func (s *FSStorage) SaveManifest(ctx context.Context, dataset string, manifest []byte) error {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.root, dataset, store.ManifestName), manifest)
}

func (s *FSStorage) LoadManifest(ctx context.Context, dataset string) ([]byte, error) {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, dataset, store.ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("manifest %s: %w", dataset, store.ErrNotFound)
	}
	return data, err
}

func (s *FSStorage) Close() error {
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
