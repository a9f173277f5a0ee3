package store

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/OFFIS-RIT/coordnet/pkg/graph"

	"github.com/klauspost/compress/gzip"
)

const (
	GraphExtension = ".json.gz"
	ManifestName   = "manifest.json"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateKey rejects dataset and graph names that could escape their
// directory or prefix.
func ValidateKey(kind, key string) error {
	if key == "" || key == "." || key == ".." || !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid %s name %q", kind, key)
	}
	return nil
}

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// EncodeGraph returns the gzip compressed node-link encoding of g.
func EncodeGraph(g *graph.Graph) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := graph.Encode(zw, g); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGraph reads a graph written by EncodeGraph.
func DecodeGraph(r io.Reader) (*graph.Graph, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph archive: %w", err)
	}
	defer zr.Close()
	return graph.Decode(zr)
}
