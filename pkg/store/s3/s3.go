package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/OFFIS-RIT/coordnet/internal/storage"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage stores graphs in the same encoding as the filesystem backend,
// under <prefix>/<dataset>/ in a bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3StorageWithClient(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Storage) key(dataset, file string) string {
	return path.Join(s.prefix, dataset, file)
}

func (s *S3Storage) SaveGraph(ctx context.Context, dataset string, g *graph.Graph) error {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return err
	}
	if err := store.ValidateKey("graph", g.Name); err != nil {
		return err
	}
	data, err := store.EncodeGraph(g)
	if err != nil {
		return err
	}
	return storage.PutFile(ctx, s.client, s.bucket, s.key(dataset, g.Name+store.GraphExtension), "application/gzip", data)
}

func (s *S3Storage) LoadGraph(ctx context.Context, dataset string, name string) (*graph.Graph, error) {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return nil, err
	}
	if err := store.ValidateKey("graph", name); err != nil {
		return nil, err
	}
	data, err := storage.GetFile(ctx, s.client, s.bucket, s.key(dataset, name+store.GraphExtension))
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("graph %s/%s: %w", dataset, name, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeGraph(bytes.NewReader(data))
}

func (s *S3Storage) SaveManifest(ctx context.Context, dataset string, manifest []byte) error {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return err
	}
	return storage.PutFile(ctx, s.client, s.bucket, s.key(dataset, store.ManifestName), "application/json", manifest)
}

func (s *S3Storage) LoadManifest(ctx context.Context, dataset string) ([]byte, error) {
	if err := store.ValidateKey("dataset", dataset); err != nil {
		return nil, err
	}
	data, err := storage.GetFile(ctx, s.client, s.bucket, s.key(dataset, store.ManifestName))
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("manifest %s: %w", dataset, store.ErrNotFound)
	}
	return data, err
}

func (s *S3Storage) Close() error {
	return nil
}
