package s3

import (
	"context"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/coordnet/internal/storage"
	"github.com/OFFIS-RIT/coordnet/pkg/loader"
)

// S3TableFileLoader is a TableFileLoader implementation that loads table
// contents from an S3 bucket. Keys are the file path joined under prefix.
type S3TableFileLoader struct {
	bucket string
	prefix string
	client *s3.Client

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3TableFileLoaderWithClient creates a new S3TableFileLoader using an
// existing s3.Client.
func NewS3TableFileLoaderWithClient(bucket, prefix string, client *s3.Client) *S3TableFileLoader {
	return &S3TableFileLoader{
		bucket: bucket,
		prefix: prefix,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// NewS3TableFileLoaderParams defines the configuration parameters for
// creating a new S3TableFileLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
type NewS3TableFileLoaderParams struct {
	Bucket    string
	Prefix    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3TableFileLoader creates a new S3TableFileLoader with static
// credentials and the given endpoint/region.
func NewS3TableFileLoader(ctx context.Context, params NewS3TableFileLoaderParams) (*S3TableFileLoader, error) {
	client, err := storage.NewS3Client(ctx, storage.S3Params{
		Region:    params.Region,
		Endpoint:  params.Endpoint,
		AccessKey: params.AccessKey,
		SecretKey: params.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return NewS3TableFileLoaderWithClient(params.Bucket, params.Prefix, client), nil
}

// GetFileBytes retrieves the contents of the given TableFile from the
// configured bucket.
func (l *S3TableFileLoader) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	cacheKey := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[cacheKey]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		byts, err := storage.GetFile(ctx, l.client, l.bucket, path.Join(l.prefix, file.FilePath))
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[cacheKey] = byts
		l.cacheMu.Unlock()

		return byts, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
