package s3

import (
	"context"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/coordnet/internal/storage/storagetest"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileBytesReadsBelowPrefix(t *testing.T) {
	srv := storagetest.NewS3Server(t)
	srv.Put("bucket/raw/cuba/control.jsonl", []byte(`{"userid": 1}`+"\n"))
	l := NewS3TableFileLoaderWithClient("bucket", "raw", srv.NewClient(t))

	file, err := loader.NewTableFile(loader.NewTableFileParams{
		Label:    common.PopulationControl,
		FilePath: "cuba/control.jsonl",
		Loader:   l,
	})
	require.NoError(t, err)

	rows, err := loader.ReadRows(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestGetFileBytesCachesObjects(t *testing.T) {
	srv := storagetest.NewS3Server(t)
	srv.Put("bucket/raw/cuba/suspect.jsonl", []byte("{}\n"))
	l := NewS3TableFileLoaderWithClient("bucket", "raw", srv.NewClient(t))
	file := loader.TableFile{FilePath: "cuba/suspect.jsonl", Format: loader.TableFormatJSONL}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := l.GetFileBytes(context.Background(), file)
			assert.NoError(t, err)
			assert.Equal(t, "{}\n", string(data))
		}()
	}
	wg.Wait()

	_, err := l.GetFileBytes(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Gets("bucket/raw/cuba/suspect.jsonl"))
}

func TestGetFileBytesMissingObject(t *testing.T) {
	srv := storagetest.NewS3Server(t)
	l := NewS3TableFileLoaderWithClient("bucket", "raw", srv.NewClient(t))
	file := loader.TableFile{FilePath: "cuba/none.jsonl", Format: loader.TableFormatJSONL}

	_, err := l.GetFileBytes(context.Background(), file)
	require.Error(t, err)

	// failures are not cached
	_, err = l.GetFileBytes(context.Background(), file)
	require.Error(t, err)
	assert.Equal(t, 2, srv.Gets("bucket/raw/cuba/none.jsonl"))
}
