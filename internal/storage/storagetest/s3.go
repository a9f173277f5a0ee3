// Package storagetest provides an in-memory object server for tests of the
// S3 backed loaders and stores.
package storagetest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/coordnet/internal/storage"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// S3Server answers path style GetObject and PutObject requests. Objects are
// keyed by "<bucket>/<key>".
type S3Server struct {
	*httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
}

func NewS3Server(t testing.TB) *S3Server {
	t.Helper()
	s := &S3Server{
		objects: make(map[string][]byte),
		gets:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *S3Server) handle(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.gets[key]++
		body, ok := s.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, noSuchKey)
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Put stores an object directly.
func (s *S3Server) Put(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
}

// Object returns a stored object.
func (s *S3Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	return body, ok
}

// Gets counts the GetObject requests for key.
func (s *S3Server) Gets(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

// NewClient builds a client for the server through storage.NewS3Client. The
// environment is pinned so that no local AWS profile leaks into the test.
func (s *S3Server) NewClient(t *testing.T) *s3.Client {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RESPONSE_CHECKSUM_VALIDATION", "when_required")

	client, err := storage.NewS3Client(context.Background(), storage.S3Params{
		Region:    "us-east-1",
		Endpoint:  s.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return client
}
