package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedCall struct {
	Model   string         `json:"model"`
	Input   []string       `json:"input"`
	Options map[string]any `json:"options"`
}

type fakeServer struct {
	mu    sync.Mutex
	calls []embedCall
	auth  []string
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/embed" {
		http.NotFound(w, r)
		return
	}
	var call embedCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	embeddings := make([][]float32, len(call.Input))
	for i, in := range call.Input {
		embeddings[i] = []float32{float32(len(in)), float32(i)}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":             call.Model,
		"embeddings":        embeddings,
		"prompt_eval_count": 4 * len(call.Input),
		"total_duration":    int64(2 * time.Second),
	})
}

func newEmbedder(t *testing.T, apiKey string) (*OllamaEmbedder, *fakeServer) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)

	e, err := NewOllamaEmbedder(NewOllamaEmbedderParams{
		Model:   "nomic-embed-text",
		BaseURL: srv.URL,
		ApiKey:  apiKey,
	})
	require.NoError(t, err)
	return e, f
}

func TestEmbedMapsBlankInputs(t *testing.T) {
	e, f := newEmbedder(t, "")

	out, err := e.Embed(context.Background(), []string{"", "abc", "  ", "hello"})
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Nil(t, out[0])
	assert.Equal(t, []float32{3, 0}, out[1])
	assert.Nil(t, out[2])
	assert.Equal(t, []float32{5, 1}, out[3])

	require.Len(t, f.calls, 1)
	assert.Equal(t, "nomic-embed-text", f.calls[0].Model)
	assert.Equal(t, []string{"abc", "hello"}, f.calls[0].Input)
	assert.Nil(t, f.calls[0].Options)

	m := e.GetMetrics()
	assert.Equal(t, 1, m.Requests)
	assert.Equal(t, 8, m.TotalTokens)
	assert.Equal(t, int64(2000), m.DurationMs)
	assert.InDelta(t, 4.0, m.TokenPerSecond, 1e-6)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
}

func TestEmbedSelectsDevice(t *testing.T) {
	tests := []struct {
		name   string
		device string
		want   float64
	}{
		{"cuda prefix", "cuda:1", 1},
		{"plain index", "0", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, f := newEmbedder(t, "")
			_, err := e.Embed(context.Background(), []string{"x"}, ai.WithDevice(tc.device))
			require.NoError(t, err)

			require.Len(t, f.calls, 1)
			assert.Equal(t, tc.want, f.calls[0].Options["main_gpu"])
		})
	}
}

func TestEmbedRejectsInvalidDevice(t *testing.T) {
	e, f := newEmbedder(t, "")
	_, err := e.Embed(context.Background(), []string{"x"}, ai.WithDevice("mps"))
	require.Error(t, err)
	assert.Empty(t, f.calls)
}

func TestEmbedSkipsRequestForBlankBatch(t *testing.T) {
	e, f := newEmbedder(t, "")

	out, err := e.Embed(context.Background(), []string{"", " "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{nil, nil}, out)
	assert.Empty(t, f.calls)
	assert.Equal(t, ai.ModelMetrics{}, e.GetMetrics())
}

func TestEmbedSendsAPIKey(t *testing.T) {
	e, f := newEmbedder(t, "secret")
	_, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer secret"}, f.auth)
}
