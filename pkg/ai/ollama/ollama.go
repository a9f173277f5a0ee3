package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// OllamaEmbedder implements ai.Embedder against a locally hosted Ollama
// server. It is the backend of choice when embeddings have to be computed on
// a specific GPU, since Ollama accepts a main_gpu option per request.
type OllamaEmbedder struct {
	model      string
	timeoutMin int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewOllamaEmbedderParams contains configuration options for creating a new OllamaEmbedder.
type NewOllamaEmbedderParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	TimeoutMin            int
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewOllamaEmbedder creates a new Ollama-based embedder. It connects to the
// Ollama server at the given BaseURL, or the client default if empty.
func NewOllamaEmbedder(params NewOllamaEmbedderParams) (*OllamaEmbedder, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}
	timeout := params.TimeoutMin
	if timeout <= 0 {
		timeout = 5
	}

	return &OllamaEmbedder{
		model:      params.Model,
		timeoutMin: timeout,
		reqLock:    semaphore.NewWeighted(maxReq),
		Client:     api.NewClient(u, httpClient),
	}, nil
}

// Name identifies the backend in logs and manifests.
func (c *OllamaEmbedder) Name() string {
	return "ollama:" + c.model
}

// GetMetrics returns the accumulated usage since the client was created.
func (c *OllamaEmbedder) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *OllamaEmbedder) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Add(m)
}
