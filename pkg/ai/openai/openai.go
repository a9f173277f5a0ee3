package openai

import (
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder implements ai.Embedder for any OpenAI compatible embedding
// endpoint. Device selection is not available remotely and is ignored.
//
// An OpenAIEmbedder should be created using NewOpenAIEmbedder.
type OpenAIEmbedder struct {
	model string

	reqLock chan struct{}

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client openai.Client
}

// NewOpenAIEmbedderParams contains configuration options for creating a new OpenAIEmbedder.
type NewOpenAIEmbedderParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int
}

// NewOpenAIEmbedder creates an embedder talking to the configured endpoint.
// Concurrency is bounded by MaxConcurrentRequests, defaulting to one.
func NewOpenAIEmbedder(params NewOpenAIEmbedderParams) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(params.ApiKey)}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}

	return &OpenAIEmbedder{
		model:   params.Model,
		reqLock: make(chan struct{}, maxReq),
		Client:  openai.NewClient(opts...),
	}
}

// Name identifies the backend in logs and manifests.
func (c *OpenAIEmbedder) Name() string {
	return "openai:" + c.model
}

// GetMetrics returns the accumulated usage since the client was created.
func (c *OpenAIEmbedder) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *OpenAIEmbedder) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.Add(m)
}
