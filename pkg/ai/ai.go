package ai

import (
	"context"
	"math"
)

// ModelMetrics contains usage metrics accumulated by an embedding client.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	InputTokens    int     `json:"input_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// Add accumulates m into the receiver and refreshes the throughput.
func (mm *ModelMetrics) Add(m ModelMetrics) {
	mm.Requests += m.Requests
	mm.InputTokens += m.InputTokens
	mm.TotalTokens += m.TotalTokens
	mm.DurationMs += m.DurationMs

	if mm.DurationMs > 0 {
		tokensPerSecond := (float64(mm.TotalTokens) * 1000.0) / float64(mm.DurationMs)
		mm.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

// EmbedOptions holds per-request configuration for embedding calls.
type EmbedOptions struct {
	DeviceID string // Accelerator selection, honored by backends running locally
}

// EmbedOption is a functional option for configuring embedding requests.
type EmbedOption func(*EmbedOptions)

// WithDevice returns an EmbedOption that selects the hardware device used
// to compute embeddings. Backends that cannot choose a device ignore it.
func WithDevice(deviceID string) EmbedOption {
	return func(o *EmbedOptions) {
		o.DeviceID = deviceID
	}
}

// ApplyEmbedOptions folds opts into an EmbedOptions value.
func ApplyEmbedOptions(opts ...EmbedOption) EmbedOptions {
	var o EmbedOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Embedder turns texts into dense vectors.
//
// Embed returns exactly one vector per input, in input order. Implementations
// must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, inputs []string, opts ...EmbedOption) ([][]float32, error)
	Name() string
	GetMetrics() ModelMetrics
}
