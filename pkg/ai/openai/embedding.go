package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	"github.com/OFFIS-RIT/coordnet/pkg/logger"

	"github.com/openai/openai-go/v3"
)

// Embed creates embeddings for inputs in a single batch request. Blank inputs
// are not sent and come back as nil vectors.
func (c *OpenAIEmbedder) Embed(
	ctx context.Context,
	inputs []string,
	opts ...ai.EmbedOption,
) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	o := ai.ApplyEmbedOptions(opts...)
	if o.DeviceID != "" {
		logger.Debug("Device selection ignored by remote embedder", "device", o.DeviceID, "backend", c.Name())
	}

	idxMap := make([]int, 0, len(inputs))
	batch := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		idxMap = append(idxMap, i)
		batch = append(batch, in)
	}
	out := make([][]float32, len(inputs))
	if len(batch) == 0 {
		return out, nil
	}

	select {
	case c.reqLock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.reqLock }()

	start := time.Now()
	response, err := c.Client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: batch,
		},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(response.Data) != len(batch) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(batch))
	}

	c.modifyMetrics(ai.ModelMetrics{
		Requests:    1,
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	for _, d := range response.Data {
		if d.Index < 0 || int(d.Index) >= len(batch) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for j, val := range d.Embedding {
			vec[j] = float32(val)
		}
		out[idxMap[d.Index]] = vec
	}
	return out, nil
}
