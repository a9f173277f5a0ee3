package ollama

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"

	"github.com/ollama/ollama/api"
)

// Embed creates one embedding per input using the configured model.
//
// When a device id is given through ai.WithDevice it must be a GPU index and
// is forwarded as Ollama's main_gpu option. Blank inputs yield nil vectors.
func (c *OllamaEmbedder) Embed(
	ctx context.Context,
	inputs []string,
	opts ...ai.EmbedOption,
) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	o := ai.ApplyEmbedOptions(opts...)

	idxMap := make([]int, 0, len(inputs))
	texts := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		idxMap = append(idxMap, i)
		texts = append(texts, in)
	}
	out := make([][]float32, len(inputs))
	if len(texts) == 0 {
		return out, nil
	}

	req := &api.EmbedRequest{
		Model: c.model,
		Input: texts,
	}
	if o.DeviceID != "" {
		gpu, err := strconv.Atoi(strings.TrimPrefix(o.DeviceID, "cuda:"))
		if err != nil {
			return nil, fmt.Errorf("invalid device id %q: %w", o.DeviceID, err)
		}
		req.Options = map[string]any{"main_gpu": gpu}
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(res.Embeddings), len(texts))
	}

	c.modifyMetrics(ai.ModelMetrics{
		Requests:    1,
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	for i, v := range res.Embeddings {
		vec := make([]float32, len(v))
		for j, val := range v {
			vec[j] = float32(val)
		}
		out[idxMap[i]] = vec
	}
	return out, nil
}
