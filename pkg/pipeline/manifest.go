package pipeline

import (
	"encoding/json"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/activity"
	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// GraphSummary is the manifest entry of one persisted network.
type GraphSummary struct {
	Name       string                  `json:"name"`
	Nodes      int                     `json:"nodes"`
	Edges      int                     `json:"edges"`
	Validation *graph.ValidationReport `json:"validation,omitempty"`
	Corrected  bool                    `json:"corrected"`
}

// EmbeddingUsage records what the text similarity network cost.
type EmbeddingUsage struct {
	Backend string          `json:"backend"`
	Metrics ai.ModelMetrics `json:"metrics"`
}

// Manifest describes a completed run. It is persisted after all graphs, so
// a dataset without a manifest holds the output of an unfinished run.
type Manifest struct {
	RunID       string           `json:"run_id"`
	Dataset     string           `json:"dataset"`
	Family      string           `json:"family"`
	Config      Config           `json:"config"`
	Filter      []activity.Stats `json:"filter"`
	Graphs      []GraphSummary   `json:"graphs"`
	Embedding   *EmbeddingUsage  `json:"embedding,omitempty"`
	FusionOrder []string         `json:"fusion_order"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalManifest decodes a stored manifest.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
