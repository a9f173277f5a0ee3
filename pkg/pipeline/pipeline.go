// Package pipeline builds the five similarity networks of a dataset and
// fuses them into one graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/coordnet/internal/notify"
	"github.com/OFFIS-RIT/coordnet/pkg/activity"
	"github.com/OFFIS-RIT/coordnet/pkg/builder"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/loader"
	"github.com/OFFIS-RIT/coordnet/pkg/logger"
	"github.com/OFFIS-RIT/coordnet/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageFilter    = "filter"
	StageBuild     = "build"
	StageValidate  = "validate"
	StagePersist   = "persist"
	StageFuse      = "fuse"
)

// Config holds the per run settings of the pipeline. A MinHashtags or
// FastRetweetInterval that is not positive falls back to the builder
// defaults.
type Config struct {
	Dataset             string `json:"dataset"`
	DeviceID            string `json:"device_id"`
	ActivityThreshold   int    `json:"activity_threshold"`
	MinHashtags         int    `json:"min_hashtags"`
	FastRetweetInterval int    `json:"fast_retweet_interval"`
	ValidateNodeIDs     bool   `json:"validate_node_ids"`
	// TweetSimDir receives the embedding artifacts. Empty disables them.
	TweetSimDir string `json:"tweet_sim_dir"`
}

// Result is the output of a successful run.
type Result struct {
	Manifest *Manifest
	Graphs   map[string]*graph.Graph
	Fused    *graph.Graph
}

func (c Config) withDefaults() Config {
	if c.MinHashtags <= 0 {
		c.MinHashtags = builder.DefaultMinHashtags
	}
	if c.FastRetweetInterval <= 0 {
		c.FastRetweetInterval = builder.DefaultFastRetweetSeconds
	}
	return c
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &common.StageError{Stage: stage, Err: err}
}

// Run executes all stages for one dataset. Any fatal error aborts the run
// before the fused graph and the manifest are written.
func (p *PipelineClient) Run(
	ctx context.Context,
	cfg Config,
	family builder.Family,
	tables loader.Tables,
	storage store.GraphStorage,
) (*Result, error) {
	cfg = cfg.withDefaults()

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}
	manifest := &Manifest{
		RunID:       runID,
		Dataset:     cfg.Dataset,
		Family:      family.Name(),
		Config:      cfg,
		FusionOrder: append([]string(nil), graph.FusionOrder...),
		StartedAt:   time.Now().UTC(),
	}
	logger.Info("[Pipeline] Starting run", "run_id", runID, "dataset", cfg.Dataset, "family", family.Name())

	controlRows, suspectRows, err := p.load(ctx, tables)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}

	control, suspect, err := p.normalize(family, controlRows, suspectRows)
	if err != nil {
		return nil, stageErr(StageNormalize, err)
	}

	control, suspect, manifest.Filter, err = p.filter(control, suspect, cfg.ActivityThreshold)
	if err != nil {
		return nil, stageErr(StageFilter, err)
	}

	graphs, err := p.build(ctx, cfg, family, control, suspect)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	if backend, usage, ok := family.Embedding(); ok {
		manifest.Embedding = &EmbeddingUsage{Backend: backend, Metrics: usage}
		logger.Info("[Build] Embedding usage",
			"backend", backend,
			"requests", usage.Requests,
			"total_tokens", usage.TotalTokens,
			"duration_ms", usage.DurationMs,
		)
	}

	graphs, manifest.Graphs = p.validate(graphs, cfg.ValidateNodeIDs)

	for _, g := range graphs {
		if err := storage.SaveGraph(ctx, cfg.Dataset, g); err != nil {
			return nil, stageErr(StagePersist, fmt.Errorf("failed to save %s: %w", g.Name, err))
		}
		logger.Debug("[Persist] Saved network", "name", g.Name)
	}

	fused := graph.Fuse(graphs...)
	logger.Info("[Fuse] Networks fused", "nodes", fused.NumberOfNodes(), "edges", fused.NumberOfEdges())
	if err := storage.SaveGraph(ctx, cfg.Dataset, fused); err != nil {
		return nil, stageErr(StageFuse, fmt.Errorf("failed to save %s: %w", fused.Name, err))
	}
	manifest.Graphs = append(manifest.Graphs, GraphSummary{
		Name:  fused.Name,
		Nodes: fused.NumberOfNodes(),
		Edges: fused.NumberOfEdges(),
	})

	manifest.FinishedAt = time.Now().UTC()
	data, err := manifest.Marshal()
	if err != nil {
		return nil, stageErr(StagePersist, fmt.Errorf("failed to encode manifest: %w", err))
	}
	if err := storage.SaveManifest(ctx, cfg.Dataset, data); err != nil {
		return nil, stageErr(StagePersist, fmt.Errorf("failed to save manifest: %w", err))
	}
	logger.Info("[Pipeline] Run completed", "run_id", runID, "duration", manifest.FinishedAt.Sub(manifest.StartedAt))

	p.announce(ctx, manifest)

	byName := make(map[string]*graph.Graph, len(graphs))
	for _, g := range graphs {
		byName[g.Name] = g
	}
	return &Result{Manifest: manifest, Graphs: byName, Fused: fused}, nil
}

func (p *PipelineClient) load(ctx context.Context, tables loader.Tables) ([]common.Row, []common.Row, error) {
	var controlRows, suspectRows []common.Row

	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		rows, err := loader.ReadRows(gCtx, tables.Control)
		controlRows = rows
		return err
	})
	eg.Go(func() error {
		rows, err := loader.ReadRows(gCtx, tables.Suspect)
		suspectRows = rows
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	logger.Info("[Load] Tables read", "control_rows", len(controlRows), "suspect_rows", len(suspectRows))
	return controlRows, suspectRows, nil
}

func (p *PipelineClient) normalize(
	family builder.Family,
	controlRows, suspectRows []common.Row,
) (common.Population, common.Population, error) {
	control, err := family.Decode(common.PopulationControl, controlRows)
	if err != nil {
		return common.Population{}, common.Population{}, err
	}
	suspect, err := family.Decode(common.PopulationSuspect, suspectRows)
	if err != nil {
		return common.Population{}, common.Population{}, err
	}

	logger.Info("[Normalize] Records decoded",
		"control_accounts", control.Accounts(),
		"suspect_accounts", suspect.Accounts(),
	)
	return control, suspect, nil
}

// filter applies the activity threshold to both populations independently.
// An empty population is reported but does not stop the run.
func (p *PipelineClient) filter(
	control, suspect common.Population,
	threshold int,
) (common.Population, common.Population, []activity.Stats, error) {
	pops := []common.Population{control, suspect}
	stats := make([]activity.Stats, 0, len(pops))

	for i, pop := range pops {
		filtered, s, err := activity.Filter(pop, threshold)
		if err != nil {
			var empty *common.EmptyInputError
			if !errors.As(err, &empty) {
				return common.Population{}, common.Population{}, nil, err
			}
			logger.Warn("[Filter] Population is empty", "population", pop.Label, "threshold", threshold)
		}
		logger.Info("[Filter] Population filtered",
			"population", pop.Label,
			"accounts_retained", s.AccountsRetained,
			"accounts_removed", s.AccountsRemoved,
			"records_retained", s.RecordsRetained,
		)
		pops[i] = filtered
		stats = append(stats, s)
	}
	return pops[0], pops[1], stats, nil
}

// build runs the five builders in parallel. Results land in the slot of
// their fusion position, independent of completion order.
func (p *PipelineClient) build(
	ctx context.Context,
	cfg Config,
	family builder.Family,
	control, suspect common.Population,
) ([]*graph.Graph, error) {
	builds := map[string]func(context.Context) (*graph.Graph, error){
		graph.NameCoRetweet: func(ctx context.Context) (*graph.Graph, error) {
			return family.CoRetweet(ctx, control, suspect)
		},
		graph.NameCoURL: func(ctx context.Context) (*graph.Graph, error) {
			return family.CoURL(ctx, control, suspect)
		},
		graph.NameHashtagSeq: func(ctx context.Context) (*graph.Graph, error) {
			return family.HashtagSeq(ctx, control, suspect, cfg.MinHashtags)
		},
		graph.NameFastRetweet: func(ctx context.Context) (*graph.Graph, error) {
			return family.FastRetweet(ctx, control, suspect, cfg.FastRetweetInterval)
		},
		graph.NameTweetSim: func(ctx context.Context) (*graph.Graph, error) {
			return family.TweetSimilarity(ctx, control, suspect, cfg.TweetSimDir, cfg.DeviceID)
		},
	}

	slots := make([]*graph.Graph, len(graph.FusionOrder))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.parallelBuilders)

	for i, name := range graph.FusionOrder {
		fn := builds[name]
		eg.Go(func() error {
			start := time.Now()
			g, err := fn(gCtx)
			if err != nil {
				return err
			}
			if g == nil {
				g = graph.New(name)
			}
			slots[i] = g
			logger.Info("[Build] Network ready",
				"name", name,
				"nodes", g.NumberOfNodes(),
				"edges", g.NumberOfEdges(),
				"duration", time.Since(start),
			)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// validate computes the node id report of every network. The corrected
// graphs replace the originals only when apply is set.
func (p *PipelineClient) validate(graphs []*graph.Graph, apply bool) ([]*graph.Graph, []GraphSummary) {
	out := make([]*graph.Graph, len(graphs))
	summaries := make([]GraphSummary, 0, len(graphs)+1)

	for i, g := range graphs {
		corrected, report := graph.CorrectNodeIDs(g)
		if report.InvalidNodes > 0 {
			logger.Warn("[Validate] Non canonical node ids",
				"name", g.Name,
				"invalid_nodes", report.InvalidNodes,
				"edges_lost", report.EdgesLost,
				"sample", report.InvalidIDs,
			)
		} else {
			logger.Debug("[Validate] Node ids valid", "name", g.Name, "nodes", report.ValidNodes)
		}

		out[i] = g
		if apply {
			out[i] = corrected
		}
		summaries = append(summaries, GraphSummary{
			Name:       g.Name,
			Nodes:      out[i].NumberOfNodes(),
			Edges:      out[i].NumberOfEdges(),
			Validation: &report,
			Corrected:  apply,
		})
	}
	return out, summaries
}

// announce publishes the completion notice. The graphs are already
// persisted, so a failed publish is only logged.
func (p *PipelineClient) announce(ctx context.Context, m *Manifest) {
	if p.notifier == nil {
		return
	}
	msg := notify.RunCompleted{
		RunID:      m.RunID,
		Dataset:    m.Dataset,
		Family:     m.Family,
		Graphs:     make(map[string]notify.GraphCounts, len(m.Graphs)),
		FinishedAt: m.FinishedAt,
	}
	for _, g := range m.Graphs {
		msg.Graphs[g.Name] = notify.GraphCounts{Nodes: g.Nodes, Edges: g.Edges}
	}
	if err := p.notifier.PublishRunCompleted(ctx, msg); err != nil {
		logger.Error("[Pipeline] Failed to publish run completion", "run_id", m.RunID, "err", err)
	}
}
