package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/coordnet/internal/notify"
	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	"github.com/OFFIS-RIT/coordnet/pkg/builder"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/loader"
	"github.com/OFFIS-RIT/coordnet/pkg/loader/io"
	"github.com/OFFIS-RIT/coordnet/pkg/loader/jsonl"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
	"github.com/OFFIS-RIT/coordnet/pkg/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataset = "demo"

type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, inputs []string, _ ...ai.EmbedOption) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		switch strings.Fields(in)[0] {
		case "vote":
			out[i] = []float32{1, 0, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (wordEmbedder) Name() string { return "word" }

func (wordEmbedder) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{Requests: 1, InputTokens: 12, TotalTokens: 12}
}

type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (runeTokenizer) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.RunCompleted
	err  error
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, msg notify.RunCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func controlRows() []any {
	return []any{
		map[string]any{"userid": 1, "tweetid": "900", "tweet_time": "2020-01-01 10:00:00", "tweet_text": "vote for change now"},
		map[string]any{"userid": 1, "tweetid": "901", "tweet_time": "2020-01-01 11:00:00", "tweet_text": "lunch was fine today"},
		map[string]any{"userid": 2, "tweetid": "902", "tweet_time": "2020-01-01 11:00:00", "tweet_text": "nothing much going on"},
		map[string]any{"userid": 2, "tweetid": "903", "tweet_time": "2020-01-01 12:00:00", "tweet_text": "more idle talk here"},
	}
}

func suspectRows() []any {
	return []any{
		map[string]any{
			"userid": 3, "tweetid": "10", "tweet_time": "2020-01-01 10:00:05",
			"retweet_tweetid": "900", "retweet_userid": 1, "retweet_time": "2020-01-01 10:00:00",
			"tweet_text": "RT @one: vote for change now", "urls": []any{"http://A.com/x"},
		},
		map[string]any{"userid": 3, "tweetid": "11", "tweet_time": "2020-01-01 11:00:00", "tweet_text": "lunch plans are open"},
		map[string]any{
			"userid": 4, "tweetid": "12", "tweet_time": "2020-01-01 10:00:08",
			"retweet_tweetid": "900", "retweet_userid": 1, "retweet_time": "2020-01-01 10:00:00",
			"tweet_text": "vote for change now", "urls": []any{"http://a.com/x"},
		},
		map[string]any{"userid": 4, "tweetid": "13", "tweet_time": "2020-01-01 12:00:00", "tweet_text": "other words entirely here"},
	}
}

func writeTable(t *testing.T, root, name string, rows []any) {
	t.Helper()
	path := filepath.Join(root, dataset, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jsonl.WriteRows(f, rows))
	require.NoError(t, f.Close())
}

func setup(t *testing.T, control, suspect []any) (builder.Family, loader.Tables) {
	t.Helper()
	root := t.TempDir()
	family := builder.Resolve(dataset, builder.Options{Embedder: wordEmbedder{}, Tokenizer: runeTokenizer{}})
	controlPath, suspectPath := family.Tables(dataset)
	writeTable(t, root, filepath.Base(controlPath), control)
	writeTable(t, root, filepath.Base(suspectPath), suspect)

	fileLoader := io.NewIOTableFileLoader(root)
	c, err := loader.NewTableFile(loader.NewTableFileParams{Label: common.PopulationControl, FilePath: controlPath, Loader: fileLoader})
	require.NoError(t, err)
	s, err := loader.NewTableFile(loader.NewTableFileParams{Label: common.PopulationSuspect, FilePath: suspectPath, Loader: fileLoader})
	require.NoError(t, err)
	return family, loader.Tables{Control: c, Suspect: s}
}

func runConfig(t *testing.T) Config {
	return Config{
		Dataset:             dataset,
		ActivityThreshold:   2,
		MinHashtags:         builder.DefaultMinHashtags,
		FastRetweetInterval: builder.DefaultFastRetweetSeconds,
		TweetSimDir:         filepath.Join(t.TempDir(), "tweetSim"),
	}
}

func TestRunEndToEnd(t *testing.T) {
	family, tables := setup(t, controlRows(), suspectRows())
	storage := memory.NewMemoryStorage()
	publisher := &recordingPublisher{}
	cfg := runConfig(t)

	client := NewPipelineClient(NewPipelineClientParams{ParallelBuilders: 2, Notifier: publisher})
	result, err := client.Run(context.Background(), cfg, family, tables, storage)
	require.NoError(t, err)

	expectedSaves := append(append([]string(nil), graph.FusionOrder...), graph.NameFused, store.ManifestName)
	assert.Equal(t, expectedSaves, storage.Saves())

	coRT := result.Graphs[graph.NameCoRetweet]
	assert.True(t, coRT.HasEdge("3", "4"))
	assert.True(t, result.Graphs[graph.NameCoURL].HasEdge("3", "4"))
	fastRT := result.Graphs[graph.NameFastRetweet]
	assert.True(t, fastRT.HasEdge("1", "3"))
	assert.True(t, fastRT.HasEdge("1", "4"))
	assert.True(t, result.Graphs[graph.NameTweetSim].HasEdge("3", "4"))
	assert.Equal(t, 0, result.Graphs[graph.NameHashtagSeq].NumberOfEdges())

	fused := result.Fused
	assert.Equal(t, graph.NameFused, fused.Name)
	for _, g := range result.Graphs {
		for _, e := range g.Edges() {
			assert.True(t, fused.HasEdge(e.U, e.V), "%s edge %s-%s", g.Name, e.U, e.V)
		}
	}
	attrs, ok := fused.EdgeAttributes("3", "4")
	require.True(t, ok)
	assert.Contains(t, attrs, "coRT_weight")
	assert.Contains(t, attrs, "coURL_weight")
	assert.Contains(t, attrs, "tweetSim_weight")

	data, err := storage.LoadManifest(context.Background(), dataset)
	require.NoError(t, err)
	manifest, err := UnmarshalManifest(data)
	require.NoError(t, err)
	assert.Equal(t, result.Manifest.RunID, manifest.RunID)
	assert.Equal(t, builder.FamilyFlat, manifest.Family)
	assert.Equal(t, graph.FusionOrder, manifest.FusionOrder)
	assert.Len(t, manifest.Graphs, 6)
	assert.Len(t, manifest.Filter, 2)
	assert.False(t, manifest.FinishedAt.Before(manifest.StartedAt))
	require.NotNil(t, manifest.Embedding)
	assert.Equal(t, "word", manifest.Embedding.Backend)
	assert.Equal(t, 1, manifest.Embedding.Metrics.Requests)
	assert.Equal(t, 12, manifest.Embedding.Metrics.TotalTokens)

	_, err = os.Stat(filepath.Join(cfg.TweetSimDir, builder.PairsArtifact))
	assert.NoError(t, err)

	require.Len(t, publisher.msgs, 1)
	assert.Equal(t, manifest.RunID, publisher.msgs[0].RunID)
	assert.Equal(t, fused.NumberOfEdges(), publisher.msgs[0].Graphs[graph.NameFused].Edges)
}

func TestRunWithEmptySuspectPopulation(t *testing.T) {
	suspect := []any{
		map[string]any{"userid": 7, "tweetid": "70", "tweet_time": "2020-01-01 10:00:00", "tweet_text": "vote for change now"},
		map[string]any{"userid": 8, "tweetid": "80", "tweet_time": "2020-01-01 10:00:00", "tweet_text": "vote for change now"},
	}
	family, tables := setup(t, controlRows(), suspect)
	storage := memory.NewMemoryStorage()

	client := NewPipelineClient(NewPipelineClientParams{})
	result, err := client.Run(context.Background(), runConfig(t), family, tables, storage)
	require.NoError(t, err)

	assert.Len(t, storage.Saves(), 7)
	for _, g := range result.Graphs {
		for _, id := range g.Nodes() {
			assert.Contains(t, []string{"1", "2"}, id)
		}
	}

	stats := result.Manifest.Filter[1]
	assert.Equal(t, common.PopulationSuspect, stats.Population)
	assert.Equal(t, 0, stats.RecordsRetained)
	assert.Equal(t, 2, stats.AccountsRemoved)
}

func TestRunAbortsOnBuilderFailure(t *testing.T) {
	_, tables := setup(t, controlRows(), suspectRows())
	family := builder.Resolve(dataset, builder.Options{Tokenizer: runeTokenizer{}})
	storage := memory.NewMemoryStorage()
	publisher := &recordingPublisher{}

	client := NewPipelineClient(NewPipelineClientParams{Notifier: publisher})
	_, err := client.Run(context.Background(), runConfig(t), family, tables, storage)
	require.Error(t, err)

	var stageErr *common.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageBuild, stageErr.Stage)

	var builderErr *common.BuilderError
	require.True(t, errors.As(err, &builderErr))
	assert.Equal(t, graph.NameTweetSim, builderErr.Criterion)

	assert.Empty(t, storage.Saves())
	_, err = storage.LoadManifest(context.Background(), dataset)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, publisher.msgs)
}

func TestRunFailsOnMissingInput(t *testing.T) {
	family, tables := setup(t, controlRows(), suspectRows())
	tables.Suspect.FilePath = filepath.Join(dataset, "missing.jsonl.gz")

	client := NewPipelineClient(NewPipelineClientParams{})
	_, err := client.Run(context.Background(), runConfig(t), family, tables, memory.NewMemoryStorage())

	var stageErr *common.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageLoad, stageErr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunAppliesNodeValidationOnRequest(t *testing.T) {
	family, tables := setup(t, controlRows(), suspectRows())
	cfg := runConfig(t)
	cfg.ValidateNodeIDs = true

	client := NewPipelineClient(NewPipelineClientParams{})
	result, err := client.Run(context.Background(), cfg, family, tables, memory.NewMemoryStorage())
	require.NoError(t, err)

	for _, summary := range result.Manifest.Graphs[:len(graph.FusionOrder)] {
		require.NotNil(t, summary.Validation)
		assert.True(t, summary.Corrected)
		assert.Equal(t, 0, summary.Validation.InvalidNodes)
	}
}

func TestPublishFailureDoesNotFailRun(t *testing.T) {
	family, tables := setup(t, controlRows(), suspectRows())
	publisher := &recordingPublisher{err: errors.New("broker down")}

	client := NewPipelineClient(NewPipelineClientParams{Notifier: publisher})
	_, err := client.Run(context.Background(), runConfig(t), family, tables, memory.NewMemoryStorage())
	require.NoError(t, err)
	assert.Len(t, publisher.msgs, 1)
}

func TestRunFallsBackToBuilderDefaults(t *testing.T) {
	family, tables := setup(t, controlRows(), suspectRows())
	cfg := runConfig(t)
	cfg.MinHashtags = 0
	cfg.FastRetweetInterval = 0

	client := NewPipelineClient(NewPipelineClientParams{})
	result, err := client.Run(context.Background(), cfg, family, tables, memory.NewMemoryStorage())
	require.NoError(t, err)

	assert.Equal(t, builder.DefaultMinHashtags, result.Manifest.Config.MinHashtags)
	assert.Equal(t, builder.DefaultFastRetweetSeconds, result.Manifest.Config.FastRetweetInterval)

	// account 4 retweeted 8 seconds after the original post
	fastRT := result.Graphs[graph.NameFastRetweet]
	assert.True(t, fastRT.HasEdge("1", "3"))
	assert.True(t, fastRT.HasEdge("1", "4"))
}
