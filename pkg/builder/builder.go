package builder

import (
	"context"
	"sort"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/identity"
	"github.com/OFFIS-RIT/coordnet/pkg/logger"
)

const (
	FamilyLegacy = "legacy"
	FamilyFlat   = "flat"

	DefaultMinHashtags        = 5
	DefaultFastRetweetSeconds = 10
	DefaultSimilarity         = 0.7
	DefaultEmbedMaxTokens     = 512
	DefaultMinTextTokens      = 3
	DefaultEmbedBatchSize     = 64
	DefaultTokenEncoding      = "cl100k_base"
)

// legacyDatasets are the datasets whose inputs use nested Twitter API
// objects for the control side and unhashed CSV exports for the suspects.
var legacyDatasets = map[string]struct{}{
	"UAE_sample": {},
	"cuba":       {},
}

// Family is the set of network builders for one input schema. A Family is
// resolved once per run and all of its builders share the same decoding
// rules.
type Family interface {
	Name() string

	// Tables returns the control and suspect input paths relative to the
	// raw data directory.
	Tables(dataset string) (control string, suspect string)

	Decode(label common.PopulationLabel, rows []common.Row) (common.Population, error)

	CoRetweet(ctx context.Context, control, suspect common.Population) (*graph.Graph, error)
	CoURL(ctx context.Context, control, suspect common.Population) (*graph.Graph, error)
	HashtagSeq(ctx context.Context, control, suspect common.Population, minHashtags int) (*graph.Graph, error)
	FastRetweet(ctx context.Context, control, suspect common.Population, timeInterval int) (*graph.Graph, error)
	TweetSimilarity(ctx context.Context, control, suspect common.Population, outputDir string, deviceID string) (*graph.Graph, error)

	// Embedding reports the backend and accumulated usage of the embedder
	// behind TweetSimilarity. ok is false when none is configured.
	Embedding() (backend string, metrics ai.ModelMetrics, ok bool)
}

// Options configures the builders shared by every family.
type Options struct {
	Embedder       ai.Embedder
	Tokenizer      Tokenizer
	Similarity     float64
	EmbedMaxTokens int
	MinTextTokens  int
	EmbedBatchSize int
}

func (o Options) withDefaults() Options {
	if o.Similarity <= 0 {
		o.Similarity = DefaultSimilarity
	}
	if o.EmbedMaxTokens <= 0 {
		o.EmbedMaxTokens = DefaultEmbedMaxTokens
	}
	if o.MinTextTokens <= 0 {
		o.MinTextTokens = DefaultMinTextTokens
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return o
}

// Resolve selects the builder family for a dataset. UAE_sample and cuba use
// the legacy schema, every other dataset the flat one.
func Resolve(dataset string, opts Options) Family {
	b := &builders{opts: opts.withDefaults()}
	if IsLegacy(dataset) {
		return &family{name: FamilyLegacy, schema: legacySchema{}, builders: b}
	}
	return &family{name: FamilyFlat, schema: flatSchema{}, builders: b}
}

// IsLegacy reports whether dataset is read with the legacy schema.
func IsLegacy(dataset string) bool {
	_, ok := legacyDatasets[dataset]
	return ok
}

type schema interface {
	tables(dataset string) (string, string)
	decode(label common.PopulationLabel, rows []common.Row) (common.Population, error)
}

type family struct {
	name   string
	schema schema
	*builders
}

func (f *family) Name() string {
	return f.name
}

func (f *family) Tables(dataset string) (string, string) {
	return f.schema.tables(dataset)
}

func (f *family) Decode(label common.PopulationLabel, rows []common.Row) (common.Population, error) {
	return f.schema.decode(label, rows)
}

// builders holds the criterion algorithms. They only see decoded records,
// which keeps them independent of the input schema.
type builders struct {
	opts Options
}

func (b *builders) CoRetweet(ctx context.Context, control, suspect common.Population) (*graph.Graph, error) {
	g, err := coRetweet(ctx, control, suspect)
	return g, wrap(graph.NameCoRetweet, err)
}

func (b *builders) CoURL(ctx context.Context, control, suspect common.Population) (*graph.Graph, error) {
	g, err := coURL(ctx, control, suspect)
	return g, wrap(graph.NameCoURL, err)
}

func (b *builders) HashtagSeq(ctx context.Context, control, suspect common.Population, minHashtags int) (*graph.Graph, error) {
	g, err := hashtagSeq(ctx, control, suspect, minHashtags)
	return g, wrap(graph.NameHashtagSeq, err)
}

func (b *builders) FastRetweet(ctx context.Context, control, suspect common.Population, timeInterval int) (*graph.Graph, error) {
	g, err := fastRetweet(ctx, control, suspect, timeInterval)
	return g, wrap(graph.NameFastRetweet, err)
}

func (b *builders) TweetSimilarity(ctx context.Context, control, suspect common.Population, outputDir string, deviceID string) (*graph.Graph, error) {
	g, err := b.tweetSimilarity(ctx, control, suspect, outputDir, deviceID)
	return g, wrap(graph.NameTweetSim, err)
}

func (b *builders) Embedding() (string, ai.ModelMetrics, bool) {
	if b.opts.Embedder == nil {
		return "", ai.ModelMetrics{}, false
	}
	return b.opts.Embedder.Name(), b.opts.Embedder.GetMetrics(), true
}

func wrap(criterion string, err error) error {
	if err == nil {
		return nil
	}
	return &common.BuilderError{Criterion: criterion, Err: err}
}

// membership maps every account of both populations to its label. An
// account present on both sides counts as suspect.
func membership(control, suspect common.Population) map[int64]common.PopulationLabel {
	m := make(map[int64]common.PopulationLabel)
	for _, r := range control.Records {
		m[r.AccountID] = common.PopulationControl
	}
	for _, r := range suspect.Records {
		m[r.AccountID] = common.PopulationSuspect
	}
	return m
}

func allRecords(control, suspect common.Population) []common.ActivityRecord {
	out := make([]common.ActivityRecord, 0, len(control.Records)+len(suspect.Records))
	out = append(out, control.Records...)
	out = append(out, suspect.Records...)
	return out
}

type accountPair struct {
	a, b int64
}

func newAccountPair(a, b int64) accountPair {
	if b < a {
		a, b = b, a
	}
	return accountPair{a: a, b: b}
}

// pairCounts accumulates evidence per unordered account pair.
type pairCounts map[accountPair]int64

// addShared links every pair of accounts that share one item.
func (pc pairCounts) addShared(accounts map[int64]struct{}) {
	ids := make([]int64, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pc[accountPair{a: ids[i], b: ids[j]}]++
		}
	}
}

// toGraph materializes the pair counts. Both the generic weight and the
// criterion specific weight are set so the evidence of each criterion
// remains visible after fusion.
func (pc pairCounts) toGraph(name string, members map[int64]common.PopulationLabel) *graph.Graph {
	g := graph.New(name)
	weightKey := name + "_weight"

	pairs := make([]accountPair, 0, len(pc))
	for p := range pc {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	for _, p := range pairs {
		w := pc[p]
		u, v := identity.String(p.a), identity.String(p.b)
		g.AddNode(u, graph.Attributes{"population": string(members[p.a])})
		g.AddNode(v, graph.Attributes{"population": string(members[p.b])})
		g.AddEdge(u, v, graph.Attributes{"weight": w, weightKey: w})
	}

	logger.Debug("[Build] Network built", "name", name, "nodes", g.NumberOfNodes(), "edges", g.NumberOfEdges())
	return g
}
