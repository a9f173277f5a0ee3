package builder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
	"github.com/OFFIS-RIT/coordnet/pkg/identity"
	"github.com/OFFIS-RIT/coordnet/pkg/loader/jsonl"
	"github.com/OFFIS-RIT/coordnet/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"
)

const (
	EmbeddingsArtifact = "embeddings.jsonl.gz"
	PairsArtifact      = "pairs.csv"

	embedWorkers = 4
)

var (
	errNoEmbedder = errors.New("no embedder configured")

	urlPattern     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
	retweetPrefix  = regexp.MustCompile(`^(?i)RT\b:?`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Tokenizer splits text into model tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

var (
	defaultTokenizer     Tokenizer
	defaultTokenizerErr  error
	defaultTokenizerOnce sync.Once
)

// NewTiktokenTokenizer loads the named BPE encoding.
func NewTiktokenTokenizer(encoding string) (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return tiktokenTokenizer{enc: enc}, nil
}

func (b *builders) tokenizer() (Tokenizer, error) {
	if b.opts.Tokenizer != nil {
		return b.opts.Tokenizer, nil
	}
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer, defaultTokenizerErr = NewTiktokenTokenizer(DefaultTokenEncoding)
	})
	return defaultTokenizer, defaultTokenizerErr
}

// CleanText strips retweet markers, mentions and URLs and collapses
// whitespace.
func CleanText(text string) string {
	s := strings.TrimSpace(text)
	s = retweetPrefix.ReplaceAllString(s, "")
	s = urlPattern.ReplaceAllString(s, " ")
	s = mentionPattern.ReplaceAllString(s, " ")
	s = strings.TrimLeft(strings.TrimSpace(s), ":")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

type post struct {
	TweetID   string    `json:"tweet_id"`
	AccountID int64     `json:"account_id"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
}

// tweetSimilarity links accounts whose posts are semantically close. Any
// pair of posts by two different accounts with a cosine similarity at or
// above the configured threshold adds one to the pair's weight.
//
// This is the only builder that is not bit-for-bit reproducible: embedding
// backends and accelerators may perturb the vectors slightly between runs,
// which can move pairs close to the threshold across it.
func (b *builders) tweetSimilarity(
	ctx context.Context,
	control, suspect common.Population,
	outputDir string,
	deviceID string,
) (*graph.Graph, error) {
	if b.opts.Embedder == nil {
		return nil, errNoEmbedder
	}
	tok, err := b.tokenizer()
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	members := membership(control, suspect)
	posts := make([]post, 0)
	for _, r := range allRecords(control, suspect) {
		text := CleanText(r.Text)
		if text == "" {
			continue
		}
		tokens := tok.Encode(text)
		if len(tokens) < b.opts.MinTextTokens {
			continue
		}
		if len(tokens) > b.opts.EmbedMaxTokens {
			text = tok.Decode(tokens[:b.opts.EmbedMaxTokens])
		}
		posts = append(posts, post{TweetID: r.TweetID, AccountID: r.AccountID, Text: text})
	}
	logger.Debug("[Build] Embedding posts", "posts", len(posts), "backend", b.opts.Embedder.Name(), "device", deviceID)

	if err := b.embed(ctx, posts, deviceID); err != nil {
		return nil, err
	}

	pc := make(pairCounts)
	pairs := make([][]string, 0)
	for i := 0; i < len(posts); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if posts[i].Vector == nil {
			continue
		}
		for j := i + 1; j < len(posts); j++ {
			if posts[j].Vector == nil || posts[i].AccountID == posts[j].AccountID {
				continue
			}
			sim, err := cosine(posts[i].Vector, posts[j].Vector)
			if err != nil {
				return nil, err
			}
			if sim < b.opts.Similarity {
				continue
			}
			pc[newAccountPair(posts[i].AccountID, posts[j].AccountID)]++
			pairs = append(pairs, []string{
				posts[i].TweetID,
				posts[j].TweetID,
				identity.String(posts[i].AccountID),
				identity.String(posts[j].AccountID),
				strconv.FormatFloat(sim, 'f', 6, 64),
			})
		}
	}

	if outputDir != "" {
		if err := writeArtifacts(outputDir, posts, pairs); err != nil {
			return nil, err
		}
	}

	return pc.toGraph(graph.NameTweetSim, members), nil
}

// embed fills the vectors of posts in batches. Each batch writes only its
// own slice range.
func (b *builders) embed(ctx context.Context, posts []post, deviceID string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	size := b.opts.EmbedBatchSize
	for start := 0; start < len(posts); start += size {
		end := min(start+size, len(posts))
		batch := posts[start:end]

		g.Go(func() error {
			inputs := make([]string, len(batch))
			for i, p := range batch {
				inputs[i] = p.Text
			}
			vectors, err := b.opts.Embedder.Embed(gCtx, inputs, ai.WithDevice(deviceID))
			if err != nil {
				return fmt.Errorf("failed to embed batch at %d: %w", start, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Vector = normalize(vectors[i])
			}
			return nil
		})
	}
	return g.Wait()
}

func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosine expects unit vectors.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d and %d", len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

func writeArtifacts(dir string, posts []post, pairs [][]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ef, err := os.Create(filepath.Join(dir, EmbeddingsArtifact))
	if err != nil {
		return err
	}
	rows := make([]any, 0, len(posts))
	for _, p := range posts {
		if p.Vector != nil {
			rows = append(rows, p)
		}
	}
	if err := jsonl.WriteRows(ef, rows); err != nil {
		ef.Close()
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	if err := ef.Close(); err != nil {
		return err
	}

	pf, err := os.Create(filepath.Join(dir, PairsArtifact))
	if err != nil {
		return err
	}
	w := csv.NewWriter(pf)
	if err := w.Write([]string{"tweet_a", "tweet_b", "account_a", "account_b", "similarity"}); err != nil {
		pf.Close()
		return err
	}
	if err := w.WriteAll(pairs); err != nil {
		pf.Close()
		return fmt.Errorf("failed to write pairs: %w", err)
	}
	return pf.Close()
}
