package builder

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// hashtagSeq links accounts that posted the identical ordered hashtag
// sequence. Sequences need at least two hashtags and accounts with fewer than
// minHashtags hashtags overall are left out of this criterion.
func hashtagSeq(ctx context.Context, control, suspect common.Population, minHashtags int) (*graph.Graph, error) {
	members := membership(control, suspect)
	records := allRecords(control, suspect)

	totals := make(map[int64]int)
	for _, r := range records {
		totals[r.AccountID] += len(r.Hashtags)
	}

	posters := make(map[string]map[int64]struct{})
	for _, r := range records {
		if len(r.Hashtags) < 2 || totals[r.AccountID] < minHashtags {
			continue
		}
		seq := hashtagKey(r.Hashtags)
		set, ok := posters[seq]
		if !ok {
			set = make(map[int64]struct{})
			posters[seq] = set
		}
		set[r.AccountID] = struct{}{}
	}

	return sharedItemGraph(ctx, graph.NameHashtagSeq, posters, members)
}

func hashtagKey(tags []string) string {
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
	}
	return strings.Join(lowered, "\x1f")
}
