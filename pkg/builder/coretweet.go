package builder

import (
	"context"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// coRetweet links accounts that retweeted the same source item. The weight
// is the number of distinct items both accounts retweeted.
func coRetweet(ctx context.Context, control, suspect common.Population) (*graph.Graph, error) {
	members := membership(control, suspect)

	retweeters := make(map[string]map[int64]struct{})
	for _, r := range allRecords(control, suspect) {
		if !r.IsRetweet() {
			continue
		}
		set, ok := retweeters[r.RetweetedTweetID]
		if !ok {
			set = make(map[int64]struct{})
			retweeters[r.RetweetedTweetID] = set
		}
		set[r.AccountID] = struct{}{}
	}

	return sharedItemGraph(ctx, graph.NameCoRetweet, retweeters, members)
}

// sharedItemGraph turns item -> accounts sets into a graph whose edge weight
// counts the items shared by a pair.
func sharedItemGraph(
	ctx context.Context,
	name string,
	items map[string]map[int64]struct{},
	members map[int64]common.PopulationLabel,
) (*graph.Graph, error) {
	pc := make(pairCounts)
	for _, accounts := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(accounts) < 2 {
			continue
		}
		pc.addShared(accounts)
	}
	return pc.toGraph(name, members), nil
}
