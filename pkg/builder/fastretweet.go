package builder

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// fastRetweet links a retweeting account to the author of the retweeted
// item when the retweet happened within timeInterval seconds of the original
// post. Both accounts must belong to one of the populations.
//
// The original post time comes from the retweet payload when the schema
// carries it and from the original post in the inputs otherwise.
func fastRetweet(ctx context.Context, control, suspect common.Population, timeInterval int) (*graph.Graph, error) {
	members := membership(control, suspect)
	records := allRecords(control, suspect)
	window := time.Duration(timeInterval) * time.Second

	posted := make(map[string]time.Time, len(records))
	for _, r := range records {
		if !r.IsRetweet() && !r.Timestamp.IsZero() {
			posted[r.TweetID] = r.Timestamp
		}
	}

	pc := make(pairCounts)
	for i, r := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !r.IsRetweet() || !r.HasRetweetedAccount || r.RetweetedAccountID == r.AccountID {
			continue
		}
		if _, ok := members[r.RetweetedAccountID]; !ok {
			continue
		}

		original := r.RetweetedAt
		if original.IsZero() {
			original = posted[r.RetweetedTweetID]
		}
		if original.IsZero() || r.Timestamp.IsZero() {
			continue
		}

		delta := r.Timestamp.Sub(original)
		if delta < 0 || delta > window {
			continue
		}
		pc[newAccountPair(r.AccountID, r.RetweetedAccountID)]++
	}

	return pc.toGraph(graph.NameFastRetweet, members), nil
}
