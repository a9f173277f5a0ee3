package builder

import (
	"context"
	"net/url"
	"strings"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/graph"
)

// coURL links accounts that shared the same URL.
func coURL(ctx context.Context, control, suspect common.Population) (*graph.Graph, error) {
	members := membership(control, suspect)

	sharers := make(map[string]map[int64]struct{})
	for _, r := range allRecords(control, suspect) {
		for _, raw := range r.URLs {
			u := normalizeURL(raw)
			if u == "" {
				continue
			}
			set, ok := sharers[u]
			if !ok {
				set = make(map[int64]struct{})
				sharers[u] = set
			}
			set[r.AccountID] = struct{}{}
		}
	}

	return sharedItemGraph(ctx, graph.NameCoURL, sharers, members)
}

// normalizeURL trims the URL and lower-cases scheme and host. Path, query
// and fragment are case sensitive and kept as they are.
func normalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
