package common

import "time"

// PopulationLabel names one of the two account populations of a run.
type PopulationLabel string

const (
	// PopulationControl holds baseline accounts with organic behavior.
	PopulationControl PopulationLabel = "control"
	// PopulationSuspect holds the accounts under investigation ("IO drivers").
	PopulationSuspect PopulationLabel = "suspect"
)

// Row is one raw input record as decoded from a table, before any schema
// mapping or identity normalization took place.
type Row map[string]any

// ActivityRecord is one behavioral event (a post or a retweet) of an account.
//
// Records are created by a builder family while decoding raw rows and are
// treated as read-only afterwards. AccountID is always the normalized,
// non-negative account identifier.
type ActivityRecord struct {
	AccountID int64     `json:"account_id"`
	TweetID   string    `json:"tweet_id"`
	Timestamp time.Time `json:"timestamp"`

	// Retweet payload. RetweetedTweetID is empty for original posts.
	// RetweetedAccountID is only meaningful when HasRetweetedAccount is set,
	// since 0 is a valid account id. RetweetedAt is the post time of the
	// retweeted item and may be zero when the source schema does not carry it.
	RetweetedTweetID    string    `json:"retweeted_tweet_id,omitempty"`
	RetweetedAccountID  int64     `json:"retweeted_account_id"`
	HasRetweetedAccount bool      `json:"has_retweeted_account,omitempty"`
	RetweetedAt         time.Time `json:"retweeted_at,omitzero"`

	URLs     []string `json:"urls,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// IsRetweet reports whether the record is a retweet of another item.
func (r ActivityRecord) IsRetweet() bool {
	return r.RetweetedTweetID != ""
}

// Population is a labeled collection of activity records. The label of a
// population never changes during a run.
type Population struct {
	Label   PopulationLabel  `json:"label"`
	Records []ActivityRecord `json:"records"`
}

// NewPopulation creates an empty population with the given label.
func NewPopulation(label PopulationLabel) Population {
	return Population{
		Label:   label,
		Records: make([]ActivityRecord, 0),
	}
}

// Empty reports whether the population has no records.
func (p Population) Empty() bool {
	return len(p.Records) == 0
}

// Accounts returns the number of distinct accounts in the population.
func (p Population) Accounts() int {
	seen := make(map[int64]struct{}, len(p.Records))
	for _, r := range p.Records {
		seen[r.AccountID] = struct{}{}
	}
	return len(seen)
}
