package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/identity"
)

var legacyTables = map[string][2]string{
	"UAE_sample": {"control_driver_tweets_uae_082019.jsonl", "uae_082019_tweets_csv_unhashed.csv"},
	"cuba":       {"control_driver_tweets_cuba_082020.jsonl", "cuba_082020_tweets_csv_unhashed.csv"},
}

var timeLayouts = []string{
	time.RubyDate,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var errMissing = errors.New("missing")

// legacySchema decodes the two legacy table shapes. Control rows are Twitter
// API objects with a nested user, suspect rows come from the CSV exports of
// the platform's information operations archive.
type legacySchema struct{}

func (legacySchema) tables(dataset string) (string, string) {
	names, ok := legacyTables[dataset]
	if !ok {
		return "", ""
	}
	return path.Join(dataset, names[0]), path.Join(dataset, names[1])
}

func (s legacySchema) decode(label common.PopulationLabel, rows []common.Row) (common.Population, error) {
	if label == common.PopulationControl {
		return decodeRows(FamilyLegacy, label, rows, decodeAPIObject)
	}
	return decodeRows(FamilyLegacy, label, rows, decodeFlatRow)
}

// flatSchema decodes rows that carry the account identifier and the retweet
// payload as top level columns.
type flatSchema struct{}

func (flatSchema) tables(dataset string) (string, string) {
	return path.Join(dataset, dataset+"_tweets_control.jsonl.gz"),
		path.Join(dataset, dataset+"_tweets_io.jsonl.gz")
}

func (flatSchema) decode(label common.PopulationLabel, rows []common.Row) (common.Population, error) {
	return decodeRows(FamilyFlat, label, rows, decodeFlatRow)
}

type rowDecoder func(row common.Row) (common.ActivityRecord, string, error)

func decodeRows(family string, label common.PopulationLabel, rows []common.Row, dec rowDecoder) (common.Population, error) {
	pop := common.NewPopulation(label)
	pop.Records = make([]common.ActivityRecord, 0, len(rows))

	for i, row := range rows {
		rec, field, err := dec(row)
		if err != nil {
			var idErr *common.IdentityError
			if errors.As(err, &idErr) {
				return common.Population{}, fmt.Errorf("%s row %d field %s: %w", label, i+1, field, err)
			}
			return common.Population{}, &common.SchemaError{Family: family, Field: field, Row: i + 1}
		}
		pop.Records = append(pop.Records, rec)
	}
	return pop, nil
}

func decodeAPIObject(row common.Row) (common.ActivityRecord, string, error) {
	var rec common.ActivityRecord

	user, ok := identity.Lookup(row, "user")
	if !ok || user == nil {
		return rec, "user.id", errMissing
	}
	id, err := identity.Normalize(user)
	if err != nil {
		return rec, "user.id", err
	}
	rec.AccountID = id

	rec.TweetID = firstID(row, "id_str", "id")
	if rec.TweetID == "" {
		return rec, "id_str", errMissing
	}

	ts, err := parseTimeField(row, "created_at")
	if err != nil {
		return rec, "created_at", err
	}
	rec.Timestamp = ts

	if rt, ok := row["retweeted_status"].(map[string]any); ok && rt != nil {
		rtRow := common.Row(rt)
		rec.RetweetedTweetID = firstID(rtRow, "id_str", "id")
		if u, ok := identity.Lookup(rtRow, "user"); ok && u != nil {
			rid, err := identity.Normalize(u)
			if err != nil {
				return rec, "retweeted_status.user.id", err
			}
			rec.RetweetedAccountID = rid
			rec.HasRetweetedAccount = true
		}
		if at, err := parseTimeField(rtRow, "created_at"); err == nil {
			rec.RetweetedAt = at
		}
	}

	if urls, ok := identity.Lookup(row, "entities", "urls"); ok {
		rec.URLs = entityStrings(urls, "expanded_url", "url")
	}
	if tags, ok := identity.Lookup(row, "entities", "hashtags"); ok {
		rec.Hashtags = entityStrings(tags, "text")
	}
	rec.Text = firstString(row, "full_text", "text")

	return rec, "", nil
}

func decodeFlatRow(row common.Row) (common.ActivityRecord, string, error) {
	var rec common.ActivityRecord

	raw, ok := row["userid"]
	if !ok || identity.IsBlank(raw) {
		return rec, "userid", errMissing
	}
	id, err := identity.Normalize(raw)
	if err != nil {
		return rec, "userid", err
	}
	rec.AccountID = id

	rec.TweetID = firstID(row, "tweetid")
	if rec.TweetID == "" {
		return rec, "tweetid", errMissing
	}

	ts, err := parseTimeField(row, "tweet_time")
	if err != nil {
		return rec, "tweet_time", err
	}
	rec.Timestamp = ts

	rec.RetweetedTweetID = firstID(row, "retweet_tweetid")
	if raw, ok := row["retweet_userid"]; ok && !identity.IsBlank(raw) {
		rid, err := identity.Normalize(raw)
		if err != nil {
			return rec, "retweet_userid", err
		}
		rec.RetweetedAccountID = rid
		rec.HasRetweetedAccount = true
	}
	if raw, ok := row["retweet_time"]; ok && !identity.IsBlank(raw) {
		at, err := parseTime(raw)
		if err != nil {
			return rec, "retweet_time", err
		}
		rec.RetweetedAt = at
	}

	rec.URLs = parseList(row["urls"])
	rec.Hashtags = parseList(row["hashtags"])
	rec.Text = firstString(row, "tweet_text", "text")

	return rec, "", nil
}

// firstID returns the first present identifier among keys as a decimal
// string. Float renderings like "123.0" are reduced to "123".
func firstID(row common.Row, keys ...string) string {
	for _, k := range keys {
		v, ok := row[k]
		if !ok || identity.IsBlank(v) {
			continue
		}
		if id, err := identity.Normalize(v); err == nil {
			return identity.String(id)
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return fmt.Sprint(v)
	}
	return ""
}

func firstString(row common.Row, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok && !identity.IsBlank(s) {
			return s
		}
	}
	return ""
}

func parseTimeField(row common.Row, key string) (time.Time, error) {
	v, ok := row[key]
	if !ok || identity.IsBlank(v) {
		return time.Time{}, errMissing
	}
	return parseTime(v)
}

// parseTime accepts the textual layouts found in the inputs and numeric
// epoch values in seconds or milliseconds.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(n), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return time.Time{}, err
			}
			n = int64(f)
		}
		return epoch(n), nil
	case float64:
		return epoch(int64(t)), nil
	case int64:
		return epoch(t), nil
	case int:
		return epoch(int64(t)), nil
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", v)
}

func epoch(n int64) time.Time {
	if n > 1e11 || n < -1e11 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// parseList reads list columns. They arrive either as decoded JSON arrays or
// as their string rendering, e.g. "[a, b]" or "['a', 'b']".
func parseList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return nilIfEmpty(out)
	case []string:
		return nilIfEmpty(append([]string(nil), t...))
	case string:
		s := strings.TrimSpace(t)
		if identity.IsBlank(s) || s == "[]" {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var items []string
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return parseList(toAny(items))
			}
			s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		}
		out := make([]string, 0)
		for _, part := range strings.Split(s, ",") {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part != "" {
				out = append(out, part)
			}
		}
		return nilIfEmpty(out)
	}
	return nil
}

// entityStrings extracts one string field from a list of entity objects.
func entityStrings(v any, keys ...string) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s := firstString(common.Row(obj), keys...); s != "" {
			out = append(out, s)
		}
	}
	return nilIfEmpty(out)
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
