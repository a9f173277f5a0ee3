// Package identity canonicalizes account identifiers.
//
// Input tables carry account ids in different shapes: nested objects such as
// {"id": "12345"} in API dumps, flat string columns in CSV exports or plain
// JSON numbers. Every downstream component keys accounts by the int64 value
// returned from Normalize, and graphs key nodes by String of that value.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/coordnet/pkg/common"
)

var (
	errEmpty    = errors.New("empty value")
	errNegative = errors.New("negative value")
	errFraction = errors.New("non-integral value")
	errNoID     = errors.New("object has no id field")
)

// Normalize returns the canonical identifier for raw.
//
// Normalize is idempotent: passing an already normalized int64 returns it
// unchanged. It fails with *common.IdentityError for anything that is not a
// non-negative integer.
func Normalize(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		if v < 0 {
			return 0, &common.IdentityError{Value: raw, Err: errNegative}
		}
		return v, nil
	case int:
		return Normalize(int64(v))
	case int32:
		return Normalize(int64(v))
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, &common.IdentityError{Value: raw, Err: strconv.ErrRange}
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, &common.IdentityError{Value: raw, Err: errFraction}
		}
		if v < 0 {
			return 0, &common.IdentityError{Value: raw, Err: errNegative}
		}
		if v >= math.MaxInt64 {
			return 0, &common.IdentityError{Value: raw, Err: strconv.ErrRange}
		}
		return int64(v), nil
	case json.Number:
		return parseString(string(v), raw)
	case string:
		return parseString(v, raw)
	case []byte:
		return parseString(string(v), raw)
	case map[string]any:
		return normalizeObject(v, raw)
	case common.Row:
		return normalizeObject(v, raw)
	case nil:
		return 0, &common.IdentityError{Value: raw, Err: errEmpty}
	default:
		return 0, &common.IdentityError{Value: raw, Err: fmt.Errorf("unsupported type %T", raw)}
	}
}

func normalizeObject(obj map[string]any, raw any) (int64, error) {
	// id_str is preferred since float decoding of id may lose precision
	for _, key := range []string{"id_str", "id"} {
		if v, ok := obj[key]; ok && !IsBlank(v) {
			return Normalize(v)
		}
	}
	return 0, &common.IdentityError{Value: raw, Err: errNoID}
}

// IsBlank reports whether v is one of the null markers found in tabular
// exports: nil, an empty string, "nan", "None" or "null".
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "nan") || s == "None" || s == "null"
	}
	return false
}

func parseString(s string, raw any) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &common.IdentityError{Value: raw, Err: errEmpty}
	}
	// pandas exports sometimes render integer columns as "123.0"
	if whole, ok := strings.CutSuffix(s, ".0"); ok {
		s = whole
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &common.IdentityError{Value: raw, Err: err}
	}
	if id < 0 {
		return 0, &common.IdentityError{Value: raw, Err: errNegative}
	}
	return id, nil
}

// FromRow resolves path inside row and normalizes the value found there.
// A path of ["user", "id"] reads row["user"]["id"]; a single element path
// reads a flat column. The row is never modified.
func FromRow(row common.Row, path ...string) (int64, error) {
	v, ok := Lookup(row, path...)
	if !ok {
		return 0, &common.IdentityError{Value: strings.Join(path, "."), Err: errEmpty}
	}
	return Normalize(v)
}

// Lookup walks a nested path of string keys through row.
func Lookup(row common.Row, path ...string) (any, bool) {
	var cur any = map[string]any(row)
	for _, key := range path {
		var m map[string]any
		switch t := cur.(type) {
		case map[string]any:
			m = t
		case common.Row:
			m = t
		default:
			return nil, false
		}
		v, ok := m[key]
		if !ok || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// String renders a canonical identifier as a graph node key.
func String(id int64) string {
	return strconv.FormatInt(id, 10)
}
