// Package normalize turns raw provider payloads into canonical series.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"candleview/internal/market"
)

const (
	datetimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	metaKey        = "Meta Data"
)

// providerMessageKeys are checked in order when the series key is missing.
var providerMessageKeys = []string{"Error Message", "Note", "Information"}

var errNotObject = errors.New("not a JSON object")

// field is one key/value pair of a JSON object, in document order.
type field struct {
	key   string
	value json.RawMessage
}

// Series validates raw against the shape expected for g and returns the
// records sorted ascending by timestamp.
func Series(raw market.RawResponse, g market.Granularity) (market.Series, error) {
	key := g.SeriesKey()
	body, ok := raw[key]
	if !ok {
		e := market.NewError(market.InvalidResponse, fmt.Sprintf("payload has no %q", key), nil)
		e.ProviderMessage = ProviderMessage(raw)
		return nil, e
	}

	entries, err := decodeObject(body)
	if err != nil {
		return nil, market.NewError(market.InvalidResponse, fmt.Sprintf("decoding %q", key), err)
	}
	if len(entries) == 0 {
		return nil, market.NewError(market.EmptySeries, fmt.Sprintf("%q has no entries", key), nil)
	}

	loc := timezone(raw)
	out := make(market.Series, 0, len(entries))
	for _, e := range entries {
		rec, err := parseRecord(e, loc)
		if err != nil {
			return nil, market.NewError(market.MalformedRecord, fmt.Sprintf("record %q", e.key), err)
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	for i := 1; i < len(out); i++ {
		if out[i].Time.Equal(out[i-1].Time) {
			return nil, market.NewError(market.MalformedRecord, fmt.Sprintf("duplicate timestamp %s", out[i].Time.Format(datetimeLayout)), nil)
		}
	}
	return out, nil
}

// ProviderMessage returns the provider's own error or quota note, if any.
func ProviderMessage(raw market.RawResponse) string {
	for _, k := range providerMessageKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(string(v))
	}
	return ""
}

func parseRecord(e field, loc *time.Location) (market.Record, error) {
	ts, err := parseTime(e.key, loc)
	if err != nil {
		return market.Record{}, err
	}

	fields, err := decodeObject(e.value)
	if err != nil {
		return market.Record{}, fmt.Errorf("decoding fields: %w", err)
	}
	if len(fields) != 4 && len(fields) != 5 {
		return market.Record{}, fmt.Errorf("want 4 or 5 fields, got %d", len(fields))
	}
	orderFields(fields)

	// open, high, low, close, volume by position
	var vals [5]float64
	for i, f := range fields {
		v, err := parseNumber(f.value)
		if err != nil {
			return market.Record{}, fmt.Errorf("field %q: %w", f.key, err)
		}
		vals[i] = v
	}
	return market.Record{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(datetimeLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t, nil
}

func parseNumber(v json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(v))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", string(v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %s", string(v))
	}
	return f, nil
}

// orderFields sorts by numeric prefix ("1. open") when every key has one and
// keeps document order otherwise.
func orderFields(fields []field) {
	for _, f := range fields {
		if _, ok := numericPrefix(f.key); !ok {
			return
		}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		ni, _ := numericPrefix(fields[i].key)
		nj, _ := numericPrefix(fields[j].key)
		return ni < nj
	})
}

func numericPrefix(key string) (int, bool) {
	dot := strings.IndexByte(key, '.')
	if dot <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(key[:dot]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeObject reads a JSON object preserving key order.
func decodeObject(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var out []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, field{key: k, value: v})
	}
	return out, nil
}

// timezone reads the "Time Zone" entry of the metadata block, falling back
// to UTC when it is missing or unknown to the host.
func timezone(raw market.RawResponse) *time.Location {
	meta, ok := raw[metaKey]
	if !ok {
		return time.UTC
	}
	var m map[string]any
	if err := json.Unmarshal(meta, &m); err != nil {
		return time.UTC
	}
	for k, v := range m {
		s, ok := v.(string)
		if !ok || !strings.HasSuffix(k, "Time Zone") {
			continue
		}
		if loc, err := time.LoadLocation(s); err == nil {
			return loc
		}
	}
	return time.UTC
}
