package market

import (
	"encoding/json"
	"net/url"
)

// Request describes a single provider query.
type Request struct {
	Symbol      string
	Granularity Granularity
	APIKey      string
}

// BuildRequest assembles a provider query. The symbol is passed through
// verbatim; exchange suffixes such as ".BSE" are the caller's concern.
func BuildRequest(symbol string, g Granularity, apiKey string) Request {
	return Request{Symbol: symbol, Granularity: g, APIKey: apiKey}
}

// Query encodes the request as provider query parameters.
func (r Request) Query() url.Values {
	q := url.Values{}
	q.Set("function", r.Granularity.Function())
	q.Set("symbol", r.Symbol)
	q.Set("apikey", r.APIKey)
	switch r.Granularity.Kind {
	case Daily:
		q.Set("outputsize", DailyOutputSize)
	default:
		q.Set("interval", r.Granularity.Interval)
	}
	return q
}

// RawResponse is the provider payload keyed by its top-level fields.
// Values stay undecoded so per-record field order survives.
type RawResponse map[string]json.RawMessage
