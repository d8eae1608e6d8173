package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"candleview/internal/market"
)

// maxBody bounds the payload read from the provider.
const maxBody = 8 << 20

// Fetch performs one GET /query call and returns the decoded top-level
// object. The series key is not checked here: the provider answers 200 with
// an error payload, which the normalizer classifies.
func (c *Client) Fetch(ctx context.Context, r market.Request) (market.RawResponse, error) {
	url := fmt.Sprintf("%s/query?%s", strings.TrimRight(c.baseURL, "/"), r.Query().Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, market.NewError(market.TransportError, "creating request", err)
	}
	req.Header = c.header.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, market.NewError(market.TransportError, "performing request", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, market.NewError(market.TransportError, "rate limited", nil)
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil, market.NewError(market.TransportError, "unauthorized", nil)
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, market.NewError(market.TransportError, fmt.Sprintf("unexpected status code: %d: %s", res.StatusCode, strings.TrimSpace(string(b))), nil)
	}

	var body market.RawResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(&body); err != nil {
		return nil, market.NewError(market.InvalidResponse, "decoding time series response", err)
	}
	if body == nil {
		return nil, market.NewError(market.InvalidResponse, "response body is not a JSON object", nil)
	}
	return body, nil
}
