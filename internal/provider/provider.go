package provider

import (
	"context"

	"candleview/internal/market"
)

// Provider returns the raw payload for one query. Implementations report
// network or status failures as market.TransportError and leave payload
// validation to the normalizer.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req market.Request) (market.RawResponse, error)
}
