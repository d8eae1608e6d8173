// Package display derives the values shown next to a rendered series.
package display

import (
	"time"

	"candleview/internal/market"
)

const (
	timeOfDayLayout = "15:04:05"
	dateLayout      = "2006-01-02"
)

// Metrics are recomputed from the series on every render.
type Metrics struct {
	LatestClose        float64 `json:"latest_close"`
	PriorClose         float64 `json:"prior_close"`
	Delta              float64 `json:"delta"`
	LastTimestampLabel string  `json:"last_timestamp_label"`
}

// Compute derives last-price metrics. It needs at least two records.
func Compute(s market.Series, g market.Granularity) (Metrics, error) {
	switch len(s) {
	case 0:
		return Metrics{}, market.NewError(market.EmptySeries, "no records to derive metrics from", nil)
	case 1:
		return Metrics{}, market.NewError(market.InsufficientHistory, "need two records to compute a delta", nil)
	}
	last, prior := s[len(s)-1], s[len(s)-2]
	return Metrics{
		LatestClose:        last.Close,
		PriorClose:         prior.Close,
		Delta:              last.Close - prior.Close,
		LastTimestampLabel: Label(last.Time, g),
	}, nil
}

// Label formats a timestamp for display. Intraday bars share one trading
// day so only the time of day is shown.
func Label(t time.Time, g market.Granularity) string {
	if g.Kind == market.Daily {
		return t.Format(dateLayout)
	}
	return t.Format(timeOfDayLayout)
}
