package market

import (
	"fmt"
	"strings"
)

// Kind tags the two response shapes the provider can return.
type Kind int

const (
	Intraday Kind = iota + 1
	Daily
)

// DefaultInterval is the bar size used for intraday requests.
const DefaultInterval = "5min"

// DailyOutputSize limits daily requests to the ~100 most recent points.
const DailyOutputSize = "compact"

var intradayIntervals = map[string]struct{}{
	"1min":  {},
	"5min":  {},
	"15min": {},
	"30min": {},
	"60min": {},
}

// Granularity is the sampling resolution of a requested series. The zero
// value is invalid; use IntradayEvery or DailyBars.
type Granularity struct {
	Kind     Kind
	Interval string // intraday only
}

// IntradayEvery returns an intraday granularity with the given bar interval.
func IntradayEvery(interval string) Granularity {
	return Granularity{Kind: Intraday, Interval: interval}
}

// DailyBars returns the daily granularity.
func DailyBars() Granularity {
	return Granularity{Kind: Daily}
}

// ParseGranularity builds a Granularity from configuration strings.
func ParseGranularity(kind, interval string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "intraday", "":
		if interval == "" {
			interval = DefaultInterval
		}
		g := IntradayEvery(interval)
		return g, g.Validate()
	case "daily":
		return DailyBars(), nil
	default:
		return Granularity{}, fmt.Errorf("unknown granularity %q", kind)
	}
}

// Validate reports whether the granularity can be requested.
func (g Granularity) Validate() error {
	switch g.Kind {
	case Intraday:
		if _, ok := intradayIntervals[g.Interval]; !ok {
			return fmt.Errorf("unsupported intraday interval %q", g.Interval)
		}
		return nil
	case Daily:
		return nil
	default:
		return fmt.Errorf("granularity kind %d is not set", g.Kind)
	}
}

// Function is the provider function requested for this granularity.
func (g Granularity) Function() string {
	if g.Kind == Daily {
		return "TIME_SERIES_DAILY"
	}
	return "TIME_SERIES_INTRADAY"
}

// SeriesKey is the top-level key the provider nests the series under.
func (g Granularity) SeriesKey() string {
	if g.Kind == Daily {
		return "Time Series (Daily)"
	}
	return fmt.Sprintf("Time Series (%s)", g.Interval)
}

func (g Granularity) String() string {
	switch g.Kind {
	case Intraday:
		return "intraday/" + g.Interval
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}
