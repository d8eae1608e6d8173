package cycle

import (
	"time"

	"candleview/internal/display"
	"candleview/internal/market"
)

// Result is the outcome of one cycle.
type Result struct {
	Symbol      string
	Granularity market.Granularity
	Series      market.Series
	Metrics     display.Metrics
	// Warning is set when the series is usable but metrics are not, for
	// example a single-record series.
	Warning   error
	Anomalies []market.Anomaly
	State     State
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Kind returns the error kind of a failed cycle, or 0.
func (r *Result) Kind() market.ErrorKind {
	if r == nil || r.Err == nil {
		return 0
	}
	k, _ := market.KindOf(r.Err)
	return k
}

// HasMetrics reports whether Metrics holds derived values.
func (r *Result) HasMetrics() bool {
	return r != nil && r.State == Ready && r.Warning == nil
}

// Recent returns up to the n most recent records.
func (r *Result) Recent(n int) market.Series {
	if r == nil {
		return nil
	}
	return r.Series.Tail(n)
}
