package market

import (
	"fmt"
	"math"
	"time"
)

// Record is one OHLCV bar.
type Record struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a time-ascending sequence of records with unique timestamps.
type Series []Record

// Last returns the most recent record.
func (s Series) Last() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[len(s)-1], true
}

// Tail returns a copy of the n most recent records, oldest first.
func (s Series) Tail(n int) Series {
	if n <= 0 || len(s) == 0 {
		return Series{}
	}
	if n > len(s) {
		n = len(s)
	}
	out := make(Series, n)
	copy(out, s[len(s)-n:])
	return out
}

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.Close
	}
	return out
}

// Anomaly flags a record whose high/low do not bound its open and close.
type Anomaly struct {
	Index  int       `json:"index"`
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

// Anomalies lists records that break the OHLC envelope. Nothing is
// rejected; renderers that assume the envelope can warn instead.
func (s Series) Anomalies() []Anomaly {
	var out []Anomaly
	for i, r := range s {
		if hi := math.Max(math.Max(r.Open, r.Close), r.Low); r.High < hi {
			out = append(out, Anomaly{Index: i, Time: r.Time, Reason: fmt.Sprintf("high %g below %g", r.High, hi)})
			continue
		}
		if lo := math.Min(math.Min(r.Open, r.Close), r.High); r.Low > lo {
			out = append(out, Anomaly{Index: i, Time: r.Time, Reason: fmt.Sprintf("low %g above %g", r.Low, lo)})
		}
	}
	return out
}
