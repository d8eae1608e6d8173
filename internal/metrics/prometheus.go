package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records fetch cycle outcomes using Prometheus.
type Recorder struct {
	cycles       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cooldownWait prometheus.Histogram
	lastClose    *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg means the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candleview_cycles_total",
				Help: "Total number of fetch cycles by outcome",
			},
			[]string{"granularity", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candleview_cycle_duration_seconds",
				Help:    "Duration of fetch cycles in seconds, excluding cooldown",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"granularity"},
		),
		cooldownWait: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "candleview_cooldown_wait_seconds",
				Help:    "Time triggers spent deferred by the cooldown or provider quota",
				Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120},
			},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candleview_last_close",
				Help: "Latest close price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordCycle records the outcome and duration of one cycle.
func (r *Recorder) RecordCycle(granularity, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(granularity, outcome).Inc()
	r.duration.WithLabelValues(granularity).Observe(d.Seconds())
}

// RecordCooldownWait records how long a trigger was deferred.
func (r *Recorder) RecordCooldownWait(d time.Duration) {
	if r == nil {
		return
	}
	r.cooldownWait.Observe(d.Seconds())
}

// RecordLastClose records the latest close for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	if r == nil {
		return
	}
	r.lastClose.WithLabelValues(symbol).Set(price)
}
