package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"candleview/internal/metrics"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	// Arrange: an isolated registry
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	// Act
	r.RecordCycle("daily", "ready", 120*time.Millisecond)
	r.RecordCycle("daily", "ready", 80*time.Millisecond)
	r.RecordCycle("daily", "invalid_response", 10*time.Millisecond)
	r.RecordCooldownWait(3 * time.Second)
	r.RecordLastClose("RELIANCE.BSE", 2606.95)

	// Assert
	n, err := testutil.GatherAndCount(reg, "candleview_cycles_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(reg, "candleview_last_close")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	var ready float64
	for _, mf := range families {
		if mf.GetName() != "candleview_cycles_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == "ready" {
					ready = m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, 2.0, ready)
}

func TestRecorder_Nil(t *testing.T) {
	t.Parallel()

	var r *metrics.Recorder
	require.NotPanics(t, func() {
		r.RecordCycle("daily", "ready", time.Second)
		r.RecordCooldownWait(time.Second)
		r.RecordLastClose("IBM", 1)
	})
}
