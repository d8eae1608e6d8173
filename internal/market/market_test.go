package market

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildRequest_Intraday(t *testing.T) {
	t.Parallel()

	req := BuildRequest("RELIANCE.BSE", IntradayEvery(DefaultInterval), "demo")
	q := req.Query()

	require.Equal(t, "TIME_SERIES_INTRADAY", q.Get("function"))
	require.Equal(t, "RELIANCE.BSE", q.Get("symbol"))
	require.Equal(t, "demo", q.Get("apikey"))
	require.Equal(t, "5min", q.Get("interval"))
	require.Empty(t, q.Get("outputsize"))
}

func TestBuildRequest_Daily(t *testing.T) {
	t.Parallel()

	req := BuildRequest("IBM", DailyBars(), "demo")
	q := req.Query()

	require.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
	require.Equal(t, "IBM", q.Get("symbol"))
	require.Equal(t, "compact", q.Get("outputsize"))
	require.Empty(t, q.Get("interval"))
}

func TestBuildRequest_SymbolVerbatim(t *testing.T) {
	t.Parallel()

	req := BuildRequest(" tcs.nse ", DailyBars(), "k")
	require.Equal(t, " tcs.nse ", req.Query().Get("symbol"))
}

func TestGranularity_SeriesKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Time Series (5min)", IntradayEvery("5min").SeriesKey())
	require.Equal(t, "Time Series (15min)", IntradayEvery("15min").SeriesKey())
	require.Equal(t, "Time Series (Daily)", DailyBars().SeriesKey())
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	g, err := ParseGranularity("", "")
	require.NoError(t, err)
	require.Equal(t, IntradayEvery("5min"), g)

	g, err = ParseGranularity("DAILY", "5min")
	require.NoError(t, err)
	require.Equal(t, DailyBars(), g)

	_, err = ParseGranularity("intraday", "7min")
	require.Error(t, err)

	_, err = ParseGranularity("weekly", "")
	require.Error(t, err)

	require.Error(t, Granularity{}.Validate())
}

func TestSeries_Tail(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	var s Series
	for i := 0; i < 5; i++ {
		s = append(s, Record{Time: base.Add(time.Duration(i) * 5 * time.Minute), Close: float64(i)})
	}

	tail := s.Tail(2)
	require.Len(t, tail, 2)
	require.Equal(t, []float64{3, 4}, tail.Closes())

	require.Len(t, s.Tail(50), 5)
	require.Empty(t, s.Tail(0))

	// Assert: the tail is a copy.
	tail[0].Close = 99
	require.Equal(t, 3.0, s[3].Close)
}

func TestSeries_Anomalies(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	s := Series{
		{Time: ts, Open: 100, High: 105, Low: 99, Close: 102.5},
		{Time: ts.Add(24 * time.Hour), Open: 100, High: 101, Low: 99, Close: 103},
		{Time: ts.Add(48 * time.Hour), Open: 100, High: 105, Low: 101, Close: 102},
	}

	got := s.Anomalies()
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].Index)
	require.Contains(t, got[0].Reason, "high")
	require.Equal(t, 2, got[1].Index)
	require.Contains(t, got[1].Reason, "low")
}

func TestError_IsAndKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("cycle: %w", &Error{Kind: InvalidResponse, Message: "missing key", ProviderMessage: "rate limit"})

	require.True(t, errors.Is(err, ErrInvalidResponse))
	require.False(t, errors.Is(err, ErrEmptySeries))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, InvalidResponse, kind)
	require.Contains(t, err.Error(), "provider: rate limit")

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}
