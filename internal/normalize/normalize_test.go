package normalize_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"candleview/internal/market"
	"candleview/internal/normalize"
)

const dailyPayload = `{
  "Meta Data": {
    "1. Information": "Daily Prices (open, high, low, close) and Volumes",
    "2. Symbol": "RELIANCE.BSE",
    "5. Time Zone": "UTC"
  },
  "Time Series (Daily)": {
    "2024-01-05": {"1. open":"100.0","2. high":"105.0","3. low":"99.0","4. close":"102.5","5. volume":"1000"},
    "2024-01-04": {"1. open":"98.0","2. high":"99.5","3. low":"97.0","4. close":"99.0","5. volume":"800"}
  }
}`

const intradayPayload = `{
  "Time Series (5min)": {
    "2024-01-05 09:40:00": {"1. open":"101","2. high":"102","3. low":"100","4. close":"101.5","5. volume":"300"},
    "2024-01-05 09:30:00": {"1. open":"99","2. high":"100","3. low":"98","4. close":"99.5","5. volume":"100"},
    "2024-01-05 09:35:00": {"1. open":"100","2. high":"101","3. low":"99","4. close":"100.5","5. volume":"200"}
  }
}`

func raw(t *testing.T, s string) market.RawResponse {
	t.Helper()
	var r market.RawResponse
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func requireKind(t *testing.T, err error, kind market.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	got, ok := market.KindOf(err)
	require.Truef(t, ok, "expected a pipeline error, got %v", err)
	require.Equalf(t, kind, got, "unexpected kind for %v", err)
}

func TestSeries_DailyEndToEnd(t *testing.T) {
	t.Parallel()

	// Act: normalize the daily payload
	s, err := normalize.Series(raw(t, dailyPayload), market.DailyBars())
	require.NoError(t, err)

	// Assert: records are ascending and mapped by position
	require.Equal(t, market.Series{
		{Time: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Open: 98, High: 99.5, Low: 97, Close: 99, Volume: 800},
		{Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Open: 100, High: 105, Low: 99, Close: 102.5, Volume: 1000},
	}, s)
}

func TestSeries_IntradayAscendingUnique(t *testing.T) {
	t.Parallel()

	s, err := normalize.Series(raw(t, intradayPayload), market.IntradayEvery("5min"))
	require.NoError(t, err)
	require.Len(t, s, 3)
	for i := 1; i < len(s); i++ {
		require.Truef(t, s[i-1].Time.Before(s[i].Time), "not strictly ascending at %d: %v", i, s)
	}
	require.Equal(t, []float64{99.5, 100.5, 101.5}, s.Closes())
}

func TestSeries_OrderIndependent(t *testing.T) {
	t.Parallel()

	ascending := `{"Time Series (Daily)": {
    "2024-01-02": {"1. open":"1","2. high":"2","3. low":"0.5","4. close":"1.5","5. volume":"10"},
    "2024-01-03": {"1. open":"2","2. high":"3","3. low":"1.5","4. close":"2.5","5. volume":"20"},
    "2024-01-04": {"1. open":"3","2. high":"4","3. low":"2.5","4. close":"3.5","5. volume":"30"}
  }}`
	descending := `{"Time Series (Daily)": {
    "2024-01-04": {"1. open":"3","2. high":"4","3. low":"2.5","4. close":"3.5","5. volume":"30"},
    "2024-01-03": {"1. open":"2","2. high":"3","3. low":"1.5","4. close":"2.5","5. volume":"20"},
    "2024-01-02": {"1. open":"1","2. high":"2","3. low":"0.5","4. close":"1.5","5. volume":"10"}
  }}`

	a, err := normalize.Series(raw(t, ascending), market.DailyBars())
	require.NoError(t, err)
	d, err := normalize.Series(raw(t, descending), market.DailyBars())
	require.NoError(t, err)
	require.Equal(t, a, d)
}

func TestSeries_WrongShapeIsInvalidResponse(t *testing.T) {
	t.Parallel()

	// Arrange: daily payload parsed as intraday and vice versa
	s, err := normalize.Series(raw(t, dailyPayload), market.IntradayEvery("5min"))
	requireKind(t, err, market.InvalidResponse)
	require.Nil(t, s)

	s, err = normalize.Series(raw(t, intradayPayload), market.DailyBars())
	requireKind(t, err, market.InvalidResponse)
	require.Nil(t, s)

	// Assert: a different intraday interval is also a mismatch
	_, err = normalize.Series(raw(t, intradayPayload), market.IntradayEvery("15min"))
	requireKind(t, err, market.InvalidResponse)
}

func TestSeries_SurfacesProviderMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"Error Message": "Invalid API call. Please retry or visit the documentation."}`: "Invalid API call. Please retry or visit the documentation.",
		`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`: "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute.",
		`{"Information": "You have reached the daily rate limit."}`: "You have reached the daily rate limit.",
		`{}`: "",
	}
	for payload, want := range cases {
		_, err := normalize.Series(raw(t, payload), market.DailyBars())
		requireKind(t, err, market.InvalidResponse)
		var e *market.Error
		require.True(t, errors.As(err, &e))
		require.Equal(t, want, e.ProviderMessage)
	}
}

func TestSeries_EmptySeries(t *testing.T) {
	t.Parallel()

	_, err := normalize.Series(raw(t, `{"Time Series (Daily)": {}}`), market.DailyBars())
	requireKind(t, err, market.EmptySeries)
	require.False(t, errors.Is(err, market.ErrInvalidResponse))
}

func TestSeries_SeriesKeyNotObject(t *testing.T) {
	t.Parallel()

	_, err := normalize.Series(raw(t, `{"Time Series (Daily)": null}`), market.DailyBars())
	requireKind(t, err, market.InvalidResponse)

	_, err = normalize.Series(raw(t, `{"Time Series (Daily)": ["2024-01-05"]}`), market.DailyBars())
	requireKind(t, err, market.InvalidResponse)
}

func TestSeries_MalformedRecords(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"non-numeric": `{"Time Series (Daily)": {"2024-01-05": {"1. open":"abc","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`,
		"null value":  `{"Time Series (Daily)": {"2024-01-05": {"1. open":null,"2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`,
		"non-finite":  `{"Time Series (Daily)": {"2024-01-05": {"1. open":"NaN","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`,
		"too few":     `{"Time Series (Daily)": {"2024-01-05": {"1. open":"1","2. high":"1","3. low":"1"}}}`,
		"bad time":    `{"Time Series (Daily)": {"05/01/2024": {"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`,
		"not object":  `{"Time Series (Daily)": {"2024-01-05": "1,2,3,4,5"}}`,
		"duplicate":   `{"Time Series (Daily)": {"2024-01-05": {"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}, "2024-01-05 00:00:00": {"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`,
	}
	for name, payload := range cases {
		_, err := normalize.Series(raw(t, payload), market.DailyBars())
		require.Errorf(t, err, "case %s", name)
		kind, _ := market.KindOf(err)
		require.Equalf(t, market.MalformedRecord, kind, "case %s: %v", name, err)
	}
}

func TestSeries_FieldOrderNotNames(t *testing.T) {
	t.Parallel()

	// Arrange: prefixed fields out of document order, unprefixed fields with
	// unfamiliar names, and plain JSON numbers
	prefixed := `{"Time Series (Daily)": {"2024-01-05": {"4. close":"102.5","1. open":"100","3. low":"99","2. high":"105","5. volume":"1000"}}}`
	plain := `{"Time Series (Daily)": {"2024-01-05": {"o":100,"h":105,"l":99,"c":102.5,"v":1000}}}`
	fourFields := `{"Time Series (Daily)": {"2024-01-05": {"1. Open":"100","2. High":"105","3. Low":"99","4. Close":"102.5"}}}`

	want := market.Record{Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Open: 100, High: 105, Low: 99, Close: 102.5, Volume: 1000}

	for _, payload := range []string{prefixed, plain} {
		s, err := normalize.Series(raw(t, payload), market.DailyBars())
		require.NoError(t, err)
		require.Equal(t, market.Series{want}, s)
	}

	s, err := normalize.Series(raw(t, fourFields), market.DailyBars())
	require.NoError(t, err)
	want.Volume = 0
	require.Equal(t, market.Series{want}, s)
}

func TestSeries_FlagsEnvelopeViolationsWithoutFailing(t *testing.T) {
	t.Parallel()

	// Arrange: high below close
	payload := `{"Time Series (Daily)": {
    "2024-01-04": {"1. open":"98.0","2. high":"99.5","3. low":"97.0","4. close":"99.0","5. volume":"800"},
    "2024-01-05": {"1. open":"100.0","2. high":"101.0","3. low":"99.0","4. close":"102.5","5. volume":"1000"}
  }}`

	s, err := normalize.Series(raw(t, payload), market.DailyBars())
	require.NoError(t, err)
	anomalies := s.Anomalies()
	require.Len(t, anomalies, 1)
	require.Equal(t, 1, anomalies[0].Index)
}

func TestSeries_MetaTimeZone(t *testing.T) {
	t.Parallel()

	payload := `{
  "Meta Data": {"6. Time Zone": "US/Eastern"},
  "Time Series (5min)": {
    "2024-01-05 09:35:00": {"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}
  }}`

	s, err := normalize.Series(raw(t, payload), market.IntradayEvery("5min"))
	require.NoError(t, err)
	require.Len(t, s, 1)

	// Assert: wall clock is preserved whichever zone could be loaded
	require.Equal(t, "09:35:00", s[0].Time.Format("15:04:05"))
}
