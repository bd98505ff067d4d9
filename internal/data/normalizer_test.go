package data

import (
	"errors"
	"testing"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const nseLadder = `{
  "symbol": "nifty",
  "expiry": "13-Jan-2026",
  "records": {
    "expiryDates": ["13-Jan-2026", "20-Jan-2026"],
    "underlyingValue": 23810.5,
    "timestamp": "07-Jan-2026 15:30:00",
    "data": [
      {"strikePrice": 23850, "expiryDate": "13-Jan-2026",
       "CE": {"strikePrice": 23850, "openInterest": 300, "changeinOpenInterest": -20, "totalTradedVolume": 1500, "lastPrice": 95.5, "change": -4.25, "impliedVolatility": 12.4, "bidQty": 75, "bidprice": 95, "askQty": 50, "askPrice": 96},
       "PE": {"strikePrice": 23850, "openInterest": 200, "changeinOpenInterest": 15, "totalTradedVolume": 900, "lastPrice": 120, "change": 3, "impliedVolatility": 0}},
      {"strikePrice": 23750, "expiryDate": "13-Jan-2026",
       "CE": {"strikePrice": 23750, "openInterest": 100, "changeinOpenInterest": 10, "totalTradedVolume": 2000, "lastPrice": 150, "change": -5},
       "PE": {"strikePrice": 23750, "openInterest": 400, "changeinOpenInterest": 40, "totalTradedVolume": 3000, "lastPrice": 60, "change": 2.5}},
      {"strikePrice": 23800, "expiryDate": "13-Jan-2026",
       "CE": {"strikePrice": 23800, "openInterest": 200, "changeinOpenInterest": 5, "totalTradedVolume": 1800, "lastPrice": 120, "change": -6},
       "PE": {"strikePrice": 23800, "openInterest": 300, "changeinOpenInterest": -5, "totalTradedVolume": 2500, "lastPrice": 88, "change": 1}}
    ]
  }
}`

const bseLadder = `{
  "symbol": "SENSEX",
  "expiry": "13-Jan-2026",
  "source": "BSE",
  "data": {
    "UlaValue": "23,810.50",
    "expiryDates": ["13-Jan-2026", "20-Jan-2026"],
    "ASON": {"DT_TM": "07 Jan 2026 | 15:30 "},
    "Table": [
      {"Strike_Price": "23,850.00", "End_TimeStamp": "13 Jan 2026",
       "C_Open_Interest": "300", "C_Absolute_Change_OI": "-20", "C_Vol_Traded": "1,500", "C_Last_Trd_Price": "95.50", "C_NetChange": "-4.25", "C_IV": "12.40",
       "Open_Interest": "200", "Absolute_Change_OI": "15", "Vol_Traded": "900", "Last_Trd_Price": "120.00", "NetChange": "3", "IV": ""},
      {"Strike_Price": "", "Strike_Price1": "23,750.00", "End_TimeStamp": "13 Jan 2026",
       "C_Open_Interest": "100", "C_Absolute_Change_OI": "10", "C_Vol_Traded": "2,000", "C_Last_Trd_Price": "150.00", "C_NetChange": "-5",
       "Open_Interest": "400", "Absolute_Change_OI": "40", "Vol_Traded": "3,000", "Last_Trd_Price": "60.00", "NetChange": "2.5"},
      {"Strike_Price": "23,800.00", "End_TimeStamp": "13 Jan 2026",
       "C_Open_Interest": "200", "C_Absolute_Change_OI": "5", "C_Vol_Traded": "1,800", "C_Last_Trd_Price": "120.00", "C_NetChange": "-6",
       "Open_Interest": "300", "Absolute_Change_OI": "-5", "Vol_Traded": "2,500", "Last_Trd_Price": "88.00", "NetChange": "1"}
    ]
  }
}`

func normalizeWithClock(t *testing.T, exchange models.Exchange, raw string) (*models.ChainSnapshot, error) {
	t.Helper()
	n, err := newNormalizer(exchange, fixedClock)
	require.NoError(t, err)
	return n.Normalize([]byte(raw))
}

func TestNormalizer_NSE(t *testing.T) {
	snap, err := normalizeWithClock(t, models.ExchangeNSE, nseLadder)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	assert.Equal(t, "NIFTY", snap.Symbol)
	assert.Equal(t, models.ExchangeNSE, snap.Exchange)
	assert.Equal(t, 23810.5, snap.UnderlyingPrice)
	assert.Equal(t, "13-Jan-2026", snap.Expiry)
	assert.Equal(t, []string{"13-Jan-2026", "20-Jan-2026"}, snap.AvailableExpiries)
	assert.Equal(t, time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC), snap.Timestamp)

	require.Len(t, snap.Strikes, 3)
	assert.Equal(t, 23750.0, snap.Strikes[0].StrikePrice)
	assert.Equal(t, 23800.0, snap.Strikes[1].StrikePrice)
	assert.Equal(t, 23850.0, snap.Strikes[2].StrikePrice)

	top := snap.Strikes[2]
	require.NotNil(t, top.Call)
	assert.Equal(t, int64(300), top.Call.OpenInterest)
	assert.Equal(t, int64(-20), top.Call.ChangeInOpenInterest)
	assert.Equal(t, int64(1500), top.Call.TotalTradedVolume)
	assert.Equal(t, 95.5, top.Call.LastTradedPrice)
	assert.Equal(t, -4.25, top.Call.Change)
	require.NotNil(t, top.Call.ImpliedVolatility)
	assert.Equal(t, 12.4, *top.Call.ImpliedVolatility)
	assert.Equal(t, 95.0, top.Call.BidPrice)
	assert.Equal(t, int64(75), top.Call.BidQty)
	assert.Equal(t, 96.0, top.Call.AskPrice)
	assert.Equal(t, int64(50), top.Call.AskQty)

	// zero IV is treated as absent
	assert.Nil(t, top.Put.ImpliedVolatility)
	// missing IV is absent too
	assert.Nil(t, snap.Strikes[0].Call.ImpliedVolatility)
}

func TestNormalizer_BSE(t *testing.T) {
	snap, err := normalizeWithClock(t, models.ExchangeBSE, bseLadder)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	assert.Equal(t, "SENSEX", snap.Symbol)
	assert.Equal(t, models.ExchangeBSE, snap.Exchange)
	assert.Equal(t, 23810.5, snap.UnderlyingPrice)
	// 15:30 IST is 10:00 UTC
	assert.Equal(t, time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC), snap.Timestamp)

	require.Len(t, snap.Strikes, 3)
	assert.Equal(t, 23750.0, snap.Strikes[0].StrikePrice, "Strike_Price1 fallback")
	assert.Equal(t, int64(400), snap.Strikes[0].PutOI())
	assert.Equal(t, int64(2000), snap.Strikes[0].Call.TotalTradedVolume)
	assert.Nil(t, snap.Strikes[2].Put.ImpliedVolatility)
	require.NotNil(t, snap.Strikes[2].Call.ImpliedVolatility)
	assert.Equal(t, 12.4, *snap.Strikes[2].Call.ImpliedVolatility)
}

func TestNormalizer_ShapeEquivalence(t *testing.T) {
	nse, err := normalizeWithClock(t, models.ExchangeNSE, nseLadder)
	require.NoError(t, err)
	bse, err := normalizeWithClock(t, models.ExchangeBSE, bseLadder)
	require.NoError(t, err)

	require.Equal(t, len(nse.Strikes), len(bse.Strikes))
	for i := range nse.Strikes {
		a, b := nse.Strikes[i], bse.Strikes[i]
		assert.Equal(t, a.StrikePrice, b.StrikePrice)
		for _, pair := range [][2]*models.StrikeQuote{{a.Call, b.Call}, {a.Put, b.Put}} {
			require.NotNil(t, pair[0])
			require.NotNil(t, pair[1])
			assert.Equal(t, pair[0].OpenInterest, pair[1].OpenInterest, "strike %v OI", a.StrikePrice)
			assert.Equal(t, pair[0].ChangeInOpenInterest, pair[1].ChangeInOpenInterest, "strike %v change OI", a.StrikePrice)
			assert.Equal(t, pair[0].TotalTradedVolume, pair[1].TotalTradedVolume, "strike %v volume", a.StrikePrice)
			assert.Equal(t, pair[0].LastTradedPrice, pair[1].LastTradedPrice, "strike %v LTP", a.StrikePrice)
		}
	}
	assert.Equal(t, nse.UnderlyingPrice, bse.UnderlyingPrice)
}

func TestNormalizer_ProxyEnvelope(t *testing.T) {
	raw := `{"success": true, "symbol": "BANKNIFTY", "data": {"records": {
		"underlyingValue": "51,234.10",
		"data": [
			{"expiryDate": "27-Jan-2026", "CE": {"strikePrice": 51200, "openInterest": "1,000"}},
			{"expiryDate": "20-Jan-2026", "PE": {"strikePrice": 51300, "openInterest": 500}}
		]}}}`

	snap, err := normalizeWithClock(t, models.ExchangeNSE, raw)
	require.NoError(t, err)

	assert.Equal(t, "BANKNIFTY", snap.Symbol)
	assert.Equal(t, 51234.1, snap.UnderlyingPrice)
	require.Len(t, snap.Strikes, 2)
	assert.Equal(t, int64(1000), snap.Strikes[0].CallOI())
	assert.Nil(t, snap.Strikes[0].Put)
	assert.Nil(t, snap.Strikes[1].Call)
	// derived from rows, sorted
	assert.Equal(t, []string{"20-Jan-2026", "27-Jan-2026"}, snap.AvailableExpiries)
	assert.Equal(t, "20-Jan-2026", snap.Expiry)
	// missing timestamp means now
	assert.Equal(t, fixedNow, snap.Timestamp)
}

func TestNormalizer_UpstreamFailure(t *testing.T) {
	_, err := normalizeWithClock(t, models.ExchangeNSE, `{"success": false, "error": "all expiry guesses failed"}`)
	require.Error(t, err)
	assert.True(t, models.IsDataError(err))
	assert.Contains(t, err.Error(), "all expiry guesses failed")
}

func TestNormalizer_DuplicateStrikeKeepsFirst(t *testing.T) {
	raw := `{"records": {"underlyingValue": 100, "data": [
		{"strikePrice": 100, "CE": {"openInterest": 1}},
		{"strikePrice": 100, "CE": {"openInterest": 2}},
		{"strikePrice": 90, "CE": {"openInterest": 3}}
	]}}`

	snap, err := normalizeWithClock(t, models.ExchangeNSE, raw)
	require.NoError(t, err)
	require.Len(t, snap.Strikes, 2)
	assert.Equal(t, 90.0, snap.Strikes[0].StrikePrice)
	assert.Equal(t, int64(1), snap.Strikes[1].CallOI())
}

func TestNormalizer_DropsRowsWithoutStrike(t *testing.T) {
	raw := `{"data": {"UlaValue": "100", "Table": [
		{"Strike_Price": "", "Strike_Price1": "", "C_Open_Interest": "5"},
		{"Strike_Price": "110", "C_Open_Interest": "7"}
	]}}`

	snap, err := normalizeWithClock(t, models.ExchangeBSE, raw)
	require.NoError(t, err)
	require.Len(t, snap.Strikes, 1)
	assert.Equal(t, 110.0, snap.Strikes[0].StrikePrice)
}

func TestNormalizer_NegativeValuesClamped(t *testing.T) {
	raw := `{"records": {"underlyingValue": 100, "data": [
		{"strikePrice": 100, "CE": {"openInterest": -5, "totalTradedVolume": "-1", "lastPrice": -2, "changeinOpenInterest": -9}}
	]}}`

	snap, err := normalizeWithClock(t, models.ExchangeNSE, raw)
	require.NoError(t, err)
	call := snap.Strikes[0].Call
	assert.Equal(t, int64(0), call.OpenInterest)
	assert.Equal(t, int64(0), call.TotalTradedVolume)
	assert.Equal(t, 0.0, call.LastTradedPrice)
	assert.Equal(t, int64(-9), call.ChangeInOpenInterest)
}

func TestNormalizer_UnderlyingFallback(t *testing.T) {
	t.Run("NSE embedded value", func(t *testing.T) {
		raw := `{"records": {"underlyingValue": 0, "data": [
			{"strikePrice": 100, "CE": {"underlyingValue": 101.5}}
		]}}`
		snap, err := normalizeWithClock(t, models.ExchangeNSE, raw)
		require.NoError(t, err)
		assert.Equal(t, 101.5, snap.UnderlyingPrice)
	})

	t.Run("BSE row value", func(t *testing.T) {
		raw := `{"data": {"Table": [{"Strike_Price": "100", "UlaValue": "99.25", "C_Open_Interest": "1"}]}}`
		snap, err := normalizeWithClock(t, models.ExchangeBSE, raw)
		require.NoError(t, err)
		assert.Equal(t, 99.25, snap.UnderlyingPrice)
	})
}

func TestNormalizer_DataErrors(t *testing.T) {
	tests := []struct {
		name     string
		exchange models.Exchange
		raw      string
	}{
		{"empty payload", models.ExchangeNSE, ``},
		{"invalid JSON", models.ExchangeNSE, `{"records": [`},
		{"missing records", models.ExchangeNSE, `{"symbol": "NIFTY"}`},
		{"no usable strike", models.ExchangeNSE, `{"records": {"underlyingValue": 100, "data": [{"CE": {"openInterest": 1}}]}}`},
		{"no underlying", models.ExchangeNSE, `{"records": {"data": [{"strikePrice": 100, "CE": {"openInterest": 1}}]}}`},
		{"BSE missing data", models.ExchangeBSE, `{"symbol": "SENSEX"}`},
		{"BSE empty table", models.ExchangeBSE, `{"data": {"UlaValue": "100", "Table": []}}`},
		{"BSE no underlying", models.ExchangeBSE, `{"data": {"Table": [{"Strike_Price": "100"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeWithClock(t, tt.exchange, tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrData), "got %v", err)
		})
	}
}

func TestNormalizer_UnparseableTimestampFallsBackToNow(t *testing.T) {
	raw := `{"data": {"UlaValue": "100", "ASON": {"DT_TM": "yesterday-ish"}, "Table": [{"Strike_Price": "100"}]}}`
	snap, err := normalizeWithClock(t, models.ExchangeBSE, raw)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, snap.Timestamp)
}

func TestNewNormalizer(t *testing.T) {
	n, err := NewNormalizer(models.ExchangeNSE)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeNSE, n.GetExchange())

	n, err = NewNormalizer(models.ExchangeBSE)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeBSE, n.GetExchange())

	_, err = NewNormalizer("MCX")
	assert.ErrorIs(t, err, ErrUnsupportedExchange)
}

func TestNormalize_EntryPoint(t *testing.T) {
	snap, err := Normalize(models.ExchangeNSE, []byte(nseLadder))
	require.NoError(t, err)
	assert.Len(t, snap.Strikes, 3)
}
