package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
)

const (
	mockStrikeCount  = 31
	mockExpiryCount  = 4
	mockExpiryLayout = "02-Jan-2006"
)

// mockBasePrices seeds the generated ladders; unknown symbols start at 1000
var mockBasePrices = map[string]float64{
	"NIFTY":      23800,
	"BANKNIFTY":  51200,
	"FINNIFTY":   23500,
	"MIDCPNIFTY": 12800,
	"SENSEX":     78500,
	"BANKEX":     58000,
}

// MockSource generates deterministic option chains. Each Fetch advances a
// sequence number that drifts the underlying and OI, so consecutive
// refreshes differ enough to exercise the alert rules.
type MockSource struct {
	name  string
	table *symbols.Table
	seq   atomic.Int64
	now   func() time.Time
}

// NewMockSource creates a new mock source
func NewMockSource(config SourceConfig) (Source, error) {
	table := config.Symbols
	if table == nil {
		table = symbols.Default
	}
	return &MockSource{
		name:  "mock",
		table: table,
		now:   time.Now,
	}, nil
}

// GetName returns the source name
func (m *MockSource) GetName() string {
	return m.name
}

// Fetch renders the generated ladder in the shape of req.Exchange
func (m *MockSource) Fetch(ctx context.Context, req FetchRequest) (*RawPayload, error) {
	if err := req.Validate(m.table); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seq := m.seq.Add(1) - 1
	ladder := m.generate(req.Symbol, seq)
	expiries := m.expiries()
	expiry := req.Expiry
	if expiry == "" {
		expiry = expiries[0]
	}

	var (
		body []byte
		err  error
	)
	switch req.Exchange {
	case models.ExchangeBSE:
		body, err = json.Marshal(ladder.bsePayload(req.Symbol, expiry, expiries, m.now()))
	default:
		body, err = json.Marshal(ladder.nsePayload(req.Symbol, expiry, expiries, m.now()))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode mock payload: %w", err)
	}

	return &RawPayload{
		Exchange:  req.Exchange,
		Body:      body,
		Source:    m.name,
		FetchedAt: m.now(),
	}, nil
}

// Sequence returns how many payloads have been generated
func (m *MockSource) Sequence() int64 {
	return m.seq.Load()
}

type mockRow struct {
	strike  float64
	callOI  int64
	putOI   int64
	callChg int64
	putChg  int64
	callVol int64
	putVol  int64
	callLTP float64
	putLTP  float64
	callIV  float64
	putIV   float64
	callNet float64
	putNet  float64
}

type mockLadder struct {
	underlying float64
	rows       []mockRow
}

func (m *MockSource) generate(symbol string, seq int64) mockLadder {
	interval := m.table.StrikeIntervalOf(symbol)
	base, ok := mockBasePrices[symbol]
	if !ok {
		base = 1000
	}

	phase := float64(seq)
	underlying := round2(base + interval*0.8*math.Sin(phase/4))
	atm := math.Round(underlying/interval) * interval

	half := mockStrikeCount / 2
	rows := make([]mockRow, 0, mockStrikeCount)
	for i := -half; i <= half; i++ {
		k := float64(i)
		strike := atm + k*interval
		if strike <= 0 {
			continue
		}
		wobble := 1 + 0.08*math.Sin(phase+k)
		callOI := (20000 + 150000/(1+math.Abs(k-2))) * wobble
		putOI := (20000 + 150000/(1+math.Abs(k+2))) * (2 - wobble)
		timeValue := interval * 2 / (1 + math.Abs(k)*0.5)

		rows = append(rows, mockRow{
			strike:  strike,
			callOI:  int64(math.Round(callOI)),
			putOI:   int64(math.Round(putOI)),
			callChg: int64(math.Round(callOI / 10 * math.Sin(phase/2+k))),
			putChg:  int64(math.Round(putOI / 10 * math.Cos(phase/2+k))),
			callVol: int64(math.Round(callOI * 3)),
			putVol:  int64(math.Round(putOI * 3)),
			callLTP: round2(math.Max(0, underlying-strike) + timeValue),
			putLTP:  round2(math.Max(0, strike-underlying) + timeValue),
			callIV:  round2(12 + 0.3*math.Abs(k)),
			putIV:   round2(13 + 0.35*math.Abs(k)),
			callNet: round2(-interval * 0.1 * math.Sin(phase/4)),
			putNet:  round2(interval * 0.1 * math.Sin(phase/4)),
		})
	}
	return mockLadder{underlying: underlying, rows: rows}
}

// expiries returns the next weekly Thursdays from the clock's date
func (m *MockSource) expiries() []string {
	day := m.now().In(models.IST)
	for day.Weekday() != time.Thursday {
		day = day.AddDate(0, 0, 1)
	}
	out := make([]string, mockExpiryCount)
	for i := range out {
		out[i] = day.AddDate(0, 0, 7*i).Format(mockExpiryLayout)
	}
	return out
}

func (l mockLadder) nsePayload(symbol, expiry string, expiries []string, now time.Time) *NSEPayload {
	rows := make([]NSERow, len(l.rows))
	for i, r := range l.rows {
		rows[i] = NSERow{
			StrikePrice: r.strike,
			ExpiryDate:  expiry,
			CE: &NSEQuote{
				StrikePrice:          r.strike,
				ExpiryDate:           expiry,
				OpenInterest:         r.callOI,
				ChangeInOpenInterest: r.callChg,
				TotalTradedVolume:    r.callVol,
				LastPrice:            r.callLTP,
				Change:               r.callNet,
				ImpliedVolatility:    r.callIV,
				UnderlyingValue:      l.underlying,
			},
			PE: &NSEQuote{
				StrikePrice:          r.strike,
				ExpiryDate:           expiry,
				OpenInterest:         r.putOI,
				ChangeInOpenInterest: r.putChg,
				TotalTradedVolume:    r.putVol,
				LastPrice:            r.putLTP,
				Change:               r.putNet,
				ImpliedVolatility:    r.putIV,
				UnderlyingValue:      l.underlying,
			},
		}
	}
	return &NSEPayload{
		Symbol: symbol,
		Expiry: expiry,
		Records: &NSERecords{
			Data:            rows,
			ExpiryDates:     expiries,
			UnderlyingValue: l.underlying,
			Timestamp:       now.In(models.IST).Format("02-Jan-2006 15:04:05"),
		},
	}
}

func (l mockLadder) bsePayload(symbol, expiry string, expiries []string, now time.Time) *BSEPayload {
	table := make([]BSERow, len(l.rows))
	for i, r := range l.rows {
		table[i] = BSERow{
			StrikePrice:      commaString(r.strike),
			EndTimeStamp:     expiry,
			CallOpenInterest: commaString(float64(r.callOI)),
			CallChangeOI:     commaString(float64(r.callChg)),
			CallVolume:       commaString(float64(r.callVol)),
			CallLastPrice:    commaString(r.callLTP),
			CallNetChange:    commaString(r.callNet),
			CallIV:           commaString(r.callIV),
			PutOpenInterest:  commaString(float64(r.putOI)),
			PutChangeOI:      commaString(float64(r.putChg)),
			PutVolume:        commaString(float64(r.putVol)),
			PutLastPrice:     commaString(r.putLTP),
			PutNetChange:     commaString(r.putNet),
			PutIV:            commaString(r.putIV),
		}
	}
	return &BSEPayload{
		Symbol: symbol,
		Expiry: expiry,
		Source: string(models.ExchangeBSE),
		Data: &BSEData{
			Table:       table,
			UlaValue:    commaString(l.underlying),
			ExpiryDates: expiries,
			ASON:        &BSEAsOn{DateTime: now.In(models.IST).Format("02 Jan 2006 | 15:04 ")},
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
