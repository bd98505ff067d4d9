package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/pkg/format"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

var (
	// ErrUnsupportedExchange is returned for an exchange with no normalizer
	ErrUnsupportedExchange = errors.New("unsupported exchange")
)

var (
	nseTimestampLayouts = []string{"2-Jan-2006 15:04:05", "2-Jan-2006 15:04", "02-01-2006 15:04:05"}
	bseTimestampLayouts = []string{"2 Jan 2006 15:04", "2 Jan 2006 15:04:05", "2 January 2006 15:04"}
	spaceRun            = regexp.MustCompile(`\s+`)
)

// Normalizer turns one exchange's raw option-chain payload into a ChainSnapshot
type Normalizer interface {
	// Normalize parses raw JSON and builds the canonical snapshot
	Normalize(raw []byte) (*models.ChainSnapshot, error)

	// GetExchange returns the exchange whose payload shape this normalizer reads
	GetExchange() models.Exchange
}

// NewNormalizer returns the normalizer for exchange
func NewNormalizer(exchange models.Exchange) (Normalizer, error) {
	return newNormalizer(exchange, time.Now)
}

func newNormalizer(exchange models.Exchange, now func() time.Time) (Normalizer, error) {
	switch exchange {
	case models.ExchangeNSE:
		return &NSENormalizer{now: now}, nil
	case models.ExchangeBSE:
		return &BSENormalizer{now: now}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExchange, exchange)
	}
}

// Normalize is the single entry point: pick the shape by exchange, then normalize
func Normalize(exchange models.Exchange, raw []byte) (*models.ChainSnapshot, error) {
	n, err := NewNormalizer(exchange)
	if err != nil {
		return nil, err
	}
	return n.Normalize(raw)
}

// NSENormalizer reads NSE-shaped payloads
type NSENormalizer struct {
	now func() time.Time
}

func (n *NSENormalizer) GetExchange() models.Exchange { return models.ExchangeNSE }

func (n *NSENormalizer) Normalize(raw []byte) (*models.ChainSnapshot, error) {
	var payload NSEPayload
	if err := decode(raw, &payload); err != nil {
		return nil, err
	}
	return n.NormalizePayload(&payload)
}

// NormalizePayload normalizes an already decoded NSE payload
func (n *NSENormalizer) NormalizePayload(p *NSEPayload) (*models.ChainSnapshot, error) {
	if p.Success != nil && !*p.Success {
		return nil, models.NewDataError("success", upstreamReason(p.Error))
	}
	rec := p.records()
	if rec == nil {
		return nil, models.NewDataError("records", "missing")
	}

	builder := newStrikeBuilder(len(rec.Data))
	rowExpiries := make([]string, 0, len(rec.Data))
	for i := range rec.Data {
		row := &rec.Data[i]
		if e := row.expiry(); e != "" {
			rowExpiries = append(rowExpiries, e)
		}

		price := format.ParseLenientFloat(row.StrikePrice, 0)
		if price <= 0 && row.CE != nil {
			price = format.ParseLenientFloat(row.CE.StrikePrice, 0)
		}
		if price <= 0 && row.PE != nil {
			price = format.ParseLenientFloat(row.PE.StrikePrice, 0)
		}

		strike := models.Strike{StrikePrice: price}
		if row.CE != nil {
			strike.Call = nseQuote(price, row.CE)
		}
		if row.PE != nil {
			strike.Put = nseQuote(price, row.PE)
		}
		builder.add(i, strike)
	}

	strikes, err := builder.build()
	if err != nil {
		return nil, err
	}

	underlying := format.ParseLenientFloat(rec.UnderlyingValue, 0)
	if underlying <= 0 && len(rec.Data) > 0 {
		first := rec.Data[0]
		if first.CE != nil {
			underlying = format.ParseLenientFloat(first.CE.UnderlyingValue, 0)
		}
		if underlying <= 0 && first.PE != nil {
			underlying = format.ParseLenientFloat(first.PE.UnderlyingValue, 0)
		}
	}
	if underlying <= 0 {
		return nil, models.NewDataError("underlyingValue", "no positive underlying price")
	}

	expiries := availableExpiries(rec.ExpiryDates, rowExpiries)
	return &models.ChainSnapshot{
		Symbol:            strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Exchange:          models.ExchangeNSE,
		UnderlyingPrice:   underlying,
		Timestamp:         parseTimestamp(rec.Timestamp, nseTimestampLayouts, n.now, models.ExchangeNSE),
		Expiry:            selectedExpiry(p.Expiry, expiries),
		Strikes:           strikes,
		AvailableExpiries: expiries,
	}, nil
}

func nseQuote(strike float64, q *NSEQuote) *models.StrikeQuote {
	return &models.StrikeQuote{
		StrikePrice:          strike,
		OpenInterest:         nonNegativeInt(q.OpenInterest),
		ChangeInOpenInterest: signedInt(q.ChangeInOpenInterest),
		TotalTradedVolume:    nonNegativeInt(q.TotalTradedVolume),
		LastTradedPrice:      math.Max(0, format.ParseLenientFloat(q.LastPrice, 0)),
		Change:               format.ParseLenientFloat(q.Change, 0),
		ImpliedVolatility:    impliedVolatility(q.ImpliedVolatility),
		BidPrice:             format.ParseLenientFloat(q.BidPrice, 0),
		BidQty:               nonNegativeInt(q.BidQty),
		AskPrice:             format.ParseLenientFloat(q.AskPrice, 0),
		AskQty:               nonNegativeInt(q.AskQty),
	}
}

// BSENormalizer reads BSE-shaped payloads
type BSENormalizer struct {
	now func() time.Time
}

func (n *BSENormalizer) GetExchange() models.Exchange { return models.ExchangeBSE }

func (n *BSENormalizer) Normalize(raw []byte) (*models.ChainSnapshot, error) {
	var payload BSEPayload
	if err := decode(raw, &payload); err != nil {
		return nil, err
	}
	return n.NormalizePayload(&payload)
}

// NormalizePayload normalizes an already decoded BSE payload
func (n *BSENormalizer) NormalizePayload(p *BSEPayload) (*models.ChainSnapshot, error) {
	if p.Success != nil && !*p.Success {
		return nil, models.NewDataError("success", upstreamReason(p.Error))
	}
	if p.Data == nil {
		return nil, models.NewDataError("data", "missing")
	}
	table := p.Data.Table

	builder := newStrikeBuilder(len(table))
	rowExpiries := make([]string, 0, len(table))
	for i := range table {
		row := &table[i]
		if e := stringOf(row.EndTimeStamp); e != "" {
			rowExpiries = append(rowExpiries, e)
		}

		price := format.ParseLenientFloat(row.StrikePrice, 0)
		if price <= 0 {
			price = format.ParseLenientFloat(row.StrikePrice1, 0)
		}

		builder.add(i, models.Strike{
			StrikePrice: price,
			Call: &models.StrikeQuote{
				StrikePrice:          price,
				OpenInterest:         nonNegativeInt(row.CallOpenInterest),
				ChangeInOpenInterest: signedInt(row.CallChangeOI),
				TotalTradedVolume:    nonNegativeInt(row.CallVolume),
				LastTradedPrice:      math.Max(0, format.ParseLenientFloat(row.CallLastPrice, 0)),
				Change:               format.ParseLenientFloat(row.CallNetChange, 0),
				ImpliedVolatility:    impliedVolatility(row.CallIV),
				BidPrice:             format.ParseLenientFloat(row.CallBidPrice, 0),
				BidQty:               nonNegativeInt(row.CallBidQty),
				AskPrice:             format.ParseLenientFloat(row.CallOfferPrice, 0),
				AskQty:               nonNegativeInt(row.CallOfferQty),
			},
			Put: &models.StrikeQuote{
				StrikePrice:          price,
				OpenInterest:         nonNegativeInt(row.PutOpenInterest),
				ChangeInOpenInterest: signedInt(row.PutChangeOI),
				TotalTradedVolume:    nonNegativeInt(row.PutVolume),
				LastTradedPrice:      math.Max(0, format.ParseLenientFloat(row.PutLastPrice, 0)),
				Change:               format.ParseLenientFloat(row.PutNetChange, 0),
				ImpliedVolatility:    impliedVolatility(row.PutIV),
				BidPrice:             format.ParseLenientFloat(row.PutBidPrice, 0),
				BidQty:               nonNegativeInt(row.PutBidQty),
				AskPrice:             format.ParseLenientFloat(row.PutOfferPrice, 0),
				AskQty:               nonNegativeInt(row.PutOfferQty),
			},
		})
	}

	strikes, err := builder.build()
	if err != nil {
		return nil, err
	}

	underlying := format.ParseLenientFloat(p.Data.UlaValue, 0)
	if underlying <= 0 && len(table) > 0 {
		underlying = format.ParseLenientFloat(table[0].UlaValue, 0)
	}
	if underlying <= 0 {
		return nil, models.NewDataError("UlaValue", "no positive underlying price")
	}

	var asOn string
	if p.Data.ASON != nil {
		asOn = p.Data.ASON.DateTime
	}

	expiries := availableExpiries(p.Data.ExpiryDates, rowExpiries)
	return &models.ChainSnapshot{
		Symbol:            strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Exchange:          models.ExchangeBSE,
		UnderlyingPrice:   underlying,
		Timestamp:         parseTimestamp(asOn, bseTimestampLayouts, n.now, models.ExchangeBSE),
		Expiry:            selectedExpiry(p.Expiry, expiries),
		Strikes:           strikes,
		AvailableExpiries: expiries,
	}, nil
}

// strikeBuilder drops rows without a strike, keeps the first row seen for
// each price, and sorts ascending.
type strikeBuilder struct {
	seen    map[float64]struct{}
	strikes []models.Strike
	dropped int
}

func newStrikeBuilder(capacity int) *strikeBuilder {
	return &strikeBuilder{
		seen:    make(map[float64]struct{}, capacity),
		strikes: make([]models.Strike, 0, capacity),
	}
}

func (b *strikeBuilder) add(row int, s models.Strike) {
	if s.StrikePrice <= 0 {
		b.dropped++
		logger.Debug("Dropping option chain row without strike price", logger.Int("row", row))
		return
	}
	if s.Call == nil && s.Put == nil {
		b.dropped++
		return
	}
	if _, dup := b.seen[s.StrikePrice]; dup {
		b.dropped++
		logger.Debug("Dropping duplicate strike",
			logger.Int("row", row),
			logger.Float64("strike", s.StrikePrice),
		)
		return
	}
	b.seen[s.StrikePrice] = struct{}{}
	b.strikes = append(b.strikes, s)
}

func (b *strikeBuilder) build() ([]models.Strike, error) {
	if len(b.strikes) == 0 {
		return nil, models.NewDataError("strikes", fmt.Sprintf("no usable strike price (%d rows dropped)", b.dropped))
	}
	sort.SliceStable(b.strikes, func(i, j int) bool {
		return b.strikes[i].StrikePrice < b.strikes[j].StrikePrice
	})
	return b.strikes, nil
}

func decode(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return models.NewDataError("payload", "empty")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return models.NewDataError("payload", "invalid JSON: "+err.Error())
	}
	return nil
}

func upstreamReason(msg string) string {
	if msg == "" {
		return "upstream reported failure"
	}
	return "upstream reported failure: " + msg
}

func nonNegativeInt(raw interface{}) int64 {
	v := format.ParseLenientFloat(raw, 0)
	if v <= 0 {
		return 0
	}
	return int64(math.Round(v))
}

func signedInt(raw interface{}) int64 {
	return int64(math.Round(format.ParseLenientFloat(raw, 0)))
}

// impliedVolatility is absent for missing, unparseable or zero input
func impliedVolatility(raw interface{}) *float64 {
	v, ok := format.ParseLenientOptional(raw)
	if !ok || v == 0 {
		return nil
	}
	return &v
}

// availableExpiries prefers the top-level list, else the sorted distinct row expiries
func availableExpiries(topLevel []string, rowLevel []string) []string {
	out := make([]string, 0, len(topLevel))
	for _, e := range topLevel {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	if len(out) > 0 {
		return out
	}

	distinct := make(map[string]struct{}, len(rowLevel))
	for _, e := range rowLevel {
		if _, ok := distinct[e]; !ok {
			distinct[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

func selectedExpiry(requested string, available []string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}

// parseTimestamp reads an exchange display timestamp in IST. Missing or
// unparseable input means now plus a warning.
func parseTimestamp(raw string, layouts []string, now func() time.Time, exchange models.Exchange) time.Time {
	cleaned := strings.TrimSpace(spaceRun.ReplaceAllString(strings.ReplaceAll(raw, "|", " "), " "))
	if cleaned == "" {
		logger.Warn("Exchange timestamp missing, using current time",
			logger.String("exchange", string(exchange)),
		)
		return now().UTC()
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, cleaned, models.IST); err == nil {
			return t.UTC()
		}
	}
	logger.Warn("Failed to parse exchange timestamp, using current time",
		logger.String("exchange", string(exchange)),
		logger.String("raw", raw),
	)
	return now().UTC()
}
