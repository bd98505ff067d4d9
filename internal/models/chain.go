package models

import (
	"strings"
	"time"
)

// Exchange identifies the upstream payload shape
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// IST is exchange local time for both NSE and BSE
var IST = time.FixedZone("IST", 5*3600+30*60)

// ParseExchange accepts "nse"/"bse" in any case
func ParseExchange(s string) (Exchange, error) {
	switch Exchange(strings.ToUpper(strings.TrimSpace(s))) {
	case ExchangeNSE:
		return ExchangeNSE, nil
	case ExchangeBSE:
		return ExchangeBSE, nil
	default:
		return "", ErrInvalidExchange
	}
}

// StrikeQuote is one side (call or put) of a strike
type StrikeQuote struct {
	StrikePrice          float64  `json:"strike_price"`
	OpenInterest         int64    `json:"open_interest"`
	ChangeInOpenInterest int64    `json:"change_in_open_interest"`
	TotalTradedVolume    int64    `json:"total_traded_volume"`
	LastTradedPrice      float64  `json:"last_traded_price"`
	Change               float64  `json:"change"`
	ImpliedVolatility    *float64 `json:"implied_volatility,omitempty"`

	// carried through, unused by metrics
	BidPrice float64 `json:"bid_price"`
	BidQty   int64   `json:"bid_qty"`
	AskPrice float64 `json:"ask_price"`
	AskQty   int64   `json:"ask_qty"`
}

// Strike groups the call and put quotes sharing a strike price
type Strike struct {
	StrikePrice float64      `json:"strike_price"`
	Call        *StrikeQuote `json:"call,omitempty"`
	Put         *StrikeQuote `json:"put,omitempty"`
}

// CallOI returns the call open interest, 0 when the side is absent
func (s Strike) CallOI() int64 {
	if s.Call == nil {
		return 0
	}
	return s.Call.OpenInterest
}

// PutOI returns the put open interest, 0 when the side is absent
func (s Strike) PutOI() int64 {
	if s.Put == nil {
		return 0
	}
	return s.Put.OpenInterest
}

// CallChangeOI returns the signed call change in OI, 0 when absent
func (s Strike) CallChangeOI() int64 {
	if s.Call == nil {
		return 0
	}
	return s.Call.ChangeInOpenInterest
}

// PutChangeOI returns the signed put change in OI, 0 when absent
func (s Strike) PutChangeOI() int64 {
	if s.Put == nil {
		return 0
	}
	return s.Put.ChangeInOpenInterest
}

// Validate checks the per-strike invariant
func (s Strike) Validate() error {
	if s.StrikePrice <= 0 {
		return ErrInvalidPrice
	}
	if s.Call == nil && s.Put == nil {
		return ErrEmptyStrike
	}
	return nil
}

// ChainSnapshot is the exchange-agnostic result of one fetch. Strikes are
// ascending by price with no duplicates. Treat it as immutable.
type ChainSnapshot struct {
	Symbol            string    `json:"symbol"`
	Exchange          Exchange  `json:"exchange"`
	UnderlyingPrice   float64   `json:"underlying_price"`
	Timestamp         time.Time `json:"timestamp"`
	Expiry            string    `json:"expiry"`
	Strikes           []Strike  `json:"strikes"`
	AvailableExpiries []string  `json:"available_expiries"`
}

// Validate checks the snapshot invariants
func (c *ChainSnapshot) Validate() error {
	if c.UnderlyingPrice <= 0 {
		return NewDataError("underlying_price", "must be positive")
	}
	if c.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if len(c.Strikes) == 0 {
		return NewDataError("strikes", "empty strike list")
	}
	for i, s := range c.Strikes {
		if err := s.Validate(); err != nil {
			return err
		}
		if i > 0 && s.StrikePrice <= c.Strikes[i-1].StrikePrice {
			return ErrDuplicateStrike
		}
	}
	return nil
}

// WindowConfig is the caller's strike-window request
type WindowConfig struct {
	WindowSize int  `json:"window_size"`
	HighOIOnly bool `json:"high_oi_only"`
}

const (
	// MinWindowSize is the smallest window a caller may request
	MinWindowSize = 3
	// MaxWindowSize is the largest window the dashboard offers
	MaxWindowSize = 20
)

// Validate rejects window sizes below MinWindowSize
func (w WindowConfig) Validate() error {
	if w.WindowSize < MinWindowSize {
		return NewConfigError("window_size", w.WindowSize, "must be at least 3")
	}
	return nil
}

// ValidateForDisplay also enforces MaxWindowSize, the dashboard's upper bound
func (w WindowConfig) ValidateForDisplay() error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.WindowSize > MaxWindowSize {
		return NewConfigError("window_size", w.WindowSize, "must be at most 20")
	}
	return nil
}

// MaxPainScopeWindow marks a max pain computed over the visible window only
const MaxPainScopeWindow = "window"

// MetricsSnapshot holds the analytics derived from one window.
//
// PCR is 0 when TotalCallOI is 0; that value means "undefined", not a
// bearish extreme. MaxPain is searched over the window's strikes only
// (see MaxPainScope), not over the full chain.
type MetricsSnapshot struct {
	PCR               float64 `json:"pcr"`
	MaxPain           float64 `json:"max_pain"`
	MaxPainScope      string  `json:"max_pain_scope"`
	TotalCallOI       float64 `json:"total_call_oi"`
	TotalPutOI        float64 `json:"total_put_oi"`
	TotalCallChangeOI float64 `json:"total_call_change_oi"`
	TotalPutChangeOI  float64 `json:"total_put_change_oi"`
	CallDominance     float64 `json:"call_dominance"`
	PutDominance      float64 `json:"put_dominance"`
	LotSize           int     `json:"lot_size"`
}

// PCRDefined reports whether PCR carries a real ratio
func (m *MetricsSnapshot) PCRDefined() bool {
	return m.TotalCallOI > 0
}
