// Package metrics derives the key chain analytics from a strike window.
package metrics

import (
	"math"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

// Aggregate computes PCR, max pain, OI totals and dominance over strikes.
//
// Every OI figure is multiplied by lotSize (pass 1 to report raw lots). PCR
// is 0 when there is no call OI, and that 0 means "undefined". Dominance is
// 50/50 when both sides are empty. MaxPain is the window strike minimising
// |strike - underlying| x total OI at that strike, lowest strike on ties; it
// ignores strikes outside the window.
func Aggregate(strikes []models.Strike, underlying float64, lotSize int) (*models.MetricsSnapshot, error) {
	if lotSize <= 0 {
		return nil, models.NewConfigError("lot_size", lotSize, "must be positive")
	}
	if len(strikes) == 0 {
		return nil, models.NewDataError("window", "no strikes to aggregate")
	}

	lot := float64(lotSize)
	m := &models.MetricsSnapshot{
		MaxPainScope: models.MaxPainScopeWindow,
		LotSize:      lotSize,
	}

	minPain := math.Inf(1)
	for _, s := range strikes {
		callOI := float64(s.CallOI()) * lot
		putOI := float64(s.PutOI()) * lot

		m.TotalCallOI += callOI
		m.TotalPutOI += putOI
		m.TotalCallChangeOI += float64(s.CallChangeOI()) * lot
		m.TotalPutChangeOI += float64(s.PutChangeOI()) * lot

		if pain := math.Abs(s.StrikePrice-underlying) * (callOI + putOI); pain < minPain {
			minPain = pain
			m.MaxPain = s.StrikePrice
		}
	}

	if m.TotalCallOI > 0 {
		m.PCR = m.TotalPutOI / m.TotalCallOI
	}

	if total := m.TotalCallOI + m.TotalPutOI; total > 0 {
		m.CallDominance = 100 * m.TotalCallOI / total
		m.PutDominance = 100 - m.CallDominance
	} else {
		m.CallDominance = 50
		m.PutDominance = 50
	}

	return m, nil
}

// Sentiment is the market reading implied by PCR
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

const (
	bullishPCR = 1.2
	bearishPCR = 0.8
)

// SentimentOf classifies a PCR. An undefined PCR (0) reads as neutral.
func SentimentOf(m *models.MetricsSnapshot) Sentiment {
	if m == nil || !m.PCRDefined() {
		return SentimentNeutral
	}
	return SentimentFromPCR(m.PCR)
}

// SentimentFromPCR classifies a raw PCR value
func SentimentFromPCR(pcr float64) Sentiment {
	switch {
	case pcr > bullishPCR:
		return SentimentBullish
	case pcr < bearishPCR:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}
