package metrics

import (
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/pkg/format"
)

// Panel is a MetricsSnapshot rendered for display
type Panel struct {
	PCR               string             `json:"pcr"`
	Sentiment         Sentiment          `json:"sentiment"`
	MaxPain           string             `json:"max_pain"`
	MaxPainScope      string             `json:"max_pain_scope"`
	TotalCallOI       string             `json:"total_call_oi"`
	TotalPutOI        string             `json:"total_put_oi"`
	TotalCallChangeOI string             `json:"total_call_change_oi"`
	TotalPutChangeOI  string             `json:"total_put_change_oi"`
	CallDominance     string             `json:"call_dominance"`
	PutDominance      string             `json:"put_dominance"`
	Spot              string             `json:"spot"`
	SpotChange        *format.SignedText `json:"spot_change,omitempty"`
}

// NewPanel formats m. An undefined PCR is shown as "-".
func NewPanel(m *models.MetricsSnapshot, underlying float64) Panel {
	pcr := "-"
	if m.PCRDefined() {
		pcr = format.FormatPCR(m.PCR)
	}
	return Panel{
		PCR:               pcr,
		Sentiment:         SentimentOf(m),
		MaxPain:           format.FormatCurrency(m.MaxPain),
		MaxPainScope:      m.MaxPainScope,
		TotalCallOI:       format.ScaleToHumanUnit(m.TotalCallOI),
		TotalPutOI:        format.ScaleToHumanUnit(m.TotalPutOI),
		TotalCallChangeOI: format.ScaleToHumanUnit(m.TotalCallChangeOI),
		TotalPutChangeOI:  format.ScaleToHumanUnit(m.TotalPutChangeOI),
		CallDominance:     format.FormatPercent(m.CallDominance),
		PutDominance:      format.FormatPercent(m.PutDominance),
		Spot:              format.FormatCurrency(underlying),
	}
}

// WithSpotChange sets the spot move relative to previous, in percent
func (p Panel) WithSpotChange(previous, current float64) Panel {
	if previous > 0 {
		change := format.FormatSignedPercent(100 * (current - previous) / previous)
		p.SpotChange = &change
	}
	return p
}
