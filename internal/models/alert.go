package models

import "time"

// AlertKind names the rule that fired
type AlertKind string

const (
	AlertPCRChange    AlertKind = "pcr_change"
	AlertMaxPainShift AlertKind = "max_pain_shift"
	AlertDominance    AlertKind = "dominance_shift"
	AlertExtremePCR   AlertKind = "extreme_pcr"
)

// Severity mirrors the notification panel styles
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Alert is one fired change notification. Before and After are already
// formatted for display.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Symbol    string    `json:"symbol,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Before    string    `json:"before"`
	After     string    `json:"after"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate validates an Alert
func (a *Alert) Validate() error {
	if a.ID == "" {
		return ErrInvalidAlertID
	}
	if a.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}
