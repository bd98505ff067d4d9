// Package alert compares consecutive metrics snapshots and publishes the
// notifications that fire.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/pkg/format"
)

// Thresholds configures the change rules. Deltas are strict (a change must
// exceed them); the extreme PCR bounds are inclusive.
type Thresholds struct {
	PCRChange      float64 // absolute PCR swing
	PCRWarningHigh float64 // new PCR above this makes a swing a warning
	PCRWarningLow  float64 // new PCR below this makes a swing a warning
	MaxPainShift   float64 // absolute strike move
	DominanceShift float64 // call dominance swing in percentage points
	ExtremePCRHigh float64
	ExtremePCRLow  float64
}

// DefaultThresholds returns the dashboard's rule set
func DefaultThresholds() Thresholds {
	return Thresholds{
		PCRChange:      0.1,
		PCRWarningHigh: 1.2,
		PCRWarningLow:  0.8,
		MaxPainShift:   100,
		DominanceShift: 5,
		ExtremePCRHigh: 1.5,
		ExtremePCRLow:  0.6,
	}
}

// Differ evaluates the rules. It keeps no history; the caller passes the
// previous snapshot in.
type Differ struct {
	thresholds Thresholds
	newID      func() string
	now        func() time.Time
}

// NewDiffer creates a differ with the given thresholds
func NewDiffer(thresholds Thresholds) *Differ {
	return &Differ{
		thresholds: thresholds,
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}
}

// Diff returns the alerts fired by moving from prev to curr. A nil prev fires
// nothing. Rules are independent, so one call can return several alerts.
// A PCR of 0 with no call OI is undefined. PCR rules need the current one
// defined; an undefined previous PCR swings from 0.
func (d *Differ) Diff(symbol string, prev, curr *models.MetricsSnapshot) []models.Alert {
	if prev == nil || curr == nil {
		return nil
	}

	var alerts []models.Alert
	t := d.thresholds

	if curr.PCRDefined() {
		if delta := curr.PCR - prev.PCR; math.Abs(delta) > t.PCRChange {
			severity := models.SeverityInfo
			if curr.PCR > t.PCRWarningHigh || curr.PCR < t.PCRWarningLow {
				severity = models.SeverityWarning
			}
			direction := "increased"
			if delta < 0 {
				direction = "decreased"
			}
			alerts = append(alerts, d.build(symbol, models.AlertPCRChange, severity,
				"PCR "+direction,
				fmt.Sprintf("Put-call ratio %s from %s to %s", direction, format.FormatPCR(prev.PCR), format.FormatPCR(curr.PCR)),
				format.FormatPCR(prev.PCR), format.FormatPCR(curr.PCR),
			))
		}
	}

	if delta := curr.MaxPain - prev.MaxPain; math.Abs(delta) > t.MaxPainShift {
		direction := "up"
		if delta < 0 {
			direction = "down"
		}
		alerts = append(alerts, d.build(symbol, models.AlertMaxPainShift, models.SeverityWarning,
			"Max pain shifted "+direction,
			fmt.Sprintf("Max pain moved %s by %s to %s", direction, humanStrikes(math.Abs(delta)), format.FormatCurrency(curr.MaxPain)),
			format.FormatCurrency(prev.MaxPain), format.FormatCurrency(curr.MaxPain),
		))
	}

	if delta := curr.CallDominance - prev.CallDominance; math.Abs(delta) > t.DominanceShift {
		side, from, to := "CE", prev.CallDominance, curr.CallDominance
		if delta < 0 {
			side, from, to = "PE", prev.PutDominance, curr.PutDominance
		}
		alerts = append(alerts, d.build(symbol, models.AlertDominance, models.SeverityInfo,
			side+" dominance rising",
			fmt.Sprintf("%s side gained %.1f points of open interest share (%s to %s)", side, math.Abs(delta), format.FormatPercent(from), format.FormatPercent(to)),
			format.FormatPercent(from), format.FormatPercent(to),
		))
	}

	if curr.PCRDefined() && (curr.PCR >= t.ExtremePCRHigh || curr.PCR <= t.ExtremePCRLow) {
		reading := "heavy put writing, bullish extreme"
		if curr.PCR <= t.ExtremePCRLow {
			reading = "heavy call writing, bearish extreme"
		}
		alerts = append(alerts, d.build(symbol, models.AlertExtremePCR, models.SeverityWarning,
			"Extreme PCR",
			fmt.Sprintf("PCR at %s signals %s", format.FormatPCR(curr.PCR), reading),
			format.FormatPCR(prev.PCR), format.FormatPCR(curr.PCR),
		))
	}

	return alerts
}

func (d *Differ) build(symbol string, kind models.AlertKind, severity models.Severity, title, message, before, after string) models.Alert {
	return models.Alert{
		ID:        d.newID(),
		Kind:      kind,
		Severity:  severity,
		Symbol:    symbol,
		Title:     title,
		Message:   message,
		Before:    before,
		After:     after,
		Value:     before + " → " + after,
		Timestamp: d.now().UTC(),
	}
}

func humanStrikes(points float64) string {
	return format.ScaleToHumanUnit(points) + " points"
}
