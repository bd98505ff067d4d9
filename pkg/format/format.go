// Package format parses dirty upstream numbers and renders values for the
// dashboard panels.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	crore = 1e7
	lakh  = 1e5
)

// Sign classifies a formatted value for colouring
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
	SignZero     Sign = "zero"
)

// SignedText is a formatted value plus its sign
type SignedText struct {
	Text string `json:"text"`
	Sign Sign   `json:"sign"`
}

// ParseLenientFloat converts an upstream field to a float. Strings may carry
// thousands separators and surrounding whitespace. nil, empty, unparseable
// and non-finite input all yield def. It never panics.
func ParseLenientFloat(raw interface{}, def float64) float64 {
	var v float64
	switch x := raw.(type) {
	case nil:
		return def
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		v = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return def
		}
		v = parsed
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	default:
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// ParseLenientOptional is ParseLenientFloat with "absent" in place of a default
func ParseLenientOptional(raw interface{}) (float64, bool) {
	v := ParseLenientFloat(raw, math.NaN())
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ScaleToHumanUnit renders crores ("1.23Cr") and lakhs ("-1.50L") with two
// decimals; smaller magnitudes are rounded and comma-grouped. The sign is
// always a leading "-".
func ScaleToHumanUnit(value float64) string {
	sign := ""
	abs := value
	if value < 0 {
		sign = "-"
		abs = -value
	}

	// the unit follows the rounded value, so 99999.6 reads "1.00L"
	switch {
	case abs >= crore || round2(abs/lakh) >= 100:
		return sign + strconv.FormatFloat(abs/crore, 'f', 2, 64) + "Cr"
	case abs >= lakh || math.Round(abs) >= lakh:
		return sign + strconv.FormatFloat(abs/lakh, 'f', 2, 64) + "L"
	}

	rounded := int64(math.Round(abs))
	if rounded == 0 {
		return "0"
	}
	return sign + humanize.Comma(rounded)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatSignedPercent renders value with two decimals and a "+" for values >= 0
func FormatSignedPercent(value float64) SignedText {
	text := strconv.FormatFloat(value, 'f', 2, 64)
	sign := SignZero
	switch {
	case value > 0:
		sign = SignPositive
	case value < 0:
		sign = SignNegative
	}
	if value >= 0 {
		text = "+" + text
	}
	return SignedText{Text: text, Sign: sign}
}

// FormatCurrency renders a rupee amount with two decimals
func FormatCurrency(value float64) string {
	return "₹" + strconv.FormatFloat(value, 'f', 2, 64)
}

// FormatPCR renders a put-call ratio the way the metrics panel shows it
func FormatPCR(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

// FormatPercent renders a share such as a dominance value, "40.0%"
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
