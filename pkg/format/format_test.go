package format

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLenientFloat(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		def      float64
		expected float64
	}{
		{"comma grouped string", "1,234.50", 0, 1234.50},
		{"empty string", "", 7, 7},
		{"whitespace only", "   ", 3, 3},
		{"nil", nil, -1, -1},
		{"plain float", 23810.5, 0, 23810.5},
		{"int", 42, 0, 42},
		{"json number", json.Number("1.5"), 0, 1.5},
		{"padded string", " 12,00,000 ", 0, 1200000},
		{"negative string", "-1,250", 0, -1250},
		{"garbage", "abc", 9, 9},
		{"dash placeholder", "-", 0, 0},
		{"nan string", "NaN", 4, 4},
		{"inf float", math.Inf(1), 5, 5},
		{"bool is unsupported", true, 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLenientFloat(tt.raw, tt.def))
		})
	}
}

func TestParseLenientOptional(t *testing.T) {
	v, ok := ParseLenientOptional("14.25")
	assert.True(t, ok)
	assert.Equal(t, 14.25, v)

	_, ok = ParseLenientOptional("")
	assert.False(t, ok)

	_, ok = ParseLenientOptional(nil)
	assert.False(t, ok)
}

func TestScaleToHumanUnit(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0"},
		{12345678, "1.23Cr"},
		{-150000, "-1.50L"},
		{100000, "1.00L"},
		{10000000, "1.00Cr"},
		{99999, "99,999"},
		{1234.4, "1,234"},
		{-4321, "-4,321"},
		{-0.2, "0"},
		{999, "999"},
		{99999.4, "99,999"},
		{99999.6, "1.00L"},
		{-99999.6, "-1.00L"},
		{9999999.996, "1.00Cr"},
		{9999400, "99.99L"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScaleToHumanUnit(tt.value))
		})
	}
}

func TestFormatSignedPercent(t *testing.T) {
	assert.Equal(t, SignedText{Text: "+1.50", Sign: SignPositive}, FormatSignedPercent(1.5))
	assert.Equal(t, SignedText{Text: "-2.25", Sign: SignNegative}, FormatSignedPercent(-2.25))
	assert.Equal(t, SignedText{Text: "+0.00", Sign: SignZero}, FormatSignedPercent(0))
}

func TestDisplayFormatters(t *testing.T) {
	assert.Equal(t, "₹23800.00", FormatCurrency(23800))
	assert.Equal(t, "1.500", FormatPCR(1.5))
	assert.Equal(t, "40.0%", FormatPercent(40))
}
