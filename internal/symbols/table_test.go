package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

func TestLotSizeOf(t *testing.T) {
	assert.Equal(t, 65, LotSizeOf("NIFTY"))
	assert.Equal(t, 30, LotSizeOf("banknifty"))
	assert.Equal(t, 120, LotSizeOf(" MidcpNifty "))
	assert.Equal(t, 20, LotSizeOf("SENSEX"))
	assert.Equal(t, 15, LotSizeOf("BANKEX"))
	assert.Equal(t, DefaultLotSize, LotSizeOf("UNKNOWN"))
}

func TestStrikeIntervalOf(t *testing.T) {
	assert.Equal(t, 50.0, StrikeIntervalOf("nifty"))
	assert.Equal(t, 100.0, StrikeIntervalOf("BANKNIFTY"))
	assert.Equal(t, 25.0, StrikeIntervalOf("MIDCPNIFTY"))
	assert.Equal(t, 100.0, StrikeIntervalOf("SENSEX"))
	assert.Equal(t, DefaultStrikeInterval, StrikeIntervalOf("UNKNOWN"))
}

func TestExchangeOf(t *testing.T) {
	assert.Equal(t, models.ExchangeBSE, Default.ExchangeOf("sensex"))
	assert.Equal(t, models.ExchangeNSE, Default.ExchangeOf("FINNIFTY"))
	assert.Equal(t, models.ExchangeNSE, Default.ExchangeOf("SOMETHING"))
}

func TestAll_Sorted(t *testing.T) {
	all := Default.All()
	require.Len(t, all, 6)
	assert.Equal(t, "BANKEX", all[0].Symbol)
	assert.Equal(t, "SENSEX", all[len(all)-1].Symbol)
}

func TestWithOverrides(t *testing.T) {
	table, err := Default.WithOverrides(map[string]Metadata{
		"nifty": {LotSize: 75},
		"CRUDE": {LotSize: 100, StrikeInterval: 50, Exchange: "nse"},
	})
	require.NoError(t, err)

	assert.Equal(t, 75, table.LotSizeOf("NIFTY"))
	assert.Equal(t, 50.0, table.StrikeIntervalOf("NIFTY"))
	assert.Equal(t, 100, table.LotSizeOf("crude"))

	// the source table is untouched
	assert.Equal(t, 65, Default.LotSizeOf("NIFTY"))
}

func TestWithOverrides_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]Metadata
	}{
		{"negative lot size", map[string]Metadata{"NIFTY": {LotSize: -1}}},
		{"negative interval", map[string]Metadata{"NIFTY": {StrikeInterval: -50}}},
		{"new symbol without interval", map[string]Metadata{"NEW": {LotSize: 10}}},
		{"bad exchange", map[string]Metadata{"NIFTY": {Exchange: "MCX"}}},
		{"empty symbol", map[string]Metadata{" ": {LotSize: 1, StrikeInterval: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default.WithOverrides(tt.overrides)
			require.Error(t, err)
			assert.True(t, models.IsConfigError(err))
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symbols.yaml")
	content := "symbols:\n  BANKNIFTY:\n    lot_size: 35\n  SENSEX:\n    strike_interval: 200\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadOverrides(Default, path)
	require.NoError(t, err)
	assert.Equal(t, 35, table.LotSizeOf("BANKNIFTY"))
	assert.Equal(t, 200.0, table.StrikeIntervalOf("SENSEX"))

	same, err := LoadOverrides(Default, "")
	require.NoError(t, err)
	assert.Same(t, Default, same)

	_, err = LoadOverrides(Default, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
