// Package symbols holds the compiled-in instrument table: lot size and
// strike interval per index symbol.
package symbols

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

const (
	// DefaultLotSize applies to symbols missing from the table
	DefaultLotSize = 1
	// DefaultStrikeInterval applies to symbols missing from the table
	DefaultStrikeInterval = 50.0
)

// Metadata describes one instrument
type Metadata struct {
	Symbol         string          `json:"symbol" yaml:"-"`
	Exchange       models.Exchange `json:"exchange" yaml:"exchange"`
	LotSize        int             `json:"lot_size" yaml:"lot_size"`
	StrikeInterval float64         `json:"strike_interval" yaml:"strike_interval"`
}

// builtin is the single editable table. Adding an index is a data change here.
var builtin = []Metadata{
	{Symbol: "NIFTY", Exchange: models.ExchangeNSE, LotSize: 65, StrikeInterval: 50},
	{Symbol: "BANKNIFTY", Exchange: models.ExchangeNSE, LotSize: 30, StrikeInterval: 100},
	{Symbol: "FINNIFTY", Exchange: models.ExchangeNSE, LotSize: 60, StrikeInterval: 50},
	{Symbol: "MIDCPNIFTY", Exchange: models.ExchangeNSE, LotSize: 120, StrikeInterval: 25},
	{Symbol: "SENSEX", Exchange: models.ExchangeBSE, LotSize: 20, StrikeInterval: 100},
	{Symbol: "BANKEX", Exchange: models.ExchangeBSE, LotSize: 15, StrikeInterval: 100},
}

// Table is an immutable symbol lookup. Keys are upper-cased.
type Table struct {
	entries map[string]Metadata
}

// Default is the compiled-in table
var Default = NewTable(builtin)

// NewTable builds a table from entries; later duplicates win
func NewTable(entries []Metadata) *Table {
	t := &Table{entries: make(map[string]Metadata, len(entries))}
	for _, e := range entries {
		e.Symbol = normalize(e.Symbol)
		t.entries[e.Symbol] = e
	}
	return t
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup returns the metadata for symbol, case-insensitively
func (t *Table) Lookup(symbol string) (Metadata, bool) {
	m, ok := t.entries[normalize(symbol)]
	return m, ok
}

// LotSizeOf returns the lot size, or DefaultLotSize for unknown symbols
func (t *Table) LotSizeOf(symbol string) int {
	if m, ok := t.Lookup(symbol); ok {
		return m.LotSize
	}
	return DefaultLotSize
}

// StrikeIntervalOf returns the strike step, or DefaultStrikeInterval for unknown symbols
func (t *Table) StrikeIntervalOf(symbol string) float64 {
	if m, ok := t.Lookup(symbol); ok {
		return m.StrikeInterval
	}
	return DefaultStrikeInterval
}

// ExchangeOf returns the listing exchange; unknown symbols are assumed NSE
func (t *Table) ExchangeOf(symbol string) models.Exchange {
	if m, ok := t.Lookup(symbol); ok && m.Exchange != "" {
		return m.Exchange
	}
	return models.ExchangeNSE
}

// All returns every entry sorted by symbol
func (t *Table) All() []Metadata {
	out := make([]Metadata, 0, len(t.entries))
	for _, m := range t.entries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// WithOverrides returns a copy of t with overrides applied. Zero fields keep
// the current value; negative lot sizes or intervals are a ConfigError.
// Unknown symbols are added, and then need both a lot size and an interval.
func (t *Table) WithOverrides(overrides map[string]Metadata) (*Table, error) {
	next := &Table{entries: make(map[string]Metadata, len(t.entries)+len(overrides))}
	for k, v := range t.entries {
		next.entries[k] = v
	}

	for symbol, o := range overrides {
		key := normalize(symbol)
		if key == "" {
			return nil, models.NewConfigError("symbol", symbol, "must not be empty")
		}
		if o.LotSize < 0 {
			return nil, models.NewConfigError(key+".lot_size", o.LotSize, "must be positive")
		}
		if o.StrikeInterval < 0 {
			return nil, models.NewConfigError(key+".strike_interval", o.StrikeInterval, "must be positive")
		}

		m, exists := next.entries[key]
		if !exists {
			m = Metadata{Symbol: key, Exchange: models.ExchangeNSE}
		}
		if o.LotSize > 0 {
			m.LotSize = o.LotSize
		}
		if o.StrikeInterval > 0 {
			m.StrikeInterval = o.StrikeInterval
		}
		if o.Exchange != "" {
			ex, err := models.ParseExchange(string(o.Exchange))
			if err != nil {
				return nil, models.NewConfigError(key+".exchange", o.Exchange, "must be NSE or BSE")
			}
			m.Exchange = ex
		}
		if m.LotSize <= 0 {
			return nil, models.NewConfigError(key+".lot_size", m.LotSize, "must be positive")
		}
		if m.StrikeInterval <= 0 {
			return nil, models.NewConfigError(key+".strike_interval", m.StrikeInterval, "must be positive")
		}
		next.entries[key] = m
	}

	return next, nil
}

type overridesFile struct {
	Symbols map[string]Metadata `yaml:"symbols"`
}

// LoadOverrides applies the YAML override file at path to base.
// An empty path returns base unchanged.
func LoadOverrides(base *Table, path string) (*Table, error) {
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol overrides: %w", err)
	}
	return ParseOverrides(base, raw)
}

// ParseOverrides applies YAML override content to base
func ParseOverrides(base *Table, raw []byte) (*Table, error) {
	var file overridesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse symbol overrides: %w", err)
	}
	return base.WithOverrides(file.Symbols)
}

// LotSizeOf looks symbol up in the Default table
func LotSizeOf(symbol string) int {
	return Default.LotSizeOf(symbol)
}

// StrikeIntervalOf looks symbol up in the Default table
func StrikeIntervalOf(symbol string) float64 {
	return Default.StrikeIntervalOf(symbol)
}
