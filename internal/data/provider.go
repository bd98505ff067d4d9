package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
)

var (
	// ErrUnknownSource is returned when the factory has no source of the requested type
	ErrUnknownSource = errors.New("unknown source type")
	// ErrSourceRegistered is returned when registering a type twice
	ErrSourceRegistered = errors.New("source type already registered")
	// ErrPayloadNotFound is returned when a source has nothing for the requested symbol
	ErrPayloadNotFound = errors.New("payload not found")
	// ErrUpstream wraps failures reported by the proxy
	ErrUpstream = errors.New("upstream fetch failed")
)

// FetchRequest identifies the chain a caller wants
type FetchRequest struct {
	Symbol   string
	Expiry   string
	Exchange models.Exchange
}

// Validate normalises the symbol and fills the exchange from the symbol table
func (r *FetchRequest) Validate(table *symbols.Table) error {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Symbol == "" {
		return models.ErrInvalidSymbol
	}
	r.Expiry = strings.TrimSpace(r.Expiry)
	if r.Exchange == "" {
		if table == nil {
			table = symbols.Default
		}
		r.Exchange = table.ExchangeOf(r.Symbol)
	}
	if _, err := models.ParseExchange(string(r.Exchange)); err != nil {
		return err
	}
	return nil
}

// RawPayload is an undecoded exchange response plus the shape it is in
type RawPayload struct {
	Exchange  models.Exchange
	Body      []byte
	Source    string
	FetchedAt time.Time
}

// Source fetches raw option-chain payloads. Implementations must honour ctx
// cancellation since the dashboard cancels fetches for abandoned selections.
type Source interface {
	// Fetch returns the raw payload for req
	Fetch(ctx context.Context, req FetchRequest) (*RawPayload, error)

	// GetName returns the source type (e.g., "mock", "proxy")
	GetName() string
}

// SourceConfig holds configuration for a source
type SourceConfig struct {
	// Proxy settings
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// File source directory
	Dir string

	// Symbol metadata used by the mock generator. nil means symbols.Default.
	Symbols *symbols.Table
}

// SourceFactory creates source instances by type name
type SourceFactory struct {
	factories map[string]func(SourceConfig) (Source, error)
}

// NewSourceFactory creates a factory with the built-in sources registered
func NewSourceFactory() *SourceFactory {
	factory := &SourceFactory{
		factories: make(map[string]func(SourceConfig) (Source, error)),
	}

	_ = factory.RegisterSource("mock", NewMockSource)
	_ = factory.RegisterSource("proxy", NewProxySource)
	_ = factory.RegisterSource("file", NewFileSource)

	return factory
}

// CreateSource creates a source of the given type
func (f *SourceFactory) CreateSource(sourceType string, config SourceConfig) (Source, error) {
	factoryFunc, exists := f.factories[sourceType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceType)
	}
	return factoryFunc(config)
}

// RegisterSource registers a source constructor
func (f *SourceFactory) RegisterSource(sourceType string, factoryFunc func(SourceConfig) (Source, error)) error {
	if _, exists := f.factories[sourceType]; exists {
		return fmt.Errorf("%w: %s", ErrSourceRegistered, sourceType)
	}
	f.factories[sourceType] = factoryFunc
	return nil
}

// ListSources returns the registered source types, sorted
func (f *SourceFactory) ListSources() []string {
	sources := make([]string, 0, len(f.factories))
	for sourceType := range f.factories {
		sources = append(sources, sourceType)
	}
	sort.Strings(sources)
	return sources
}

// FetchSnapshot fetches through src and normalizes the result
func FetchSnapshot(ctx context.Context, src Source, req FetchRequest) (*models.ChainSnapshot, error) {
	raw, err := src.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	snap, err := Normalize(raw.Exchange, raw.Body)
	if err != nil {
		return nil, fmt.Errorf("normalize %s payload from %s: %w", raw.Exchange, raw.Source, err)
	}
	if snap.Symbol == "" {
		snap.Symbol = req.Symbol
	}
	if snap.Expiry == "" {
		snap.Expiry = req.Expiry
	}
	return snap, nil
}
