package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/alert"
	"github.com/mohamedkhairy/strikeview/internal/data"
	"github.com/mohamedkhairy/strikeview/internal/metrics"
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/storage"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

var (
	// ErrStaleResponse is returned when a fetch completes after the selection changed
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrNoSnapshot is returned when an operation needs a snapshot and none has loaded
	ErrNoSnapshot = errors.New("no snapshot loaded")
)

// Status describes what the view is showing
type Status string

const (
	// StatusEmpty: nothing has loaded for the current selection
	StatusEmpty Status = "empty"
	// StatusOK: the last refresh succeeded
	StatusOK Status = "ok"
	// StatusStale: showing an older snapshot because the last refresh failed,
	// or a cached one that has not been refreshed yet
	StatusStale Status = "stale"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultMaxAlerts       = 50
	listenerBuffer         = 16
)

// Selection is the chain the viewer is looking at
type Selection struct {
	Symbol string `json:"symbol"`
	Expiry string `json:"expiry"`
}

// Settings are the viewer's window controls
type Settings struct {
	Window     models.WindowConfig `json:"window"`
	UseLotSize bool                `json:"use_lot_size"`
}

// Config holds configuration for a session
type Config struct {
	Selection Selection
	Settings  Settings
	MaxAlerts int
}

// View is a consistent copy of the session state
type View struct {
	Selection     Selection              `json:"selection"`
	Settings      Settings               `json:"settings"`
	Status        Status                 `json:"status"`
	MarketSession MarketSession          `json:"market_session"`
	LotSize       int                    `json:"lot_size"`
	Snapshot      *models.ChainSnapshot  `json:"snapshot,omitempty"`
	Result        *Result                `json:"result,omitempty"`
	Panel         *metrics.Panel         `json:"panel,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	LastRefresh   time.Time              `json:"last_refresh,omitempty"`
	Alerts        []models.Alert         `json:"alerts"`
}

// UpdateKind says what produced an Update
type UpdateKind string

const (
	UpdateRefresh   UpdateKind = "refresh"
	UpdateSettings  UpdateKind = "settings"
	UpdateSelection UpdateKind = "selection"
)

// Update is sent to listeners after the view changes
type Update struct {
	Kind   UpdateKind     `json:"kind"`
	View   View           `json:"view"`
	Alerts []models.Alert `json:"alerts,omitempty"`
}

// Stats counts refresh outcomes
type Stats struct {
	Refreshes     int64
	Failures      int64
	Discarded     int64
	AlertsFired   int64
	LastCycleTime time.Duration
}

// Option configures a Session
type Option func(*Session)

// WithPublisher sends fired alerts to p as well as the session's list
func WithPublisher(p alert.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithCache stores every good snapshot and warm-starts new selections from it
func WithCache(c *storage.SnapshotCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithSymbols replaces the compiled-in symbol table
func WithSymbols(t *symbols.Table) Option {
	return func(s *Session) { s.table = t }
}

// WithThresholds replaces the default alert thresholds
func WithThresholds(t alert.Thresholds) Option {
	return func(s *Session) { s.differ = alert.NewDiffer(t) }
}

// Session holds one viewer's dashboard state. It is safe for concurrent use;
// fetches run without the lock held.
type Session struct {
	source    data.Source
	table     *symbols.Table
	differ    *alert.Differ
	publisher alert.Publisher
	cache     *storage.SnapshotCache
	now       func() time.Time

	mu          sync.RWMutex
	selection   Selection
	generation  uint64
	inflight    map[uint64]context.CancelFunc
	nextFetchID uint64
	settings    Settings
	snapshot    *models.ChainSnapshot
	prevSpot    float64
	result      *Result
	baseline    *models.MetricsSnapshot
	status      Status
	lastErr     error
	lastRefresh time.Time
	alerts      []models.Alert
	maxAlerts   int
	stats       Stats

	listenersMu sync.Mutex
	listeners   map[uint64]chan Update
	nextID      uint64
}

// NewSession creates a session. Settings are validated; the first fetch
// happens on Refresh or Run.
func NewSession(source data.Source, cfg Config, opts ...Option) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if err := cfg.Settings.Window.ValidateForDisplay(); err != nil {
		return nil, err
	}
	sel, err := normalizeSelection(cfg.Selection)
	if err != nil {
		return nil, err
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = defaultMaxAlerts
	}

	s := &Session{
		source:    source,
		table:     symbols.Default,
		differ:    alert.NewDiffer(alert.DefaultThresholds()),
		now:       time.Now,
		selection: sel,
		inflight:  make(map[uint64]context.CancelFunc),
		settings:  cfg.Settings,
		status:    StatusEmpty,
		maxAlerts: cfg.MaxAlerts,
		listeners: make(map[uint64]chan Update),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func normalizeSelection(sel Selection) (Selection, error) {
	sel.Symbol = strings.ToUpper(strings.TrimSpace(sel.Symbol))
	sel.Expiry = strings.TrimSpace(sel.Expiry)
	if sel.Symbol == "" {
		return sel, models.NewConfigError("symbol", sel.Symbol, "required")
	}
	return sel, nil
}

// Refresh fetches the current selection and recomputes everything. The fetch
// is tagged with the selection generation; if the selection changes before it
// returns, the result is dropped and ErrStaleResponse is returned. On failure
// the last good snapshot stays in place. A fetch cut short by the caller's own
// context returns ctx.Err() and leaves the status alone.
func (s *Session) Refresh(ctx context.Context) (*View, error) {
	start := s.now()
	refreshID := logger.NewID()
	ctx = logger.WithRefreshID(ctx, refreshID)

	s.mu.Lock()
	sel := s.selection
	gen := s.generation
	s.nextFetchID++
	fetchID := s.nextFetchID
	fetchCtx, cancel := context.WithCancel(ctx)
	s.inflight[fetchID] = cancel
	s.mu.Unlock()

	snap, err := data.FetchSnapshot(fetchCtx, s.source, data.FetchRequest{Symbol: sel.Symbol, Expiry: sel.Expiry})
	cancel()

	s.mu.Lock()
	delete(s.inflight, fetchID)

	if gen != s.generation {
		s.stats.Discarded++
		s.mu.Unlock()
		logger.WithContext(ctx).Debug("Discarding response for previous selection",
			logger.String("symbol", sel.Symbol),
			logger.String("expiry", sel.Expiry),
		)
		logger.RefreshTotal.WithLabelValues(sel.Symbol, "stale").Inc()
		return nil, ErrStaleResponse
	}

	if err != nil && ctx.Err() != nil {
		// the caller gave up; the upstream did not fail
		view := s.viewLocked()
		s.mu.Unlock()
		logger.WithContext(ctx).Debug("Refresh abandoned by caller",
			logger.String("symbol", sel.Symbol),
			logger.ErrorField(err),
		)
		logger.RefreshTotal.WithLabelValues(sel.Symbol, "cancelled").Inc()
		return &view, ctx.Err()
	}

	var res *Result
	if err == nil {
		res, err = Compute(snap, s.settings.Window, s.lotSizeLocked(sel.Symbol))
	}
	if err != nil {
		s.failLocked(err)
		view := s.viewLocked()
		s.mu.Unlock()

		logger.WithContext(ctx).Warn("Chain refresh failed",
			logger.String("symbol", sel.Symbol),
			logger.String("status", string(view.Status)),
			logger.ErrorField(err),
		)
		logger.RefreshTotal.WithLabelValues(sel.Symbol, "error").Inc()
		logger.ErrorsTotal.WithLabelValues("dashboard", errorType(err)).Inc()
		return &view, err
	}

	fired := s.differ.Diff(sel.Symbol, s.baseline, res.Metrics)
	if s.snapshot != nil {
		s.prevSpot = s.snapshot.UnderlyingPrice
	}
	s.snapshot = snap
	s.result = res
	s.baseline = res.Metrics
	s.status = StatusOK
	s.lastErr = nil
	s.lastRefresh = s.now()
	s.appendAlertsLocked(fired)
	s.stats.Refreshes++
	s.stats.AlertsFired += int64(len(fired))
	s.stats.LastCycleTime = s.now().Sub(start)
	view := s.viewLocked()
	s.mu.Unlock()

	s.observe(sel.Symbol, view, fired, s.now().Sub(start))
	s.publish(ctx, snap, fired)
	s.notify(Update{Kind: UpdateRefresh, View: view, Alerts: fired})

	logger.WithContext(ctx).Debug("Chain refreshed",
		logger.String("symbol", sel.Symbol),
		logger.Int("strikes", len(snap.Strikes)),
		logger.Int("window", len(res.Window.Strikes)),
		logger.Int("alerts", len(fired)),
	)
	return &view, nil
}

func (s *Session) failLocked(err error) {
	s.stats.Failures++
	s.lastErr = err
	if s.snapshot != nil {
		s.status = StatusStale
	} else {
		s.status = StatusEmpty
	}
}

func (s *Session) appendAlertsLocked(fired []models.Alert) {
	if len(fired) == 0 {
		return
	}
	// newest first
	merged := make([]models.Alert, 0, len(fired)+len(s.alerts))
	for i := len(fired) - 1; i >= 0; i-- {
		merged = append(merged, fired[i])
	}
	merged = append(merged, s.alerts...)
	if len(merged) > s.maxAlerts {
		merged = merged[:s.maxAlerts]
	}
	s.alerts = merged
}

func (s *Session) observe(symbol string, view View, fired []models.Alert, elapsed time.Duration) {
	logger.RefreshTotal.WithLabelValues(symbol, "ok").Inc()
	logger.RefreshDuration.WithLabelValues(symbol).Observe(elapsed.Seconds())
	if view.Result != nil {
		m := view.Result.Metrics
		logger.ChainGauge.WithLabelValues(symbol, "pcr").Set(m.PCR)
		logger.ChainGauge.WithLabelValues(symbol, "max_pain").Set(m.MaxPain)
		logger.ChainGauge.WithLabelValues(symbol, "call_dominance").Set(m.CallDominance)
		logger.ChainGauge.WithLabelValues(symbol, "put_dominance").Set(m.PutDominance)
	}
	if view.Snapshot != nil {
		logger.ChainGauge.WithLabelValues(symbol, "underlying").Set(view.Snapshot.UnderlyingPrice)
	}
	for _, a := range fired {
		logger.AlertsFired.WithLabelValues(symbol, string(a.Kind), string(a.Severity)).Inc()
	}
}

func (s *Session) publish(ctx context.Context, snap *models.ChainSnapshot, fired []models.Alert) {
	if s.cache != nil {
		if err := s.cache.Store(ctx, snap); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache snapshot", logger.ErrorField(err))
			logger.ErrorsTotal.WithLabelValues("snapshot_cache", "store").Inc()
		}
	}
	if s.publisher != nil && len(fired) > 0 {
		if err := s.publisher.Emit(ctx, fired); err != nil {
			logger.WithContext(ctx).Warn("Failed to publish alerts", logger.ErrorField(err))
			logger.ErrorsTotal.WithLabelValues("alert_emitter", "publish").Inc()
		}
	}
}

// SetSelection switches symbol or expiry. In-flight fetches for the old
// selection are cancelled and the baseline is cleared, so the next refresh
// fires no alerts. A cached snapshot, when present, is shown as stale until
// then.
func (s *Session) SetSelection(ctx context.Context, sel Selection) (*View, error) {
	sel, err := normalizeSelection(sel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sel == s.selection {
		view := s.viewLocked()
		s.mu.Unlock()
		return &view, nil
	}
	s.selection = sel
	s.generation++
	for id, cancel := range s.inflight {
		cancel()
		delete(s.inflight, id)
	}
	s.snapshot = nil
	s.result = nil
	s.baseline = nil
	s.prevSpot = 0
	s.status = StatusEmpty
	s.lastErr = nil
	s.lastRefresh = time.Time{}
	gen := s.generation
	s.mu.Unlock()

	logger.Info("Selection changed",
		logger.String("symbol", sel.Symbol),
		logger.String("expiry", sel.Expiry),
	)

	if s.cache != nil {
		s.warmStart(ctx, sel, gen)
	}

	s.mu.RLock()
	view := s.viewLocked()
	s.mu.RUnlock()
	s.notify(Update{Kind: UpdateSelection, View: view})
	return &view, nil
}

func (s *Session) warmStart(ctx context.Context, sel Selection, gen uint64) {
	snap, err := s.cache.Load(ctx, sel.Symbol, sel.Expiry)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			logger.Warn("Failed to load cached snapshot", logger.ErrorField(err))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	res, err := Compute(snap, s.settings.Window, s.lotSizeLocked(sel.Symbol))
	if err != nil {
		logger.Warn("Cached snapshot could not be computed", logger.ErrorField(err))
		return
	}
	s.snapshot = snap
	s.result = res
	s.baseline = res.Metrics
	s.status = StatusStale
}

// SetSettings changes the window controls and recomputes from the last good
// snapshot without fetching. The recomputed metrics become the new baseline;
// no alerts fire for a settings change.
func (s *Session) SetSettings(settings Settings) (*View, error) {
	if err := settings.Window.ValidateForDisplay(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.snapshot != nil {
		res, err := Compute(s.snapshot, settings.Window, s.lotSizeFor(s.selection.Symbol, settings))
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.result = res
		s.baseline = res.Metrics
	}
	s.settings = settings
	view := s.viewLocked()
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateSettings, View: view})
	return &view, nil
}

// Dismiss removes an alert from the list. It reports whether id was present.
func (s *Session) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.alerts {
		if a.ID == id {
			s.alerts = append(s.alerts[:i:i], s.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Alerts returns the alert list, newest first
func (s *Session) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert(nil), s.alerts...)
}

// View returns the current state
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

// Selection returns the current selection
func (s *Session) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// Settings returns the current window controls
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Symbols returns the symbol table in use
func (s *Session) Symbols() *symbols.Table {
	return s.table
}

// GetStats returns a copy of the refresh counters
func (s *Session) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Session) viewLocked() View {
	v := View{
		Selection:     s.selection,
		Settings:      s.settings,
		Status:        s.status,
		MarketSession: GetMarketSession(s.now()),
		LotSize:       s.lotSizeLocked(s.selection.Symbol),
		Snapshot:      s.snapshot,
		Result:        s.result,
		LastRefresh:   s.lastRefresh,
		Alerts:        append([]models.Alert(nil), s.alerts...),
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	if s.result != nil && s.snapshot != nil {
		panel := metrics.NewPanel(s.result.Metrics, s.snapshot.UnderlyingPrice).
			WithSpotChange(s.prevSpot, s.snapshot.UnderlyingPrice)
		v.Panel = &panel
	}
	return v
}

func (s *Session) lotSizeLocked(symbol string) int {
	return s.lotSizeFor(symbol, s.settings)
}

func (s *Session) lotSizeFor(symbol string, settings Settings) int {
	if !settings.UseLotSize {
		return 1
	}
	return s.table.LotSizeOf(symbol)
}

// Subscribe registers a listener. Updates are dropped for a listener whose
// buffer is full. Call the returned function to unsubscribe.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, listenerBuffer)

	s.listenersMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = ch
	s.listenersMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) notify(u Update) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for id, ch := range s.listeners {
		select {
		case ch <- u:
		default:
			logger.Debug("Dropping update for slow listener", logger.Int64("listener", int64(id)))
		}
	}
}

// Run refreshes immediately and then every interval until ctx is done.
// Refresh errors are logged and the loop continues.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	logger.Info("Starting refresh loop", logger.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Refresh loop stopped")
			return nil
		case <-ticker.C:
			s.refreshLogged(ctx)
		}
	}
}

func (s *Session) refreshLogged(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) && ctx.Err() == nil {
		logger.Debug("Refresh cycle ended with error", logger.ErrorField(err))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, models.ErrData):
		return "data"
	case errors.Is(err, models.ErrConfig):
		return "config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case data.IsUpstreamError(err):
		return "upstream"
	default:
		return "other"
	}
}
