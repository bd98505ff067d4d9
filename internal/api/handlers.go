// Package api serves the dashboard session and the stateless analyzer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mohamedkhairy/strikeview/internal/dashboard"
	"github.com/mohamedkhairy/strikeview/internal/data"
	"github.com/mohamedkhairy/strikeview/internal/metrics"
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

const maxPayloadBytes = 10 << 20

// DashboardHandler exposes one dashboard session
type DashboardHandler struct {
	session *dashboard.Session
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(session *dashboard.Session) *DashboardHandler {
	return &DashboardHandler{session: session}
}

// GetChain handles GET /api/v1/chain
func (h *DashboardHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	view := h.session.View()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"selection":      view.Selection,
		"status":         view.Status,
		"market_session": view.MarketSession,
		"last_error":     view.LastError,
		"last_refresh":   view.LastRefresh,
		"snapshot":       view.Snapshot,
	})
}

// GetWindow handles GET /api/v1/window
func (h *DashboardHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	view := h.session.View()
	resp := map[string]interface{}{
		"selection": view.Selection,
		"settings":  view.Settings,
		"status":    view.Status,
	}
	if view.Result != nil {
		resp["window"] = view.Result.Window
	}
	if view.Snapshot != nil {
		resp["underlying_price"] = view.Snapshot.UnderlyingPrice
	}
	respondWithJSON(w, http.StatusOK, resp)
}

type windowRequest struct {
	WindowSize *int  `json:"window_size"`
	HighOIOnly *bool `json:"high_oi_only"`
	UseLotSize *bool `json:"use_lot_size"`
}

// UpdateWindow handles PUT /api/v1/window. Omitted fields keep their value.
func (h *DashboardHandler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := h.session.Settings()
	if req.WindowSize != nil {
		settings.Window.WindowSize = *req.WindowSize
	}
	if req.HighOIOnly != nil {
		settings.Window.HighOIOnly = *req.HighOIOnly
	}
	if req.UseLotSize != nil {
		settings.UseLotSize = *req.UseLotSize
	}

	view, err := h.session.SetSettings(settings)
	if err != nil {
		respondWithDomainError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	logger.WithContext(r.Context()).Info("Window settings changed",
		logger.Int("window_size", settings.Window.WindowSize),
		logger.Bool("high_oi_only", settings.Window.HighOIOnly),
		logger.Bool("use_lot_size", settings.UseLotSize),
	)

	respondWithJSON(w, http.StatusOK, windowResponse(view))
}

func windowResponse(view *dashboard.View) map[string]interface{} {
	resp := map[string]interface{}{
		"settings": view.Settings,
		"status":   view.Status,
	}
	if view.Result != nil {
		resp["window"] = view.Result.Window
		resp["metrics"] = view.Result.Metrics
	}
	return resp
}

// GetMetrics handles GET /api/v1/metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	view := h.session.View()
	resp := map[string]interface{}{
		"selection": view.Selection,
		"status":    view.Status,
		"lot_size":  view.LotSize,
	}
	if view.Result != nil {
		resp["metrics"] = view.Result.Metrics
		resp["sentiment"] = metrics.SentimentOf(view.Result.Metrics)
	}
	if view.Panel != nil {
		resp["panel"] = view.Panel
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// ListAlerts handles GET /api/v1/alerts?limit=N
func (h *DashboardHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.session.Alerts()

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < len(alerts) {
			alerts = alerts[:limit]
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// DismissAlert handles DELETE /api/v1/alerts/{id}
func (h *DashboardHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.session.Dismiss(id) {
		respondWithError(w, http.StatusNotFound, "Alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSelection handles PUT /api/v1/selection. The new selection is
// fetched straight away; a failed fetch still returns 200 with the status
// and error in the view.
func (h *DashboardHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var sel dashboard.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.session.SetSelection(r.Context(), sel)
	if err != nil {
		respondWithDomainError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	refreshed, err := h.session.Refresh(r.Context())
	switch {
	case err == nil:
		view = refreshed
	case errors.Is(err, dashboard.ErrStaleResponse):
		current := h.session.View()
		view = &current
	case refreshed != nil:
		view = refreshed
	}

	respondWithJSON(w, http.StatusOK, view)
}

// Refresh handles POST /api/v1/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.Refresh(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err, http.StatusBadGateway)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// AnalyzeHandler runs the pipeline over a posted payload without touching
// any session
type AnalyzeHandler struct {
	table *symbols.Table
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(table *symbols.Table) *AnalyzeHandler {
	if table == nil {
		table = symbols.Default
	}
	return &AnalyzeHandler{table: table}
}

// Analyze handles POST /api/v1/analyze?exchange=&symbol=&window_size=&high_oi_only=&use_lot_size=
// with the raw proxy payload as the body
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	exchange := h.table.ExchangeOf(symbol)
	if raw := q.Get("exchange"); raw != "" {
		parsed, err := models.ParseExchange(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "exchange must be NSE or BSE")
			return
		}
		exchange = parsed
	}

	cfg := models.WindowConfig{WindowSize: 10}
	if raw := q.Get("window_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "window_size must be an integer")
			return
		}
		cfg.WindowSize = size
	}
	cfg.HighOIOnly = queryBool(q.Get("high_oi_only"))
	if err := cfg.ValidateForDisplay(); err != nil {
		respondWithDomainError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	snap, err := data.Normalize(exchange, body)
	if err != nil {
		respondWithDomainError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	if symbol == "" {
		symbol = snap.Symbol
	}

	lotSize := 1
	if queryBool(q.Get("use_lot_size")) {
		lotSize = h.table.LotSizeOf(symbol)
	}

	res, err := dashboard.Compute(snap, cfg, lotSize)
	if err != nil {
		respondWithDomainError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	panel := metrics.NewPanel(res.Metrics, snap.UnderlyingPrice)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":             symbol,
		"exchange":           snap.Exchange,
		"expiry":             snap.Expiry,
		"timestamp":          snap.Timestamp,
		"underlying_price":   snap.UnderlyingPrice,
		"available_expiries": snap.AvailableExpiries,
		"strike_count":       len(snap.Strikes),
		"window":             res.Window,
		"metrics":            res.Metrics,
		"panel":              panel,
	})
}

func queryBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// SymbolHandler serves the symbol table
type SymbolHandler struct {
	table *symbols.Table
}

// NewSymbolHandler creates a new symbol handler
func NewSymbolHandler(table *symbols.Table) *SymbolHandler {
	if table == nil {
		table = symbols.Default
	}
	return &SymbolHandler{table: table}
}

// ListSymbols handles GET /api/v1/symbols
func (h *SymbolHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	all := h.table.All()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": all,
		"count":   len(all),
	})
}

// GetSymbol handles GET /api/v1/symbols/{symbol}
func (h *SymbolHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.table.Lookup(mux.Vars(r)["symbol"])
	if !ok {
		respondWithError(w, http.StatusNotFound, "Symbol not found")
		return
	}
	respondWithJSON(w, http.StatusOK, meta)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves the probes
type HealthHandler struct {
	checks map[string]ReadinessCheck
}

// NewHealthHandler creates a health handler with named readiness checks
func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Live handles GET /live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps a pipeline error to an HTTP status. dataStatus is used for
// DataError and upstream failures: 422 when the caller sent the payload, 502
// when it came from upstream.
func statusFor(err error, dataStatus int) int {
	switch {
	case errors.Is(err, dashboard.ErrStaleResponse):
		return http.StatusConflict
	case models.IsConfigError(err),
		errors.Is(err, models.ErrInvalidExchange),
		errors.Is(err, data.ErrUnsupportedExchange):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrPayloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case models.IsDataError(err), data.IsUpstreamError(err):
		return dataStatus
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, dataStatus int) {
	code := statusFor(err, dataStatus)
	resp := errorResponse{Error: err.Error(), Code: code}

	var cfgErr *models.ConfigError
	var dataErr *models.DataError
	switch {
	case errors.As(err, &cfgErr):
		resp.Field = cfgErr.Field
	case errors.As(err, &dataErr):
		resp.Field = dataErr.Field
	}

	if code >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Warn("Request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", code),
			logger.ErrorField(err),
		)
	}
	respondWithJSON(w, code, resp)
}
