package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohamedkhairy/strikeview/internal/dashboard"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds what the router serves and how
type RouterConfig struct {
	Session         *dashboard.Session
	Symbols         *symbols.Table
	Stream          http.Handler // serves /ws when set
	ReadinessChecks map[string]ReadinessCheck
	CORSOrigins     []string
	RateLimitRPS    int
	EnableZstd      bool
}

// NewRouter builds the HTTP handler with every route and the middleware chain
func NewRouter(cfg RouterConfig) http.Handler {
	table := cfg.Symbols
	if table == nil {
		table = symbols.Default
	}

	dashboardHandler := NewDashboardHandler(cfg.Session)
	analyzeHandler := NewAnalyzeHandler(table)
	symbolHandler := NewSymbolHandler(table)
	healthHandler := NewHealthHandler(cfg.ReadinessChecks)

	router := mux.NewRouter()
	router.Use(MetricsMiddleware())

	v1 := router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/symbols", symbolHandler.ListSymbols).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}", symbolHandler.GetSymbol).Methods("GET")

	v1.HandleFunc("/chain", dashboardHandler.GetChain).Methods("GET")
	v1.HandleFunc("/window", dashboardHandler.GetWindow).Methods("GET")
	v1.HandleFunc("/window", dashboardHandler.UpdateWindow).Methods("PUT")
	v1.HandleFunc("/metrics", dashboardHandler.GetMetrics).Methods("GET")
	v1.HandleFunc("/alerts", dashboardHandler.ListAlerts).Methods("GET")
	v1.HandleFunc("/alerts/{id}", dashboardHandler.DismissAlert).Methods("DELETE")
	v1.HandleFunc("/selection", dashboardHandler.UpdateSelection).Methods("PUT")
	v1.HandleFunc("/refresh", dashboardHandler.Refresh).Methods("POST")

	v1.HandleFunc("/analyze", analyzeHandler.Analyze).Methods("POST")

	if cfg.Stream != nil {
		router.Handle("/ws", cfg.Stream).Methods("GET")
	}

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/ready", healthHandler.Ready).Methods("GET")
	router.HandleFunc("/live", healthHandler.Live).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	middlewares := []Middleware{
		CORSMiddleware(cfg.CORSOrigins...),
		LoggingMiddleware(),
		RateLimitMiddleware(cfg.RateLimitRPS),
	}
	if cfg.EnableZstd {
		middlewares = append(middlewares, ZstdMiddleware())
	}
	middlewares = append(middlewares, ErrorHandlingMiddleware())

	return ChainMiddleware(middlewares...)(router)
}
