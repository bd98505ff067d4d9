package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/alert"
	"github.com/mohamedkhairy/strikeview/internal/api"
	"github.com/mohamedkhairy/strikeview/internal/config"
	"github.com/mohamedkhairy/strikeview/internal/dashboard"
	"github.com/mohamedkhairy/strikeview/internal/data"
	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/pubsub"
	"github.com/mohamedkhairy/strikeview/internal/storage"
	"github.com/mohamedkhairy/strikeview/internal/symbols"
	"github.com/mohamedkhairy/strikeview/internal/wsgateway"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting option chain dashboard",
		logger.String("symbol", cfg.Dashboard.Symbol),
		logger.String("source", cfg.Source.Provider),
		logger.Int("port", cfg.API.Port),
		logger.Bool("redis", cfg.Redis.Enabled),
	)

	table := symbols.Default
	if cfg.SymbolOverridesFile != "" {
		table, err = symbols.LoadOverrides(symbols.Default, cfg.SymbolOverridesFile)
		if err != nil {
			logger.Fatal("Failed to load symbol overrides",
				logger.ErrorField(err),
				logger.String("file", cfg.SymbolOverridesFile),
			)
		}
	}

	source, err := data.NewSourceFactory().CreateSource(cfg.Source.Provider, data.SourceConfig{
		BaseURL:       cfg.Source.BaseURL,
		Timeout:       cfg.Source.Timeout,
		MaxRetries:    cfg.Source.MaxRetries,
		RetryDelay:    cfg.Source.RetryDelay,
		MaxRetryDelay: cfg.Source.MaxRetryDelay,
		Dir:           cfg.Source.Dir,
		Symbols:       table,
	})
	if err != nil {
		logger.Fatal("Failed to create payload source", logger.ErrorField(err))
	}

	opts := []dashboard.Option{dashboard.WithSymbols(table)}
	checks := map[string]api.ReadinessCheck{}

	// Redis is optional: alerts fan out and snapshots are cached only when enabled
	if cfg.Redis.Enabled {
		redisClient, err := pubsub.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis client", logger.ErrorField(err))
		}
		defer redisClient.Close()

		opts = append(opts,
			dashboard.WithPublisher(alert.NewEmitter(redisClient, alert.EmitterConfig{
				Channel:        cfg.Dashboard.AlertChannel,
				StreamName:     cfg.Dashboard.AlertStream,
				PublishTimeout: 2 * time.Second,
			})),
			dashboard.WithCache(storage.NewSnapshotCache(redisClient, cfg.Dashboard.CacheTTL)),
		)
		checks["redis"] = redisClient.Ping
	}

	session, err := dashboard.NewSession(source, dashboard.Config{
		Selection: dashboard.Selection{Symbol: cfg.Dashboard.Symbol, Expiry: cfg.Dashboard.Expiry},
		Settings: dashboard.Settings{
			Window:     models.WindowConfig{WindowSize: cfg.Dashboard.WindowSize, HighOIOnly: cfg.Dashboard.HighOIOnly},
			UseLotSize: cfg.Dashboard.UseLotSize,
		},
		MaxAlerts: cfg.Dashboard.MaxAlerts,
	}, opts...)
	if err != nil {
		logger.Fatal("Failed to create dashboard session", logger.ErrorField(err))
	}
	checks["chain"] = func(ctx context.Context) error {
		if session.View().Snapshot == nil {
			return dashboard.ErrNoSnapshot
		}
		return nil
	}

	hub := wsgateway.NewHub(cfg.WSGateway, session, cfg.API.CORSOrigins)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.API.Port),
		Handler: api.NewRouter(api.RouterConfig{
			Session:         session,
			Symbols:         table,
			Stream:          hub,
			ReadinessChecks: checks,
			CORSOrigins:     cfg.API.CORSOrigins,
			RateLimitRPS:    cfg.API.RateLimitRPS,
			EnableZstd:      cfg.API.EnableZstd,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx, cfg.Dashboard.RefreshInterval)
	})

	g.Go(func() error {
		if err := hub.Start(); err != nil {
			return fmt.Errorf("start websocket hub: %w", err)
		}
		<-gctx.Done()
		hub.Stop()
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down option chain dashboard")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", logger.ErrorField(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Dashboard stopped with error", logger.ErrorField(err))
		logger.Sync()
		os.Exit(1)
	}

	stats := session.GetStats()
	logger.Info("Option chain dashboard stopped",
		logger.Int64("refreshes", stats.Refreshes),
		logger.Int64("failures", stats.Failures),
		logger.Int64("alerts_fired", stats.AlertsFired),
	)
}
