package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/storage"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

// Publisher receives fired alerts
type Publisher interface {
	Emit(ctx context.Context, alerts []models.Alert) error
}

// EmitterConfig holds configuration for the alert emitter
type EmitterConfig struct {
	Channel        string        // Redis pub/sub channel, empty disables
	StreamName     string        // Redis stream, empty disables
	PublishTimeout time.Duration // per alert
}

// DefaultEmitterConfig returns default configuration
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		Channel:        "strikeview:alerts",
		StreamName:     "strikeview:alerts",
		PublishTimeout: 2 * time.Second,
	}
}

// Emitter publishes alerts to Redis pub/sub for live listeners and to a
// stream for late readers
type Emitter struct {
	config EmitterConfig
	redis  storage.RedisClient
	mu     sync.Mutex
	stats  EmitterStats
}

// EmitterStats counts emitted alerts
type EmitterStats struct {
	Published     int64
	Failed        int64
	LastAlertTime time.Time
}

// NewEmitter creates an emitter over redis
func NewEmitter(redis storage.RedisClient, config EmitterConfig) *Emitter {
	if redis == nil {
		panic("redis client cannot be nil")
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultEmitterConfig().PublishTimeout
	}
	return &Emitter{config: config, redis: redis}
}

// Emit publishes every alert. A failure on one alert does not stop the rest;
// the first error is returned.
func (e *Emitter) Emit(ctx context.Context, alerts []models.Alert) error {
	var firstErr error
	for i := range alerts {
		if err := e.emitOne(ctx, &alerts[i]); err != nil {
			e.record(false)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.record(true)
	}
	return firstErr
}

func (e *Emitter) emitOne(ctx context.Context, a *models.Alert) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.PublishTimeout)
	defer cancel()

	alertJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if e.config.Channel != "" {
		if err := e.redis.Publish(ctx, e.config.Channel, string(alertJSON)); err != nil {
			// pub/sub failures are logged only
			logger.Error("Failed to publish alert to pub/sub",
				logger.ErrorField(err),
				logger.String("channel", e.config.Channel),
				logger.String("alert_id", a.ID),
			)
		} else {
			logger.Debug("Published alert to pub/sub",
				logger.String("channel", e.config.Channel),
				logger.String("alert_id", a.ID),
				logger.String("kind", string(a.Kind)),
				logger.String("symbol", a.Symbol),
			)
		}
	}

	if e.config.StreamName != "" {
		if err := e.redis.PublishToStream(ctx, e.config.StreamName, "alert", a); err != nil {
			logger.Error("Failed to publish alert to stream",
				logger.ErrorField(err),
				logger.String("stream", e.config.StreamName),
				logger.String("alert_id", a.ID),
			)
			return fmt.Errorf("failed to publish alert to stream: %w", err)
		}
	}
	return nil
}

func (e *Emitter) record(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.stats.Published++
		e.stats.LastAlertTime = time.Now()
		return
	}
	e.stats.Failed++
}

// GetStats returns a copy of the counters
func (e *Emitter) GetStats() EmitterStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
