package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert(id string) models.Alert {
	return models.Alert{
		ID:        id,
		Kind:      models.AlertExtremePCR,
		Severity:  models.SeverityWarning,
		Symbol:    "NIFTY",
		Title:     "Extreme PCR",
		Message:   "PCR at 1.500",
		Before:    "1.400",
		After:     "1.500",
		Value:     "1.400 → 1.500",
		Timestamp: time.Now(),
	}
}

func TestEmitter_Emit(t *testing.T) {
	redis := storage.NewMockRedisClient()
	emitter := NewEmitter(redis, DefaultEmitterConfig())

	err := emitter.Emit(context.Background(), []models.Alert{testAlert("a1"), testAlert("a2")})
	require.NoError(t, err)

	published := redis.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "strikeview:alerts", published[0].Channel)

	var decoded models.Alert
	require.NoError(t, json.Unmarshal([]byte(published[0].Message), &decoded))
	assert.Equal(t, "a1", decoded.ID)
	assert.Equal(t, models.AlertExtremePCR, decoded.Kind)

	streamed := redis.Streamed()
	require.Len(t, streamed, 2)
	assert.Equal(t, "strikeview:alerts", streamed[1].Stream)
	assert.Contains(t, streamed[1].Values["alert"], `"id":"a2"`)

	stats := emitter.GetStats()
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestEmitter_PubSubFailureIsNotFatal(t *testing.T) {
	redis := storage.NewMockRedisClient()
	redis.PublishErr = errors.New("pubsub down")
	emitter := NewEmitter(redis, DefaultEmitterConfig())

	require.NoError(t, emitter.Emit(context.Background(), []models.Alert{testAlert("a1")}))
	assert.Len(t, redis.Streamed(), 1)
}

func TestEmitter_StreamFailure(t *testing.T) {
	redis := storage.NewMockRedisClient()
	redis.StreamErr = errors.New("stream down")
	emitter := NewEmitter(redis, DefaultEmitterConfig())

	err := emitter.Emit(context.Background(), []models.Alert{testAlert("a1"), testAlert("a2")})
	assert.ErrorContains(t, err, "stream down")
	assert.Equal(t, int64(2), emitter.GetStats().Failed)
	// pub/sub still went out for both
	assert.Len(t, redis.Published(), 2)
}

func TestEmitter_InvalidAlert(t *testing.T) {
	redis := storage.NewMockRedisClient()
	emitter := NewEmitter(redis, EmitterConfig{Channel: "c"})

	bad := testAlert("")
	err := emitter.Emit(context.Background(), []models.Alert{bad})
	assert.ErrorIs(t, err, models.ErrInvalidAlertID)
	assert.Empty(t, redis.Published())
}

func TestEmitter_DisabledTargets(t *testing.T) {
	redis := storage.NewMockRedisClient()
	emitter := NewEmitter(redis, EmitterConfig{})

	require.NoError(t, emitter.Emit(context.Background(), []models.Alert{testAlert("a1")}))
	assert.Empty(t, redis.Published())
	assert.Empty(t, redis.Streamed())
	assert.Equal(t, int64(1), emitter.GetStats().Published)
}

func TestNewEmitter_NilRedisPanics(t *testing.T) {
	assert.Panics(t, func() { NewEmitter(nil, DefaultEmitterConfig()) })
}
