package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *models.ChainSnapshot {
	iv := 14.2
	return &models.ChainSnapshot{
		Symbol:          "NIFTY",
		Exchange:        models.ExchangeNSE,
		UnderlyingPrice: 23810,
		Timestamp:       time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
		Expiry:          "13-Jan-2026",
		Strikes: []models.Strike{
			{StrikePrice: 23800, Call: &models.StrikeQuote{StrikePrice: 23800, OpenInterest: 10, ImpliedVolatility: &iv}},
			{StrikePrice: 23850, Put: &models.StrikeQuote{StrikePrice: 23850, OpenInterest: 5}},
		},
		AvailableExpiries: []string{"13-Jan-2026"},
	}
}

func TestSnapshotCache_StoreAndLoad(t *testing.T) {
	redis := NewMockRedisClient()
	cache := NewSnapshotCache(redis, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, testSnapshot()))

	loaded, err := cache.Load(ctx, "nifty", "13-Jan-2026")
	require.NoError(t, err)
	want := testSnapshot()
	assert.True(t, want.Timestamp.Equal(loaded.Timestamp))
	assert.Equal(t, want.Strikes, loaded.Strikes)
	assert.Equal(t, want.UnderlyingPrice, loaded.UnderlyingPrice)
	assert.Equal(t, want.AvailableExpiries, loaded.AvailableExpiries)

	latest, err := cache.Load(ctx, "NIFTY", "")
	require.NoError(t, err)
	assert.Equal(t, "13-Jan-2026", latest.Expiry)

	assert.Equal(t, time.Minute, redis.TTLs[cache.Key("NIFTY", "13-Jan-2026")])
}

func TestSnapshotCache_Miss(t *testing.T) {
	cache := NewSnapshotCache(NewMockRedisClient(), 0)

	_, err := cache.Load(context.Background(), "BANKNIFTY", "")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSnapshotCache_EvictsInvalidEntry(t *testing.T) {
	redis := NewMockRedisClient()
	cache := NewSnapshotCache(redis, 0)
	redis.Data[cache.Key("NIFTY", "")] = `{"symbol":"NIFTY","strikes":[]}`

	_, err := cache.Load(context.Background(), "NIFTY", "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrKeyNotFound))

	_, cached := redis.Data[cache.Key("NIFTY", "")]
	assert.False(t, cached, "invalid entry should be evicted")

	_, err = cache.Load(context.Background(), "NIFTY", "")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSnapshotCache_StoreError(t *testing.T) {
	redis := NewMockRedisClient()
	redis.SetErr = errors.New("connection refused")
	cache := NewSnapshotCache(redis, 0)

	err := cache.Store(context.Background(), testSnapshot())
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, cache.Store(context.Background(), nil))
}

func TestSnapshotCache_Key(t *testing.T) {
	cache := NewSnapshotCache(NewMockRedisClient(), 0)
	assert.Equal(t, "strikeview:snapshot:SENSEX:latest", cache.Key(" sensex ", ""))
	assert.Equal(t, "strikeview:snapshot:NIFTY:13-Jan-2026", cache.Key("NIFTY", "13-Jan-2026"))
}
