package pubsub

import (
	"testing"

	"github.com/mohamedkhairy/strikeview/internal/config"
	"github.com/mohamedkhairy/strikeview/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisClient_Unreachable(t *testing.T) {
	client, err := NewRedisClient(config.RedisConfig{
		Host:     "127.0.0.1",
		Port:     1,
		PoolSize: 1,
	})
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestRedisClientImpl_ImplementsInterface(t *testing.T) {
	var _ storage.RedisClient = (*RedisClientImpl)(nil)
}
