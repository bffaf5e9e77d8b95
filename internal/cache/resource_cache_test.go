package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/config"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	resource *models.Resource
	err      error
	calls    int
}

func (s *stubSource) GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	s.calls++
	return s.resource, s.err
}

// unreachableRedis points at a closed port so every command fails fast
func unreachableRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestResourceCache_FallsBackWhenRedisIsDown(t *testing.T) {
	resource := &models.Resource{
		ID:            uuid.New(),
		Name:          "Rooftop Table 4",
		Category:      models.CategoryDining,
		CapacityUnit:  models.UnitTableSlot,
		UnitPrice:     decimal.NewFromInt(500),
		TotalCapacity: 4,
		IsActive:      true,
	}
	source := &stubSource{resource: resource}
	cache := NewResourceCache(unreachableRedis(t), source, time.Minute, quietLogger())

	got, err := cache.GetByID(context.Background(), resource.ID)

	require.NoError(t, err)
	assert.Equal(t, resource, got)
	assert.Equal(t, 1, source.calls)
}

func TestResourceCache_PropagatesSourceErrors(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	cache := NewResourceCache(unreachableRedis(t), source, time.Minute, quietLogger())

	_, err := cache.GetByID(context.Background(), uuid.New())
	assert.EqualError(t, err, "db down")
}

func TestResourceCache_MissingResource(t *testing.T) {
	cache := NewResourceCache(unreachableRedis(t), &stubSource{}, time.Minute, quietLogger())

	got, err := cache.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestResourceKey(t *testing.T) {
	id := uuid.MustParse("7d1f9a52-6a0e-4b39-9b8e-5b0c2a0f1e11")
	assert.Equal(t, "cache:resource:7d1f9a52-6a0e-4b39-9b8e-5b0c2a0f1e11", resourceKey(id))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
