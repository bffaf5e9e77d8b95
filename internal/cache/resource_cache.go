package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localbazaar/reservation-backend/internal/config"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ResourceSource is the authoritative resource lookup behind the cache
type ResourceSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error)
}

// NewRedisClient connects to Redis and pings it with a short timeout
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// ResourceCache is a read-through cache over the resource catalog.
// Redis errors degrade to a direct source read; they never fail a lookup.
// Booking creation always re-reads the resource under its row lock, so a
// stale entry can only affect previews.
type ResourceCache struct {
	client *redis.Client
	source ResourceSource
	ttl    time.Duration
	logger *logrus.Logger
}

// NewResourceCache creates a new ResourceCache
func NewResourceCache(client *redis.Client, source ResourceSource, ttl time.Duration, logger *logrus.Logger) *ResourceCache {
	return &ResourceCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// GetByID returns a resource from cache, falling back to the source on a miss
func (c *ResourceCache) GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	key := resourceKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resource models.Resource
		if err := json.Unmarshal(data, &resource); err == nil {
			return &resource, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).WithField("key", key).Warn("Resource cache read failed")
	}

	resource, err := c.source.GetByID(ctx, id)
	if err != nil || resource == nil {
		return resource, err
	}

	c.store(ctx, key, resource)
	return resource, nil
}

// Invalidate drops a cached resource
func (c *ResourceCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, resourceKey(id)).Err()
}

func (c *ResourceCache) store(ctx context.Context, key string, resource *models.Resource) {
	payload, err := json.Marshal(resource)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Resource cache write failed")
	}
}

func resourceKey(id uuid.UUID) string {
	return "cache:resource:" + id.String()
}
