package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/redis/go-redis/v9"
)

// CacheService provides the redis-backed caches the engine uses: windowed
// aggregate values reused across rules, and per-tenant run locks that keep
// concurrent scheduler instances from evaluating the same tenant twice.
type CacheService interface {
	GetAggregate(ctx context.Context, key string) (*CachedAggregate, error)
	SetAggregate(ctx context.Context, key string, value float64, samples int64, ttl time.Duration) error
	TryAcquireRunLock(ctx context.Context, tenantID uint, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, tenantID uint) error
}

// CachedAggregate is a cached metric aggregation result
type CachedAggregate struct {
	Value   float64 `json:"value"`
	Samples int64   `json:"samples"`
}

// AggregateCacheKey builds the cache key for one aggregation. The key
// includes the UTC day so entries roll over with the window.
func AggregateCacheKey(entityType models.ScopeKind, entityID uint, metric string, days int, agg models.AggregationKind, day time.Time) string {
	return fmt.Sprintf("adpilot:agg:%s:%d:%s:%d:%s:%s",
		entityType, entityID, metric, days, agg, day.Format("2006-01-02"))
}

// runLockKey builds the redis key for a tenant's scheduler run lock
func runLockKey(tenantID uint) string {
	return fmt.Sprintf("adpilot:runlock:%d", tenantID)
}

// RedisCacheService implements CacheService on redis
type RedisCacheService struct {
	client *redis.Client
}

// NewRedisCacheService creates a new redis cache service
func NewRedisCacheService(client *redis.Client) CacheService {
	return &RedisCacheService{client: client}
}

// GetAggregate returns the cached aggregate, or nil on a miss
func (s *RedisCacheService) GetAggregate(ctx context.Context, key string) (*CachedAggregate, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read aggregate cache: %w", err)
	}

	var cached CachedAggregate
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached aggregate: %w", err)
	}

	return &cached, nil
}

// SetAggregate stores the aggregate with the given TTL
func (s *RedisCacheService) SetAggregate(ctx context.Context, key string, value float64, samples int64, ttl time.Duration) error {
	data, err := json.Marshal(CachedAggregate{Value: value, Samples: samples})
	if err != nil {
		return fmt.Errorf("failed to encode aggregate: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write aggregate cache: %w", err)
	}

	return nil
}

// TryAcquireRunLock takes the tenant's run lock if it is free
func (s *RedisCacheService) TryAcquireRunLock(ctx context.Context, tenantID uint, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, runLockKey(tenantID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock for tenant %d: %w", tenantID, err)
	}
	return ok, nil
}

// ReleaseRunLock frees the tenant's run lock
func (s *RedisCacheService) ReleaseRunLock(ctx context.Context, tenantID uint) error {
	if err := s.client.Del(ctx, runLockKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to release run lock for tenant %d: %w", tenantID, err)
	}
	return nil
}

// NoopCacheService is used when redis is not configured. Aggregate lookups
// always miss and run locks always succeed.
type NoopCacheService struct{}

// NewNoopCacheService creates a cache service that performs no caching
func NewNoopCacheService() CacheService {
	return &NoopCacheService{}
}

func (s *NoopCacheService) GetAggregate(ctx context.Context, key string) (*CachedAggregate, error) {
	return nil, nil
}

func (s *NoopCacheService) SetAggregate(ctx context.Context, key string, value float64, samples int64, ttl time.Duration) error {
	return nil
}

func (s *NoopCacheService) TryAcquireRunLock(ctx context.Context, tenantID uint, ttl time.Duration) (bool, error) {
	return true, nil
}

func (s *NoopCacheService) ReleaseRunLock(ctx context.Context, tenantID uint) error {
	return nil
}
