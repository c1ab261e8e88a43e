package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/provider"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const keyPrefix = "billing:lookup:"

// ErrCacheMiss is returned by a Store when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value surface the lookup cache needs
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore adapts a go-redis client to Store
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return value, err
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// LookupCache wraps a provider.Lookup and keeps successful results for a short TTL.
// Errors, including not-found, are never cached. Cache failures fall through to
// the wrapped lookup.
type LookupCache struct {
	next   provider.Lookup
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewLookupCache creates a caching decorator
func NewLookupCache(next provider.Lookup, store Store, ttl time.Duration, logger *zap.Logger) *LookupCache {
	return &LookupCache{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *LookupCache) GetSubscription(ctx context.Context, subscriptionID string) (*entity.ProviderObject, error) {
	return c.get(ctx, "subscription", subscriptionID, c.next.GetSubscription)
}

func (c *LookupCache) GetCustomer(ctx context.Context, customerID string) (*entity.ProviderObject, error) {
	return c.get(ctx, "customer", customerID, c.next.GetCustomer)
}

type fetchFunc func(ctx context.Context, id string) (*entity.ProviderObject, error)

func (c *LookupCache) get(ctx context.Context, kind, id string, fetch fetchFunc) (*entity.ProviderObject, error) {
	key := fmt.Sprintf("%s%s:%s", keyPrefix, kind, id)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var obj entity.ProviderObject
		if jsonErr := json.Unmarshal(data, &obj); jsonErr == nil {
			metrics.LookupsTotal.WithLabelValues(kind, "cache_hit").Inc()
			return &obj, nil
		}
		c.logger.Warn("Discarding unreadable lookup cache entry", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Lookup cache read failed", zap.String("key", key), zap.Error(err))
	}

	obj, err := fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(obj); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("Lookup cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return obj, nil
}
