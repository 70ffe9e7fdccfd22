package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"devotion-guide-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store caches JSON-encodable values by key.
type Store interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process tier backed by go-cache.
type MemoryStore struct {
	cache *gocache.Cache
}

func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := s.cache.Get(key)
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.cache.Set(key, raw, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// RedisStore is the shared tier, visible to every instance.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// TieredStore reads the local tier first and falls back to the shared tier.
// Shared tier failures are logged and treated as misses.
type TieredStore struct {
	local    Store
	shared   Store
	localTTL time.Duration
	logger   logger.ILogger
}

func NewTieredStore(local, shared Store, localTTL time.Duration, log logger.ILogger) *TieredStore {
	return &TieredStore{local: local, shared: shared, localTTL: localTTL, logger: log}
}

func (s *TieredStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if found, err := s.local.Get(ctx, key, dest); err == nil && found {
		return true, nil
	}
	if s.shared == nil {
		return false, nil
	}

	found, err := s.shared.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("CACHE", "Shared cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false, nil
	}
	if found {
		_ = s.local.Set(ctx, key, dest, s.localTTL)
	}
	return found, nil
}

func (s *TieredStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	localTTL := s.localTTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	if err := s.local.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	if s.shared == nil {
		return nil
	}
	if err := s.shared.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("CACHE", "Shared cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return nil
}

func (s *TieredStore) Delete(ctx context.Context, key string) error {
	_ = s.local.Delete(ctx, key)
	if s.shared == nil {
		return nil
	}
	return s.shared.Delete(ctx, key)
}
