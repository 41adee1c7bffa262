package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

// cacheNamespace prefixes every key so several deployments can share one redis.
const cacheNamespace = "creatia:"

const scanBatch = 100

// CacheRepository stores JSON encoded read models in redis. A repository
// without a client behaves as an always-empty cache.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get decodes the value at key into dest. Missing keys and undecodable
// payloads both return appErrors.ErrCacheMiss; the latter are evicted.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	full := cacheNamespace + key

	raw, err := r.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return appErrors.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("evicting undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = r.client.Del(ctx, full).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value under key for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, cacheNamespace+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes every key matching the glob pattern, deleting in
// pipelined batches as the scan proceeds.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, cacheNamespace+pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		pipe := r.client.Pipeline()
		pipe.Del(ctx, batch...)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis delete %s: %w", pattern, err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return flush()
}

// Close releases the redis client.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
