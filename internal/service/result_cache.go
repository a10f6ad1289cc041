package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/observability"
)

const cacheKeyPrefix = "evalium:cache:"

// ResultCache stores computed read-side results. Entries carry tags so that writers can drop every
// entry derived from an assessment or a student without knowing the key layout.
type ResultCache interface {
	Get(ctx context.Context, key string, target interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, tags ...string) error
	InvalidateTags(ctx context.Context, tags ...string) error
}

// AssessmentTag identifies cache entries derived from an assessment.
func AssessmentTag(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d", assessmentID)
}

// StudentTag identifies cache entries derived from a student's results.
func StudentTag(studentID uint) string {
	return fmt.Sprintf("student:%d", studentID)
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisResultCache builds a redis-backed cache. A nil client yields a cache that never hits.
func NewRedisResultCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) ResultCache {
	if client == nil {
		return noopResultCache{}
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisResultCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "result_cache").Logger(),
	}
}

func (c *redisResultCache) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheLookups().WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		observability.CacheLookups().WithLabelValues("miss").Inc()
		return false, nil
	}
	observability.CacheLookups().WithLabelValues("hit").Inc()
	return true, nil
}

func (c *redisResultCache) Set(ctx context.Context, key string, value interface{}, tags ...string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	fullKey := cacheKeyPrefix + key
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fullKey, payload, c.ttl)
	for _, tag := range tags {
		tagKey := cacheKeyPrefix + "tag:" + tag
		pipe.SAdd(ctx, tagKey, fullKey)
		pipe.Expire(ctx, tagKey, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *redisResultCache) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := cacheKeyPrefix + "tag:" + tag
		keys, err := c.client.SMembers(ctx, tagKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		keys = append(keys, tagKey)
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

// cachedLookup reads a cached result, treating cache failures as misses.
func cachedLookup(ctx context.Context, cache ResultCache, logger zerolog.Logger, key string, target interface{}) bool {
	found, err := cache.Get(ctx, key, target)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		observability.CacheLookups().WithLabelValues("error").Inc()
		return false
	}
	return found
}

func cachedStore(ctx context.Context, cache ResultCache, logger zerolog.Logger, key string, value interface{}, tags ...string) {
	if err := cache.Set(ctx, key, value, tags...); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

type noopResultCache struct{}

func (noopResultCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }

func (noopResultCache) Set(context.Context, string, interface{}, ...string) error { return nil }

func (noopResultCache) InvalidateTags(context.Context, ...string) error { return nil }
