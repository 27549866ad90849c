package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when no latest run is cached.
var ErrCacheMiss = errors.New("cache miss")

const latestResultsKey = "correlations:latest"

// CorrelationCacheEntry is the cached copy of the latest run's results.
type CorrelationCacheEntry struct {
	Results  []models.CorrelationResult `json:"results"`
	CachedAt time.Time                  `json:"cached_at"`
}

// CorrelationCacheStats tracks cache performance metrics
type CorrelationCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// Breaker guards redis round trips. services.CircuitBreaker implements it.
type Breaker interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

type passThrough struct{}

func (passThrough) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// RedisCorrelationCache keeps the most recent correlation results in Redis.
// A zero TTL stores the entry without expiry.
type RedisCorrelationCache struct {
	redis   *redis.Client
	ttl     time.Duration
	stats   *CorrelationCacheStats
	key     string
	breaker Breaker
	logger  *logging.StandardLogger
}

// NewRedisCorrelationCache creates a new Redis-based result cache
func NewRedisCorrelationCache(redisClient *redis.Client, ttl time.Duration) *RedisCorrelationCache {
	return &RedisCorrelationCache{
		redis:   redisClient,
		ttl:     ttl,
		stats:   &CorrelationCacheStats{},
		key:     latestResultsKey,
		breaker: passThrough{},
	}
}

// WithBreaker routes every redis call through b. A cache miss is not a
// failure; only redis errors count against the breaker.
func (c *RedisCorrelationCache) WithBreaker(b Breaker) *RedisCorrelationCache {
	if b != nil {
		c.breaker = b
	}
	return c
}

// WithLogger reports every cache round trip through logger.
func (c *RedisCorrelationCache) WithLogger(logger *logging.StandardLogger) *RedisCorrelationCache {
	c.logger = logger
	return c
}

func (c *RedisCorrelationCache) logOperation(operation string, hit bool, started time.Time) {
	if c.logger == nil {
		return
	}
	c.logger.LogCacheOperation(operation, c.key, hit, time.Since(started).Milliseconds())
}

func (c *RedisCorrelationCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

// GetLatest returns the cached results or ErrCacheMiss. Redis and decoding
// errors are returned as-is and also count as misses.
func (c *RedisCorrelationCache) GetLatest(ctx context.Context) ([]models.CorrelationResult, error) {
	started := time.Now()
	var (
		data []byte
		miss bool
	)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var getErr error
		data, getErr = c.redis.Get(ctx, c.key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			miss = true
			return nil
		}
		return getErr
	})
	if err != nil {
		c.recordMiss()
		c.logOperation("get", false, started)
		return nil, fmt.Errorf("failed to get cached correlations: %w", err)
	}
	if miss {
		c.recordMiss()
		c.logOperation("get", false, started)
		return nil, ErrCacheMiss
	}

	var entry CorrelationCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.recordMiss()
		c.logOperation("get", false, started)
		return nil, fmt.Errorf("failed to decode cached correlations: %w", err)
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	c.logOperation("get", true, started)

	return entry.Results, nil
}

// SetLatest replaces the cached results.
func (c *RedisCorrelationCache) SetLatest(ctx context.Context, results []models.CorrelationResult) error {
	started := time.Now()
	data, err := encodeEntry(results)
	if err != nil {
		return err
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.redis.Set(ctx, c.key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to cache correlations: %w", err)
	}

	c.recordSet()
	c.logOperation("set", false, started)
	logrus.WithFields(logrus.Fields{
		"results": len(results),
		"ttl":     c.ttl.String(),
	}).Debug("Cached latest correlation results")
	return nil
}

// SetLatestIfAbsent caches results only when no entry exists, so a read-through
// fill never replaces results written by a newer run. It reports whether the
// entry was written.
func (c *RedisCorrelationCache) SetLatestIfAbsent(ctx context.Context, results []models.CorrelationResult) (bool, error) {
	started := time.Now()
	data, err := encodeEntry(results)
	if err != nil {
		return false, err
	}

	var stored bool
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var setErr error
		stored, setErr = c.redis.SetNX(ctx, c.key, data, c.ttl).Result()
		return setErr
	})
	if err != nil {
		return false, fmt.Errorf("failed to fill correlation cache: %w", err)
	}

	if stored {
		c.recordSet()
	}
	c.logOperation("set_if_absent", !stored, started)
	return stored, nil
}

func encodeEntry(results []models.CorrelationResult) ([]byte, error) {
	data, err := json.Marshal(CorrelationCacheEntry{
		Results:  results,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode correlations: %w", err)
	}
	return data, nil
}

func (c *RedisCorrelationCache) recordSet() {
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Invalidate drops the cached results.
func (c *RedisCorrelationCache) Invalidate(ctx context.Context) error {
	started := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.redis.Del(ctx, c.key).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cached correlations: %w", err)
	}
	c.logOperation("invalidate", false, started)
	return nil
}

// GetStats returns current cache statistics
func (c *RedisCorrelationCache) GetStats() CorrelationCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return CorrelationCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *RedisCorrelationCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	logrus.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}).Info("Correlation cache stats")
}
