package cache

import (
	"context"
	"errors"

	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/sirupsen/logrus"
)

// LatestResultsReader returns the results of the most recent persisted run.
type LatestResultsReader interface {
	LatestCorrelations(ctx context.Context) ([]models.CorrelationResult, error)
}

// CachedStore is a correlation.Store that refreshes the latest-results cache
// after every successful save. Reads of diary events are not cached.
type CachedStore struct {
	correlation.Store
	cache *RedisCorrelationCache
}

// NewCachedStore wraps store with the result cache.
func NewCachedStore(store correlation.Store, cache *RedisCorrelationCache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

// SaveCorrelations persists results and then caches them. The results are
// durable once the inner save returns, so a cache failure only invalidates
// the stale entry and is not reported to the caller.
func (s *CachedStore) SaveCorrelations(ctx context.Context, results []models.CorrelationResult) error {
	if err := s.Store.SaveCorrelations(ctx, results); err != nil {
		return err
	}

	if err := s.cache.SetLatest(ctx, results); err != nil {
		logrus.WithError(err).Warn("Failed to refresh correlation cache")
		if delErr := s.cache.Invalidate(ctx); delErr != nil {
			logrus.WithError(delErr).Error("Failed to invalidate stale correlation cache")
		}
	}
	return nil
}

// CachedReader serves the latest results from Redis and falls back to the
// database on a miss, filling the cache on the way back if it is still empty.
type CachedReader struct {
	cache    *RedisCorrelationCache
	fallback LatestResultsReader
}

// NewCachedReader creates a read-through reader.
func NewCachedReader(cache *RedisCorrelationCache, fallback LatestResultsReader) *CachedReader {
	return &CachedReader{cache: cache, fallback: fallback}
}

func (r *CachedReader) LatestCorrelations(ctx context.Context) ([]models.CorrelationResult, error) {
	results, err := r.cache.GetLatest(ctx)
	if err == nil {
		return results, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logrus.WithError(err).Warn("Correlation cache unavailable, reading from database")
	}

	results, err = r.fallback.LatestCorrelations(ctx)
	if err != nil {
		return nil, err
	}

	// A run saved while the fallback read was in flight has already cached
	// newer results; never overwrite them.
	if _, err := r.cache.SetLatestIfAbsent(ctx, results); err != nil {
		logrus.WithError(err).Warn("Failed to fill correlation cache")
	}
	return results, nil
}
