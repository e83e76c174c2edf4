// Package cache provides Redis-backed caching of context detection results
// so identical content does not trigger repeated service calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/logger"
)

// DetectionCache handles Redis-based caching of detection results keyed by
// content hash.
type DetectionCache struct {
	client *redis.Client
	config *config.CacheConfig
	logger *logger.Logger
	hits   int64
	misses int64
}

// NewDetectionCache creates a new Redis-backed detection cache
func NewDetectionCache(cfg *config.CacheConfig, log *logger.Logger) (*DetectionCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	cache := &DetectionCache{
		client: client,
		config: cfg,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Detection cache initialized successfully",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// Key derives a deterministic cache key from the extracted text and the
// requested detection inputs.
func (dc *DetectionCache) Key(text string, categories, additional []string) string {
	hasher := sha256.New()
	hasher.Write([]byte(text))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strings.Join(categories, "\x1f")))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strings.Join(additional, "\x1f")))

	return fmt.Sprintf("%s:det:%x", dc.config.KeyPrefix, hasher.Sum(nil)[:16])
}

// Get looks up a cached detection result. A miss returns (nil, false, nil);
// cache infrastructure errors are reported but treated as misses by callers.
func (dc *DetectionCache) Get(ctx context.Context, key string) (*CachedDetection, bool, error) {
	data, err := dc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		dc.misses++
		dc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	var cached CachedDetection
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		dc.logger.Error("Failed to unmarshal cached detection", zap.Error(err))
		// Drop the corrupted entry
		dc.client.Del(ctx, key)
		dc.misses++
		return nil, false, nil
	}

	dc.hits++
	dc.logger.Debug("Cache hit", zap.String("key", key))
	return &cached, true, nil
}

// Store caches a detection result with the configured TTL
func (dc *DetectionCache) Store(ctx context.Context, key string, cached *CachedDetection) error {
	cached.CachedAt = time.Now()
	cached.TTL = int64(dc.config.DefaultTTL.Seconds())

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal detection for caching: %w", err)
	}

	if err := dc.client.Set(ctx, key, data, dc.config.DefaultTTL).Err(); err != nil {
		dc.logger.Error("Failed to cache detection", zap.Error(err))
		return fmt.Errorf("failed to cache detection: %w", err)
	}

	dc.logger.Debug("Detection cached",
		zap.String("key", key),
		zap.Int("categories", len(cached.Personal)))

	return nil
}

// GetStats returns cache performance statistics
func (dc *DetectionCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   dc.hits,
		Misses: dc.misses,
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := dc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Close closes the Redis connection
func (dc *DetectionCache) Close() error {
	if dc.client != nil {
		return dc.client.Close()
	}
	return nil
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
