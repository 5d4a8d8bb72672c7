// Package cache provides a read-through Redis cache in front of
// GET /query/history, adapted from the teacher's project-config caching in
// pkg/services/projects.go (same Set/Get/Del-by-pattern shape, different key
// space). The cache is best-effort throughout: a Redis outage degrades to
// always hitting QueryHistoryRepository, it never fails a request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// HistoryCache caches GET /query/history pages and invalidates the relevant
// entry whenever a new record is appended for that user.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns nil if client is nil (Redis not configured), so callers can
// treat a nil *HistoryCache as "caching disabled" without a branch.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *HistoryCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HistoryCache{client: client, ttl: ttl, logger: logger.Named("history_cache")}
}

func historyKey(userID string, limit int64) string {
	if userID == "" {
		userID = "_all"
	}
	return fmt.Sprintf("query_history:%s:%d", userID, limit)
}

// Get returns a cached page, or (nil, false) on a miss or any Redis error.
func (c *HistoryCache) Get(ctx context.Context, userID string, limit int64) ([]models.QueryRecord, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, historyKey(userID, limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var records []models.QueryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		c.logger.Warn("failed to unmarshal cached query history", zap.Error(err))
		return nil, false
	}
	return records, true
}

// Set stores a freshly-loaded page under its (userID, limit) key.
func (c *HistoryCache) Set(ctx context.Context, userID string, limit int64, records []models.QueryRecord) {
	if c == nil {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn("failed to marshal query history for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, historyKey(userID, limit), data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache query history", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops every cached page for userID (any limit), following a new
// record being recorded. Mirrors the teacher's clearProjectCache Scan+Del
// pattern since the limit is part of the key and not known in advance.
func (c *HistoryCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	if userID == "" {
		userID = "_all"
	}
	pattern := fmt.Sprintf("query_history:%s:*", userID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("failed to scan query history cache keys", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate query history cache", zap.String("user_id", userID), zap.Error(err))
	}
}
