// Package directory provides a cache-aside decorator over the directory
// repository. Group membership is the hot read of every scan; caching it keeps
// the scan from hammering the users table. The decorator is nil-safe: with no
// redis client configured it is a transparent pass-through.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	domain "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/directory"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const membersCacheTTL = 10 * time.Minute

type CachedRepository struct {
	inner  domain.Repository
	rdb    *redis.Client // may be nil
	logger *logrus.Logger
}

func NewCachedRepository(inner domain.Repository, rdb *redis.Client, logger *logrus.Logger) *CachedRepository {
	return &CachedRepository{inner: inner, rdb: rdb, logger: logger}
}

func (c *CachedRepository) ListActiveByIDs(ctx context.Context, ids []int64) ([]*domain.User, error) {
	return c.inner.ListActiveByIDs(ctx, ids)
}

func (c *CachedRepository) ListActiveGroupMembers(ctx context.Context, groupIDs []int64) ([]*domain.User, error) {
	if c.rdb == nil || len(groupIDs) == 0 {
		return c.inner.ListActiveGroupMembers(ctx, groupIDs)
	}

	key := membersCacheKey(groupIDs)
	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var users []*domain.User
		if json.Unmarshal([]byte(cached), &users) == nil {
			return users, nil
		}
		c.logger.Warnf("Failed to unmarshal cached group members for key %s", key)
	} else if err != redis.Nil {
		c.logger.Errorf("Redis GET failed for key %s: %v", key, err)
	}

	users, err := c.inner.ListActiveGroupMembers(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(users); err == nil {
		if err := c.rdb.Set(ctx, key, data, membersCacheTTL).Err(); err != nil {
			c.logger.Errorf("Redis SET failed for key %s: %v", key, err)
		}
	}
	return users, nil
}

func (c *CachedRepository) ListDeviceTokens(ctx context.Context, userIDs []int64) ([]string, error) {
	return c.inner.ListDeviceTokens(ctx, userIDs)
}

func (c *CachedRepository) RemoveDeviceTokens(ctx context.Context, tokens []string) error {
	return c.inner.RemoveDeviceTokens(ctx, tokens)
}

func membersCacheKey(groupIDs []int64) string {
	sorted := make([]int64, len(groupIDs))
	copy(sorted, groupIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	key := "alerts:group_members"
	for _, id := range sorted {
		key += fmt.Sprintf(":%d", id)
	}
	return key
}
