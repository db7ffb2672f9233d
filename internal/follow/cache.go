package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a cached follow list can be when it was
// changed by a writer that bypasses this cache.
const DefaultCacheTTL = 60 * time.Second

const cacheKeyPrefix = "feed:follows:"

// CachedRepository wraps a Repository with a Redis read-through cache for
// ListByUser. Add and Remove go to the backing store and invalidate the
// user's key. Redis failures fall back to the backing store.
type CachedRepository struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository creates a CachedRepository. A zero ttl uses DefaultCacheTTL.
func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(userID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(userID, 10)
}

// ListByUser returns the cached follow list, loading it from the backing store on a miss.
func (c *CachedRepository) ListByUser(ctx context.Context, userID int64) ([]Follow, error) {
	key := cacheKey(userID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var follows []Follow
		if err := json.Unmarshal(raw, &follows); err == nil {
			for i := range follows {
				follows[i].UserID = userID
			}
			return follows, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt follow cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.WarnContext(ctx, "follow cache read failed", "error", err, "key", key)
	}

	follows, err := c.next.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(follows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode follow cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "follow cache write failed", "error", err, "key", key)
	}
	return follows, nil
}

// Add creates the follow and invalidates the user's cached list.
func (c *CachedRepository) Add(ctx context.Context, userID int64, kind EntityKind, entityID int64) (*Follow, bool, error) {
	f, created, err := c.next.Add(ctx, userID, kind, entityID)
	if err != nil {
		return nil, false, err
	}
	if created {
		c.invalidate(ctx, userID)
	}
	return f, created, nil
}

// Remove deletes the follow and invalidates the user's cached list.
func (c *CachedRepository) Remove(ctx context.Context, userID int64, kind EntityKind, entityID int64) error {
	if err := c.next.Remove(ctx, userID, kind, entityID); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *CachedRepository) invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "follow cache invalidation failed", "error", err, "user_id", userID)
	}
}
