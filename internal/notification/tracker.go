package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const unreadCountTTL = 30 * time.Second

// UnreadCountCache keeps per-user unread counters in redis so the portal
// badge query stays off the primary store. Cache failures degrade to the
// database count; they are never surfaced to the caller. A nil cache is a
// no-op, which test setups use.
type UnreadCountCache struct {
	rdb *redis.Client
}

func NewUnreadCountCache(rdb *redis.Client) *UnreadCountCache {
	return &UnreadCountCache{rdb: rdb}
}

func unreadCountKey(userID string) string {
	return "unread_count:" + userID
}

func (c *UnreadCountCache) Get(ctx context.Context, userID string) (int64, bool) {
	if c == nil {
		return 0, false
	}

	value, err := c.rdb.Get(ctx, unreadCountKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to read unread count cache")
		}
		return 0, false
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}

	return count, true
}

func (c *UnreadCountCache) Set(ctx context.Context, userID string, count int64) {
	if c == nil {
		return
	}

	if err := c.rdb.Set(ctx, unreadCountKey(userID), count, unreadCountTTL).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache unread count")
	}
}

func (c *UnreadCountCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}

	if err := c.rdb.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate unread count cache")
	}
}

// ReadTracker maintains read state and the fast unread view for the in-app
// portal consumer.
type ReadTracker struct {
	store db.Store
	cache *UnreadCountCache
}

func NewReadTracker(store db.Store, cache *UnreadCountCache) *ReadTracker {
	return &ReadTracker{
		store: store,
		cache: cache,
	}
}

// ListUnread returns the recipient's unread, unexpired notifications,
// newest first.
func (t *ReadTracker) ListUnread(ctx context.Context, userID string, limit, offset int32) ([]db.Notification, error) {
	notifications, err := t.store.ListUnreadNotifications(ctx, db.ListUnreadNotificationsParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}

	return notifications, nil
}

// UnreadCount returns the size of the unread view without transferring row
// bodies, served from cache when fresh.
func (t *ReadTracker) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := t.cache.Get(ctx, userID); ok {
		return count, nil
	}

	count, err := t.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	t.cache.Set(ctx, userID, count)

	return count, nil
}

// MarkRead transitions one notification to read, scoped to the owning user.
// An ownership mismatch comes back as db.ErrRecordNotFound.
func (t *ReadTracker) MarkRead(ctx context.Context, id uuid.UUID, userID string) (db.Notification, error) {
	n, err := t.store.MarkNotificationRead(ctx, db.MarkNotificationReadParams{
		ID:     id,
		UserID: userID,
	})
	if err != nil {
		return db.Notification{}, err
	}

	t.cache.Invalidate(ctx, userID)

	return n, nil
}

// MarkAllRead transitions every unread, unexpired notification owned by the
// user in one atomic update and returns the number of rows affected.
func (t *ReadTracker) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := t.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	t.cache.Invalidate(ctx, userID)

	return affected, nil
}

// InvalidateUnreadCount drops the cached counter after an out-of-band
// mutation (cancel, delete).
func (t *ReadTracker) InvalidateUnreadCount(ctx context.Context, userID string) {
	t.cache.Invalidate(ctx, userID)
}
