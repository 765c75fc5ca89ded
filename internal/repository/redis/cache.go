package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

const (
	sessionCachePrefix     = "reframe:session:"
	defaultSessionCacheTTL = 30 * time.Minute
)

// SessionCache keeps recently used reframing sessions in Redis so a dialogue
// turn does not have to hit the primary store twice. Entries are sealed with
// the encryptor when one is configured.
type SessionCache struct {
	client *Client
	enc    *security.Encryptor
	ttl    time.Duration
}

// NewSessionCache creates a new session cache
func NewSessionCache(client *Client, enc *security.Encryptor, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = defaultSessionCacheTTL
	}
	return &SessionCache{client: client, enc: enc, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return sessionCachePrefix + id.String()
}

// Get returns the cached session, or nil on a miss
func (c *SessionCache) Get(ctx context.Context, id uuid.UUID) (*domain.ReframingSession, error) {
	data, err := c.client.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}

	var session domain.ReframingSession
	if err := c.enc.OpenJSON(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	return &session, nil
}

// Set caches a session
func (c *SessionCache) Set(ctx context.Context, session *domain.ReframingSession) error {
	data, err := c.enc.SealJSON(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return c.client.rdb.Set(ctx, sessionKey(session.ID), data, c.ttl).Err()
}

// Invalidate removes a cached session
func (c *SessionCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.rdb.Del(ctx, sessionKey(id)).Err()
}

// FlushAll removes all cached sessions
func (c *SessionCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := sessionCachePrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
