package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/security"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return NewClientFromRedis(rdb)
}

func TestSessionCache_SetGetInvalidate(t *testing.T) {
	client := testClient(t)
	enc, err := security.NewEncryptor([]byte("0123456789abcdef"))
	require.NoError(t, err)
	cache := NewSessionCache(client, enc, time.Minute)
	ctx := context.Background()

	session := &domain.ReframingSession{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		SelectedThought: "I'm a burden",
		Method:          domain.MethodSelfCompassion,
		Status:          domain.StatusActive,
		MaxTurns:        12,
	}

	miss, err := cache.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, session))
	got, err := cache.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.SelectedThought, got.SelectedThought)

	raw, err := client.Client().Get(ctx, sessionKey(session.ID)).Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "burden")

	require.NoError(t, cache.Invalidate(ctx, session.ID))
	got, err = cache.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRateLimiter_Allow(t *testing.T) {
	client := testClient(t)
	limiter := NewRateLimiter(client, 2, 1)
	ctx := context.Background()
	key := "user:" + uuid.NewString()
	t.Cleanup(func() { limiter.Reset(ctx, key) })

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}

	d, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
}
