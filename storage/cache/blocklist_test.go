package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlocklist(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	bl := &memoryBlocklist{revoked: make(map[string]time.Time), now: func() time.Time { return now }}

	require.NoError(t, bl.Revoke(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, bl.Revoke(ctx, "expired", now.Add(-time.Second)))

	revoked, _ := bl.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = bl.IsRevoked(ctx, "expired")
	assert.False(t, revoked)
	revoked, _ = bl.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)

	// "a" expires
	now = now.Add(2 * time.Hour)
	revoked, _ = bl.IsRevoked(ctx, "a")
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Len(t, bl.revoked, 1)
}

// requires Redis running on localhost:6379
func TestRedisBlocklist(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	bl := NewRedisBlocklist(client)
	defer func() { _ = bl.Close() }()

	jti := "test-" + time.Now().Format(time.RFC3339Nano)
	revoked, err := bl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = bl.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "past", time.Now().Add(-time.Minute)))
	revoked, _ = bl.IsRevoked(ctx, "past")
	assert.False(t, revoked)
}
