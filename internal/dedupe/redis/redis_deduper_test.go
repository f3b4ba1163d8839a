package redis

import (
	"context"
	"testing"
	"time"

	"p2pstats/internal/config"
	rdb "p2pstats/internal/stores/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisForDeduper(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := &rdb.Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr: mr.Addr(),
		}),
	}
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testDedupeConfig(prefix string, ttl time.Duration) *config.DedupeConfig {
	return &config.DedupeConfig{
		Prefix: prefix,
		TTL:    ttl,
	}
}

func TestNewRedisDeduper_Success(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), testDedupeConfig("test:dedupe:", 24*time.Hour), client, nil)

	require.NoError(t, err)
	assert.Equal(t, "test:dedupe:", deduper.prefix)
	assert.Equal(t, 24*time.Hour, deduper.ttl)
	assert.Nil(t, deduper.bloom)
}

func TestNewRedisDeduper_DefaultPrefix(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), testDedupeConfig("", time.Hour), client, nil)

	require.NoError(t, err)
	assert.Equal(t, "dedupe:", deduper.prefix)
}

func TestNewRedisDeduper_RequiresConfigAndClient(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	_, err := NewRedisDeduper(createTestLogger(), nil, client, nil)
	assert.Error(t, err)

	_, err = NewRedisDeduper(createTestLogger(), testDedupeConfig("p:", time.Hour), nil, nil)
	assert.Error(t, err)
}

func TestRedisDedupe_FirstSeenThenDuplicate(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), testDedupeConfig("test:dedupe:", time.Hour), client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	const id = "report:abc:orders:17"

	seen, err := deduper.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = deduper.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisDedupe_KeyExpires(t *testing.T) {
	mr, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), testDedupeConfig("test:dedupe:", time.Minute), client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	const id = "report:abc:orders:18"

	seen, err := deduper.Seen(ctx, id)
	require.NoError(t, err)
	require.False(t, seen)

	mr.FastForward(2 * time.Minute)

	seen, err = deduper.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen, "after TTL the id must count as first again")
}

func TestRedisDedupe_DistinctIDsIndependent(t *testing.T) {
	_, client := setupTestRedisForDeduper(t)

	deduper, err := NewRedisDeduper(createTestLogger(), testDedupeConfig("test:dedupe:", time.Hour), client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	seen, err := deduper.Seen(ctx, "report:abc:orders:1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = deduper.Seen(ctx, "report:abc:orders:2")
	require.NoError(t, err)
	assert.False(t, seen)
}
