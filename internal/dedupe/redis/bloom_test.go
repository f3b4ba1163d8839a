package redis

import (
	"testing"

	"p2pstats/internal/config"
	rdb "p2pstats/internal/stores/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisForBloom(t *testing.T) (*miniredis.Miniredis, *rdb.Client) {
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

func testBloomConfig(key string, capacity int64, errRate float64) *config.BloomConfig {
	return &config.BloomConfig{
		Enabled:  true,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}
}

func TestNewBloom_Success(t *testing.T) {
	_, client := setupTestRedisForBloom(t)

	bloom, err := NewBloom(testBloomConfig("test:bloom:key", 100000, 0.01), client)

	require.NoError(t, err)
	assert.Equal(t, "test:bloom:key", bloom.Key)
	assert.Equal(t, int64(100000), bloom.Capacity)
	assert.Equal(t, 0.01, bloom.ErrRate)
}

func TestNewBloom_NilConfig(t *testing.T) {
	_, client := setupTestRedisForBloom(t)

	bloom, err := NewBloom(nil, client)

	assert.Error(t, err)
	assert.Nil(t, bloom)
	assert.Contains(t, err.Error(), "bloom config is required")
}

func TestNewBloom_NilRedis(t *testing.T) {
	bloom, err := NewBloom(testBloomConfig("test:key", 100000, 0.01), nil)

	assert.Error(t, err)
	assert.Nil(t, bloom)
	assert.Contains(t, err.Error(), "redis client is required")
}

func TestNewBloom_Defaults(t *testing.T) {
	_, client := setupTestRedisForBloom(t)

	bloom, err := NewBloom(testBloomConfig("", 0, 0), client)

	require.NoError(t, err)
	assert.Equal(t, "dedupe:bf:rows", bloom.Key)
	assert.Equal(t, int64(1_000_000), bloom.Capacity)
	assert.Equal(t, 0.001, bloom.ErrRate)
}
