package redis

import (
	"context"
	"errors"
	"fmt"

	"p2pstats/internal/config"
	rdb "p2pstats/internal/stores/redis"
)

/*
The Bloom prefilter is a low-cost probabilistic "seen/not seen" check in
front of Redis SETNX. With a heavy influx of duplicate rows it keeps most
of them away from SETNX:
	- if the filter says "definitely not seen" we go to Redis;
	- if it says "most likely seen" we return duplicate right away (false
	  positive probability bounded by err_rate)
*/

type Bloom struct {
	rdb      *rdb.Client
	Key      string
	Capacity int64
	ErrRate  float64
}

func NewBloom(cfg *config.BloomConfig, rdb *rdb.Client) (*Bloom, error) {
	if cfg == nil {
		return nil, errors.New("bloom config is required to the bloom")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the bloom")
	}

	key := cfg.Key
	if key == "" {
		key = "dedupe:bf:rows"
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	errRate := cfg.ErrRate
	if errRate <= 0 {
		errRate = 0.001
	}

	return &Bloom{
		rdb:      rdb,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}, nil
}

// Create the filter if absent. Repeated calls are safe
func (b *Bloom) Ensure(ctx context.Context) error {
	exists, err := b.rdb.Exists(ctx, b.Key).Result()
	if err != nil {
		return fmt.Errorf("failed to check if bloom key exists: %w", err)
	}
	if exists > 0 {
		return nil
	}

	res := b.rdb.Do(ctx, "BF.RESERVE", b.Key, b.ErrRate, b.Capacity)
	if res.Err() != nil {
		return fmt.Errorf("BF.RESERVE failed: %w", res.Err()) // unknown command when the module is missing
	}

	return nil
}

// Add puts an item into the filter. Returns true if it was definitely new
func (b *Bloom) Add(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.ADD", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to add item to bloom: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}

// Exists returns true when the item is "probably" in the filter
func (b *Bloom) Exists(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.EXISTS", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("failed to check item in bloom: %w", err)
	}
	v, err := res.Int()
	return v == 1, err
}

func (b *Bloom) GetKey() string {
	return b.Key
}
