package redis

import (
	"context"
	"fmt"
	"time"

	"p2pstats/internal/config"
	"p2pstats/internal/dedupe"
	rdb "p2pstats/internal/stores/redis"

	"gitlab.com/nevasik7/alerting/logger"
)

var _ dedupe.Deduper = (*RedisDedupe)(nil)

type RedisDedupe struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
	bloom  *Bloom // optional
}

// Cluster dedupe over Redis SETNX + TTL
// prefix example "p2pstats:dedupe:"
func NewRedisDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client, bloom *Bloom) (*RedisDedupe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dedupe:"
	}

	return &RedisDedupe{
		log:    log,
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: prefix,
		bloom:  bloom,
	}, nil
}

func (d *RedisDedupe) Seen(ctx context.Context, id string) (bool, error) {
	// when a bloom prefilter says "probably seen" we can answer duplicate
	// without touching SETNX
	if d.bloom != nil {
		if exists, err := d.bloom.Exists(ctx, id); err == nil && exists {
			return true, nil
		}
	}

	key := d.prefix + id
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.Errorf("Redis SetNX error=%v", err)
		return false, fmt.Errorf("redis SetNX error=%v", err)
	}

	seen := !ok                  // ok=true -> new id; ok=false -> already there
	if !seen && d.bloom != nil { // remember new ids in the filter too
		if _, err = d.bloom.Add(ctx, id); err != nil {
			d.log.Errorf("Failed to add bloom id %s, err=%v", id, err)
		}
	}

	return seen, nil
}
