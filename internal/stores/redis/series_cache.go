package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"p2pstats/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// ErrSeriesNotFound aliases the domain sentinel so callers can match either
var ErrSeriesNotFound = domain.ErrReportNotFound

// SeriesCache keeps assembled report series as JSON blobs with a TTL so a
// repeated request for the same report id is answered without rebuilding
type SeriesCache struct {
	log    logger.Logger
	rdb    *Client
	ttl    time.Duration
	prefix string
}

func NewSeriesCache(log logger.Logger, rdb *Client, prefix string, ttl time.Duration) *SeriesCache {
	if prefix == "" {
		prefix = "p2pstats:series:"
	}
	return &SeriesCache{
		log:    log,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
	}
}

func (c *SeriesCache) Put(ctx context.Context, s *domain.Series) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal series %s: %w", s.ReportID, err)
	}

	if err = c.rdb.Set(ctx, c.prefix+s.ReportID, b, c.ttl).Err(); err != nil {
		c.log.Errorf("Redis SET series %s failed: %v", s.ReportID, err)
		return fmt.Errorf("cache series %s: %w", s.ReportID, err)
	}

	return nil
}

func (c *SeriesCache) Get(ctx context.Context, reportID string) (*domain.Series, error) {
	b, err := c.rdb.Get(ctx, c.prefix+reportID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", reportID, err)
	}

	var s domain.Series
	if err = json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode cached series %s: %w", reportID, err)
	}

	return &s, nil
}
