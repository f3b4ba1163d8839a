package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "p2pstats/internal/api/http"
	"p2pstats/internal/api/http/handlers"
	"p2pstats/internal/api/http/mw"
	"p2pstats/internal/config"
	dedupeRedis "p2pstats/internal/dedupe/redis"
	"p2pstats/internal/metrics"
	"p2pstats/internal/pubsub/nats"
	"p2pstats/internal/security"
	"p2pstats/internal/service"
	"p2pstats/internal/stores/clickhouse"
	"p2pstats/internal/stores/redis"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App

	// infra
	redis    *redis.Client
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer
	nc       *nats.Client

	httpSrv  *api.Server
	profiler *pyroscope.Profiler
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown failed, error=%w", err)
	}
	return nil
}

// Build constructs the full dependency container
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(&metrics.PProfConfig{
		Enabled:       cfg.Metrics.Pyroscope.Enabled,
		AppInstanceID: cfg.App.InstanceID,
		AppName:       cfg.Metrics.Pyroscope.AppName,
		ServerAddr:    cfg.Metrics.Pyroscope.ServerAddr,
		AuthToken:     cfg.Metrics.Pyroscope.AuthToken,
		Tags:          cfg.Metrics.Pyroscope.Tags,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pyroscope initialize failed: %w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	m := metrics.New()

	// Redis client
	rdb, err := redis.New(ctx, cfg.Stores.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}
	lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)

	// Bloom prefilter (optional, needs the RedisBloom module)
	var bloom *dedupeRedis.Bloom
	if cfg.Dedupe.Bloom.Enabled {
		bloom, err = dedupeRedis.NewBloom(&cfg.Dedupe.Bloom, rdb)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize bloom: %w", err)
		}
		if err = bloom.Ensure(ctx); err != nil {
			lg.Errorf("Bloom filter unavailable, continuing without it: %v", err)
			bloom = nil
		} else {
			lg.Infof("Successfully initialize Bloom by key=%s, cap=%d, errRate=%f", bloom.Key, bloom.Capacity, bloom.ErrRate)
		}
	}

	// Dedupe
	deduper, err := dedupeRedis.NewRedisDeduper(lg, &cfg.Dedupe, rdb, bloom)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis deduper: %w", err)
	}
	lg.Infof("Successfully initialize Deduper by prefix %s", cfg.Dedupe.Prefix)

	// Series cache
	cache := redis.NewSeriesCache(lg, rdb, cfg.Stores.Redis.Prefix, cfg.Report.CacheTTL)

	// NATS broadcaster
	natsCl, err := nats.New(lg, &cfg.PubSub.NATS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize nats client: %w", err)
	}
	lg.Infof("Successfully initialize nats client, url=%s", cfg.PubSub.NATS.URL)

	// ClickHouse client + batched writer
	ch, err := clickhouse.New(ctx, &cfg.Stores.ClickHouse)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
	}
	dsn := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
	lg.Infof("Successfully initialize clickhouse client, url=%s", dsn[0])

	chWriter := clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
	lg.Info("Successfully initialize clickhouse writer")

	// Service layer
	reporter := service.NewReporter(service.ReporterDeps{
		Log: lg,
		Defaults: service.Defaults{
			Fiat:      cfg.Report.Fiat,
			Asset:     cfg.Report.Asset,
			Precision: cfg.Report.Precision,
		},
		Deduper:     deduper,
		Cache:       cache,
		Sink:        chWriter,
		Broadcaster: natsCl,
		Metrics:     m,
		Checks: []service.HealthCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			{Name: "clickhouse", Check: func(ctx context.Context) error { return ch.Native.Ping(ctx) }},
			{Name: "nats", Check: natsCl.Health},
		},
	})

	// Security
	var jwtMW *mw.JWTMiddleware
	if cfg.Security.JWT.Enabled {
		verifier, err := security.NewRS256Verifier(&cfg.Security.JWT)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize jwt verifier: %w", err)
		}
		jwtMW = mw.NewJWTMiddleware(verifier)
		lg.Info("Successfully initialize JWT verifier")
	}

	// HTTP server
	h := handlers.NewHandler(lg, reporter)

	rateLimitMW := mw.NewRateLimit(rdb.Client, mw.RateLimitConfig{
		ByJWT: mw.RateBucket{
			RefillPerSec: cfg.RateLimit.ByJWT.RefillPerSec,
			Burst:        cfg.RateLimit.ByJWT.Burst,
		},
		ByIP: mw.RateBucket{
			RefillPerSec: cfg.RateLimit.ByIP.RefillPerSec,
			Burst:        cfg.RateLimit.ByIP.Burst,
		},
	})

	var corsMW *mw.CORSMiddleware
	if cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORSConfig(&cfg.API.HTTP.CORS)
	}

	router := api.BuildRouter(
		h,
		m.Handler(),
		mw.NewLogging(lg),
		mw.NewGzip(0, lg),
		rateLimitMW,
		jwtMW,
		corsMW,
	)

	httpSrv := api.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:      NewApp(lg, httpSrv),
		redis:    rdb,
		ch:       ch,
		chWriter: chWriter,
		nc:       natsCl,
		httpSrv:  httpSrv,
		profiler: profiler,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if c.profiler != nil {
			if err := c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if err := c.httpSrv.Shutdown(ctxClean); err != nil {
			lg.Errorf("Failed to shutdown HTTP server: %v", err)
		}

		if err := c.chWriter.Close(ctxClean); err != nil {
			lg.Errorf("Failed to close clickhouse writer: %v", err)
		}

		if err := c.ch.Close(); err != nil {
			lg.Errorf("Failed to close clickhouse client: %v", err)
		}

		if err := c.nc.Close(); err != nil {
			lg.Errorf("Failed to close nats client: %v", err)
		}

		if err := c.redis.Close(); err != nil {
			lg.Errorf("Failed to close redis client: %v", err)
		}

		lg.Info("Successfully cleaned up dependencies")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}
