package service

import (
	"context"
	"fmt"
	"time"

	"p2pstats/internal/dedupe"
	"p2pstats/internal/domain"
	"p2pstats/internal/metrics"
	"p2pstats/internal/pubsub"
	"p2pstats/internal/report"
	"p2pstats/internal/stores/clickhouse"

	"gitlab.com/nevasik7/alerting/logger"
)

// Subject for "report ready" broadcasts, relative to the configured prefix
const SubjectReportReady = "ready"

type SeriesCache interface {
	Put(ctx context.Context, s *domain.Series) error
	Get(ctx context.Context, reportID string) (*domain.Series, error)
}

type RowSink interface {
	Enqueue(row clickhouse.ReportRow) error
}

// ReadyEvent is the broadcast payload once a report is assembled
type ReadyEvent struct {
	ReportID string        `json:"report_id"`
	Buckets  int           `json:"buckets"`
	Totals   domain.Totals `json:"totals"`
	BuiltAt  time.Time     `json:"built_at"`
}

type Defaults struct {
	Fiat      string
	Asset     string
	Precision int32
}

// ReporterService drives the full report lifecycle: dedupe input rows,
// assemble the series, cache it, persist the rows and announce the result.
// Cache, sink, broadcaster and deduper are all optional; the assembly
// itself never depends on them
type ReporterService struct {
	log      logger.Logger
	defaults Defaults
	deduper  dedupe.Deduper
	cache    SeriesCache
	sink     RowSink
	bcast    pubsub.Broadcaster
	metrics  *metrics.Metrics
	checks   []HealthCheck
}

// HealthCheck is one named dependency probe for readiness
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type ReporterDeps struct {
	Log         logger.Logger
	Defaults    Defaults
	Deduper     dedupe.Deduper
	Cache       SeriesCache
	Sink        RowSink
	Broadcaster pubsub.Broadcaster
	Metrics     *metrics.Metrics
	Checks      []HealthCheck
}

func NewReporter(d ReporterDeps) *ReporterService {
	return &ReporterService{
		log:      d.Log,
		defaults: d.Defaults,
		deduper:  d.Deduper,
		cache:    d.Cache,
		sink:     d.Sink,
		bcast:    d.Broadcaster,
		metrics:  d.Metrics,
		checks:   d.Checks,
	}
}

// CheckDependency probes every registered dependency, first failure wins
func (s *ReporterService) CheckDependency(ctx context.Context) error {
	for _, hc := range s.checks {
		if err := hc.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", hc.Name, err)
		}
	}
	return nil
}

// BuildReport assembles a series for the request. A cached series with the
// same deterministic id short-circuits the build; side effects (cache,
// ClickHouse, broadcast) are best-effort and never fail the report
func (s *ReporterService) BuildReport(ctx context.Context, req *domain.ReportRequest) (*domain.Series, error) {
	start := time.Now()

	if err := req.Period.Validate(); err != nil {
		s.countBuild("invalid")
		return nil, err
	}

	fiat, asset, precision := s.resolveDefaults(req)

	reportID, err := domain.MakeReportID(req)
	if err != nil {
		s.countBuild("invalid")
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, reportID); err == nil {
			s.log.Debugf("Report %s served from cache", reportID)
			s.countBuild("cached")
			return cached, nil
		}
	}

	// dedupe scope is one build: paginated fetches overlap inside a single
	// request, while a later rebuild of the same report must see all rows
	buildID := fmt.Sprintf("%s:%d", reportID, time.Now().UnixNano())
	s.dropDuplicateRows(ctx, buildID, req)

	engine := report.NewEngine(report.Config{
		Fiat:      fiat,
		Asset:     asset,
		Precision: precision,
	})

	series, err := engine.Assemble(req)
	if err != nil {
		s.countBuild("error")
		return nil, fmt.Errorf("assemble report %s: %w", reportID, err)
	}
	series.ReportID = reportID

	if s.metrics != nil {
		s.metrics.BuildDuration.Observe(time.Since(start).Seconds())
		for name, cs := range series.Stats {
			s.metrics.EventsAccepted.WithLabelValues(name).Add(float64(cs.Accepted))
			s.metrics.EventsRejected.WithLabelValues(name).Add(float64(cs.Rejected))
		}
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, series); err != nil {
			s.log.Errorf("Failed to cache report %s: %v", reportID, err)
		}
	}

	if s.sink != nil {
		for _, row := range series.Rows {
			if err := s.sink.Enqueue(clickhouse.RowFromSeries(series, fiat, asset, row)); err != nil {
				s.log.Errorf("Failed to enqueue report %s rows: %v", reportID, err)
				break
			}
		}
	}

	if s.bcast != nil {
		evt := ReadyEvent{ReportID: reportID, Buckets: len(series.Rows), Totals: series.Totals, BuiltAt: time.Now().UTC()}
		if err := s.bcast.Publish(ctx, SubjectReportReady, evt); err != nil {
			s.log.Errorf("Failed to broadcast report %s: %v", reportID, err)
		}
	}

	s.countBuild("ok")
	return series, nil
}

// GetReport returns a previously built series from the cache
func (s *ReporterService) GetReport(ctx context.Context, reportID string) (*domain.Series, error) {
	if s.cache == nil {
		return nil, domain.ErrReportNotFound
	}
	return s.cache.Get(ctx, reportID)
}

func (s *ReporterService) resolveDefaults(req *domain.ReportRequest) (fiat, asset string, precision int32) {
	fiat = req.Fiat
	if fiat == "" {
		fiat = s.defaults.Fiat
	}
	asset = req.Asset
	if asset == "" {
		asset = s.defaults.Asset
	}
	precision = req.Period.Precision
	if precision <= 0 {
		precision = s.defaults.Precision
	}
	return fiat, asset, precision
}

// dropDuplicateRows filters out rows whose declared id was already seen.
// Rows without an id mapping always stay: there is nothing to key them by
func (s *ReporterService) dropDuplicateRows(ctx context.Context, buildID string, req *domain.ReportRequest) {
	if s.deduper == nil {
		return
	}

	for ci := range req.Collections {
		col := &req.Collections[ci]
		if len(col.Fields.ID) == 0 {
			continue
		}

		kept := col.Rows[:0]
		for _, row := range col.Rows {
			id := rowIDOf(col.Fields.ID, row)
			if id == "" {
				kept = append(kept, row)
				continue
			}

			seen, err := s.deduper.Seen(ctx, domain.RowID(buildID, col.Name, id))
			if err != nil {
				s.log.Errorf("Dedupe check failed for %s/%s: %v", col.Name, id, err)
				kept = append(kept, row)
				continue
			}
			if seen {
				if s.metrics != nil {
					s.metrics.RowsDeduped.Inc()
				}
				continue
			}
			kept = append(kept, row)
		}
		col.Rows = kept
	}
}

func rowIDOf(aliases []string, row map[string]any) string {
	for _, a := range aliases {
		v, ok := row[a]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			if x != "" {
				return x
			}
		case float64:
			return fmt.Sprintf("%.0f", x)
		case int:
			return fmt.Sprintf("%d", x)
		case int64:
			return fmt.Sprintf("%d", x)
		}
	}
	return ""
}

func (s *ReporterService) countBuild(outcome string) {
	if s.metrics != nil {
		s.metrics.ReportsBuilt.WithLabelValues(outcome).Inc()
	}
}
