package report

import (
	"fmt"

	"p2pstats/internal/domain"
)

// Engine assembles a full report series out of raw event collections. It
// is a pure synchronous computation: no I/O, no locks, no shared state,
// safe to run concurrently for independent requests
type Engine struct {
	fiat      string
	asset     string
	precision int32
}

// Config carries the target currencies and the division precision. The
// precision travels with the engine instead of living in process-global
// state, so concurrent reports with different needs cannot interfere
type Config struct {
	Fiat      string
	Asset     string
	Precision int32
}

func NewEngine(cfg Config) *Engine {
	prec := cfg.Precision
	if prec <= 0 {
		prec = defaultPrecision
	}
	return &Engine{fiat: cfg.Fiat, asset: cfg.Asset, precision: prec}
}

// Assemble runs the whole pipeline: generate buckets, classify and
// accumulate every collection, merge pre-aggregated period stats, derive
// profit metrics per bucket and for the totals. The output is dense (a
// row per bucket, zero rows kept) and deterministic for identical input
func (e *Engine) Assemble(req *domain.ReportRequest) (*domain.Series, error) {
	buckets, err := Buckets(req.Period)
	if err != nil {
		return nil, fmt.Errorf("failed to generate buckets: %w", err)
	}
	idx := indexBuckets(buckets)

	classifier := NewClassifier(e.fiat, e.asset)
	aggs := make([]domain.Aggregate, len(buckets))
	stats := make(map[string]domain.CollectionStats, len(req.Collections))

	var withdrawals []Event
	for i := range req.Collections {
		col := &req.Collections[i]

		events, rejected := classifier.Classify(col)
		Accumulate(buckets, idx, req.Period.Granularity, events, aggs)

		if col.Kind == domain.KindWithdrawal {
			withdrawals = append(withdrawals, events...)
		}

		cs := stats[col.Name]
		cs.Accepted += len(events)
		cs.Rejected += rejected
		stats[col.Name] = cs
	}

	MergePeriodStats(idx, req.Period.Granularity, req.PeriodStats, aggs)

	rows := make([]domain.Row, len(buckets))
	for i, b := range buckets {
		rows[i] = domain.Row{
			BucketStart: b,
			Aggregate:   aggs[i],
			Metrics:     Derive(&aggs[i], e.precision),
		}
	}

	series := &domain.Series{
		Period: req.Period,
		Rows:   rows,
		Totals: DeriveTotals(rows, e.precision),
		Stats:  stats,
	}

	if breakdown := BreakdownRecipients(withdrawals, topRecipients); breakdown != nil {
		series.Recipients = breakdown
	}

	return series, nil
}
