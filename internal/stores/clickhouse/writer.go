package clickhouse

import (
	"context"
	"errors"
	"sync"
	"time"

	"p2pstats/internal/config"
	"p2pstats/internal/domain"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"
)

// ReportRow is one assembled bucket of a finished report. Decimal columns
// travel as strings so the driver keeps exact scale
type ReportRow struct {
	ReportID    string
	BucketStart time.Time
	Granularity string
	Fiat        string
	Asset       string

	BoughtFiat     string // Decimal(38,18)
	BoughtCrypto   string
	OrderCount     uint64
	SoldFiat       string
	SoldCrypto     string
	CancelledCount uint64
	NetTxFlow      string

	MakerAdsCount uint64
	TakerAdsCount uint64
	MakerUpdates  uint64
	TakerUpdates  uint64

	WithdrawOnchainCount   uint64
	WithdrawOnchainAmount  string
	WithdrawOffchainCount  uint64
	WithdrawOffchainAmount string

	ProfitRate   *string // Nullable(Decimal), nil when undefined
	ProfitAmount *string
}

// RowFromSeries converts an assembled series row to its persisted shape
func RowFromSeries(s *domain.Series, fiat, asset string, row domain.Row) ReportRow {
	r := ReportRow{
		ReportID:    s.ReportID,
		BucketStart: row.BucketStart,
		Granularity: string(s.Period.Granularity),
		Fiat:        fiat,
		Asset:       asset,

		BoughtFiat:     row.BoughtFiat.String(),
		BoughtCrypto:   row.BoughtCrypto.String(),
		OrderCount:     row.OrderCount,
		SoldFiat:       row.SoldFiat.String(),
		SoldCrypto:     row.SoldCrypto.String(),
		CancelledCount: row.CancelledCount,
		NetTxFlow:      row.NetTxFlow.String(),

		MakerAdsCount: row.MakerAdsCount,
		TakerAdsCount: row.TakerAdsCount,
		MakerUpdates:  row.MakerUpdates,
		TakerUpdates:  row.TakerUpdates,

		WithdrawOnchainCount:   row.WithdrawOnchainCount,
		WithdrawOnchainAmount:  row.WithdrawOnchainAmount.String(),
		WithdrawOffchainCount:  row.WithdrawOffchainCount,
		WithdrawOffchainAmount: row.WithdrawOffchainAmount.String(),
	}

	if row.ProfitRate != nil {
		v := row.ProfitRate.String()
		r.ProfitRate = &v
	}
	if row.ProfitAmount != nil {
		v := row.ProfitAmount.String()
		r.ProfitAmount = &v
	}

	return r
}

type Writer struct {
	log logger.Logger

	conn ch.Conn
	cfg  config.ClickHouseConfig

	inCh      chan ReportRow
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:      log,
		conn:     conn,
		cfg:      cfg,
		inCh:     make(chan ReportRow, 8192),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *Writer) Enqueue(row ReportRow) error {
	select {
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	default:
	}

	select {
	case w.inCh <- row:
		return nil
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	}
}

func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
	})
	close(w.inCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]ReportRow, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] report rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row, ok := <-w.inCh:
			if !ok {
				flush()
				return
			}

			batch = append(batch, row)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.closedCh:
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []ReportRow) error {
	if len(rows) == 0 {
		return nil
	}

	backoff := w.cfg.Writer.RetryBackoff

	var lastErr error

	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		batch, err := w.conn.PrepareBatch(ctx, `
			INSERT INTO report_rows (
				report_id,
				bucket_start,
				granularity,
				fiat,
				asset,
				bought_fiat,
				bought_crypto,
				order_count,
				sold_fiat,
				sold_crypto,
				cancelled_count,
				net_tx_flow,
				maker_ads_count,
				taker_ads_count,
				maker_updates,
				taker_updates,
				withdraw_onchain_count,
				withdraw_onchain_amount,
				withdraw_offchain_count,
				withdraw_offchain_amount,
				profit_rate,
				profit_amount
			)
		`)
		if err != nil {
			lastErr = err
			goto retry
		}

		for i := range rows {
			r := &rows[i]

			if err = batch.Append(
				r.ReportID,
				r.BucketStart,
				r.Granularity,
				r.Fiat,
				r.Asset,
				r.BoughtFiat,
				r.BoughtCrypto,
				r.OrderCount,
				r.SoldFiat,
				r.SoldCrypto,
				r.CancelledCount,
				r.NetTxFlow,
				r.MakerAdsCount,
				r.TakerAdsCount,
				r.MakerUpdates,
				r.TakerUpdates,
				r.WithdrawOnchainCount,
				r.WithdrawOnchainAmount,
				r.WithdrawOffchainCount,
				r.WithdrawOffchainAmount,
				r.ProfitRate,
				r.ProfitAmount,
			); err != nil {
				lastErr = err
				_ = batch.Abort()
				goto retry
			}
		}

		if err = batch.Send(); err != nil {
			lastErr = err
			goto retry
		}
		return nil

	retry:
		if attempt == w.cfg.Writer.MaxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return lastErr
}
