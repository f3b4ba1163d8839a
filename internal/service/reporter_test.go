package service

import (
	"context"
	"testing"
	"time"

	"p2pstats/internal/dedupe"
	"p2pstats/internal/domain"
	"p2pstats/internal/metrics"
	"p2pstats/internal/stores/clickhouse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/nevasik7/alerting/logger"
)

// ---- mocks ----

type NoopLogger struct{}

func (n *NoopLogger) Debug(msg string)                          {}
func (n *NoopLogger) Debugf(format string, args ...interface{}) {}
func (n *NoopLogger) Info(msg string)                           {}
func (n *NoopLogger) Infof(format string, args ...interface{})  {}
func (n *NoopLogger) Warn(msg string)                           {}
func (n *NoopLogger) Warnf(format string, args ...interface{})  {}
func (n *NoopLogger) Error(msg string)                          {}
func (n *NoopLogger) Errorf(format string, args ...interface{}) {}
func (n *NoopLogger) Fatal(msg string)                          {}
func (n *NoopLogger) Fatalf(format string, args ...interface{}) {}
func (n *NoopLogger) Panic(msg string)                          {}
func (n *NoopLogger) Panicf(format string, args ...interface{}) {}
func (n *NoopLogger) WithField(key string, value interface{}) logger.Logger {
	return n
}
func (n *NoopLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return n
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Put(ctx context.Context, s *domain.Series) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockCache) Get(ctx context.Context, reportID string) (*domain.Series, error) {
	args := m.Called(ctx, reportID)
	if s, ok := args.Get(0).(*domain.Series); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Enqueue(row clickhouse.ReportRow) error {
	args := m.Called(row)
	return args.Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, subject string, data interface{}) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockBroadcaster) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ---- fixtures ----

func testDefaults() Defaults {
	return Defaults{Fiat: "UAH", Asset: "USDT", Precision: 16}
}

func dayRequest() *domain.ReportRequest {
	return &domain.ReportRequest{
		Period: domain.Period{
			From:        time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			To:          time.Date(2025, 12, 1, 23, 0, 0, 0, time.UTC),
			Granularity: domain.GranularityDay,
		},
		Collections: []domain.Collection{
			{
				Name: "orders",
				Kind: domain.KindOrder,
				Fields: domain.FieldMap{
					ID:     []string{"orderId"},
					Time:   []string{"createTime"},
					Fiat:   []string{"totalPrice"},
					Crypto: []string{"amount"},
				},
				Rows: []map[string]any{
					{"orderId": "o-1", "createTime": "2025-12-01T10:00:00Z", "totalPrice": "100", "amount": "2.5"},
					{"orderId": "o-2", "createTime": "2025-12-01T11:00:00Z", "totalPrice": "200", "amount": "5"},
				},
			},
		},
	}
}

// ---- tests ----

func TestBuildReport_BareEngine(t *testing.T) {
	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults()})

	series, err := svc.BuildReport(context.Background(), dayRequest())
	require.NoError(t, err)

	require.NotEmpty(t, series.ReportID)
	require.Len(t, series.Rows, 1)
	assert.Equal(t, uint64(2), series.Rows[0].OrderCount)
	assert.Equal(t, "300", series.Rows[0].BoughtFiat.String())
	assert.Equal(t, 2, series.Stats["orders"].Accepted)
}

func TestBuildReport_InvalidPeriod(t *testing.T) {
	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults()})

	req := dayRequest()
	req.Period.Granularity = "fortnight"

	_, err := svc.BuildReport(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrUnknownGranularity)
}

func TestBuildReport_CacheHitShortCircuits(t *testing.T) {
	cache := new(MockCache)
	cached := &domain.Series{ReportID: "cached"}
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(cached, nil).Once()

	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults(), Cache: cache})

	got, err := svc.BuildReport(context.Background(), dayRequest())
	require.NoError(t, err)
	assert.Same(t, cached, got)

	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestBuildReport_SideEffects(t *testing.T) {
	cache := new(MockCache)
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(nil, domain.ErrReportNotFound).Once()
	cache.On("Put", mock.Anything, mock.AnythingOfType("*domain.Series")).Return(nil).Once()

	sink := new(MockSink)
	sink.On("Enqueue", mock.AnythingOfType("clickhouse.ReportRow")).Return(nil).Times(1)

	bcast := new(MockBroadcaster)
	bcast.On("Publish", mock.Anything, SubjectReportReady, mock.AnythingOfType("service.ReadyEvent")).Return(nil).Once()

	svc := NewReporter(ReporterDeps{
		Log:         &NoopLogger{},
		Defaults:    testDefaults(),
		Cache:       cache,
		Sink:        sink,
		Broadcaster: bcast,
		Metrics:     metrics.New(),
	})

	series, err := svc.BuildReport(context.Background(), dayRequest())
	require.NoError(t, err)

	cache.AssertExpectations(t)
	sink.AssertExpectations(t)
	bcast.AssertExpectations(t)

	evt := bcast.Calls[0].Arguments.Get(2).(ReadyEvent)
	assert.Equal(t, series.ReportID, evt.ReportID)
	assert.Equal(t, 1, evt.Buckets)
	assert.Equal(t, series.Totals.OrderCount, evt.Totals.OrderCount)
}

func TestBuildReport_BroadcastFailureIsNonFatal(t *testing.T) {
	bcast := new(MockBroadcaster)
	bcast.On("Publish", mock.Anything, SubjectReportReady, mock.Anything).Return(assert.AnError).Once()

	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults(), Broadcaster: bcast})

	_, err := svc.BuildReport(context.Background(), dayRequest())
	require.NoError(t, err)
	bcast.AssertExpectations(t)
}

func TestBuildReport_DuplicateRowsDropped(t *testing.T) {
	deduper := dedupe.NewInMemoryDedupe(&NoopLogger{}, time.Minute, 0)
	defer deduper.Close()

	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults(), Deduper: deduper})

	req := dayRequest()
	// page overlap: o-2 fetched twice
	req.Collections[0].Rows = append(req.Collections[0].Rows,
		map[string]any{"orderId": "o-2", "createTime": "2025-12-01T11:00:00Z", "totalPrice": "200", "amount": "5"})

	series, err := svc.BuildReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), series.Rows[0].OrderCount)
	assert.Equal(t, "300", series.Rows[0].BoughtFiat.String())
}

func TestBuildReport_RowsWithoutIDKept(t *testing.T) {
	deduper := dedupe.NewInMemoryDedupe(&NoopLogger{}, time.Minute, 0)
	defer deduper.Close()

	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults(), Deduper: deduper})

	req := dayRequest()
	req.Collections[0].Rows = []map[string]any{
		{"createTime": "2025-12-01T10:00:00Z", "totalPrice": "100", "amount": "2.5"},
		{"createTime": "2025-12-01T11:00:00Z", "totalPrice": "100", "amount": "2.5"},
	}

	series, err := svc.BuildReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), series.Rows[0].OrderCount)
}

func TestGetReport_NoCacheConfigured(t *testing.T) {
	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults()})

	_, err := svc.GetReport(context.Background(), "whatever")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestGetReport_DelegatesToCache(t *testing.T) {
	cache := new(MockCache)
	want := &domain.Series{ReportID: "abc"}
	cache.On("Get", mock.Anything, "abc").Return(want, nil).Once()

	svc := NewReporter(ReporterDeps{Log: &NoopLogger{}, Defaults: testDefaults(), Cache: cache})

	got, err := svc.GetReport(context.Background(), "abc")
	require.NoError(t, err)
	assert.Same(t, want, got)
	cache.AssertExpectations(t)
}
