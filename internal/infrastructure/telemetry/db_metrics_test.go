package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newManualMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := NewDBMetrics(mp.Meter("test"), DBMetricsConfig{SlowQueryThreshold: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "closing_records", 10*time.Millisecond)
	m.RecordQuery(ctx, "update", "closing_records", 80*time.Millisecond)
	m.RecordQuery(ctx, "", "", 120*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, metrics["db_query_total"], AttrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_query_total"], AttrDBOperation.String("UPDATE")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_query_total"], AttrDBOperation.String("UNKNOWN")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_slow_query_total"], AttrDBTable.String("closing_records")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_slow_query_total"], AttrDBTable.String("unknown")))

	hist, ok := metrics["db_query_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestDBMetrics_PoolStatsCollection(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := NewDBMetrics(mp.Meter("test"), DBMetricsConfig{PoolStatsInterval: 5 * time.Millisecond}, zaptest.NewLogger(t))
	require.NoError(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(7)

	m.StartPoolStatsCollection(context.Background(), db)
	require.Eventually(t, func() bool {
		_, ok := collect(t, reader)["db_pool_connections_max"]
		return ok
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()

	gauge, ok := collect(t, reader)["db_pool_connections_max"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.NotEmpty(t, gauge.DataPoints)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
}

func TestDBMetrics_StopsOnContextCancel(t *testing.T) {
	mp, _ := newManualMeter(t)
	m, err := NewDBMetrics(mp.Meter("test"), DBMetricsConfig{PoolStatsInterval: time.Hour}, nil)
	require.NoError(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	m.StartPoolStatsCollection(ctx, db)
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stats collection did not stop on context cancel")
	}
}
