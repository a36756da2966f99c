package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	for _, opts := range [][]MeterProviderOption{
		nil,
		{WithMetricsConfig(&MetricsConfig{Enabled: false})},
	} {
		mp, err := NewMeterProvider(context.Background(), opts...)
		require.NoError(t, err)
		_, ok := mp.(noop.MeterProvider)
		assert.True(t, ok, "expected no-op meter provider")
	}
}

func TestNewMeterProvider_Prometheus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	mp, err := NewMeterProvider(ctx,
		WithMetricsConfig(&MetricsConfig{Enabled: true, Prometheus: true}),
		WithMetricReader(sdkmetric.NewManualReader()),
		WithPrometheusRegisterer(reg),
	)
	require.NoError(t, err)
	sdkMP, ok := mp.(*sdkmetric.MeterProvider)
	require.True(t, ok)
	defer func() { _ = sdkMP.Shutdown(ctx) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)
	metrics.RecordDocuments(ctx, "incremental", "users", ResultIndexed, 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "zoom_connector_documents") {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, 3.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "documents counter not exported to Prometheus")
}
