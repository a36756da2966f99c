// Package telemetry provides OpenTelemetry instrumentation for the connector.
package telemetry

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stacklok/zoom-search-connector/internal/httpclient"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/zoom-search-connector/sync"

	// ClientMetricsMeterName is the name used for the outbound call metrics meter
	ClientMetricsMeterName = "github.com/stacklok/zoom-search-connector/httpclient"
)

// Document results recorded by SyncMetrics.RecordDocuments
const (
	ResultExtracted  = "extracted"
	ResultIndexed    = "indexed"
	ResultFailed     = "failed"
	ResultSkipped    = "skipped"
	ResultUnresolved = "unresolved"
	ResultDeleted    = "deleted"
)

// SyncMetrics holds the OpenTelemetry instruments for sync runs
type SyncMetrics struct {
	runDuration metric.Float64Histogram
	documents   metric.Int64Counter
	failedPages metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"zoom_connector_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600),
	)
	if err != nil {
		return nil, err
	}

	documents, err := meter.Int64Counter(
		"zoom_connector_documents_total",
		metric.WithDescription("Documents processed by sync runs, by result"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	failedPages, err := meter.Int64Counter(
		"zoom_connector_failed_pages_total",
		metric.WithDescription("Source pages skipped after their retries were exhausted"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration: runDuration,
		documents:   documents,
		failedPages: failedPages,
	}, nil
}

// RecordRun records the duration and outcome of a sync run
func (m *SyncMetrics) RecordRun(ctx context.Context, mode, outcome string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDocuments adds count documents of an object type with the given result
func (m *SyncMetrics) RecordDocuments(ctx context.Context, mode, objectType, result string, count int) {
	if m == nil || m.documents == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.String("object_type", objectType),
		attribute.String("result", result),
	}

	m.documents.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordFailedPages adds count skipped pages of an object type
func (m *SyncMetrics) RecordFailedPages(ctx context.Context, mode, objectType string, count int) {
	if m == nil || m.failedPages == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.String("object_type", objectType),
	}

	m.failedPages.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// ClientMetrics holds the OpenTelemetry instruments for outbound API calls
type ClientMetrics struct {
	calls   metric.Int64Counter
	retries metric.Int64Counter
}

// NewClientMetrics creates a new ClientMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewClientMetrics(provider metric.MeterProvider) (*ClientMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ClientMetricsMeterName)

	calls, err := meter.Int64Counter(
		"zoom_connector_api_calls_total",
		metric.WithDescription("Outbound API calls by system and final outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"zoom_connector_api_retries_total",
		metric.WithDescription("Backoff retries of outbound API calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &ClientMetrics{
		calls:   calls,
		retries: retries,
	}, nil
}

// Recorder returns an httpclient.RecordFunc counting the calls of one remote system.
func (m *ClientMetrics) Recorder(system string) httpclient.RecordFunc {
	return func(ctx context.Context, req *httpclient.Request, state httpclient.RetryState, err error) {
		m.RecordCall(ctx, system, req, state, err)
	}
}

// RecordCall records the final state of one call
func (m *ClientMetrics) RecordCall(
	ctx context.Context, system string, req *httpclient.Request, state httpclient.RetryState, err error,
) {
	if m == nil || m.calls == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = httpclient.KindOf(err).String()
	}
	host := ""
	if req != nil {
		if u, perr := url.Parse(req.URL); perr == nil {
			host = u.Host
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("system", system),
		attribute.String("host", host),
		attribute.String("outcome", outcome),
	}
	m.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	if state.Retries > 0 {
		m.retries.Add(ctx, int64(state.Retries), metric.WithAttributes(attrs[:2]...))
	}
}
