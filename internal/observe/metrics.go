// Package observe provides observability primitives for auricle: OpenTelemetry
// metrics and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all auricle metrics.
const meterName = "github.com/auricle-dev/auricle"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// APICalls counts responses requested from the hosted speech API.
	APICalls metric.Int64Counter

	// Reconnects counts API session replacements. Use with attribute:
	//   attribute.String("reason", "proactive"|"expired"|"lost"|"timeout")
	Reconnects metric.Int64Counter

	// FramesCaptured counts audio frames consumed from the capture device.
	FramesCaptured metric.Int64Counter

	// DroppedEvents counts malformed or undeliverable events discarded along
	// the pipeline. Use with attribute: attribute.String("source", ...)
	DroppedEvents metric.Int64Counter

	// Errors counts surfaced error events by taxonomy code.
	Errors metric.Int64Counter

	// --- Histograms ---

	// FlushBytes tracks the payload size of each buffer flush.
	FlushBytes metric.Int64Histogram

	// ResponseDuration tracks the time from flush to completed response.
	ResponseDuration metric.Float64Histogram

	// --- Gauges ---

	// OverlayClients tracks the number of connected overlay clients.
	OverlayClients metric.Int64UpDownCounter
}

// responseBuckets defines histogram bucket boundaries (in seconds) sized for
// hosted-API turnaround times.
var responseBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.APICalls, err = m.Int64Counter("auricle.api.calls",
		metric.WithDescription("Total responses requested from the speech API."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("auricle.session.reconnects",
		metric.WithDescription("Total API session replacements by reason."),
	); err != nil {
		return nil, err
	}
	if met.FramesCaptured, err = m.Int64Counter("auricle.audio.frames",
		metric.WithDescription("Total audio frames consumed from the capture device."),
	); err != nil {
		return nil, err
	}
	if met.DroppedEvents, err = m.Int64Counter("auricle.events.dropped",
		metric.WithDescription("Total malformed or undeliverable events discarded, by source."),
	); err != nil {
		return nil, err
	}
	if met.Errors, err = m.Int64Counter("auricle.errors",
		metric.WithDescription("Total surfaced error events by code."),
	); err != nil {
		return nil, err
	}

	if met.FlushBytes, err = m.Int64Histogram("auricle.flush.bytes",
		metric.WithDescription("Payload size of each buffer flush."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ResponseDuration, err = m.Float64Histogram("auricle.response.duration",
		metric.WithDescription("Time from buffer flush to completed response."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(responseBuckets...),
	); err != nil {
		return nil, err
	}

	if met.OverlayClients, err = m.Int64UpDownCounter("auricle.overlay.clients",
		metric.WithDescription("Number of connected overlay clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordReconnect records a session replacement with its reason.
func (m *Metrics) RecordReconnect(ctx context.Context, reason string) {
	m.Reconnects.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordDropped records n discarded events with their source. No-op for
// n <= 0, so callers can pass counters verbatim.
func (m *Metrics) RecordDropped(ctx context.Context, source string, n int64) {
	if n <= 0 {
		return
	}
	m.DroppedEvents.Add(ctx, n,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordError records one surfaced error event with its taxonomy code.
func (m *Metrics) RecordError(ctx context.Context, code string) {
	m.Errors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", code)),
	)
}
