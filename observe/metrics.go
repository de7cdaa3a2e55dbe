// Package observe records service metrics through the OpenTelemetry metrics
// API and exposes them for Prometheus scraping.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider]; [NewNoopMetrics] discards everything.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "voice-analyze"

// Metrics holds the instruments used by the service and HTTP layer.
type Metrics struct {
	// ExtractionDuration covers decode plus feature extraction.
	ExtractionDuration metric.Float64Histogram

	// PredictionDuration tracks calls to the sentiment model.
	PredictionDuration metric.Float64Histogram

	// Requests counts pipeline operations. Attributes: operation, status.
	Requests metric.Int64Counter

	// Enrollments counts enrollment attempts. Attribute: status.
	Enrollments metric.Int64Counter

	// IdentifyScore is the distribution of best cosine similarities.
	IdentifyScore metric.Float64Histogram

	// PoolInFlight is the number of requests holding a worker slot.
	PoolInFlight metric.Int64UpDownCounter

	// HTTPRequestDuration is recorded by Middleware. Attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram

	meter metric.Meter
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

var scoreBuckets = []float64{
	-0.5, 0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99, 1,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.ExtractionDuration, err = m.Float64Histogram("voice.extraction.duration",
		metric.WithDescription("Latency of audio decoding and feature extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PredictionDuration, err = m.Float64Histogram("voice.prediction.duration",
		metric.WithDescription("Latency of sentiment model prediction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Requests, err = m.Int64Counter("voice.requests",
		metric.WithDescription("Pipeline operations by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.Enrollments, err = m.Int64Counter("voice.enrollments",
		metric.WithDescription("Enrollment attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.IdentifyScore, err = m.Float64Histogram("voice.identify.score",
		metric.WithDescription("Best cosine similarity returned by identification."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PoolInFlight, err = m.Int64UpDownCounter("voice.pool.in_flight",
		metric.WithDescription("Requests currently holding a worker slot."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voice.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NewNoopMetrics returns instruments that record nothing.
func NewNoopMetrics() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return met
}

// ObserveSpeakers registers a gauge reporting count() on every collection.
func (m *Metrics) ObserveSpeakers(count func() int) error {
	_, err := m.meter.Int64ObservableGauge("voice.speakers.enrolled",
		metric.WithDescription("Number of enrolled speakers."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	return err
}

// RecordRequest counts one pipeline operation.
func (m *Metrics) RecordRequest(ctx context.Context, operation, status string) {
	m.Requests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordEnrollment counts one enrollment attempt.
func (m *Metrics) RecordEnrollment(ctx context.Context, status string) {
	m.Enrollments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
