// Package observe provides observability primitives for Hearken:
// OpenTelemetry metrics with a Prometheus exporter bridge, and a session
// observer that translates lifecycle callbacks into metric updates.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Hearken metrics.
const meterName = "github.com/hearken-ai/hearken"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// WakeDetections counts honored wake triggers. Use with attribute:
	//   attribute.String("strategy", "acoustic"|"transcription")
	WakeDetections metric.Int64Counter

	// CaptureDuration tracks segment capture length (audio time). Use with
	// attribute: attribute.String("stop_reason", ...)
	CaptureDuration metric.Float64Histogram

	// StopReasons counts capture outcomes by stop reason.
	StopReasons metric.Int64Counter

	// ThinkDuration tracks reasoning-call latency per turn.
	ThinkDuration metric.Float64Histogram

	// SpeakDuration tracks synthesis-plus-playback latency per turn.
	SpeakDuration metric.Float64Histogram

	// LLMTokens counts reasoning-backend token usage. Use with attribute:
	//   attribute.String("kind", "prompt"|"completion")
	LLMTokens metric.Int64Counter

	// SessionsFinished counts completed sessions. Use with attribute:
	//   attribute.String("end_reason", ...)
	SessionsFinished metric.Int64Counter

	// SessionErrors counts session-level errors by stage.
	SessionErrors metric.Int64Counter

	// ActiveSessions tracks the number of live conversation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WakeDetections, err = m.Int64Counter("hearken.wake.detections",
		metric.WithDescription("Total honored wake-phrase detections by strategy."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("hearken.capture.duration",
		metric.WithDescription("Captured segment length by stop reason."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StopReasons, err = m.Int64Counter("hearken.capture.stops",
		metric.WithDescription("Total capture outcomes by stop reason."),
	); err != nil {
		return nil, err
	}
	if met.ThinkDuration, err = m.Float64Histogram("hearken.session.think.duration",
		metric.WithDescription("Latency of the reasoning call per turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakDuration, err = m.Float64Histogram("hearken.session.speak.duration",
		metric.WithDescription("Latency of synthesis and playback per turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMTokens, err = m.Int64Counter("hearken.llm.tokens",
		metric.WithDescription("Total reasoning-backend tokens by kind."),
	); err != nil {
		return nil, err
	}
	if met.SessionsFinished, err = m.Int64Counter("hearken.sessions.finished",
		metric.WithDescription("Total completed sessions by end reason."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("hearken.session.errors",
		metric.WithDescription("Total session errors by stage."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("hearken.active_sessions",
		metric.WithDescription("Number of live conversation sessions."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordWake records one honored wake detection for the given strategy.
func (m *Metrics) RecordWake(ctx context.Context, strategy string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}
