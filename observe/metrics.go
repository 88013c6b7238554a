// Package observe provides the OpenTelemetry metric instruments recorded by
// the pitch tracker, the coach policy and the prosody classifier.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is bound to
// the global meter provider, which is a no-op until the host installs one.
// Tests should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/RyanBlaney/sonido-coach"

// Metrics holds the metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// HopsProcessed counts analysis hops. Attribute: voiced (bool).
	HopsProcessed metric.Int64Counter

	// HopDuration tracks the processing time of one hop, in seconds.
	HopDuration metric.Float64Histogram

	// DetectorFallbacks counts model detector initialization failures that
	// fell back to YIN. Attribute: detector.
	DetectorFallbacks metric.Int64Counter

	// HintsEmitted counts coaching hints. Attributes: id, bucket.
	HintsEmitted metric.Int64Counter

	// PhrasesClassified counts prosody classifications. Attribute: label.
	PhrasesClassified metric.Int64Counter
}

// hopBuckets are histogram boundaries (seconds) around the 10 ms hop budget.
var hopBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.HopsProcessed, err = m.Int64Counter("sonido.tracker.hops",
		metric.WithDescription("Analysis hops processed by the pitch tracker."),
	); err != nil {
		return nil, err
	}
	if met.HopDuration, err = m.Float64Histogram("sonido.tracker.hop.duration",
		metric.WithDescription("Processing latency of one analysis hop."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(hopBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DetectorFallbacks, err = m.Int64Counter("sonido.tracker.detector.fallbacks",
		metric.WithDescription("Pitch detector initialization failures recovered by falling back to YIN."),
	); err != nil {
		return nil, err
	}
	if met.HintsEmitted, err = m.Int64Counter("sonido.coach.hints",
		metric.WithDescription("Coaching hints emitted by id and bucket."),
	); err != nil {
		return nil, err
	}
	if met.PhrasesClassified, err = m.Int64Counter("sonido.prosody.phrases",
		metric.WithDescription("Phrase contours classified by label."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// RecordHop records one processed hop and its latency.
func (m *Metrics) RecordHop(ctx context.Context, voiced bool, seconds float64) {
	m.HopsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("voiced", voiced)))
	m.HopDuration.Record(ctx, seconds)
}

// RecordDetectorFallback records a detector that could not be initialized.
func (m *Metrics) RecordDetectorFallback(ctx context.Context, detector string) {
	m.DetectorFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("detector", detector)))
}

// RecordHint records an emitted hint.
func (m *Metrics) RecordHint(ctx context.Context, id, bucket string) {
	m.HintsEmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("id", id),
			attribute.String("bucket", bucket),
		),
	)
}

// RecordPhrase records a classified phrase contour.
func (m *Metrics) RecordPhrase(ctx context.Context, label string) {
	m.PhrasesClassified.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}
