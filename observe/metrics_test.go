package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the data point whose attribute key equals value.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.Emit() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestRecordHop(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHop(ctx, true, 0.0004)
	m.RecordHop(ctx, true, 0.0006)
	m.RecordHop(ctx, false, 0.0002)

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "sonido.tracker.hops", "voiced", "true"); got != 2 {
		t.Errorf("voiced hops = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "sonido.tracker.hops", "voiced", "false"); got != 1 {
		t.Errorf("unvoiced hops = %d, want 1", got)
	}

	met := findMetric(rm, "sonido.tracker.hop.duration")
	if met == nil {
		t.Fatal("hop duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("hop duration is not a populated histogram")
	}
	if got := hist.DataPoints[0].Count; got != 3 {
		t.Errorf("histogram count = %d, want 3", got)
	}
}

func TestRecordHintPhraseAndFallback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHint(ctx, "tooLoud", "safety")
	m.RecordHint(ctx, "jitter", "technique")
	m.RecordHint(ctx, "jitter", "technique")
	m.RecordPhrase(ctx, "rising")
	m.RecordDetectorFallback(ctx, "model")

	rm := collect(t, reader)
	if got := sumWhere(t, rm, "sonido.coach.hints", "id", "jitter"); got != 2 {
		t.Errorf("jitter hints = %d, want 2", got)
	}
	if got := sumWhere(t, rm, "sonido.prosody.phrases", "label", "rising"); got != 1 {
		t.Errorf("rising phrases = %d, want 1", got)
	}
	if got := sumWhere(t, rm, "sonido.tracker.detector.fallbacks", "detector", "model"); got != 1 {
		t.Errorf("fallbacks = %d, want 1", got)
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
