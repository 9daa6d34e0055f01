package hmsAuth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLogout)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value = %d, want 2", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 || snap.Counters[MetricLogout] != 1 {
		t.Fatalf("snapshot = %v", snap.Counters)
	}
	if snap.Counters[MetricLoginFailure] != 0 {
		t.Fatalf("untouched counter = %d, want 0", snap.Counters[MetricLoginFailure])
	}
}

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("Value = %d, want 0", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot = %+v", snap)
	}

	// Nil receiver is a valid no-op too.
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics must report disabled")
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricValidateLatency, 2*time.Millisecond)   // bucket 0
	m.Observe(MetricValidateLatency, 30*time.Millisecond)  // bucket 2
	m.Observe(MetricValidateLatency, 30*time.Millisecond)  // bucket 2
	m.Observe(MetricValidateLatency, 900*time.Millisecond) // overflow

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("buckets = %v", buckets)
	}
	if buckets[0] != 1 || buckets[2] != 2 || buckets[7] != 1 {
		t.Fatalf("bucket counts = %v", buckets)
	}

	// Only the latency metric observes.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if got := m.Snapshot().Histograms[MetricLoginSuccess]; got != nil {
		t.Fatalf("unexpected histogram: %v", got)
	}
}

func TestMetricsHistogramDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)
	if got := m.Snapshot().Histograms[MetricValidateLatency]; got != nil {
		t.Fatalf("histogram recorded while disabled: %v", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != 8000 {
		t.Fatalf("Value = %d, want 8000", got)
	}
}
