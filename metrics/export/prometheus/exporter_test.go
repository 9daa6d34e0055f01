package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	hmsAuth "github.com/MrEthical07/hmsAuth"
)

type fakeSource struct {
	snapshot hmsAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() hmsAuth.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                     { return f.dropped }

func newFakeSource() *fakeSource {
	return &fakeSource{
		snapshot: hmsAuth.MetricsSnapshot{
			Counters: map[hmsAuth.MetricID]uint64{
				hmsAuth.MetricLoginSuccess:    7,
				hmsAuth.MetricValidateSuccess: 42,
			},
			Histograms: map[hmsAuth.MetricID][]uint64{
				hmsAuth.MetricValidateLatency: {5, 3, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 2,
	}
}

func TestRenderCounters(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(newFakeSource())

	out := exporter.Render()
	for _, want := range []string{
		"# TYPE hmsauth_login_success_total counter",
		"hmsauth_login_success_total 7",
		"hmsauth_validate_success_total 42",
		"hmsauth_login_failure_total 0",
		"hmsauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderHistogramIsCumulative(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(newFakeSource())

	out := exporter.Render()
	for _, want := range []string{
		"# TYPE hmsauth_validate_latency_seconds histogram",
		`hmsauth_validate_latency_seconds_bucket{le="0.005"} 5`,
		`hmsauth_validate_latency_seconds_bucket{le="0.01"} 8`,
		`hmsauth_validate_latency_seconds_bucket{le="+Inf"} 9`,
		"hmsauth_validate_latency_seconds_count 9",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: hmsAuth.MetricsSnapshot{
			Counters:   map[hmsAuth.MetricID]uint64{},
			Histograms: map[hmsAuth.MetricID][]uint64{},
		},
	})

	if out := exporter.Render(); out != "" {
		t.Fatalf("empty source rendered %q", out)
	}

	var nilExporter *PrometheusExporter
	if out := nilExporter.Render(); out != "" {
		t.Fatalf("nil exporter rendered %q", out)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(newFakeSource())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "hmsauth_login_success_total 7") {
		t.Fatal("body missing counter line")
	}
}
