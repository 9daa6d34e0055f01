package otel

import (
	"errors"
	"testing"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"go.opentelemetry.io/otel/metric/noop"
)

type fakeSource struct{}

func (fakeSource) MetricsSnapshot() hmsAuth.MetricsSnapshot {
	return hmsAuth.MetricsSnapshot{
		Counters:   map[hmsAuth.MetricID]uint64{hmsAuth.MetricLoginSuccess: 1},
		Histograms: map[hmsAuth.MetricID][]uint64{},
	}
}

func (fakeSource) AuditDropped() uint64 { return 0 }

func TestNewOTelExporterValidatesInputs(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	if _, err := NewOTelExporterFromSource(nil, fakeSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("nil meter = %v, want ErrNilMeter", err)
	}
	if _, err := NewOTelExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("nil source = %v, want ErrNilSource", err)
	}
}

func TestNewOTelExporterRegistersInstruments(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	exporter, err := NewOTelExporterFromSource(meter, fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if len(exporter.counters) == 0 || len(exporter.histograms) == 0 {
		t.Fatalf("instruments missing: %d counters, %d histograms", len(exporter.counters), len(exporter.histograms))
	}

	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseNilExporter(t *testing.T) {
	var exporter *OTelExporter
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close on nil = %v", err)
	}
}
