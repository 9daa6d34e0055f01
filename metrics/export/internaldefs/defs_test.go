package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesAreUniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]struct{}, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "hmsauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Errorf("counter %q breaks the naming convention", def.Name)
		}
		if _, dup := seen[def.Name]; dup {
			t.Errorf("duplicate counter name %q", def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.Help == "" {
			t.Errorf("counter %q has no help text", def.Name)
		}
	}
}

func TestHistogramBoundsAligned(t *testing.T) {
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatalf("bounds = %d, suffixes = %d, want 8 each", len(HistogramBounds), len(HistogramBoundSuffix))
	}
	if HistogramBounds[len(HistogramBounds)-1] != "+Inf" {
		t.Fatalf("last bound = %q, want +Inf", HistogramBounds[len(HistogramBounds)-1])
	}
}

func TestNormalizeBuckets(t *testing.T) {
	short := NormalizeBuckets([]uint64{1, 2})
	if short != [8]uint64{1, 2, 0, 0, 0, 0, 0, 0} {
		t.Fatalf("short input = %v", short)
	}

	long := NormalizeBuckets([]uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if long != [8]uint64{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Fatalf("long input = %v", long)
	}

	if got := NormalizeBuckets(nil); got != ([8]uint64{}) {
		t.Fatalf("nil input = %v", got)
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets([8]uint64{1, 0, 2, 0, 0, 0, 0, 3})
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}
