package internaldefs

import (
	"strings"
	"testing"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

func TestCounterDefsUnique(t *testing.T) {
	names := map[string]bool{}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "goauth_client_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
		if names[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate definition %q", def.Name)
		}
		names[def.Name] = true
		ids[uint16(def.ID)] = true
	}
	if len(CounterDefs) != int(goAuthClient.MetricAuthorityLatency) {
		t.Fatalf("expected a definition for every counter, got %d", len(CounterDefs))
	}
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds and suffixes disagree: %d vs %d", len(HistogramBounds), len(HistogramBoundSuffix))
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2, 0, 0, 0, 0, 3}))
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if short := NormalizeBuckets([]uint64{4}); short[0] != 4 || short[7] != 0 {
		t.Fatalf("unexpected padding %v", short)
	}
}
