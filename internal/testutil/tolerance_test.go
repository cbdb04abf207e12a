package testutil

import (
	"math"
	"testing"
)

func TestMaxAbsDiff(t *testing.T) {
	d, err := MaxAbsDiff([]float64{1, 2, 3}, []float64{1, 2.5, 2})
	if err != nil {
		t.Fatalf("MaxAbsDiff() error = %v", err)
	}
	if d != 1 {
		t.Fatalf("MaxAbsDiff() = %v, want 1", d)
	}
	if _, err := MaxAbsDiff([]float64{1}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestRequireHelpersPass(t *testing.T) {
	RequireSliceNearlyEqual(t, []float64{1, 2}, []float64{1 + 1e-10, 2}, 1e-9)
	RequireFinite(t, []float64{0, -1, math.MaxFloat64})
}
