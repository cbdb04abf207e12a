package testutil

import (
	"fmt"
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t unless got and want have the same length
// and every pair of samples is within eps.
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	diff, err := MaxAbsDiff(got, want)
	if err != nil {
		t.Fatal(err)
	}
	if diff <= eps {
		return
	}
	for i := range got {
		if d := math.Abs(got[i] - want[i]); d > eps {
			t.Fatalf("sample %d: got %v, want %v (|diff| %g > %g)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireFinite fails t at the first NaN or infinite sample.
func RequireFinite(t testing.TB, x []float64) {
	t.Helper()
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}

// MaxAbsDiff returns the largest absolute sample difference of a and b.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	var peak float64
	for i := range a {
		peak = max(peak, math.Abs(a[i]-b[i]))
	}
	return peak, nil
}
