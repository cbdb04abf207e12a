package dither

import "testing"

func TestDitherTypeNames(t *testing.T) {
	for dt := DitherNone; dt < ditherTypeCount; dt++ {
		got, err := ParseDitherType(dt.String())
		if err != nil || got != dt {
			t.Fatalf("ParseDitherType(%q) = %v, %v", dt.String(), got, err)
		}
	}
	if got := DitherType(99).String(); got != "DitherType(99)" {
		t.Fatalf("String() = %q", got)
	}
	if DitherType(-1).Valid() || ditherTypeCount.Valid() {
		t.Fatal("out-of-range dither types should be invalid")
	}
}

func TestParseDitherType(t *testing.T) {
	tests := []struct {
		in      string
		want    DitherType
		wantErr bool
	}{
		{in: "none", want: DitherNone},
		{in: "Triangular", want: DitherTriangular},
		{in: " fast-gaussian ", want: DitherFastGaussian},
		{in: "pink", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDitherType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDitherType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseDitherType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPresets(t *testing.T) {
	orders := map[Preset]int{PresetNone: 0, PresetEFB: 1, Preset2SC: 2, Preset3FC: 3, Preset9FC: 9}
	for p, order := range orders {
		if p.Order() != order {
			t.Errorf("%v.Order() = %d, want %d", p, p.Order(), order)
		}
		got, err := ParsePreset(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePreset(%q) = %v, %v", p.String(), got, err)
		}
	}

	if got, err := ParsePreset("9FC"); err != nil || got != Preset9FC {
		t.Fatalf("ParsePreset(9FC) = %v, %v", got, err)
	}
	if _, err := ParsePreset("sbm"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
	if Preset(42).Valid() || Preset(42).Order() != 0 {
		t.Fatal("invalid preset should be invalid with no coefficients")
	}
}
