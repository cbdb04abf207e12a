package dither

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/wavpitch/internal/testutil"
)

func plainQuantizer(t *testing.T, bits int) *Quantizer {
	t.Helper()

	q, err := NewQuantizer(WithBitDepth(bits), WithDitherType(DitherNone), WithNoiseShaping(PresetNone))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}
	return q
}

func TestNewQuantizerValidation(t *testing.T) {
	tests := map[string]Option{
		"bit depth too low":  WithBitDepth(0),
		"bit depth too high": WithBitDepth(33),
		"invalid dither":     WithDitherType(DitherType(9)),
		"invalid preset":     WithNoiseShaping(Preset(77)),
	}
	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewQuantizer(opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewQuantizerDefaults(t *testing.T) {
	q, err := NewQuantizer(nil)
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}
	if q.BitDepth() != 16 || q.DitherType() != DitherTriangular || q.Shaping() != Preset9FC {
		t.Fatalf("defaults = %d/%v/%v, want 16/triangular/9fc", q.BitDepth(), q.DitherType(), q.Shaping())
	}
	if lo, hi := q.Range(); lo != -32768 || hi != 32767 {
		t.Fatalf("Range() = %d, %d", lo, hi)
	}
}

func TestQuantizeDecodeRoundTrip(t *testing.T) {
	for _, bits := range []int{8, 16, 24, 32} {
		q := plainQuantizer(t, bits)
		lo, hi := q.Range()

		for _, v := range []int{lo, lo + 1, -1, 0, 1, hi / 3, hi} {
			if got := q.Quantize(q.Decode(v)); got != v {
				t.Fatalf("%d-bit: Quantize(Decode(%d)) = %d", bits, v, got)
			}
		}
	}
}

func TestQuantizeLimits(t *testing.T) {
	q := plainQuantizer(t, 16)
	for x, want := range map[float64]int{2: 32767, -2: -32768, 1: 32767, -1: -32768} {
		if got := q.Quantize(x); got != want {
			t.Errorf("Quantize(%v) = %d, want %d", x, got, want)
		}
	}
}

func TestQuantizerDeterministicWithRNG(t *testing.T) {
	in := testutil.DeterministicSine(997, 48000, 0.5, 2048)
	run := func() []int {
		q, err := NewQuantizer(WithRNG(rand.New(rand.NewPCG(7, 11))))
		if err != nil {
			t.Fatalf("NewQuantizer() error = %v", err)
		}
		out := make([]int, len(in))
		q.ProcessBlock(out, in)
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestQuantizerErrorIsBounded(t *testing.T) {
	for dt := DitherNone; dt < ditherTypeCount; dt++ {
		t.Run(dt.String(), func(t *testing.T) {
			q, err := NewQuantizer(WithDitherType(dt), WithNoiseShaping(PresetNone),
				WithRNG(rand.New(rand.NewPCG(1, 2))))
			if err != nil {
				t.Fatalf("NewQuantizer() error = %v", err)
			}

			in := testutil.DeterministicSine(440, 48000, 0.8, 4096)
			for i, x := range in {
				if d := math.Abs(q.Decode(q.Quantize(x)) - x); d > 8.0/32768 {
					t.Fatalf("sample %d: error %g exceeds 8 LSB", i, d)
				}
			}
		})
	}
}

// Error feedback makes the average output track a sub-LSB input that plain
// truncation would lose entirely.
func TestNoiseShapingPreservesSubLSBLevel(t *testing.T) {
	const n = 1000
	x := 0.3 / 32767.5

	mean := func(p Preset) float64 {
		q, err := NewQuantizer(WithDitherType(DitherNone), WithNoiseShaping(p))
		if err != nil {
			t.Fatalf("NewQuantizer() error = %v", err)
		}
		sum := 0
		for range n {
			sum += q.Quantize(x)
		}
		return float64(sum) / n
	}

	if got := mean(PresetNone); got != 0 {
		t.Fatalf("unshaped mean = %v, want 0", got)
	}
	if got := mean(PresetEFB); math.Abs(got-0.3) > 0.01 {
		t.Fatalf("EFB mean = %v, want 0.3", got)
	}
}

func TestNoiseShapingStaysInRange(t *testing.T) {
	q, err := NewQuantizer(WithRNG(rand.New(rand.NewPCG(3, 4))))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}

	in := testutil.DeterministicNoise(5, 0.9, 1<<15)
	out := make([]int, len(in))
	q.ProcessBlock(out, in)
	for i, v := range out {
		if v < -32768 || v > 32767 {
			t.Fatalf("sample %d out of range: %d", i, v)
		}
	}
}

func TestResetClearsHistory(t *testing.T) {
	q, err := NewQuantizer(WithDitherType(DitherNone), WithNoiseShaping(Preset2SC))
	if err != nil {
		t.Fatalf("NewQuantizer() error = %v", err)
	}
	x := 0.4 / q.Scale()

	first := q.Quantize(x)
	q.Quantize(x)
	q.Reset()
	if got := q.Quantize(x); got != first {
		t.Fatalf("Quantize after Reset = %d, want %d", got, first)
	}
}
