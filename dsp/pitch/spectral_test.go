package pitch

import (
	"math"
	"testing"

	"github.com/cwbudde/wavpitch/dsp/resample"
	"github.com/cwbudde/wavpitch/dsp/window"
	"github.com/cwbudde/wavpitch/internal/testutil"
)

func TestSpectralDefaults(t *testing.T) {
	s, err := NewSpectralShifter(44100)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}

	if s.FrameSize() != defaultFrameSize || s.AnalysisHop() != defaultAnalysisHop {
		t.Fatalf("frame=%d hop=%d", s.FrameSize(), s.AnalysisHop())
	}
	if s.SynthesisHop() != defaultAnalysisHop || s.EffectivePitchRatio() != 1 {
		t.Fatalf("synthesis hop=%d effective=%g", s.SynthesisHop(), s.EffectivePitchRatio())
	}
	if s.WindowType() != window.TypeHann || s.ResampleQuality() != resample.QualityBalanced {
		t.Fatalf("window=%v quality=%v", s.WindowType(), s.ResampleQuality())
	}
}

func TestSpectralOptions(t *testing.T) {
	s, err := NewSpectralShifter(48000,
		WithFrameSize(4096),
		WithAnalysisHop(512),
		WithWindow(window.TypeBlackmanHarris4Term),
		WithResampleQuality(resample.QualityBest),
	)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}
	if s.FrameSize() != 4096 || s.AnalysisHop() != 512 {
		t.Fatalf("frame=%d hop=%d, want 4096/512", s.FrameSize(), s.AnalysisHop())
	}

	bad := [][]SpectralOption{
		{WithFrameSize(1000)},
		{WithFrameSize(32)},
		{WithAnalysisHop(0)},
		{WithAnalysisHop(1024)},
		{WithWindow(window.Type(99))},
	}
	for i, opts := range bad {
		if _, err := NewSpectralShifter(48000, opts...); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

func TestSpectralSettersValidate(t *testing.T) {
	s, err := NewSpectralShifter(48000)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}

	if err := s.SetFrameSize(1000); err == nil {
		t.Fatal("non power of two frame size should fail")
	}
	if s.FrameSize() != defaultFrameSize {
		t.Fatalf("frame size changed on error: %d", s.FrameSize())
	}
	if err := s.SetFrameSize(128); err != nil {
		t.Fatalf("SetFrameSize(128) error = %v", err)
	}
	if s.AnalysisHop() != 32 {
		t.Fatalf("hop not refitted to the smaller frame: %d", s.AnalysisHop())
	}
	if err := s.SetAnalysisHop(128); err == nil {
		t.Fatal("hop equal to frame size should fail")
	}
	if err := s.SetWindowType(window.TypeKaiser); err != nil {
		t.Fatalf("SetWindowType() error = %v", err)
	}
	if err := s.SetSampleRate(-1); err == nil {
		t.Fatal("SetSampleRate(-1) should fail")
	}
}

func TestSpectralSynthesisHopFollowsRatio(t *testing.T) {
	s, err := NewSpectralShifter(48000)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}

	tests := []struct {
		ratio          float64
		stretch, synth int
	}{
		{ratio: 1, stretch: 256, synth: 256},
		{ratio: 0.8, stretch: 255, synth: 204},
		{ratio: 0.5, stretch: 256, synth: 128},
		{ratio: 1.1, stretch: 230, synth: 253},
		{ratio: 1.5, stretch: 170, synth: 255},
		{ratio: 4, stretch: 64, synth: 256},
	}
	for _, tt := range tests {
		if err := s.SetPitchRatio(tt.ratio); err != nil {
			t.Fatalf("SetPitchRatio(%g) error = %v", tt.ratio, err)
		}
		if s.StretchHop() != tt.stretch || s.SynthesisHop() != tt.synth {
			t.Errorf("ratio %g: hops %d/%d, want %d/%d", tt.ratio, s.StretchHop(), s.SynthesisHop(), tt.stretch, tt.synth)
		}
		if s.SynthesisHop() > s.AnalysisHop() {
			t.Errorf("ratio %g: synthesis hop %d exceeds analysis hop", tt.ratio, s.SynthesisHop())
		}
		if math.Abs(s.EffectivePitchRatio()-tt.ratio) > 1e-12 {
			t.Errorf("ratio %g: effective %g", tt.ratio, s.EffectivePitchRatio())
		}
	}
}

func TestSpectralEffectiveRatioStaysClose(t *testing.T) {
	s, err := NewSpectralShifter(48000)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}

	for p := -90.0; p <= 400; p += 7 {
		ratio := 1 + p/100
		if err := s.SetPitchRatio(ratio); err != nil {
			t.Fatalf("SetPitchRatio(%g) error = %v", ratio, err)
		}
		if rel := math.Abs(s.EffectivePitchRatio()-ratio) / ratio; rel > 0.005 {
			t.Errorf("ratio %g: effective %g (rel err %.4f)", ratio, s.EffectivePitchRatio(), rel)
		}
	}
}

func TestSpectralMovesDominantFrequency(t *testing.T) {
	const (
		sampleRate = 48000.0
		n          = 8192
	)

	inFreq := sampleRate * 40 / n
	input := testutil.DeterministicSine(inFreq, sampleRate, 0.8, n)

	for _, ratio := range []float64{0.75, 0.9, 1.1, 1.5} {
		s, err := NewSpectralShifter(sampleRate)
		if err != nil {
			t.Fatalf("NewSpectralShifter() error = %v", err)
		}
		if err := s.SetPitchRatio(ratio); err != nil {
			t.Fatalf("SetPitchRatio() error = %v", err)
		}

		got := dominantFrequencyHz(t, s.Process(input)[n/4:3*n/4], sampleRate)
		want := inFreq * s.EffectivePitchRatio()
		if rel := math.Abs(got-want) / want; rel > 0.1 {
			t.Errorf("ratio %.2f: dominant %.1f Hz, want %.1f Hz (rel err %.3f)", ratio, got, want, rel)
		}
	}
}

func TestSpectralSignalQuality(t *testing.T) {
	const (
		sampleRate = 48000.0
		n          = 32768
		fftLen     = 16384
	)

	tests := []struct {
		name   string
		ratio  float64
		opts   []SpectralOption
		minSNR float64
	}{
		{name: "octave down", ratio: 0.5, minSNR: 45},
		{name: "fourth down", ratio: 0.75, minSNR: 45},
		{name: "fifth up", ratio: 1.5, minSNR: 45},
		{name: "octave up", ratio: 2, minSNR: 45},
		{name: "whole tone up", ratio: 1.1, minSNR: 45},
		{name: "whole tone up 8x overlap", ratio: 1.1, opts: []SpectralOption{WithAnalysisHop(128)}, minSNR: 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSpectralShifter(sampleRate, tt.opts...)
			if err != nil {
				t.Fatalf("NewSpectralShifter() error = %v", err)
			}
			if err := s.SetPitchRatio(tt.ratio); err != nil {
				t.Fatalf("SetPitchRatio() error = %v", err)
			}

			input, outFreq := binSine(100, fftLen, n, tt.ratio, sampleRate)
			out, err := s.ProcessWithError(input)
			if err != nil {
				t.Fatalf("ProcessWithError() error = %v", err)
			}

			snr := measureSNR(t, out, sampleRate, fftLen, outFreq)
			t.Logf("ratio=%.2f SNR=%.1f dB", tt.ratio, snr)
			if snr < tt.minSNR {
				t.Errorf("SNR = %.1f dB, want >= %.0f dB", snr, tt.minSNR)
			}
		})
	}
}

func TestSpectralProcessInPlaceWithError(t *testing.T) {
	s, err := NewSpectralShifter(48000)
	if err != nil {
		t.Fatalf("NewSpectralShifter() error = %v", err)
	}
	if err := s.SetPitchRatio(0.8); err != nil {
		t.Fatalf("SetPitchRatio() error = %v", err)
	}

	input := testutil.DeterministicSine(330, 48000, 0.7, 4096)
	want := s.Process(input)

	got := append([]float64(nil), input...)
	if err := s.ProcessInPlaceWithError(got); err != nil {
		t.Fatalf("ProcessInPlaceWithError() error = %v", err)
	}

	diff, err := testutil.MaxAbsDiff(got, want)
	if err != nil {
		t.Fatalf("MaxAbsDiff() error = %v", err)
	}
	if diff > 1e-9 {
		t.Fatalf("max diff = %g, want <= 1e-9", diff)
	}
}

func TestSpectralOutputPeakFollowsInput(t *testing.T) {
	const (
		sampleRate = 44100.0
		n          = 44100
		amplitude  = 0.5
	)

	input := testutil.DeterministicSine(441, sampleRate, amplitude, n)
	for _, ratio := range []float64{0.5, 0.9, 1.1, 1.5, 2} {
		s, err := NewSpectralShifter(sampleRate)
		if err != nil {
			t.Fatalf("NewSpectralShifter() error = %v", err)
		}
		if err := s.SetPitchRatio(ratio); err != nil {
			t.Fatalf("SetPitchRatio() error = %v", err)
		}

		out, err := s.ProcessWithError(input)
		if err != nil {
			t.Fatalf("ratio %g: ProcessWithError() error = %v", ratio, err)
		}
		if head := peakAbs(out[:s.FrameSize()]); head > 1.2*amplitude {
			t.Errorf("ratio %g: first frame peak %.3f, input peak %.3f", ratio, head, amplitude)
		}
		if peak := peakAbs(out); peak > 1.2*amplitude || peak < 0.8*amplitude {
			t.Errorf("ratio %g: output peak %.3f, input peak %.3f", ratio, peak, amplitude)
		}
		if rms := testutil.RMS(out[n/4 : 3*n/4]); math.Abs(rms-amplitude/math.Sqrt2) > 0.1*amplitude {
			t.Errorf("ratio %g: steady state RMS %.3f", ratio, rms)
		}
	}
}

func TestSpectralStagesLargeShifts(t *testing.T) {
	const (
		sampleRate = 48000.0
		n          = 48000
	)

	tests := []struct {
		ratio  float64
		inFreq float64
	}{
		{ratio: 5, inFreq: 200},
		{ratio: 0.1, inFreq: 3000},
	}
	for _, tt := range tests {
		s, err := NewSpectralShifter(sampleRate)
		if err != nil {
			t.Fatalf("NewSpectralShifter() error = %v", err)
		}
		if err := s.SetPitchRatio(tt.ratio); err != nil {
			t.Fatalf("SetPitchRatio(%g) error = %v", tt.ratio, err)
		}

		input := testutil.DeterministicSine(tt.inFreq, sampleRate, 0.5, n)
		out, err := s.ProcessWithError(input)
		if err != nil {
			t.Fatalf("ratio %g: ProcessWithError() error = %v", tt.ratio, err)
		}
		if len(out) != n {
			t.Fatalf("ratio %g: len = %d, want %d", tt.ratio, len(out), n)
		}
		testutil.RequireFinite(t, out)

		got := testutil.ZeroCrossingHz(out[n/4:3*n/4], sampleRate)
		want := tt.inFreq * tt.ratio
		if rel := math.Abs(got-want) / want; rel > 0.03 {
			t.Errorf("ratio %g: %.1f Hz, want %.1f Hz", tt.ratio, got, want)
		}
	}
}

func peakAbs(x []float64) float64 {
	var peak float64
	for _, v := range x {
		peak = max(peak, math.Abs(v))
	}
	return peak
}
