package wavfile

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferShape(t *testing.T) {
	b := &Buffer{SampleRate: 1000, Channels: [][]float64{{0.1, -0.7, 0.3}, {0.2, 0.4, -0.5}}}

	assert.Equal(t, 2, b.NumChannels())
	assert.Equal(t, 3, b.Frames())
	assert.Equal(t, 3*time.Millisecond, b.Duration())
	assert.InDelta(t, 0.7, b.Peak(), 1e-15)

	empty := &Buffer{}
	assert.Zero(t, empty.Frames())
	assert.Zero(t, empty.Duration())
	assert.Zero(t, empty.Peak())
}

func TestLevel(t *testing.T) {
	b := &Buffer{SampleRate: 8000, Channels: [][]float64{{0.5, -0.5}, {0.5, -0.5}}}
	lv := b.Level()
	assert.InDelta(t, 0.5, lv.Peak, 1e-12)
	assert.InDelta(t, 0.5, lv.RMS, 1e-12)
	assert.InDelta(t, -6.0206, lv.PeakDB, 1e-4)
	assert.InDelta(t, lv.PeakDB, lv.RMSDB, 1e-12)

	silent := (&Buffer{SampleRate: 8000, Channels: [][]float64{{0, 0}}}).Level()
	assert.True(t, math.IsInf(silent.PeakDB, -1))
	assert.True(t, math.IsInf(silent.RMSDB, -1))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		mode     NormalizeMode
		in       []float64
		ceiling  float64
		wantGain float64
	}{
		{name: "guard leaves quiet audio", mode: NormalizeGuard, in: []float64{0.5, -0.25}, ceiling: 0.99, wantGain: 1},
		{name: "guard scales hot audio", mode: NormalizeGuard, in: []float64{1.98, -0.5}, ceiling: 0.99, wantGain: 0.5},
		{name: "peak scales up", mode: NormalizePeak, in: []float64{0.25, -0.5}, ceiling: 1, wantGain: 2},
		{name: "peak ignores silence", mode: NormalizePeak, in: []float64{0, 0}, ceiling: 1, wantGain: 1},
		{name: "none", mode: NormalizeNone, in: []float64{3, -3}, ceiling: 1, wantGain: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Buffer{SampleRate: 8000, Channels: [][]float64{append([]float64(nil), tt.in...)}}
			gain, err := b.Normalize(tt.mode, tt.ceiling)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantGain, gain, 1e-12)
			for i, v := range tt.in {
				assert.InDelta(t, v*tt.wantGain, b.Channels[0][i], 1e-12)
			}
		})
	}
}

func TestNormalizeRejectsBadArguments(t *testing.T) {
	b := &Buffer{Channels: [][]float64{{0.5}}}
	for _, c := range []float64{0, -1, 1.5} {
		_, err := b.Normalize(NormalizePeak, c)
		assert.Error(t, err, "ceiling %g", c)
	}
	_, err := b.Normalize(NormalizeMode(9), 1)
	assert.Error(t, err)
}

func TestParseNormalizeMode(t *testing.T) {
	for _, m := range []NormalizeMode{NormalizeGuard, NormalizePeak, NormalizeNone} {
		got, err := ParseNormalizeMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseNormalizeMode(" PEAK ")
	require.NoError(t, err)
	assert.Equal(t, NormalizePeak, got)

	_, err = ParseNormalizeMode("loud")
	assert.Error(t, err)
}
