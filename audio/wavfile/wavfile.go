package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/cwbudde/wavpitch/dsp/dither"
)

var (
	// ErrNotFound reports a missing input file.
	ErrNotFound = errors.New("wavfile: file not found")
	// ErrUnsupported reports a valid WAV file in an encoding this package
	// cannot handle, such as IEEE float or compressed samples.
	ErrUnsupported = errors.New("wavfile: unsupported format")
	// ErrInvalid reports data that is not a readable WAV stream.
	ErrInvalid = errors.New("wavfile: invalid WAV data")
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE

	// offset of the SubFormat GUID in an extensible fmt chunk
	subFormatOffset = 24

	// 8-bit PCM is unsigned around this midpoint
	unsigned8Offset = 128

	// frames per decode/encode block
	blockFrames = 4096
)

// SupportedBitDepth reports whether bits is a PCM depth Load and Save handle.
func SupportedBitDepth(bits int) bool {
	return bits == 8 || bits == 16 || bits == 24 || bits == 32
}

// fullScale maps [-1, +1] onto the signed integer range of bits, matching
// dither.Quantizer so that decode followed by an undithered encode is exact.
func fullScale(bits int) float64 {
	return math.Exp2(float64(bits-1)) - 0.5
}

// Load reads the WAV file at path.
func Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("wavfile: open %s: %w", path, err)
	}
	defer f.Close()

	buf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Decode reads a complete WAV stream. Integer PCM is accepted both with the
// plain format tag and inside WAVE_FORMAT_EXTENSIBLE.
func Decode(r io.ReadSeeker) (*Buffer, error) {
	format, err := formatCode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header or fmt chunk: %w", ErrInvalid, err)
	}
	if format != formatPCM {
		return nil, fmt.Errorf("%w: audio format %#x, only integer PCM (1) is supported",
			ErrUnsupported, format)
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header or fmt chunk", ErrInvalid)
	}
	bits := int(dec.BitDepth)
	if !SupportedBitDepth(bits) {
		return nil, fmt.Errorf("%w: %d-bit samples, want 8, 16, 24 or 32", ErrUnsupported, bits)
	}
	chans := int(dec.NumChans)
	if chans == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalid, chans, dec.SampleRate)
	}

	out := &Buffer{
		SampleRate: int(dec.SampleRate),
		BitDepth:   bits,
		Channels:   make([][]float64, chans),
	}

	scale := fullScale(bits)
	offset := 0
	if bits == 8 {
		offset = unsigned8Offset
	}
	block := &audio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, blockFrames*chans),
		SourceBitDepth: bits,
	}
	for {
		n, err := dec.PCMBuffer(block)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: reading samples: %w", ErrInvalid, err)
		}
		for i, v := range block.Data[:n] {
			ch := i % chans
			out.Channels[ch] = append(out.Channels[ch], (float64(v-offset)+0.5)/scale)
		}
		if n == 0 || err != nil {
			break
		}
	}

	// A truncated final frame leaves the leading channels one sample longer.
	frames := len(out.Channels[chans-1])
	for ch := range out.Channels {
		out.Channels[ch] = out.Channels[ch][:frames:frames]
	}
	return out, nil
}

type saveConfig struct {
	bitDepth int
	dither   dither.DitherType
	shaping  dither.Preset
	rng      *rand.Rand
}

// SaveOption configures Save and Encode.
type SaveOption func(*saveConfig) error

// WithBitDepth sets the output PCM depth (8, 16, 24 or 32). By default the
// buffer's own BitDepth is used, or 16 if it has none.
func WithBitDepth(bits int) SaveOption {
	return func(c *saveConfig) error {
		if !SupportedBitDepth(bits) {
			return fmt.Errorf("%w: output bit depth %d, want 8, 16, 24 or 32", ErrUnsupported, bits)
		}
		c.bitDepth = bits
		return nil
	}
}

// WithDither sets the dither noise added before quantization. The default is
// triangular.
func WithDither(dt dither.DitherType) SaveOption {
	return func(c *saveConfig) error {
		if !dt.Valid() {
			return fmt.Errorf("wavfile: invalid dither type %v", dt)
		}
		c.dither = dt
		return nil
	}
}

// WithNoiseShaping sets the FIR noise-shaping preset. The default is 9FC.
func WithNoiseShaping(p dither.Preset) SaveOption {
	return func(c *saveConfig) error {
		if !p.Valid() {
			return fmt.Errorf("wavfile: invalid noise shaping preset %v", p)
		}
		c.shaping = p
		return nil
	}
}

// WithRNG makes the dither noise reproducible.
func WithRNG(rng *rand.Rand) SaveOption {
	return func(c *saveConfig) error {
		c.rng = rng
		return nil
	}
}

// Save writes buf to path, replacing any existing file. A partially written
// file is removed on failure.
func Save(path string, buf *Buffer, opts ...SaveOption) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavfile: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("wavfile: close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := Encode(f, buf, opts...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Encode writes buf as a PCM WAV stream.
func Encode(w io.WriteSeeker, buf *Buffer, opts ...SaveOption) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	cfg := saveConfig{
		bitDepth: buf.BitDepth,
		dither:   dither.DitherTriangular,
		shaping:  dither.Preset9FC,
	}
	if !SupportedBitDepth(cfg.bitDepth) {
		cfg.bitDepth = 16
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return err
		}
	}

	chans := buf.NumChannels()
	quantizers := make([]*dither.Quantizer, chans)
	for ch := range quantizers {
		qopts := []dither.Option{
			dither.WithBitDepth(cfg.bitDepth),
			dither.WithDitherType(cfg.dither),
			dither.WithNoiseShaping(cfg.shaping),
		}
		if cfg.rng != nil {
			qopts = append(qopts, dither.WithRNG(cfg.rng))
		}
		q, err := dither.NewQuantizer(qopts...)
		if err != nil {
			return fmt.Errorf("wavfile: quantizer: %w", err)
		}
		quantizers[ch] = q
	}

	enc := wav.NewEncoder(w, buf.SampleRate, cfg.bitDepth, chans, formatPCM)
	block := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: buf.SampleRate},
		Data:           make([]int, blockFrames*chans),
		SourceBitDepth: cfg.bitDepth,
	}
	scratch := make([]int, blockFrames)
	offset := 0
	if cfg.bitDepth == 8 {
		offset = unsigned8Offset
	}

	frames := buf.Frames()
	if frames == 0 {
		// the encoder emits its header on the first write
		if err := enc.Write(&audio.IntBuffer{Format: block.Format, SourceBitDepth: cfg.bitDepth}); err != nil {
			return fmt.Errorf("wavfile: write header: %w", err)
		}
	}
	for start := 0; start < frames; start += blockFrames {
		n := min(blockFrames, frames-start)
		block.Data = block.Data[:n*chans]
		for ch, q := range quantizers {
			q.ProcessBlock(scratch[:n], buf.Channels[ch][start:start+n])
			for i, v := range scratch[:n] {
				block.Data[i*chans+ch] = v + offset
			}
		}
		if err := enc.Write(block); err != nil {
			return fmt.Errorf("wavfile: write samples: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: finalize header: %w", err)
	}
	return nil
}

// formatCode returns the audio format of the stream's fmt chunk, resolving
// WAVE_FORMAT_EXTENSIBLE to its SubFormat code. r is rewound afterwards.
func formatCode(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	defer func() { _, _ = r.Seek(0, io.SeekStart) }()

	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	if p.Format != riff.WavFormatID {
		return 0, fmt.Errorf("RIFF form %q", p.Format[:])
	}
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, err
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		body := make([]byte, min(ch.Size, subFormatOffset+2))
		if _, err := io.ReadFull(ch, body); err != nil {
			return 0, err
		}
		if len(body) < 2 {
			return 0, fmt.Errorf("fmt chunk of %d bytes", ch.Size)
		}
		format := binary.LittleEndian.Uint16(body)
		if format != formatExtensible {
			return format, nil
		}
		if len(body) < subFormatOffset+2 {
			return 0, fmt.Errorf("extensible fmt chunk of %d bytes", ch.Size)
		}
		return binary.LittleEndian.Uint16(body[subFormatOffset:]), nil
	}
}
