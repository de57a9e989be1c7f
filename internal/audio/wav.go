package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV encodings.
const (
	EncodingPCM   = 1
	EncodingFloat = 3
)

var (
	// ErrNoInput is returned when concatenation is asked to merge nothing.
	ErrNoInput = errors.New("no audio files to concatenate")
	// ErrFormatMismatch is returned when input files differ in sample rate,
	// channel count, bit depth or encoding.
	ErrFormatMismatch = errors.New("audio format mismatch")
	// ErrInvalidWAV is returned for files that are not readable WAV audio.
	ErrInvalidWAV = errors.New("invalid WAV file")
)

// Format holds the parameters that must match for frames to be joined.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Encoding   int
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit/enc%d", f.SampleRate, f.Channels, f.BitDepth, f.Encoding)
}

// FrameSize returns the number of bytes per frame.
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns the play time of frames frames.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) audioFormat() *goaudio.Format {
	return &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate}
}

func formatOf(d *wav.Decoder) Format {
	return Format{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Encoding:   int(d.WavAudioFormat),
	}
}

// openWAV opens path and validates its header.
func openWAV(path string) (*os.File, *wav.Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		_ = f.Close()
		if derr := d.Err(); derr != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, derr)
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	return f, d, nil
}

// ReadFormat returns the format of the WAV file at path.
func ReadFormat(path string) (Format, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return Format{}, err
	}
	defer f.Close() //nolint:errcheck
	return formatOf(d), nil
}

// ReadSamples decodes every sample of the WAV file at path. Samples of all
// channels are interleaved.
func ReadSamples(path string) ([]int, Format, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close() //nolint:errcheck

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf.Data, formatOf(d), nil
}

// WriteFile encodes interleaved samples as a WAV file at path.
func WriteFile(path string, format Format, samples []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, format.Encoding)
	buf := &goaudio.IntBuffer{
		Format:         format.audioFormat(),
		Data:           samples,
		SourceBitDepth: format.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return f.Close()
}

// To16Bit rescales integer PCM samples of the given bit depth to 16 bits.
func To16Bit(samples []int, bitDepth int) []int {
	if bitDepth == 16 {
		return samples
	}
	out := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case bitDepth == 8:
			// 8-bit WAV is unsigned.
			out[i] = (s - 128) << 8
		case bitDepth > 16:
			out[i] = s >> (bitDepth - 16)
		default:
			out[i] = s << (16 - bitDepth)
		}
	}
	return out
}

// PCM16 converts 16-bit samples to little-endian bytes for device output.
func PCM16(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
