package audio

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// copyChunk is the number of samples moved per read.
const copyChunk = 8192

// Summary describes a concatenated file.
type Summary struct {
	Format Format
	Frames int
	Bytes  int64
}

// Concatenate joins the frames of the WAV files in paths, in order, into a
// single WAV file at output carrying the first file's format. All inputs
// must share that format. Nothing is resampled and no silence is inserted.
//
// The output is assembled next to its destination and renamed into place,
// so a failed call never leaves a partial file at output.
func Concatenate(paths []string, output string) (Summary, error) {
	if len(paths) == 0 {
		return Summary{}, ErrNoInput
	}

	format, err := ReadFormat(paths[0])
	if err != nil {
		return Summary{}, err
	}
	for _, p := range paths[1:] {
		f, err := ReadFormat(p)
		if err != nil {
			return Summary{}, err
		}
		if f != format {
			return Summary{}, fmt.Errorf("%w: %s is %s, want %s", ErrFormatMismatch, p, f, format)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return Summary{}, fmt.Errorf("create output: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := wav.NewEncoder(tmp, format.SampleRate, format.BitDepth, format.Channels, format.Encoding)
	var samples int
	for _, p := range paths {
		n, err := copyFrames(enc, p, format)
		if err != nil {
			return Summary{}, err
		}
		samples += n
	}
	if err := enc.Close(); err != nil {
		return Summary{}, fmt.Errorf("close wav encoder: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return Summary{}, err
	}
	if err := tmp.Close(); err != nil {
		return Summary{}, err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return Summary{}, fmt.Errorf("write output: %w", err)
	}
	committed = true

	return Summary{
		Format: format,
		Frames: samples / format.Channels,
		Bytes:  info.Size(),
	}, nil
}

// Inspect returns the format, frame count and size of the WAV file at path.
func Inspect(path string) (Summary, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close() //nolint:errcheck

	if err := d.FwdToPCM(); err != nil {
		return Summary{}, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return Summary{}, err
	}
	format := formatOf(d)
	frames := 0
	if size := format.FrameSize(); size > 0 {
		frames = int(d.PCMLen()) / size
	}
	return Summary{Format: format, Frames: frames, Bytes: info.Size()}, nil
}

// copyFrames streams every sample of path into enc and returns the number of
// samples copied.
func copyFrames(enc *wav.Encoder, path string, format Format) (int, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck

	buf := &goaudio.IntBuffer{
		Format:         format.audioFormat(),
		Data:           make([]int, copyChunk),
		SourceBitDepth: format.BitDepth,
	}
	total := 0
	for {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return total, fmt.Errorf("read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		chunk := &goaudio.IntBuffer{Format: buf.Format, Data: buf.Data[:n], SourceBitDepth: buf.SourceBitDepth}
		if err := enc.Write(chunk); err != nil {
			return total, fmt.Errorf("write %s: %w", path, err)
		}
		total += n
	}
	return total, nil
}
