//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

const (
	devicePoll       = 10 * time.Millisecond
	deviceReadyLimit = 5 * time.Second
)

// oto allows a single context per process, so it is shared and created with
// the format of the first file played.
var device struct {
	mu     sync.Mutex
	ctx    *oto.Context
	format Format
}

// DeviceAvailable reports whether an audio output device is likely present.
func DeviceAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		data, err := os.ReadFile("/proc/asound/cards")
		if err != nil {
			return false
		}
		cards := strings.TrimSpace(string(data))
		return cards != "" && !strings.Contains(cards, "no soundcards")
	}
	return false
}

// DevicePlayer plays WAV files directly on the sound device.
type DevicePlayer struct {
	logger *log.Logger
}

// NewDevicePlayer returns a player writing to the default output device.
func NewDevicePlayer(logger *log.Logger) *DevicePlayer {
	if logger == nil {
		logger = log.Default()
	}
	return &DevicePlayer{logger: logger}
}

// Name returns "device".
func (p *DevicePlayer) Name() string {
	return PlayerDevice
}

// Play decodes path and blocks until the device has played it or ctx is done.
func (p *DevicePlayer) Play(ctx context.Context, path string) error {
	samples, format, err := ReadSamples(path)
	if err != nil {
		return err
	}
	if format.Encoding != EncodingPCM {
		return fmt.Errorf("%w: %s is not integer PCM", ErrInvalidWAV, path)
	}
	format16 := Format{SampleRate: format.SampleRate, Channels: format.Channels, BitDepth: 16, Encoding: EncodingPCM}

	otoCtx, err := deviceContext(format16)
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(bytes.NewReader(PCM16(To16Bit(samples, format.BitDepth))))
	defer player.Close() //nolint:errcheck

	start := time.Now()
	player.Play()
	ticker := time.NewTicker(devicePoll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("device playback: %w", err)
	}
	p.logger.Debug("Device playback finished", "file", path, "duration", time.Since(start))
	return nil
}

func deviceContext(format Format) (*oto.Context, error) {
	device.mu.Lock()
	defer device.mu.Unlock()

	if device.ctx != nil {
		if device.format != format {
			return nil, fmt.Errorf("%w: device opened at %s, file is %s", ErrFormatMismatch, device.format, format)
		}
		return device.ctx, nil
	}

	options := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	switch runtime.GOOS {
	case "darwin":
		options.BufferSize = 100 * time.Millisecond
	case "windows":
		options.BufferSize = 80 * time.Millisecond
	default:
		options.BufferSize = 50 * time.Millisecond
	}

	otoCtx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(deviceReadyLimit):
		return nil, fmt.Errorf("audio context initialization timeout")
	}
	device.ctx = otoCtx
	device.format = format
	return otoCtx, nil
}
