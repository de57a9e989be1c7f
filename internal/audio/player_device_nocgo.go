//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// DeviceAvailable always reports false without cgo.
func DeviceAvailable() bool {
	return false
}

// DevicePlayer is a stub for builds without cgo.
type DevicePlayer struct{}

// NewDevicePlayer returns a stub player.
func NewDevicePlayer(*log.Logger) *DevicePlayer {
	return &DevicePlayer{}
}

// Name returns "device".
func (p *DevicePlayer) Name() string {
	return PlayerDevice
}

// Play always fails without cgo.
func (p *DevicePlayer) Play(context.Context, string) error {
	return errors.New("audio not available in nocgo build")
}
