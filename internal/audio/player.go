package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
	"github.com/mattn/go-shellwords"
)

// Player names with special meaning in configuration.
const (
	PlayerAuto   = "auto"
	PlayerNone   = "none"
	PlayerDevice = "device"
)

// ErrNoPlayer is returned when a specific player was requested but cannot be
// used.
var ErrNoPlayer = errors.New("audio player not available")

// Player plays an audio file and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, path string) error
	Name() string
}

// DefaultCandidates lists the external players in preference order. The file
// path is appended to each command line.
func DefaultCandidates() []string {
	return []string{
		"afplay",
		"paplay",
		"aplay -q",
		"ffplay -nodisp -autoexit -loglevel quiet",
	}
}

// CommandPlayer plays files through an external command.
type CommandPlayer struct {
	argv   []string
	logger *log.Logger
}

// NewCommandPlayer parses a player command line such as "aplay -q".
func NewCommandPlayer(command string, logger *log.Logger) (*CommandPlayer, error) {
	argv, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("player command is empty")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CommandPlayer{argv: argv, logger: logger}, nil
}

// Name returns the player executable.
func (p *CommandPlayer) Name() string {
	return p.argv[0]
}

// Available reports whether the player executable is in PATH.
func (p *CommandPlayer) Available() bool {
	_, err := subprocess.LookPath(p.argv[0])
	return err == nil
}

// Play runs the player on path. A non-zero exit yields a
// *subprocess.StatusError.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	args := append(append([]string{}, p.argv...), path)
	return subprocess.Run(ctx, subprocess.Options{Args: args, Logger: p.logger})
}

// DetectOptions controls player selection.
type DetectOptions struct {
	// Player is "auto" (or empty), "none", "device", the name of a
	// candidate executable, or a full command line.
	Player string
	// Candidates overrides DefaultCandidates.
	Candidates []string
	Logger     *log.Logger
}

// Detect selects the player for a run. With "auto" the first available
// candidate wins, and the in-process device player is tried last. A nil
// Player with a nil error means no player is available and audio must be
// streamed by the engine itself.
func Detect(opts DetectOptions) (Player, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}

	choice := strings.TrimSpace(opts.Player)
	switch strings.ToLower(choice) {
	case PlayerNone:
		logger.Debug("Player disabled by configuration")
		return nil, nil
	case PlayerDevice:
		if !DeviceAvailable() {
			return nil, fmt.Errorf("%w: %s", ErrNoPlayer, PlayerDevice)
		}
		return NewDevicePlayer(logger), nil
	case "", PlayerAuto:
		for _, c := range candidates {
			p, err := NewCommandPlayer(c, logger)
			if err != nil {
				logger.Warn("Ignoring player candidate", "candidate", c, "error", err)
				continue
			}
			if p.Available() {
				logger.Debug("Player selected", "player", p.Name(), "reason", "auto")
				return p, nil
			}
		}
		if DeviceAvailable() {
			logger.Debug("Player selected", "player", PlayerDevice, "reason", "auto")
			return NewDevicePlayer(logger), nil
		}
		logger.Debug("No player available")
		return nil, nil
	}

	// A candidate name picks that candidate's full command line.
	for _, c := range candidates {
		if fields := strings.Fields(c); len(fields) > 0 && fields[0] == choice {
			choice = c
			break
		}
	}
	p, err := NewCommandPlayer(choice, logger)
	if err != nil {
		return nil, err
	}
	if !p.Available() {
		return nil, fmt.Errorf("%w: %s", ErrNoPlayer, p.Name())
	}
	logger.Debug("Player selected", "player", p.Name(), "reason", "configured")
	return p, nil
}
