package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
	"github.com/mattn/go-shellwords"
)

// DefaultCommand runs kokoro-tts through uv.
const DefaultCommand = "uv run kokoro-tts"

// Speech rate limits accepted by kokoro-tts.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// ErrSpeedOutOfRange is returned when speed is outside valid range.
var ErrSpeedOutOfRange = fmt.Errorf("speed must be between %.1f and %.1f", MinSpeed, MaxSpeed)

// KokoroConfig configures the kokoro-tts adapter.
type KokoroConfig struct {
	// Command is the engine command line, split with shell rules.
	Command string
	// Args are appended after the standard arguments.
	Args []string
	// Speed is the speech rate multiplier. Zero or 1 leaves the engine
	// default.
	Speed float64
	// Timeout bounds a single call. Zero means no limit.
	Timeout time.Duration
	// Logger receives debug output. Nil uses the default logger.
	Logger *log.Logger
}

// Kokoro invokes a kokoro-tts compatible command line. The segment text is
// written to stdin, and the command is called as
//
//	<command> - [output] --voice VOICE --lang LANG [--speed S] [--stream] [args...]
type Kokoro struct {
	argv    []string
	extra   []string
	speed   float64
	timeout time.Duration
	logger  *log.Logger
}

// NewKokoro parses the configured command line.
func NewKokoro(cfg KokoroConfig) (*Kokoro, error) {
	command := cfg.Command
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("engine command is empty")
	}
	if cfg.Speed != 0 && (cfg.Speed < MinSpeed || cfg.Speed > MaxSpeed) {
		return nil, fmt.Errorf("%w, got %g", ErrSpeedOutOfRange, cfg.Speed)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Kokoro{
		argv:    argv,
		extra:   cfg.Args,
		speed:   cfg.Speed,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Binary returns the executable the adapter runs.
func (k *Kokoro) Binary() string {
	return k.argv[0]
}

// CommandLine returns the argument vector used for req. The text itself is
// passed on stdin.
func (k *Kokoro) CommandLine(req Request) []string {
	args := make([]string, 0, len(k.argv)+len(k.extra)+9)
	args = append(args, k.argv...)
	args = append(args, "-")
	if !req.Streaming() {
		args = append(args, req.Output)
	}
	args = append(args, "--voice", req.Voice.Voice, "--lang", req.Voice.Language)
	if k.speed != 0 && k.speed != 1 {
		args = append(args, "--speed", strconv.FormatFloat(k.speed, 'f', -1, 64))
	}
	if req.Streaming() {
		args = append(args, "--stream")
	}
	return append(args, k.extra...)
}

// Available reports whether the engine binary can be found.
func (k *Kokoro) Available() error {
	_, err := subprocess.LookPath(k.Binary())
	return err
}

// Synthesize implements Synthesizer.
func (k *Kokoro) Synthesize(ctx context.Context, req Request) error {
	start := time.Now()
	err := subprocess.Run(ctx, subprocess.Options{
		Args:    k.CommandLine(req),
		Stdin:   strings.NewReader(req.Text),
		Timeout: k.timeout,
		Logger:  k.logger,
	})
	if err != nil {
		return err
	}
	k.logger.Debug("Synthesis completed",
		"voice", req.Voice,
		"stream", req.Streaming(),
		"chars", len([]rune(req.Text)),
		"duration", time.Since(start))
	return nil
}
