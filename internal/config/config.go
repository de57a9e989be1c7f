// Package config loads kokoro-say settings from the config file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/segment"
	"github.com/dgnsrekt/kokoro-say/internal/voice"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// Name is used for the config file, the config directory and the env prefix.
const Name = "kokoro-say"

// ErrInvalidConfig is returned when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting.
type Config struct {
	Segment   SegmentConfig   `mapstructure:"segment" yaml:"segment"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Playback  PlaybackConfig  `mapstructure:"playback" yaml:"playback"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Voice     VoiceConfig     `mapstructure:"voice" yaml:"voice"`
	Presets   voice.Presets   `mapstructure:"presets" yaml:"presets"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Debug     bool            `mapstructure:"debug" yaml:"debug"`
}

// SegmentConfig controls text splitting.
type SegmentConfig struct {
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
}

// EngineConfig controls the synthesis command.
type EngineConfig struct {
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Speed   float64       `mapstructure:"speed" yaml:"speed"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PlaybackConfig controls player selection.
type PlaybackConfig struct {
	Player     string   `mapstructure:"player" yaml:"player"`
	Candidates []string `mapstructure:"candidates" yaml:"candidates"`
}

// WorkspaceConfig controls where temporary audio is written.
type WorkspaceConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// VoiceConfig sets the default preset.
type VoiceConfig struct {
	Preset string `mapstructure:"preset" yaml:"preset"`
}

// LogConfig sets the log file.
type LogConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Segment:  SegmentConfig{MaxChars: segment.DefaultMaxChars},
		Engine:   EngineConfig{Command: engine.DefaultCommand, Args: []string{}, Speed: 1.0, Timeout: 5 * time.Minute},
		Playback: PlaybackConfig{Player: audio.PlayerAuto, Candidates: audio.DefaultCandidates()},
		Presets:  voice.Presets{},
	}
}

// SetDefaults registers the built-in values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("segment.max_chars", d.Segment.MaxChars)
	v.SetDefault("engine.command", d.Engine.Command)
	v.SetDefault("engine.args", d.Engine.Args)
	v.SetDefault("engine.speed", d.Engine.Speed)
	v.SetDefault("engine.timeout", d.Engine.Timeout)
	v.SetDefault("playback.player", d.Playback.Player)
	v.SetDefault("playback.candidates", d.Playback.Candidates)
	v.SetDefault("workspace.dir", "")
	v.SetDefault("voice.preset", "")
	v.SetDefault("log.file", "")
	v.SetDefault("debug", false)
}

// Env holds process-level switches read straight from the environment.
type Env struct {
	Debug         bool   `env:"KOKORO_SAY_DEBUG"`
	LogFile       string `env:"KOKORO_SAY_LOG_FILE"`
	ConfigHome    string `env:"KOKORO_SAY_CONFIG_HOME"`
	XDGConfigHome string `env:"XDG_CONFIG_HOME"`
}

// ParseEnv reads Env.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// SearchDirs returns the directories searched for the config file, most
// specific first.
func SearchDirs(e Env) ([]string, error) {
	scope := gap.NewScope(gap.User, Name)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	if e.XDGConfigHome != "" {
		dirs = append([]string{filepath.Join(e.XDGConfigHome, Name)}, dirs...)
	}
	if e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}
	return dirs, nil
}

// Setup prepares v to read the config file and KOKORO_SAY_* variables. With
// an explicit file only that file is read. It returns the file in use, or
// the path where a default file belongs when none was found.
func Setup(v *viper.Viper, file string, e Env, logger *log.Logger) (string, error) {
	if logger == nil {
		logger = log.Default()
	}
	SetDefaults(v)
	v.SetEnvPrefix(strings.ReplaceAll(Name, "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return "", err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return path, fmt.Errorf("could not parse configuration file: %w", err)
		}
		return path, nil
	}

	dirs, err := SearchDirs(e)
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(Name)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn("Could not parse configuration file", "err", err)
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("Using configuration file", "path", used)
		return used, nil
	}
	return filepath.Join(dirs[0], Name+".yml"), nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Workspace.Dir != "" {
		dir, err := homedir.Expand(cfg.Workspace.Dir)
		if err != nil {
			return Config{}, fmt.Errorf("%w: workspace.dir: %v", ErrInvalidConfig, err)
		}
		cfg.Workspace.Dir = dir
	}
	if cfg.Log.File != "" {
		file, err := homedir.Expand(cfg.Log.File)
		if err != nil {
			return Config{}, fmt.Errorf("%w: log.file: %v", ErrInvalidConfig, err)
		}
		cfg.Log.File = file
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and references.
func (c Config) Validate() error {
	if c.Segment.MaxChars <= 0 {
		return fmt.Errorf("%w: segment.max_chars must be positive, got %d", ErrInvalidConfig, c.Segment.MaxChars)
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("%w: engine.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Engine.Speed < engine.MinSpeed || c.Engine.Speed > engine.MaxSpeed {
		return fmt.Errorf("%w: engine.speed: %v, got %g", ErrInvalidConfig, engine.ErrSpeedOutOfRange, c.Engine.Speed)
	}
	if strings.TrimSpace(c.Engine.Command) == "" {
		return fmt.Errorf("%w: engine.command is empty", ErrInvalidConfig)
	}
	for name, sel := range c.Presets {
		if name == "" {
			return fmt.Errorf("%w: preset with empty name", ErrInvalidConfig)
		}
		if sel.Voice == "" && sel.Language == "" {
			return fmt.Errorf("%w: preset %q sets neither voice nor lang", ErrInvalidConfig, name)
		}
	}
	if c.Voice.Preset != "" {
		if _, err := c.VoicePresets().Lookup(c.Voice.Preset); err != nil {
			return fmt.Errorf("%w: voice.preset: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// VoicePresets returns the built-in presets overlaid with configured ones.
func (c Config) VoicePresets() voice.Presets {
	return voice.DefaultPresets().Merge(c.Presets)
}
