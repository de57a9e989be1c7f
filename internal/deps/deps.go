// Package deps checks the external programs kokoro-say relies on.
package deps

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
)

// ErrMissingDependency is returned by CheckAll when a required program is
// not installed.
var ErrMissingDependency = errors.New("missing required dependencies")

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Name         string
	Required     bool
	Installed    bool
	Path         string
	Error        error
	Instructions string
}

// DependencyChecker checks one dependency.
type DependencyChecker interface {
	Check() DependencyStatus
}

// SystemDependencies runs checkers in registration order.
type SystemDependencies struct {
	checkers []DependencyChecker
	Results  []DependencyStatus
}

// NewSystemDependencies creates an empty checker set.
func NewSystemDependencies() *SystemDependencies {
	return &SystemDependencies{}
}

// AddChecker registers a checker.
func (sd *SystemDependencies) AddChecker(checker DependencyChecker) {
	sd.checkers = append(sd.checkers, checker)
}

// CheckAll runs every checker and fails if a required dependency is missing.
func (sd *SystemDependencies) CheckAll(logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	sd.Results = sd.Results[:0]
	var missing []string
	for _, checker := range sd.checkers {
		status := checker.Check()
		sd.Results = append(sd.Results, status)

		switch {
		case status.Required && !status.Installed:
			missing = append(missing, status.Name)
			logger.Error("Missing required dependency",
				"name", status.Name,
				"instructions", status.Instructions)
		case status.Installed:
			logger.Debug("Dependency found",
				"name", status.Name,
				"path", status.Path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Report renders the results of the last CheckAll.
func (sd *SystemDependencies) Report() string {
	var report strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)
	installedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	missingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	optionalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	report.WriteString(titleStyle.Render("kokoro-say dependency check"))
	report.WriteString("\n\n")

	for _, status := range sd.Results {
		switch {
		case status.Installed:
			report.WriteString(installedStyle.Render(fmt.Sprintf("  ✓ %s: ", status.Name)))
			report.WriteString(status.Path + "\n")
		case status.Required:
			report.WriteString(missingStyle.Render(fmt.Sprintf("  ✗ %s: ", status.Name)))
			report.WriteString("Not installed\n")
		default:
			report.WriteString(optionalStyle.Render(fmt.Sprintf("  ○ %s: ", status.Name)))
			report.WriteString("Not installed (optional)\n")
		}
		if !status.Installed && status.Instructions != "" {
			report.WriteString(fmt.Sprintf("    %s\n", status.Instructions))
		}
	}
	return report.String()
}

// EngineChecker checks that the engine command can be started.
type EngineChecker struct {
	Command string
}

func (c EngineChecker) Check() DependencyStatus {
	status := DependencyStatus{Name: "engine", Required: true, Instructions: engineInstructions()}
	k, err := engine.NewKokoro(engine.KokoroConfig{Command: c.Command})
	if err != nil {
		status.Error = err
		return status
	}
	status.Name = "engine (" + k.Binary() + ")"
	path, err := subprocess.LookPath(k.Binary())
	if err != nil {
		status.Error = err
		return status
	}
	status.Installed = true
	status.Path = path
	return status
}

func engineInstructions() string {
	return "Install with: uv tool install kokoro-tts\n    Or set engine.command in the config file"
}

// PlayerChecker checks one external player. Players are optional: without
// any, audio is streamed by the engine.
type PlayerChecker struct {
	Command string
}

func (c PlayerChecker) Check() DependencyStatus {
	status := DependencyStatus{Name: c.Command}
	p, err := audio.NewCommandPlayer(c.Command, nil)
	if err != nil {
		status.Error = err
		return status
	}
	status.Name = p.Name()
	path, err := subprocess.LookPath(p.Name())
	if err != nil {
		status.Error = err
		status.Instructions = playerInstructions(p.Name())
		return status
	}
	status.Installed = true
	status.Path = path
	return status
}

func playerInstructions(name string) string {
	switch name {
	case "afplay":
		if runtime.GOOS == "darwin" {
			return "Ships with macOS"
		}
		return "Only available on macOS"
	case "paplay":
		return "Install PulseAudio utilities (pulseaudio-utils)"
	case "aplay":
		return "Install ALSA utilities (alsa-utils)"
	case "ffplay":
		switch runtime.GOOS {
		case "darwin":
			return "Install with: brew install ffmpeg"
		default:
			return "Install ffmpeg from your package manager"
		}
	}
	return ""
}

// DeviceChecker reports whether the in-process device player can be used.
type DeviceChecker struct{}

func (DeviceChecker) Check() DependencyStatus {
	status := DependencyStatus{Name: audio.PlayerDevice}
	if audio.DeviceAvailable() {
		status.Installed = true
		status.Path = "built-in (" + runtime.GOOS + ")"
		return status
	}
	status.Instructions = "No sound device found, or built without cgo"
	return status
}

// Standard returns the checkers for an engine command and player candidates.
func Standard(engineCommand string, candidates []string) *SystemDependencies {
	sd := NewSystemDependencies()
	sd.AddChecker(EngineChecker{Command: engineCommand})
	for _, c := range candidates {
		sd.AddChecker(PlayerChecker{Command: c})
	}
	sd.AddChecker(DeviceChecker{})
	return sd
}
