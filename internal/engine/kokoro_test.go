package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/subprocess"
	"github.com/dgnsrekt/kokoro-say/internal/voice"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(&strings.Builder{}, log.Options{Level: log.ErrorLevel})
}

func TestCommandLine(t *testing.T) {
	k, err := NewKokoro(KokoroConfig{Command: `uv run "kokoro-tts"`, Args: []string{"--format", "wav"}})
	if err != nil {
		t.Fatalf("NewKokoro() error = %v", err)
	}
	sel := voice.Selection{Voice: "af_sarah", Language: "en-us"}

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "to file",
			req:  Request{Text: "hi", Voice: sel, Output: "/tmp/out.wav"},
			want: []string{"uv", "run", "kokoro-tts", "-", "/tmp/out.wav", "--voice", "af_sarah", "--lang", "en-us", "--format", "wav"},
		},
		{
			name: "stream",
			req:  Request{Text: "hi", Voice: sel},
			want: []string{"uv", "run", "kokoro-tts", "-", "--voice", "af_sarah", "--lang", "en-us", "--stream", "--format", "wav"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.CommandLine(tt.req)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("CommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandLineSpeed(t *testing.T) {
	sel := voice.Selection{Voice: "zf_xiaoxiao", Language: "cmn"}
	tests := []struct {
		speed float64
		want  string
	}{
		{0, "kokoro-tts - --voice zf_xiaoxiao --lang cmn --stream"},
		{1, "kokoro-tts - --voice zf_xiaoxiao --lang cmn --stream"},
		{1.25, "kokoro-tts - --voice zf_xiaoxiao --lang cmn --speed 1.25 --stream"},
		{0.5, "kokoro-tts - --voice zf_xiaoxiao --lang cmn --speed 0.5 --stream"},
	}

	for _, tt := range tests {
		k, err := NewKokoro(KokoroConfig{Command: "kokoro-tts", Speed: tt.speed})
		if err != nil {
			t.Fatalf("NewKokoro(speed %g) error = %v", tt.speed, err)
		}
		if got := strings.Join(k.CommandLine(Request{Text: "你好", Voice: sel}), " "); got != tt.want {
			t.Errorf("speed %g: CommandLine() = %q, want %q", tt.speed, got, tt.want)
		}
	}
}

func TestNewKokoroSpeedOutOfRange(t *testing.T) {
	for _, speed := range []float64{0.25, 2.5, -1} {
		if _, err := NewKokoro(KokoroConfig{Speed: speed}); !errors.Is(err, ErrSpeedOutOfRange) {
			t.Errorf("NewKokoro(speed %g) error = %v, want ErrSpeedOutOfRange", speed, err)
		}
	}
}

func TestNewKokoroDefaults(t *testing.T) {
	k, err := NewKokoro(KokoroConfig{})
	if err != nil {
		t.Fatalf("NewKokoro() error = %v", err)
	}
	if k.Binary() != "uv" {
		t.Errorf("Binary() = %q, want uv", k.Binary())
	}
}

func TestNewKokoroBadCommand(t *testing.T) {
	if _, err := NewKokoro(KokoroConfig{Command: `kokoro "unterminated`}); err == nil {
		t.Error("NewKokoro() should fail on an unterminated quote")
	}
}

// writeScript creates an executable shell script standing in for the engine.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "fake-kokoro")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSynthesizeWritesOutputFromStdin(t *testing.T) {
	// $2 is the output path; the text arrives on stdin.
	script := writeScript(t, `cat > "$2"`+"\n")
	k, err := NewKokoro(KokoroConfig{Command: script, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "seg.wav")
	req := Request{Text: "Hello world.", Voice: voice.Selection{Voice: "af_sarah", Language: "en-us"}, Output: out}
	if err := k.Synthesize(context.Background(), req); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if string(data) != "Hello world." {
		t.Errorf("output = %q, want the segment text", data)
	}
}

func TestSynthesizeExitStatus(t *testing.T) {
	script := writeScript(t, "echo 'voice not found' >&2\nexit 3\n")
	k, err := NewKokoro(KokoroConfig{Command: script, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	err = k.Synthesize(context.Background(), Request{Text: "x"})
	var se *subprocess.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Synthesize() error = %v, want *subprocess.StatusError", err)
	}
	if se.Status != 3 {
		t.Errorf("Status = %d, want 3", se.Status)
	}
	if !strings.Contains(err.Error(), "voice not found") {
		t.Errorf("error %q should include the stderr tail", err)
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")
	k, err := NewKokoro(KokoroConfig{Command: script, Timeout: 50 * time.Millisecond, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err = k.Synthesize(context.Background(), Request{Text: "x"})
	if err == nil {
		t.Fatal("Synthesize() should fail on timeout")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout was not enforced")
	}
}
