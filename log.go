package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/config"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
)

// setupLog configures the default logger. Messages go to stderr; with a log
// file they are also appended there. It returns a function closing the file.
func setupLog(logFile string, debug bool) (func() error, error) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetPrefix(config.Name)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	if logFile == "" {
		return func() error { return nil }, nil
	}
	if logFile == "auto" {
		dir, err := gap.NewScope(gap.User, config.Name).CacheDir()
		if err != nil {
			return nil, err
		}
		logFile = filepath.Join(dir, config.Name+".log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetColorProfile(termenv.Ascii)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
