package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// keyComments documents the keys of the generated config file.
var keyComments = map[string]string{
	"segment":    "Text splitting",
	"max_chars":  "maximum characters per segment",
	"engine":     "Speech engine",
	"command":    "engine command line; text is passed on stdin",
	"args":       "extra arguments appended to every engine call",
	"speed":      "speech rate, 0.5 to 2.0",
	"timeout":    "limit for a single engine call (0 disables it)",
	"playback":   "Audio playback",
	"player":     "auto, none, device, or a player command such as \"aplay -q\"",
	"candidates": "players tried in order when player is auto",
	"workspace":  "Temporary audio files",
	"dir":        "parent directory for per-run workspaces (default: system temp dir)",
	"voice":      "Voice selection",
	"preset":     "default preset when no voice flag is given",
	"presets":    "custom presets, e.g. narrator: {voice: bm_george, lang: en-gb}",
	"log":        "Logging",
	"file":       "log file (default: user cache dir)",
	"debug":      "verbose logging",
}

// DefaultFile renders the default configuration as commented YAML.
func DefaultFile() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	annotate(&doc)

	var buf bytes.Buffer
	buf.WriteString("# kokoro-say configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func annotate(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if c, ok := keyComments[n.Content[i].Value]; ok {
				n.Content[i].HeadComment = c
			}
		}
	}
	for _, c := range n.Content {
		annotate(c)
	}
}

// EnsureFile writes the default configuration to path unless a file is
// already there.
func EnsureFile(path string) error {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}
		data, err := DefaultFile()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
