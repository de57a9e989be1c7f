// Package voice resolves which voice and language a run speaks with.
package voice

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Built-in preset names.
const (
	EnglishFemale = "en_f"
	EnglishMale   = "en_m"
	ChineseFemale = "zh_f"
	ChineseMale   = "zh_m"
)

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown voice preset")

// Selection is the voice identifier and language code used for a run.
type Selection struct {
	Voice    string `yaml:"voice" mapstructure:"voice"`
	Language string `yaml:"lang" mapstructure:"lang"`
}

func (s Selection) String() string {
	return s.Voice + "/" + s.Language
}

// Presets maps preset names to selections.
type Presets map[string]Selection

// DefaultPresets returns the built-in presets.
func DefaultPresets() Presets {
	return Presets{
		EnglishFemale: {Voice: "af_sarah", Language: "en-us"},
		EnglishMale:   {Voice: "am_adam", Language: "en-us"},
		ChineseFemale: {Voice: "zf_xiaoxiao", Language: "cmn"},
		ChineseMale:   {Voice: "zm_yunjian", Language: "cmn"},
	}
}

// Merge returns the built-in presets overlaid with extra. Preset names are
// case-insensitive.
func (p Presets) Merge(extra Presets) Presets {
	out := make(Presets, len(p)+len(extra))
	for name, sel := range p {
		out[strings.ToLower(name)] = sel
	}
	for name, sel := range extra {
		name = strings.ToLower(name)
		base := out[name]
		if sel.Voice != "" {
			base.Voice = sel.Voice
		}
		if sel.Language != "" {
			base.Language = sel.Language
		}
		out[name] = base
	}
	return out
}

// Lookup returns the named preset. The error for an unknown name suggests
// close matches.
func (p Presets) Lookup(name string) (Selection, error) {
	sel, ok := p[strings.ToLower(name)]
	if !ok {
		if similar := p.Similar(name); len(similar) > 0 {
			return Selection{}, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownPreset, name, strings.Join(similar, ", "))
		}
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return sel, nil
}

// Similar returns up to three preset names fuzzy-matching name, best first.
func (p Presets) Similar(name string) []string {
	matches := fuzzy.Find(strings.ToLower(name), p.Names())
	var out []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Request holds what the caller asked for. Empty fields mean "not given".
type Request struct {
	// Voice and Language are explicit overrides.
	Voice    string
	Language string
	// Preset is the named preset, if any.
	Preset string
	// Sample is the text used for script detection.
	Sample string
}

// Resolve picks the selection for a run. Explicit voice and language win
// over the preset, the preset over script detection, and script detection
// over the English female default. Voice and language are overridden
// independently.
func (p Presets) Resolve(req Request) (Selection, error) {
	var base Selection
	switch {
	case req.Preset != "":
		sel, err := p.Lookup(req.Preset)
		if err != nil {
			return Selection{}, err
		}
		base = sel
	case IsIdeographic(req.Sample):
		base = p.fallback(ChineseFemale)
	default:
		base = p.fallback(EnglishFemale)
	}

	if req.Voice != "" {
		base.Voice = req.Voice
	}
	if req.Language != "" {
		base.Language = req.Language
	}
	return base, nil
}

func (p Presets) fallback(name string) Selection {
	if sel, ok := p[name]; ok {
		return sel
	}
	return DefaultPresets()[name]
}
