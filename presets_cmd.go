package main

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/kokoro-say/internal/voice"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:     "presets",
	Short:   "List voice presets",
	Long:    paragraph(fmt.Sprintf("\n%s the built-in voice presets and those defined under %s in the config file.", keyword("List"), keyword("presets"))),
	Example: paragraph("kokoro-say presets\nkokoro-say --preset narrator \"Once upon a time.\""),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprint(cmd.OutOrStdout(), renderPresets(cfg.VoicePresets(), cfg.Voice.Preset))
		return nil
	},
}

// renderPresets formats presets as an aligned table, marking the default.
// Custom preset names may hold wide characters, so columns are padded by
// display width.
func renderPresets(presets voice.Presets, defaultPreset string) string {
	names := presets.Names()
	width, voiceWidth := len("name"), len("voice")
	for _, n := range names {
		width = max(width, runewidth.StringWidth(n))
		voiceWidth = max(voiceWidth, runewidth.StringWidth(presets[n].Voice))
	}
	row := func(name, v, lang string) string {
		return runewidth.FillRight(name, width) + "  " + runewidth.FillRight(v, voiceWidth) + "  " + lang
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", heading(row("name", "voice", "lang")))
	for _, n := range names {
		sel := presets[n]
		line := row(n, sel.Voice, sel.Language)
		if strings.EqualFold(n, defaultPreset) {
			line += "  " + keyword("(default)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
