package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/deps"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Check the speech engine and audio players",
	Long:    paragraph(fmt.Sprintf("\n%s that the engine command can be found and list the audio players available for playback.", keyword("Check"))),
	Example: paragraph("kokoro-say doctor"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sd := deps.Standard(cfg.Engine.Command, cfg.Playback.Candidates)
		checkErr := sd.CheckAll(log.Default())
		fmt.Fprint(cmd.OutOrStdout(), sd.Report())

		player, err := audio.Detect(audio.DetectOptions{
			Player:     cfg.Playback.Player,
			Candidates: cfg.Playback.Candidates,
			Logger:     log.Default(),
		})
		switch {
		case err != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s %v\n", heading("player"), err)
		case player == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s none, segments will be streamed one after another\n", heading("player"))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n", heading("player"), player.Name())
		}
		return checkErr
	},
}
