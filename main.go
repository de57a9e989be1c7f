// Package main provides the entry point for the kokoro-say CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kokoro-say/internal/audio"
	"github.com/dgnsrekt/kokoro-say/internal/config"
	"github.com/dgnsrekt/kokoro-say/internal/engine"
	"github.com/dgnsrekt/kokoro-say/internal/input"
	"github.com/dgnsrekt/kokoro-say/internal/pipeline"
	"github.com/dgnsrekt/kokoro-say/internal/segment"
	"github.com/dgnsrekt/kokoro-say/internal/voice"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	outputPath   string
	voiceFlag    string
	langFlag     string
	presetFlag   string
	enFemale     bool
	enMale       bool
	zhFemale     bool
	zhMale       bool
	markdown     bool
	useClipboard bool
	dryRun       bool
	debug        bool

	cfg      config.Config
	logClose = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "kokoro-say [TEXT|FILE|-]",
		Short: "Speak text aloud with kokoro-tts",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text aloud with kokoro-tts, %s.", keyword("without waiting for the whole text")) +
				"\n\nLong text is split into segments. The first is streamed while the next is synthesized in the background, so playback starts right away.",
		),
		Example: paragraph("kokoro-say \"Hello world.\"\nkokoro-say --zh_f notes.txt\nkokoro-say -o speech.wav README.md\ncat notes.txt | kokoro-say"),
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
		RunE: execute,
	}
)

// initConfig reads the config file and environment, then sets up logging.
// The config command still runs with an invalid file so it can be fixed.
func initConfig(cmd *cobra.Command) error {
	e, err := config.ParseEnv()
	if err != nil {
		return err
	}
	if _, err := setupLog("", debug || e.Debug); err != nil {
		return fmt.Errorf("unable to set up logging: %w", err)
	}

	used, err := config.Setup(viper.GetViper(), configFile, e, log.Default())
	if err != nil {
		return err
	}
	if configFile == "" && viper.ConfigFileUsed() == "" {
		configFile = used
		if err := config.EnsureFile(used); err != nil {
			log.Error("Could not create default configuration", "error", err)
		}
	}

	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		if cmd != configCmd {
			return err
		}
		log.Warn("Ignoring invalid configuration", "error", err)
		cfg = config.Default()
	}

	logFile := e.LogFile
	if logFile == "" {
		logFile = cfg.Log.File
	}
	closer, err := setupLog(logFile, debug || cfg.Debug || e.Debug)
	if err != nil {
		return fmt.Errorf("unable to set up logging: %w", err)
	}
	logClose = closer
	return nil
}

func stdinIsPipe() (bool, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		return false, nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// presetName picks the preset from flags and config. Later flags win:
// --en_f, --en_m, --zh_f, --zh_m, then --preset.
func presetName(configured string) string {
	name := configured
	for _, f := range []struct {
		set  bool
		name string
	}{
		{enFemale, voice.EnglishFemale},
		{enMale, voice.EnglishMale},
		{zhFemale, voice.ChineseFemale},
		{zhMale, voice.ChineseMale},
		{presetFlag != "", presetFlag},
	} {
		if f.set {
			name = f.name
		}
	}
	return name
}

func execute(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}

	opts := input.Options{Markdown: markdown, Clipboard: useClipboard}
	if arg == "-" {
		opts.Stdin = os.Stdin
	} else if arg == "" {
		if piped, err := stdinIsPipe(); err != nil {
			return err
		} else if piped {
			opts.Stdin = os.Stdin
		}
	}
	if arg == "" && opts.Stdin == nil && !useClipboard {
		return cmd.Help()
	}

	text, err := input.Resolve(arg, opts)
	if err != nil {
		return err
	}

	sel, err := cfg.VoicePresets().Resolve(voice.Request{
		Voice:    voiceFlag,
		Language: langFlag,
		Preset:   presetName(cfg.Voice.Preset),
		Sample:   text.Content,
	})
	if err != nil {
		return err
	}
	segments := segment.Split(text.Content, cfg.Segment.MaxChars)
	log.Debug("Input resolved",
		"origin", text.Origin,
		"chars", humanize.Comma(int64(len([]rune(text.Content)))),
		"segments", len(segments),
		"voice", sel)

	if dryRun {
		return printPlan(cmd.OutOrStdout(), sel, segments)
	}

	eng, err := engine.NewKokoro(engine.KokoroConfig{
		Command: cfg.Engine.Command,
		Args:    cfg.Engine.Args,
		Speed:   cfg.Engine.Speed,
		Timeout: cfg.Engine.Timeout,
		Logger:  log.Default(),
	})
	if err != nil {
		return err
	}
	if err := eng.Available(); err != nil {
		return fmt.Errorf("%w (run '%s doctor')", err, config.Name)
	}

	opt := pipeline.Options{
		Engine:   eng,
		Voice:    sel,
		WorkDir:  cfg.Workspace.Dir,
		Logger:   log.Default(),
		Progress: reportStep,
	}

	if outputPath != "" {
		p := pipeline.New(opt)
		summary, err := p.Save(cmd.Context(), segments, outputPath)
		if err != nil {
			return err
		}
		fields := []interface{}{"file", outputPath, "size", humanize.Bytes(uint64(summary.Bytes))} //nolint:gosec
		if summary.Frames > 0 {
			fields = append(fields, "duration", summary.Format.Duration(summary.Frames))
		}
		log.Info("Saved", fields...)
		return nil
	}

	player, err := audio.Detect(audio.DetectOptions{
		Player:     cfg.Playback.Player,
		Candidates: cfg.Playback.Candidates,
		Logger:     log.Default(),
	})
	if err != nil {
		return err
	}
	opt.Player = player
	return pipeline.New(opt).Speak(cmd.Context(), segments)
}

// reportStep logs progress before each synthesis or playback step.
func reportStep(s pipeline.Step) {
	msg := fmt.Sprintf("[%d/%d] %s", s.Index, s.Total, s.Mode)
	preview := truncate.StringWithTail(s.Text, 48, "…")
	switch s.Mode {
	case pipeline.ModePrefetch:
		log.Debug(msg, "text", preview)
	case pipeline.ModeConcatenate:
		log.Info(msg)
	default:
		log.Info(msg, "text", preview)
	}
}

func printPlan(w io.Writer, sel voice.Selection, segments []string) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", heading("voice"), sel); err != nil {
		return err
	}
	for i, s := range segments {
		if _, err := fmt.Fprintf(w, "%s %s\n", faint(fmt.Sprintf("%3d", i+1)), s); err != nil {
			return err
		}
	}
	return nil
}

// describeError turns err into a log message and key/value pairs.
func describeError(err error) (string, []interface{}) {
	var se *pipeline.SegmentError
	if errors.As(err, &se) {
		fields := []interface{}{"segment", fmt.Sprintf("%d/%d", se.Index, se.Total), "stage", se.Stage}
		if se.Status >= 0 {
			fields = append(fields, "status", se.Status)
		}
		if se.Err != nil {
			fields = append(fields, "error", se.Err)
		}
		return fmt.Sprintf("Segment %d %s", se.Index, se.Kind), fields
	}
	if errors.Is(err, context.Canceled) {
		return "Interrupted", nil
	}
	return "Error", []interface{}{"error", err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		msg, fields := describeError(err)
		log.Error(msg, fields...)
		_ = logClose()
		os.Exit(1)
	}
	_ = logClose()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/kokoro-say/kokoro-say.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "save audio to a file instead of playing it")
	rootCmd.Flags().StringVar(&voiceFlag, "voice", "", "voice identifier, e.g. af_sarah")
	rootCmd.Flags().StringVar(&langFlag, "lang", "", "language code, e.g. en-us or cmn")
	rootCmd.Flags().StringVar(&presetFlag, "preset", "", "named voice preset (see 'kokoro-say presets')")
	rootCmd.Flags().BoolVar(&enFemale, "en_f", false, "English female preset")
	rootCmd.Flags().BoolVar(&enMale, "en_m", false, "English male preset")
	rootCmd.Flags().BoolVar(&zhFemale, "zh_f", false, "Chinese female preset")
	rootCmd.Flags().BoolVar(&zhMale, "zh_m", false, "Chinese male preset")
	rootCmd.Flags().Int("max-chars", segment.DefaultMaxChars, "maximum characters per segment")
	rootCmd.Flags().Float64("speed", 1.0, "speech rate between 0.5 and 2.0")
	rootCmd.Flags().String("player", audio.PlayerAuto, "audio player: auto, none, device, or a command")
	rootCmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "read the input as markdown")
	rootCmd.Flags().BoolVar(&useClipboard, "clipboard", false, "speak the clipboard contents")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the voice and segments without speaking")

	_ = viper.BindPFlag("segment.max_chars", rootCmd.Flags().Lookup("max-chars"))
	_ = viper.BindPFlag("engine.speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("playback.player", rootCmd.Flags().Lookup("player"))

	rootCmd.AddCommand(configCmd, doctorCmd, presetsCmd, manCmd)
}
