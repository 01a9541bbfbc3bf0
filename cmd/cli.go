// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"

	"spectra/internal/audio"
	"spectra/internal/config"
	applog "spectra/internal/log"
	"spectra/pkg/build"

	"github.com/spf13/cobra"
)

// options holds the flag values. Only flags the user actually set are
// copied over the loaded configuration.
type options struct {
	configPath string
	logLevel   string

	channels     int
	frameOrder   int
	overlapOrder int
	bypass       bool
	bitDepth     int
	bitRate      int

	inputDevice     int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	gate            bool
	gateThreshold   float64

	record    bool
	outputDir string

	udp       bool
	websocket bool

	tui bool

	schedule  string
	blockSize int
}

// overrides maps each config flag to the field it sets.
func (o *options) overrides(cfg *config.Config) map[string]func() {
	return map[string]func(){
		"log-level":         func() { cfg.LogLevel = o.logLevel },
		"channels":          func() { cfg.Engine.Channels = o.channels },
		"frame-order":       func() { cfg.Engine.FrameOrder = o.frameOrder },
		"overlap-order":     func() { cfg.Engine.OverlapOrder = o.overlapOrder },
		"bypass":            func() { cfg.Engine.Bypass = o.bypass },
		"bit-depth":         func() { cfg.Effect.BitDepth = o.bitDepth },
		"bit-rate":          func() { cfg.Effect.BitRate = o.bitRate },
		"input-device":      func() { cfg.Audio.InputDevice = o.inputDevice },
		"output-device":     func() { cfg.Audio.OutputDevice = o.outputDevice },
		"sample-rate":       func() { cfg.Audio.SampleRate = o.sampleRate },
		"frames-per-buffer": func() { cfg.Audio.FramesPerBuffer = o.framesPerBuffer },
		"low-latency":       func() { cfg.Audio.LowLatency = o.lowLatency },
		"record":            func() { cfg.Recording.Enabled = o.record },
		"output-dir":        func() { cfg.Recording.OutputDir = o.outputDir },
		"udp":               func() { cfg.Transport.UDPEnabled = o.udp },
		"websocket":         func() { cfg.Transport.WebSocketEnabled = o.websocket },
	}
}

// loadConfig reads the configuration file and environment, then applies
// the flags that were set on cmd.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	for name, apply := range o.overrides(cfg) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !applog.SetLevelString(cfg.LogLevel) {
		applog.Warnf("unknown log level %q, keeping %s", cfg.LogLevel, applog.GetLevel())
	}
	return cfg, nil
}

// NewRootCommand builds the command tree. Output of one-off commands goes
// to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	return newRootCommand(out, &options{})
}

func newRootCommand(out io.Writer, o *options) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg, o)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Configuration shared by every command.
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "C", "",
		"Path to a YAML configuration file (default: ./spectra.yaml or ./config.yaml)")
	pf.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn or error")

	// Engine Configuration
	pf.IntVarP(&o.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to process (1=mono, 2=stereo)")
	pf.IntVarP(&o.frameOrder, "frame-order", "f", config.DefaultFrameOrder,
		"Initial STFT frame order; the frame is 2^order samples")
	pf.IntVar(&o.overlapOrder, "overlap-order", config.DefaultOverlapOrder,
		"Initial overlap order; frames overlap 2^order times")
	pf.BoolVar(&o.bypass, "bypass", config.DefaultBypass,
		"Start with spectral processing bypassed")
	pf.IntVar(&o.bitDepth, "bit-depth", config.Default().Effect.BitDepth,
		"Bit-crusher magnitude depth in bits (1-16)")
	pf.IntVar(&o.bitRate, "bit-rate", config.Default().Effect.BitRate,
		"Bit-crusher bin hold factor (1-25)")

	// Audio Device Configuration
	f := rootCmd.Flags()
	f.IntVarP(&o.inputDevice, "input-device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	f.IntVar(&o.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	f.Float64VarP(&o.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&o.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency and switch granularity)")
	f.BoolVarP(&o.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	f.BoolVar(&o.gate, "gate", false,
		"Enable the input noise gate")
	f.Float64Var(&o.gateThreshold, "gate-threshold", audio.DefaultGateThreshold,
		"Noise gate threshold (0.0-1.0)")

	// Recording Configuration
	f.BoolVarP(&o.record, "record", "r", false,
		"Record the processed output to a WAV file")
	f.StringVar(&o.outputDir, "output-dir", config.DefaultOutputDir,
		"Directory for recordings")

	// Monitoring
	f.BoolVar(&o.udp, "udp", false, "Send spectrum packets over UDP")
	f.BoolVar(&o.websocket, "websocket", false, "Serve engine status over WebSocket")
	f.BoolVarP(&o.tui, "tui", "t", true, "Show the interactive control screen")

	rootCmd.AddCommand(newListCommand(out), newProcessCommand(out, o), newVersionCommand(out))
	return rootCmd
}

func newListCommand(out io.Writer) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(out, interactive)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "tui", "t", false, "Browse devices interactively")
	return cmd
}

func newProcessCommand(out io.Writer, o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <input.wav> <output.wav>",
		Short: "Process a WAV file offline",
		Long: "Process a PCM WAV file through the engine. --switch schedules frame order\n" +
			"changes as sample:frame[:overlapOrder] entries, where frame is an order or a\n" +
			"power-of-two size, e.g. --switch 44100:12,88200:1024",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runProcess(cmd.Context(), out, cfg, o, args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&o.schedule, "switch", "", "Scheduled settings changes")
	cmd.Flags().IntVar(&o.blockSize, "block-size", audio.DefaultBlockSize, "Frames per processing block")
	return cmd
}

func newVersionCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(out, build.GetBuildFlags())
		},
	}
}

// Execute runs the command line in args until ctx is done.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	rootCmd := NewRootCommand(out)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
