package main

import (
	"log/slog"
	"os"

	"pixelview/internal/config"
	"pixelview/internal/telemetry"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel   string
	verbose    bool
	configPath string
	dotEnv     []string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pixelview",
		Short: "Inspect and compare raw pixel buffers",
		Long: `pixelview compares raw rgb888/rgba8888 pixel buffers and PNG files
pixel by pixel, reporting difference statistics, fail pixels and delta images.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(o.dotEnv...); err != nil {
				return err
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
				level = slog.LevelInfo
			}
			if o.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(telemetry.NewLogger(os.Stderr, level, true))

			slog.Debug("arguments", "command", cmd.Name(), "args", args)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", config.OrDefault("GO_LOG", "info"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Verbose output, same as --log-level debug")
	cmd.PersistentFlags().StringVar(&o.configPath, "config", config.OrDefault("PIXELVIEW_CONFIG", ""), "Colour configuration file (YAML or JSON)")
	cmd.PersistentFlags().StringSliceVar(&o.dotEnv, "env-file", nil, "Load environment variables from these files (default .env)")

	cmd.AddCommand(
		newVersionCmd(),
		newInfoCmd(),
		newPrintValCmd(),
		newGenCanvasCmd(),
		newGenConfigCmd(),
		newCompareCmd(o),
	)

	return cmd
}

// loadConfig returns the file named by --config, or the defaults.
func (o *rootOptions) loadConfig() (*config.File, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}
