// Command sonido-coach runs the pitch tracker and coaching policy over audio
// files and prints one JSON report per file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-coach/config"
	"github.com/RyanBlaney/sonido-coach/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Error(err, "sonido-coach failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sonido-coach",
		Short:         "Real-time pitch tracking and singing coach",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	load := func() (*config.Config, error) {
		cfg := config.Default()
		if configPath != "" {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return nil, err
			}
		}
		logging.SetGlobalLogger(cfg.Log.NewLogger(os.Stderr))
		return cfg, nil
	}

	root.AddCommand(newAnalyzeCmd(load), newConfigCmd(load))
	return root
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
