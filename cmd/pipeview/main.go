package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/pipeview/internal/app"
	"github.com/five82/pipeview/internal/logging"
)

var version = "dev"

func main() {
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pipeview: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		prefsPath  string
		poll       time.Duration
		debug      bool
	)

	root := &cobra.Command{
		Use:           "pipeview <deployment-id>",
		Short:         "Watch a deployment pipeline in the terminal",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath:   configPath,
				PrefsPath:    prefsPath,
				DeploymentID: args[0],
				PollEvery:    poll,
				Debug:        debug,
			})
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.Flags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/pipeview/config.toml)")
	root.Flags().StringVar(&prefsPath, "prefs", "", "Preferences file path (default ~/.config/pipeview/prefs.toml)")
	root.Flags().DurationVar(&poll, "poll", 0, "Deployment refresh interval (overrides the config file)")

	root.AddCommand(fixtureCmd(&debug))
	root.AddCommand(decodeCmd())
	return root
}
