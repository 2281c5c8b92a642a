package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/five82/pipeview/internal/fixture"
	"github.com/five82/pipeview/internal/logging"
)

func fixtureCmd(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Run a simulated control plane for demos and offline work",
	}
	cmd.AddCommand(fixtureServeCmd(debug))
	return cmd
}

func fixtureServeCmd(debug *bool) *cobra.Command {
	var (
		listen string
		step   time.Duration
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "serve <scenario.yaml>",
		Short: "Serve a scenario over the deployment API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if *debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}

			path := args[0]
			sc, err := fixture.Load(path)
			if err != nil {
				return err
			}
			srv := fixture.NewServer(fixture.NewSimulation(sc))
			slog.Info("scenario loaded", "path", path, "deployment", sc.Deployment.ID, "stages", len(sc.Stages))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return fixture.Serve(ctx, listen, srv.Handler())
			})
			g.Go(func() error {
				srv.Run(ctx, step)
				return nil
			})
			if watch {
				g.Go(func() error {
					return fixture.WatchFile(ctx, path, func(sc fixture.Scenario) {
						srv.Replace(fixture.NewSimulation(sc))
					})
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:9090", "Address to listen on")
	cmd.Flags().DurationVar(&step, "step", time.Second, "Simulation step interval")
	cmd.Flags().BoolVar(&watch, "watch", true, "Restart the simulation when the scenario file changes")
	return cmd
}
