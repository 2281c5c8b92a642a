package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/pipeview/internal/config"
	"github.com/five82/pipeview/internal/logging"
	"github.com/five82/pipeview/internal/metrics"
	"github.com/five82/pipeview/internal/pipecd"
	"github.com/five82/pipeview/internal/prefs"
	"github.com/five82/pipeview/internal/state"
	"github.com/five82/pipeview/internal/ui"
)

// Options configure the pipeview application.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/pipeview/prefs.toml
	DeploymentID string
	PollEvery    time.Duration // zero uses the config value
	Debug        bool
}

// Run boots the pipeview TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	deploymentID := strings.TrimSpace(opts.DeploymentID)
	if deploymentID == "" {
		return errors.New("deployment id is required")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if opts.Debug {
		level = logging.LevelDebug
	}
	logFile, err := logging.ConfigureFile(level, cfg.LogFilePath())
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := pipecd.NewClient(cfg.APIAddress, cfg.APIToken)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}
	slog.Info("pipeview starting", "api", client.BaseURL(), "deployment", deploymentID)

	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = opts.PollEvery
	}

	store := &state.Store{}

	// Populate the store before the UI draws its first frame.
	refresh(ctx, store, client, deploymentID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runPoller(gctx, store, client, deploymentID, interval)
	})
	g.Go(func() error {
		return runWatcher(gctx, store, client, deploymentID, interval)
	})
	g.Go(func() error {
		if err := metrics.Serve(gctx, cfg.MetricsAddress); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Background loops run until the UI exits.
		defer cancel()
		return ui.Run(ui.Options{
			Context:      gctx,
			Store:        store,
			Logs:         client,
			Commander:    client,
			DeploymentID: deploymentID,
			Config:       &cfg,
			PollTick:     interval,
			ThemeName:    userPrefs.Theme,
			Follow:       userPrefs.Follow,
			PrefsPath:    opts.PrefsPath,
		})
	})
	return g.Wait()
}
