package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/pipeview/internal/metrics"
	"github.com/five82/pipeview/internal/pipecd"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/state"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// deploymentWatcher is the push side of the control plane client.
type deploymentWatcher interface {
	WatchDeployment(ctx context.Context, deploymentID string, onSnapshot func(pipeline.Deployment)) error
}

// runPoller refreshes the store until ctx is cancelled. Consecutive failures
// stretch the wait exponentially up to maxBackoff.
func runPoller(ctx context.Context, store *state.Store, fetcher pipecd.DeploymentFetcher, deploymentID string, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		refresh(ctx, store, fetcher, deploymentID)
		timer.Reset(calculateBackoff(store.Snapshot().ConsecutiveFailures, interval))
	}
}

func refresh(ctx context.Context, store *state.Store, fetcher pipecd.DeploymentFetcher, deploymentID string) {
	d, err := fetcher.FetchDeployment(ctx, deploymentID)
	if ctx.Err() != nil {
		return
	}
	metrics.SnapshotPolls.WithLabelValues(string(state.SourcePoll), metrics.Result(err)).Inc()
	if err != nil {
		store.Update(nil, state.SourcePoll, err)
		slog.Warn("deployment poll failed", "deployment", deploymentID, "error", err)
		return
	}
	store.Update(&d, state.SourcePoll, nil)
}

// runWatcher keeps a push subscription open next to the poller. Servers
// without the watch endpoint end it for the rest of the session; other
// failures reconnect with backoff.
func runWatcher(ctx context.Context, store *state.Store, watcher deploymentWatcher, deploymentID string, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	failures := 0
	for {
		received := false
		err := watcher.WatchDeployment(ctx, deploymentID, func(d pipeline.Deployment) {
			received = true
			metrics.SnapshotPolls.WithLabelValues(string(state.SourceWatch), "ok").Inc()
			store.Update(&d, state.SourceWatch, nil)
		})
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, pipecd.ErrWatchUnsupported) {
			slog.Info("deployment watch unavailable, polling only", "deployment", deploymentID)
			return nil
		}
		if received {
			failures = 0
		}
		failures++
		metrics.SnapshotPolls.WithLabelValues(string(state.SourceWatch), "error").Inc()
		wait := calculateBackoff(failures, interval)
		slog.Debug("deployment watch ended", "deployment", deploymentID, "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// calculateBackoff doubles base for every failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
