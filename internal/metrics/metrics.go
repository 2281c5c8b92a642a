// Package metrics exposes prometheus counters for the viewer's background
// work: snapshot polling, stage log fetches and stage commands.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pipeview"

var (
	// SnapshotPolls counts deployment snapshot refreshes.
	// Labels: source (poll, watch), result (ok, error)
	SnapshotPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "refreshes_total",
		Help:      "Deployment snapshot refreshes by source and result",
	}, []string{"source", "result"})

	// LogFetches counts stage log fetches.
	// Labels: result (ok, error, not_found, discarded)
	LogFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stagelog",
		Name:      "fetches_total",
		Help:      "Stage log fetches by result",
	}, []string{"result"})

	// LogFetchDuration measures stage log fetch latency.
	LogFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stagelog",
		Name:      "fetch_duration_seconds",
		Help:      "Stage log fetch latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// LogBlocks counts log blocks merged into the active stage log.
	LogBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stagelog",
		Name:      "blocks_total",
		Help:      "Log blocks appended to the active stage log",
	})

	// StageCommands counts approve and skip commands.
	// Labels: action (approve, skip), result (ok, error)
	StageCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "commands",
		Name:      "sent_total",
		Help:      "Stage commands sent by action and result",
	}, []string{"action", "result"})
)

// Result maps an error to the ok/error label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the listener.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
