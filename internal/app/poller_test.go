package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/pipeview/internal/pipecd"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second},
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 64; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type stubFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *stubFetcher) FetchDeployment(_ context.Context, id string) (pipeline.Deployment, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return pipeline.Deployment{}, f.err
	}
	return pipeline.Deployment{ID: id, UpdatedAt: int64(n)}, nil
}

func TestRefreshRecordsSnapshotAndErrors(t *testing.T) {
	store := &state.Store{}
	ok := &stubFetcher{}
	refresh(context.Background(), store, ok, "dep-1")

	snap := store.Snapshot()
	if !snap.HasDeployment || snap.Deployment.ID != "dep-1" {
		t.Fatalf("snapshot = %+v, want deployment dep-1", snap)
	}
	if snap.Source != state.SourcePoll {
		t.Fatalf("source = %q, want poll", snap.Source)
	}

	failing := &stubFetcher{err: errors.New("connection refused")}
	refresh(context.Background(), store, failing, "dep-1")
	refresh(context.Background(), store, failing, "dep-1")

	snap = store.Snapshot()
	if !snap.IsOffline() {
		t.Fatalf("expected offline after two failures, got %d failures", snap.ConsecutiveFailures)
	}
	if snap.Deployment.ID != "dep-1" {
		t.Fatalf("deployment lost on failure: %+v", snap.Deployment)
	}
}

func TestRunPollerStopsOnCancel(t *testing.T) {
	store := &state.Store{}
	fetcher := &stubFetcher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runPoller(ctx, store, fetcher, "dep-1", 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for fetcher.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("poller made %d calls, want at least 3", fetcher.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runPoller returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

type stubWatcher struct {
	calls atomic.Int32
	err   error
	push  []pipeline.Deployment
}

func (w *stubWatcher) WatchDeployment(_ context.Context, _ string, onSnapshot func(pipeline.Deployment)) error {
	w.calls.Add(1)
	for _, d := range w.push {
		onSnapshot(d)
	}
	return w.err
}

func TestRunWatcherStopsWhenUnsupported(t *testing.T) {
	store := &state.Store{}
	w := &stubWatcher{err: pipecd.ErrWatchUnsupported}

	if err := runWatcher(context.Background(), store, w, "dep-1", time.Millisecond); err != nil {
		t.Fatalf("runWatcher returned %v", err)
	}
	if got := w.calls.Load(); got != 1 {
		t.Fatalf("watch calls = %d, want 1", got)
	}
}

func TestRunWatcherStoresPushedSnapshots(t *testing.T) {
	store := &state.Store{}
	w := &stubWatcher{
		err:  errors.New("watch closed by server"),
		push: []pipeline.Deployment{{ID: "dep-1", UpdatedAt: 7}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runWatcher(ctx, store, w, "dep-1", time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for w.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("watcher did not reconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runWatcher returned %v", err)
	}

	snap := store.Snapshot()
	if snap.Source != state.SourceWatch || snap.Deployment.UpdatedAt != 7 {
		t.Fatalf("snapshot = %+v, want pushed deployment", snap)
	}
}
