package stagelog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/five82/pipeview/internal/ansilog"
	"github.com/five82/pipeview/internal/metrics"
	"github.com/five82/pipeview/internal/selection"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Options tunes a Scheduler.
type Options struct {
	// Interval between fetches while a stage runs.
	Interval time.Duration
	// Timeout bounds a single fetch.
	Timeout time.Duration
	// Notify is called after the log of key changed. It runs on the
	// scheduler's goroutine and must not block.
	Notify func(key selection.Key)
}

// Scheduler polls the log of the active key.
type Scheduler struct {
	fetcher Fetcher
	opts    Options

	mu  sync.Mutex
	cur *task
}

type task struct {
	ctx     context.Context
	cancel  context.CancelFunc
	key     selection.Key
	running bool

	log      StageLog
	maxIndex int64
	hasIndex bool
}

// NewScheduler returns an idle scheduler.
func NewScheduler(fetcher Fetcher, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Scheduler{fetcher: fetcher, opts: opts}
}

// Activate starts fetching key from offset 0 with a zero retry count,
// cancelling whatever was polled before. running tells the scheduler to keep
// polling after the first successful fetch.
func (s *Scheduler) Activate(ctx context.Context, key selection.Key, running bool) {
	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		ctx:     tctx,
		cancel:  cancel,
		key:     key,
		running: running,
		log:     StageLog{Key: key, Loading: true, Polling: true},
	}

	s.mu.Lock()
	if s.cur != nil {
		s.cur.cancel()
	}
	s.cur = t
	s.mu.Unlock()

	slog.Debug("stage log activated", "key", key.String(), "running", running)
	s.notify(key)
	go s.run(t)
}

// SetRunning updates the running flag of key. Once it turns false the
// scheduler performs at most one more fetch for the key.
func (s *Scheduler) SetRunning(key selection.Key, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil && s.cur.key.Same(key) {
		s.cur.running = running
	}
}

// Stop cancels polling and forgets the active key.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.cur.cancel()
		s.cur = nil
	}
}

// Active returns the key being polled.
func (s *Scheduler) Active() (selection.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return selection.Key{}, false
	}
	return s.cur.key, true
}

// Snapshot returns a copy of the log accumulated for key. It reports false
// when key is not the active key.
func (s *Scheduler) Snapshot(key selection.Key) (StageLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || !s.cur.key.Same(key) {
		return StageLog{Key: key}, false
	}
	out := s.cur.log
	out.Blocks = slices.Clone(s.cur.log.Blocks)
	out.Cells = slices.Clone(s.cur.log.Cells)
	return out, true
}

func (s *Scheduler) run(t *task) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if !s.poll(t) {
			return
		}
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll performs one fetch and reports whether polling should continue.
func (s *Scheduler) poll(t *task) bool {
	s.mu.Lock()
	if s.cur != t {
		s.mu.Unlock()
		return false
	}
	q := Query{
		DeploymentID: t.key.DeploymentID,
		StageID:      t.key.StageID,
		OffsetIndex:  t.maxIndex,
		RetriedCount: t.log.Retries,
	}
	wasRunning := t.running
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(t.ctx, s.opts.Timeout)
	start := time.Now()
	page, err := s.fetcher.FetchStageLog(ctx, q)
	cancel()
	metrics.LogFetchDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if s.cur != t || t.ctx.Err() != nil {
		s.mu.Unlock()
		metrics.LogFetches.WithLabelValues("discarded").Inc()
		slog.Debug("stale stage log response discarded", "key", t.key.String())
		return false
	}
	more := t.apply(page, err, wasRunning)
	if !more {
		t.log.Polling = false
	}
	s.mu.Unlock()

	s.notify(t.key)
	return more
}

// apply folds one response into the log and reports whether to fetch again.
// wasRunning is the running flag when the request was built: a stage that
// finished while the request was in flight gets one more fetch, since the
// response may predate its last blocks.
func (t *task) apply(page Page, err error, wasRunning bool) bool {
	finishedInFlight := wasRunning && !t.running
	if err != nil {
		t.log.Retries++
		if errors.Is(err, ErrNoLog) {
			metrics.LogFetches.WithLabelValues("not_found").Inc()
			t.log.Err = nil
			// A finished stage that never produced a log will not get one.
			if !t.running && !finishedInFlight {
				t.log.Loading = false
				return false
			}
			return true
		}
		metrics.LogFetches.WithLabelValues("error").Inc()
		slog.Debug("stage log fetch failed", "key", t.key.String(), "retries", t.log.Retries, "error", err)
		t.log.Err = err
		return true
	}

	metrics.LogFetches.WithLabelValues("ok").Inc()
	t.log.Err = nil
	t.log.Retries = 0
	t.log.Loading = false
	t.log.Completed = page.Completed
	t.merge(page.Blocks)
	if page.Completed {
		return false
	}
	return t.running || finishedInFlight
}

func (t *task) merge(blocks []Block) {
	if len(blocks) == 0 {
		return
	}
	sorted := slices.Clone(blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for _, b := range sorted {
		if t.hasIndex && b.Index <= t.maxIndex {
			continue
		}
		t.log.Blocks = append(t.log.Blocks, b)
		t.log.Cells = append(t.log.Cells, ansilog.Decode(b.Text))
		t.maxIndex = b.Index
		t.hasIndex = true
		metrics.LogBlocks.Inc()
	}
}

func (s *Scheduler) notify(key selection.Key) {
	if s.opts.Notify != nil {
		s.opts.Notify(key)
	}
}
