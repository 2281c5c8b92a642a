// Package viewer ties the pipeline views, the active stage, the command
// confirmation flows and the stage log scheduler together for one viewer.
//
// A Session is driven from a single event loop. Only the log scheduler does
// I/O; it runs on its own goroutine and reports back through Options.Notify.
package viewer

import (
	"context"
	"log/slog"

	"github.com/five82/pipeview/internal/approval"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/selection"
	"github.com/five82/pipeview/internal/stagelog"
)

// Options configures a Session.
type Options struct {
	Fetcher       stagelog.Fetcher
	ApprovalStage string
	Policy        pipeline.RequirePolicy
	Log           stagelog.Options
}

// Session owns the tracker, both confirmation flows and the log scheduler.
type Session struct {
	ctx context.Context

	approvalStage string
	policy        pipeline.RequirePolicy

	deployment pipeline.Deployment
	loaded     bool
	graph      pipeline.Graph

	tracker *selection.Tracker
	approve *approval.Flow
	skip    *approval.Flow
	logs    *stagelog.Scheduler
}

// NewSession builds an empty session. ctx bounds every log fetch.
func NewSession(ctx context.Context, opts Options) *Session {
	s := &Session{
		ctx:           ctx,
		approvalStage: opts.ApprovalStage,
		policy:        opts.Policy,
		approve:       approval.NewApprovalFlow(),
		skip:          approval.NewSkipFlow(),
		logs:          stagelog.NewScheduler(opts.Fetcher, opts.Log),
	}
	s.tracker = selection.NewTracker(s)
	return s
}

// Load applies a fresh deployment snapshot: stages are classified, the graph
// is rebuilt, the tracker re-evaluates the default stage and the scheduler
// learns whether the active stage still runs.
func (s *Session) Load(d pipeline.Deployment) {
	d.Stages = pipeline.Classify(d.Stages, s.approvalStage)
	s.deployment = d
	s.loaded = true
	s.graph = pipeline.BuildGraph(d.Stages, pipeline.GraphOptions{Policy: s.policy})
	if len(s.graph.Unplaced) > 0 {
		slog.Debug("stages left out of the pipeline graph", "deployment", d.ID, "stages", s.graph.Unplaced)
	}

	s.expirePending(d)

	key, ok := s.tracker.Load(d.ID, d.Stages)
	if !ok || key.DeploymentID != d.ID {
		return
	}
	if st, found := d.Stage(key.StageID); found {
		s.logs.SetRunning(key, !st.Status.Terminal())
	}
}

// expirePending drops a confirmation whose stage left the state that made it
// eligible, so a stale dialog cannot send a command.
func (s *Session) expirePending(d pipeline.Deployment) {
	for _, f := range []*approval.Flow{s.approve, s.skip} {
		id, ok := f.Pending()
		if !ok {
			continue
		}
		st, found := d.Stage(id)
		if found && f.Request(st) == nil {
			continue
		}
		slog.Debug("pending confirmation expired", "action", f.Action().String(), "stage", id)
		f.Cancel()
	}
}

// Loaded reports whether any deployment has been loaded.
func (s *Session) Loaded() bool {
	return s.loaded
}

// Deployment returns the classified deployment last loaded.
func (s *Session) Deployment() pipeline.Deployment {
	return s.deployment
}

// Graph returns the layered view of the last loaded deployment.
func (s *Session) Graph() pipeline.Graph {
	return s.graph
}

// Select makes a stage active on user request.
func (s *Session) Select(stageID string) error {
	_, err := s.tracker.Select(stageID)
	return err
}

// Close clears the active stage and stops its log.
func (s *Session) Close() {
	s.tracker.Close()
}

// Active returns the active key.
func (s *Session) Active() (selection.Key, bool) {
	return s.tracker.Active()
}

// ActiveStage returns the latest snapshot of the active stage.
func (s *Session) ActiveStage() (pipeline.Stage, bool) {
	key, ok := s.tracker.Active()
	if !ok || key.DeploymentID != s.deployment.ID {
		return pipeline.Stage{}, false
	}
	return s.deployment.Stage(key.StageID)
}

// ActiveLog returns the accumulated log of the active stage.
func (s *Session) ActiveLog() (stagelog.StageLog, bool) {
	key, ok := s.tracker.Active()
	if !ok {
		return stagelog.StageLog{}, false
	}
	return s.logs.Snapshot(key)
}

// Approval returns the approve confirmation flow.
func (s *Session) Approval() *approval.Flow {
	return s.approve
}

// Skip returns the skip confirmation flow.
func (s *Session) Skip() *approval.Flow {
	return s.skip
}

// Shutdown stops background log polling.
func (s *Session) Shutdown() {
	s.logs.Stop()
}

// StageActivated starts the log for a newly active stage.
func (s *Session) StageActivated(key selection.Key, st pipeline.Stage) {
	slog.Debug("stage activated", "key", key.String(), "status", st.Status.String())
	s.logs.Activate(s.ctx, key, !st.Status.Terminal())
}

// StageCleared stops the log of the stage that was active.
func (s *Session) StageCleared(prev selection.Key) {
	slog.Debug("stage cleared", "key", prev.String())
	s.logs.Stop()
}
