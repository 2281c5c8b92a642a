package fixture

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/stagelog"
)

var (
	// ErrUnknownStage is returned for commands naming a stage that does not exist.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrConflict is returned when a command does not fit the stage's state.
	ErrConflict = errors.New("stage not in a state that accepts the command")
)

// Simulation advances a scenario deployment one step at a time. It is safe
// for concurrent use.
type Simulation struct {
	mu sync.Mutex

	deployment pipeline.Deployment
	kinds      map[string]pipeline.Kind
	pending    map[string][]string
	fail       map[string]bool
	logs       map[string][]stagelog.Block
	now        func() time.Time
}

// NewSimulation starts a scenario. Stages listed as running begin emitting
// on the first step.
func NewSimulation(sc Scenario) *Simulation {
	s := &Simulation{
		kinds:   make(map[string]pipeline.Kind, len(sc.Stages)),
		pending: make(map[string][]string, len(sc.Stages)),
		fail:    make(map[string]bool),
		logs:    make(map[string][]stagelog.Block, len(sc.Stages)),
		now:     time.Now,
	}

	stages := make([]pipeline.Stage, 0, len(sc.Stages))
	for i, spec := range sc.Stages {
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		stages = append(stages, pipeline.Stage{
			ID:                 spec.ID,
			Name:               name,
			Desc:               spec.Desc,
			Index:              i,
			Requires:           slices.Clone(spec.Requires),
			Visible:            !spec.Hidden,
			Status:             spec.Status,
			Metadata:           maps.Clone(spec.Metadata),
			AvailableOperation: spec.Operation,
		})
		s.pending[spec.ID] = slices.Clone(spec.Log)
		if spec.Fail {
			s.fail[spec.ID] = true
		}
	}
	for _, st := range pipeline.Classify(stages, sc.ApprovalStage) {
		s.kinds[st.ID] = st.Kind
		if st.AvailableOperation == pipeline.OperationSkip {
			stages[st.Index].AvailableOperation = pipeline.OperationSkip
		}
	}

	s.deployment = pipeline.Deployment{
		ID:              sc.Deployment.ID,
		ApplicationID:   sc.Deployment.ApplicationID,
		ApplicationName: sc.Deployment.ApplicationName,
		Summary:         sc.Deployment.Summary,
		Stages:          stages,
	}
	s.refreshStatus()
	return s
}

// Deployment returns a copy of the current snapshot.
func (s *Simulation) Deployment() pipeline.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Logs returns the blocks of a stage with Index >= offset. Completed is set
// once the stage is terminal.
func (s *Simulation) Logs(stageID string, offset int64) (stagelog.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stage(stageID)
	if st == nil {
		return stagelog.Page{}, fmt.Errorf("%s: %w", stageID, ErrUnknownStage)
	}
	var page stagelog.Page
	for _, b := range s.logs[stageID] {
		if b.Index >= offset {
			page.Blocks = append(page.Blocks, b)
		}
	}
	page.Completed = st.Status.Terminal()
	return page, nil
}

// Approve completes a running approval stage.
func (s *Simulation) Approve(stageID, approver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stage(stageID)
	if st == nil {
		return fmt.Errorf("%s: %w", stageID, ErrUnknownStage)
	}
	if !st.Status.Running() || s.kinds[stageID] != pipeline.KindApproval {
		return fmt.Errorf("approve %s (%s): %w", stageID, st.Status.Label(), ErrConflict)
	}
	if st.Metadata == nil {
		st.Metadata = map[string]string{}
	}
	st.Metadata[pipeline.MetadataApprovedBy] = approver
	s.appendLog(stageID, "approved by "+approver, stagelog.SeveritySuccess)
	st.Status = pipeline.StageSuccess
	s.refreshStatus()
	return nil
}

// Skip ends a running skippable stage.
func (s *Simulation) Skip(stageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stage(stageID)
	if st == nil {
		return fmt.Errorf("%s: %w", stageID, ErrUnknownStage)
	}
	if !st.Status.Running() || st.AvailableOperation != pipeline.OperationSkip {
		return fmt.Errorf("skip %s (%s): %w", stageID, st.Status.Label(), ErrConflict)
	}
	s.appendLog(stageID, "skipped by user", stagelog.SeverityInfo)
	st.Status = pipeline.StageSkipped
	s.pending[stageID] = nil
	s.refreshStatus()
	return nil
}

// Step advances the simulation and reports whether anything changed.
func (s *Simulation) Step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	stages := s.deployment.Stages
	for i := range stages {
		st := &stages[i]
		if !st.Status.Running() || s.kinds[st.ID] == pipeline.KindApproval {
			continue
		}
		if lines := s.pending[st.ID]; len(lines) > 0 {
			s.appendLog(st.ID, lines[0], stagelog.SeverityInfo)
			s.pending[st.ID] = lines[1:]
			changed = true
			continue
		}
		if s.fail[st.ID] {
			s.appendLog(st.ID, "\x1b[1;31mstage failed\x1b[0m", stagelog.SeverityError)
			st.Status = pipeline.StageFailure
		} else {
			st.Status = pipeline.StageSuccess
		}
		changed = true
	}

	if !s.failed() {
		for i := range stages {
			st := &stages[i]
			if st.Status == pipeline.StageNotStarted && s.ready(st) {
				st.Status = pipeline.StageRunning
				if s.kinds[st.ID] == pipeline.KindApproval {
					s.appendLog(st.ID, "waiting for approval", stagelog.SeverityInfo)
				}
				changed = true
			}
		}
	}

	if changed {
		s.refreshStatus()
	}
	return changed
}

// ready reports whether every known requirement of st finished successfully.
func (s *Simulation) ready(st *pipeline.Stage) bool {
	for _, id := range st.Requires {
		req := s.stage(id)
		if req == nil {
			continue
		}
		if req.Status != pipeline.StageSuccess && req.Status != pipeline.StageSkipped {
			return false
		}
	}
	return true
}

func (s *Simulation) failed() bool {
	for _, st := range s.deployment.Stages {
		if st.Status == pipeline.StageFailure {
			return true
		}
	}
	return false
}

func (s *Simulation) refreshStatus() {
	d := &s.deployment
	switch {
	case s.failed():
		d.Status = pipeline.DeploymentFailure
	case s.allTerminal():
		d.Status = pipeline.DeploymentSuccess
	default:
		d.Status = pipeline.DeploymentRunning
	}
	now := s.now().Unix()
	if now <= d.UpdatedAt {
		now = d.UpdatedAt + 1
	}
	d.UpdatedAt = now
}

func (s *Simulation) allTerminal() bool {
	for _, st := range s.deployment.Stages {
		if !st.Status.Terminal() {
			return false
		}
	}
	return true
}

func (s *Simulation) appendLog(stageID, text string, severity stagelog.Severity) {
	blocks := s.logs[stageID]
	s.logs[stageID] = append(blocks, stagelog.Block{
		Index:     int64(len(blocks)),
		Text:      text,
		Severity:  severity,
		CreatedAt: s.now().Unix(),
	})
}

func (s *Simulation) stage(id string) *pipeline.Stage {
	for i := range s.deployment.Stages {
		if s.deployment.Stages[i].ID == id {
			return &s.deployment.Stages[i]
		}
	}
	return nil
}

func (s *Simulation) snapshot() pipeline.Deployment {
	d := s.deployment
	d.Stages = make([]pipeline.Stage, len(s.deployment.Stages))
	for i, st := range s.deployment.Stages {
		st.Requires = slices.Clone(st.Requires)
		st.Metadata = maps.Clone(st.Metadata)
		d.Stages[i] = st
	}
	return d
}
