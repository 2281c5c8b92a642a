// Package selection tracks the single active stage of the viewer.
package selection

import (
	"errors"
	"fmt"

	"github.com/five82/pipeview/internal/pipeline"
)

// ErrUnknownStage is returned when selecting a stage that is not part of the
// loaded deployment.
var ErrUnknownStage = errors.New("unknown stage")

// Key identifies the active stage.
type Key struct {
	DeploymentID string
	StageID      string
	StageName    string
}

func (k Key) String() string {
	return k.DeploymentID + "/" + k.StageID
}

// Same reports whether both keys point at the same stage of the same deployment.
func (k Key) Same(other Key) bool {
	return k.DeploymentID == other.DeploymentID && k.StageID == other.StageID
}

// Listener observes tracker transitions. Every move into the active state,
// including re-selecting the current stage, calls StageActivated.
type Listener interface {
	StageActivated(key Key, stage pipeline.Stage)
	StageCleared(prev Key)
}

// Tracker holds at most one active key. It is not safe for concurrent use;
// callers drive it from a single event loop.
type Tracker struct {
	listener Listener

	active    Key
	hasActive bool

	deploymentID string
	stages       map[string]pipeline.Stage
	// pinned is set once the user clicks a stage or closes the viewer and
	// stays set until another deployment is loaded.
	pinned bool
}

// NewTracker returns a tracker in the NONE state. listener may be nil.
func NewTracker(listener Listener) *Tracker {
	return &Tracker{listener: listener}
}

// Active returns the current key.
func (t *Tracker) Active() (Key, bool) {
	return t.active, t.hasActive
}

// Pinned reports whether automatic re-selection is suspended.
func (t *Tracker) Pinned() bool {
	return t.pinned
}

// Load applies a fresh stage snapshot. A new deployment always re-seeds the
// active stage from pipeline.DefaultStage; the same deployment only does so
// while the user has not pinned a choice. It returns the active key after the
// load.
func (t *Tracker) Load(deploymentID string, stages []pipeline.Stage) (Key, bool) {
	changed := deploymentID != t.deploymentID
	t.deploymentID = deploymentID
	t.stages = make(map[string]pipeline.Stage, len(stages))
	for _, st := range stages {
		t.stages[st.ID] = st
	}
	if changed {
		t.pinned = false
	}
	if t.pinned {
		return t.Active()
	}

	def, ok := pipeline.DefaultStage(stages)
	if !ok {
		return t.Active()
	}
	key := Key{DeploymentID: deploymentID, StageID: def.ID, StageName: def.Name}
	if t.hasActive && t.active == key {
		return key, true
	}
	t.activate(key, def)
	return key, true
}

// Select makes stageID of the loaded deployment active and pins it. Selecting
// the already active stage activates it again.
func (t *Tracker) Select(stageID string) (Key, error) {
	st, ok := t.stages[stageID]
	if !ok {
		return Key{}, fmt.Errorf("select %q: %w", stageID, ErrUnknownStage)
	}
	key := Key{DeploymentID: t.deploymentID, StageID: st.ID, StageName: st.Name}
	t.pinned = true
	t.activate(key, st)
	return key, nil
}

// Close clears the active key and suspends automatic re-selection for the
// current deployment.
func (t *Tracker) Close() {
	t.pinned = true
	if !t.hasActive {
		return
	}
	prev := t.active
	t.active = Key{}
	t.hasActive = false
	if t.listener != nil {
		t.listener.StageCleared(prev)
	}
}

// Stage returns the latest snapshot of a loaded stage.
func (t *Tracker) Stage(stageID string) (pipeline.Stage, bool) {
	st, ok := t.stages[stageID]
	return st, ok
}

func (t *Tracker) activate(key Key, st pipeline.Stage) {
	t.active = key
	t.hasActive = true
	if t.listener != nil {
		t.listener.StageActivated(key, st)
	}
}
