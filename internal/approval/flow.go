// Package approval gates the mutating stage commands (approve and skip) behind
// a confirmation step.
package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/five82/pipeview/internal/pipeline"
)

// ErrNotEligible is returned when a stage cannot take the flow's action in
// its current state.
var ErrNotEligible = errors.New("stage not eligible")

// Action is the command a flow emits on confirmation.
type Action int

const (
	ActionApprove Action = iota
	ActionSkip
)

func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "approve"
}

// Commander sends stage commands to the control plane and returns the id of
// the accepted command.
type Commander interface {
	ApproveStage(ctx context.Context, deploymentID, stageID string) (string, error)
	SkipStage(ctx context.Context, deploymentID, stageID string) (string, error)
}

// Command is emitted by Confirm.
type Command struct {
	Action       Action
	DeploymentID string
	StageID      string
}

// Send delivers the command.
func (c Command) Send(ctx context.Context, commander Commander) (string, error) {
	var (
		id  string
		err error
	)
	switch c.Action {
	case ActionSkip:
		id, err = commander.SkipStage(ctx, c.DeploymentID, c.StageID)
	default:
		id, err = commander.ApproveStage(ctx, c.DeploymentID, c.StageID)
	}
	if err != nil {
		return "", fmt.Errorf("%s stage %s: %w", c.Action, c.StageID, err)
	}
	return id, nil
}

// Flow is IDLE when pending is empty and PENDING(stage) otherwise. A new
// request replaces the pending stage.
type Flow struct {
	action  Action
	pending string
}

// NewApprovalFlow gates approval of approval stages.
func NewApprovalFlow() *Flow {
	return &Flow{action: ActionApprove}
}

// NewSkipFlow gates skipping of skippable stages.
func NewSkipFlow() *Flow {
	return &Flow{action: ActionSkip}
}

// Action returns the command this flow emits.
func (f *Flow) Action() Action {
	return f.action
}

// Pending returns the stage awaiting confirmation.
func (f *Flow) Pending() (string, bool) {
	return f.pending, f.pending != ""
}

// Request opens the confirmation for stage. Only running stages of the right
// kind are accepted; anything else leaves the flow untouched.
func (f *Flow) Request(stage pipeline.Stage) error {
	eligible := stage.Approvable()
	if f.action == ActionSkip {
		eligible = stage.Skippable()
	}
	if !eligible || stage.ID == "" {
		return fmt.Errorf("%s %s (%s): %w", f.action, stage.Name, stage.Status.Label(), ErrNotEligible)
	}
	f.pending = stage.ID
	return nil
}

// Cancel returns to IDLE without emitting anything.
func (f *Flow) Cancel() {
	f.pending = ""
}

// Confirm returns the command for the pending stage and returns to IDLE.
func (f *Flow) Confirm(deploymentID string) (Command, bool) {
	if f.pending == "" {
		return Command{}, false
	}
	cmd := Command{Action: f.action, DeploymentID: deploymentID, StageID: f.pending}
	f.pending = ""
	return cmd, true
}
