package pipeline

import (
	"fmt"
	"strings"
)

// StageStatus is the lifecycle state of a single stage.
type StageStatus int

const (
	StageNotStarted StageStatus = iota
	StageRunning
	StageSuccess
	StageFailure
	StageCancelled
	StageSkipped
	StageExited
)

var stageStatusNames = map[StageStatus]string{
	StageNotStarted: "STAGE_NOT_STARTED_YET",
	StageRunning:    "STAGE_RUNNING",
	StageSuccess:    "STAGE_SUCCESS",
	StageFailure:    "STAGE_FAILURE",
	StageCancelled:  "STAGE_CANCELLED",
	StageSkipped:    "STAGE_SKIPPED",
	StageExited:     "STAGE_EXITED",
}

func (s StageStatus) String() string {
	if name, ok := stageStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STAGE_STATUS(%d)", int(s))
}

// Label is the short lower-case form used in the UI ("running", "success").
func (s StageStatus) Label() string {
	name := strings.TrimPrefix(s.String(), "STAGE_")
	name = strings.TrimSuffix(name, "_YET")
	return strings.ReplaceAll(strings.ToLower(name), "_", " ")
}

// Running reports whether the stage is currently executing.
func (s StageStatus) Running() bool {
	return s == StageRunning
}

// Terminal reports whether the stage has finished and its log is immutable.
func (s StageStatus) Terminal() bool {
	switch s {
	case StageSuccess, StageFailure, StageCancelled, StageSkipped, StageExited:
		return true
	default:
		return false
	}
}

// ParseStageStatus accepts the wire names ("STAGE_RUNNING") as well as the
// short forms ("running", "not_started"), case-insensitively.
func ParseStageStatus(raw string) (StageStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	if norm == "" {
		return StageNotStarted, nil
	}
	for status, name := range stageStatusNames {
		short := strings.TrimSuffix(strings.TrimPrefix(name, "STAGE_"), "_YET")
		if norm == name || norm == short || "STAGE_"+norm == name {
			return status, nil
		}
	}
	return StageNotStarted, fmt.Errorf("unknown stage status %q", raw)
}

func (s StageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StageStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStageStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DeploymentStatus is the lifecycle state of the deployment as a whole.
type DeploymentStatus int

const (
	DeploymentPending DeploymentStatus = iota
	DeploymentPlanned
	DeploymentRunning
	DeploymentRollingBack
	DeploymentSuccess
	DeploymentFailure
	DeploymentCancelled
)

var deploymentStatusNames = map[DeploymentStatus]string{
	DeploymentPending:     "DEPLOYMENT_PENDING",
	DeploymentPlanned:     "DEPLOYMENT_PLANNED",
	DeploymentRunning:     "DEPLOYMENT_RUNNING",
	DeploymentRollingBack: "DEPLOYMENT_ROLLING_BACK",
	DeploymentSuccess:     "DEPLOYMENT_SUCCESS",
	DeploymentFailure:     "DEPLOYMENT_FAILURE",
	DeploymentCancelled:   "DEPLOYMENT_CANCELLED",
}

func (s DeploymentStatus) String() string {
	if name, ok := deploymentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DEPLOYMENT_STATUS(%d)", int(s))
}

// Label is the short lower-case form used in the UI.
func (s DeploymentStatus) Label() string {
	name := strings.TrimPrefix(s.String(), "DEPLOYMENT_")
	return strings.ReplaceAll(strings.ToLower(name), "_", " ")
}

// Running reports whether the deployment is still in progress.
func (s DeploymentStatus) Running() bool {
	switch s {
	case DeploymentPending, DeploymentPlanned, DeploymentRunning, DeploymentRollingBack:
		return true
	default:
		return false
	}
}

// ParseDeploymentStatus accepts wire names and short forms.
func ParseDeploymentStatus(raw string) (DeploymentStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	if norm == "" {
		return DeploymentPending, nil
	}
	for status, name := range deploymentStatusNames {
		if norm == name || "DEPLOYMENT_"+norm == name {
			return status, nil
		}
	}
	return DeploymentPending, fmt.Errorf("unknown deployment status %q", raw)
}

func (s DeploymentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeploymentStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseDeploymentStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
