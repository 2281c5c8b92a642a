package pipeline

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultApprovalStage is the stage name the control plane gives to
	// manual approval gates.
	DefaultApprovalStage = "WAIT_APPROVAL"
	// AnalysisStage is always skippable while it runs.
	AnalysisStage = "ANALYSIS"

	// MetadataApprovedBy holds the approver's name once an approval stage
	// has been accepted.
	MetadataApprovedBy = "ApprovedBy"
	// MetadataStageKind overrides name based classification.
	MetadataStageKind = "stage-kind"
)

// Operation is a manual action the control plane currently accepts for a stage.
type Operation string

const (
	OperationNone    Operation = ""
	OperationSkip    Operation = "SKIP"
	OperationApprove Operation = "APPROVE"
)

func (o *Operation) UnmarshalText(text []byte) error {
	norm := strings.ToUpper(strings.TrimSpace(string(text)))
	norm = strings.TrimPrefix(norm, "MANUAL_OPERATION_")
	switch norm {
	case "", "NONE", "UNKNOWN":
		*o = OperationNone
	case string(OperationSkip):
		*o = OperationSkip
	case string(OperationApprove):
		*o = OperationApprove
	default:
		return fmt.Errorf("unknown manual operation %q", string(text))
	}
	return nil
}

// Kind distinguishes stages that render and behave differently.
type Kind int

const (
	KindNormal Kind = iota
	KindApproval
)

func (k Kind) String() string {
	if k == KindApproval {
		return "approval"
	}
	return "normal"
}

// Stage is one node of a deployment pipeline as reported by the control plane.
type Stage struct {
	ID                 string            `json:"id" yaml:"id"`
	Name               string            `json:"name" yaml:"name"`
	Desc               string            `json:"desc,omitempty" yaml:"desc,omitempty"`
	Index              int               `json:"index" yaml:"index"`
	Requires           []string          `json:"requires,omitempty" yaml:"requires,omitempty"`
	Visible            bool              `json:"visible" yaml:"visible"`
	Status             StageStatus       `json:"status" yaml:"status"`
	StatusReason       string            `json:"statusReason,omitempty" yaml:"statusReason,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	AvailableOperation Operation         `json:"availableOperation,omitempty" yaml:"availableOperation,omitempty"`

	// Kind is derived by Classify and never sent over the wire.
	Kind Kind `json:"-" yaml:"-"`
}

// Approver returns who accepted an approval stage, if anyone has.
func (s Stage) Approver() string {
	return strings.TrimSpace(s.Metadata[MetadataApprovedBy])
}

// Skippable reports whether a skip command may be requested right now.
func (s Stage) Skippable() bool {
	return s.Status.Running() && s.AvailableOperation == OperationSkip
}

// Approvable reports whether an approve command may be requested right now.
func (s Stage) Approvable() bool {
	return s.Status.Running() && s.Kind == KindApproval
}

// Deployment is the snapshot of one deployment and its stages.
type Deployment struct {
	ID              string           `json:"id" yaml:"id"`
	ApplicationID   string           `json:"applicationId,omitempty" yaml:"applicationId,omitempty"`
	ApplicationName string           `json:"applicationName,omitempty" yaml:"applicationName,omitempty"`
	Summary         string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Status          DeploymentStatus `json:"status" yaml:"status"`
	Stages          []Stage          `json:"stages" yaml:"stages"`
	UpdatedAt       int64            `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Updated returns UpdatedAt as a time, zero when unset.
func (d Deployment) Updated() time.Time {
	if d.UpdatedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(d.UpdatedAt, 0)
}

// Stage looks up a stage by id.
func (d Deployment) Stage(id string) (Stage, bool) {
	for _, st := range d.Stages {
		if st.ID == id {
			return st, true
		}
	}
	return Stage{}, false
}

// Classify returns a copy of stages with Kind filled in. A stage is an
// approval gate when its name equals approvalStage (DefaultApprovalStage when
// empty) or when its metadata carries stage-kind=approval. ANALYSIS stages
// without an explicit operation are marked skippable.
func Classify(stages []Stage, approvalStage string) []Stage {
	if len(stages) == 0 {
		return nil
	}
	approvalStage = strings.TrimSpace(approvalStage)
	if approvalStage == "" {
		approvalStage = DefaultApprovalStage
	}

	out := make([]Stage, len(stages))
	for i, st := range stages {
		st.Requires = append([]string(nil), st.Requires...)
		st.Kind = KindNormal
		if st.Name == approvalStage || strings.EqualFold(st.Metadata[MetadataStageKind], "approval") {
			st.Kind = KindApproval
		}
		if st.Name == AnalysisStage && st.AvailableOperation == OperationNone {
			st.AvailableOperation = OperationSkip
		}
		out[i] = st
	}
	return out
}
