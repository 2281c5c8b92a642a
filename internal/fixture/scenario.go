package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/five82/pipeview/internal/logtail"
	"github.com/five82/pipeview/internal/pipeline"
)

// Scenario is the parsed fixture file.
type Scenario struct {
	Deployment    DeploymentSpec `yaml:"deployment"`
	ApprovalStage string         `yaml:"approvalStage"`
	Stages        []StageSpec    `yaml:"stages" validate:"required,min=1,unique=ID,dive"`
}

// DeploymentSpec describes the simulated deployment.
type DeploymentSpec struct {
	ID              string `yaml:"id" validate:"required"`
	ApplicationID   string `yaml:"applicationId"`
	ApplicationName string `yaml:"applicationName"`
	Summary         string `yaml:"summary"`
}

// StageSpec describes one simulated stage.
type StageSpec struct {
	ID        string               `yaml:"id" validate:"required"`
	Name      string               `yaml:"name"`
	Desc      string               `yaml:"desc"`
	Requires  []string             `yaml:"requires"`
	Hidden    bool                 `yaml:"hidden"`
	Status    pipeline.StageStatus `yaml:"status"`
	Metadata  map[string]string    `yaml:"metadata"`
	Operation pipeline.Operation   `yaml:"operation"`
	Log       []string             `yaml:"log"`
	LogFile   string               `yaml:"logFile"`
	LogTail   int                  `yaml:"logTail" validate:"gte=0"`
	Fail      bool                 `yaml:"fail"`
}

// Load reads and validates a scenario. Relative logFile paths resolve
// against the scenario's directory and are read eagerly into Log, keeping
// only the last logTail lines when it is set.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return Scenario{}, err
	}

	dir := filepath.Dir(path)
	for i := range sc.Stages {
		st := &sc.Stages[i]
		if st.LogFile == "" {
			continue
		}
		logPath := st.LogFile
		if !filepath.IsAbs(logPath) {
			logPath = filepath.Join(dir, logPath)
		}
		lines, err := logtail.Read(logPath, st.LogTail)
		if err != nil {
			return Scenario{}, fmt.Errorf("stage %s: %w", st.ID, err)
		}
		st.Log = append(st.Log, logtail.Texts(lines)...)
	}
	return sc, nil
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

var scenarioValidate = newScenarioValidator()

// newScenarioValidator reports fields by their yaml names.
func newScenarioValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks ids. Requires may name unknown stages on purpose, to
// exercise the viewer's handling of dangling references.
func (sc Scenario) Validate() error {
	err := scenarioValidate.Struct(sc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, errors.New(describeFieldError(fe)))
	}
	return fmt.Errorf("invalid scenario: %w", errors.Join(errs...))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Scenario.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " needs at least " + fe.Param() + " entry"
	case "gte":
		return field + " must be at least " + fe.Param()
	case "unique":
		return field + ": duplicate " + strings.ToLower(fe.Param()) + "s"
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}
