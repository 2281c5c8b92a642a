package stagelog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/five82/pipeview/internal/ansilog"
	"github.com/five82/pipeview/internal/selection"
)

// ErrNoLog means the control plane has no log for the stage yet.
var ErrNoLog = errors.New("no log available yet")

// Severity classifies a log block.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "SUCCESS"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	norm := strings.ToUpper(strings.TrimSpace(string(text)))
	norm = strings.TrimPrefix(norm, "LOG_SEVERITY_")
	switch norm {
	case "", "INFO":
		*s = SeverityInfo
	case "SUCCESS":
		*s = SeveritySuccess
	case "ERROR":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown log severity %q", string(text))
	}
	return nil
}

// Block is one chunk of a stage log.
type Block struct {
	Index     int64    `json:"index" yaml:"index"`
	Text      string   `json:"log" yaml:"log"`
	Severity  Severity `json:"severity" yaml:"severity"`
	CreatedAt int64    `json:"createdAt" yaml:"createdAt"`
}

// Created returns CreatedAt as a time.
func (b Block) Created() time.Time {
	if b.CreatedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(b.CreatedAt, 0)
}

// Query asks for the blocks of one stage from OffsetIndex on.
type Query struct {
	DeploymentID string
	StageID      string
	OffsetIndex  int64
	RetriedCount int
}

// Page is one response of the log API.
type Page struct {
	Blocks    []Block `json:"blocks"`
	Completed bool    `json:"completed"`
}

// Fetcher retrieves log pages.
type Fetcher interface {
	FetchStageLog(ctx context.Context, q Query) (Page, error)
}

// StageLog is the accumulated log of one key.
type StageLog struct {
	Key selection.Key
	// Blocks are ordered by Index without duplicates.
	Blocks []Block
	// Cells holds the decoded text of Blocks[i] at Cells[i].
	Cells [][]ansilog.Cell
	// Completed is set when the control plane reported the log finished.
	Completed bool
	// Loading is true until the first successful fetch.
	Loading bool
	// Polling is false once the scheduler stopped fetching for the key.
	Polling bool
	// Err is the last fetch error, cleared by the next success.
	Err error
	// Retries counts consecutive failed fetches.
	Retries int
}
