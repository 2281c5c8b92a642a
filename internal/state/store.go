package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/five82/pipeview/internal/pipeline"
)

// Source names where a snapshot came from.
type Source string

const (
	SourcePoll  Source = "poll"
	SourceWatch Source = "watch"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Deployment          pipeline.Deployment
	HasDeployment       bool
	Source              Source
	Version             uint64 // Incremented on every accepted deployment
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored deployment. When err is non-nil the previous data
// is kept but the error is recorded for visibility. A deployment older than
// the stored one (by UpdatedAt) is ignored so a slow poll cannot overwrite a
// newer pushed snapshot. It reports whether the deployment was accepted.
func (s *Store) Update(d *pipeline.Deployment, source Source, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return false
	}

	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
	if d == nil {
		return false
	}

	cur := s.snapshot.Deployment
	if s.snapshot.HasDeployment && cur.ID == d.ID && d.UpdatedAt > 0 && d.UpdatedAt < cur.UpdatedAt {
		return false
	}
	s.snapshot.Deployment = cloneDeployment(*d)
	s.snapshot.HasDeployment = true
	s.snapshot.Source = source
	s.snapshot.Version++
	return true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Deployment = cloneDeployment(s.snapshot.Deployment)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneDeployment(d pipeline.Deployment) pipeline.Deployment {
	if len(d.Stages) == 0 {
		d.Stages = nil
		return d
	}
	stages := make([]pipeline.Stage, len(d.Stages))
	for i, st := range d.Stages {
		st.Requires = slices.Clone(st.Requires)
		if st.Metadata != nil {
			md := make(map[string]string, len(st.Metadata))
			for k, v := range st.Metadata {
				md[k] = v
			}
			st.Metadata = md
		}
		stages[i] = st
	}
	d.Stages = stages
	return d
}
