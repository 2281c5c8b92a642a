package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/pipeview/internal/pipeline"
)

type recorder struct {
	activated []Key
	cleared   []Key
}

func (r *recorder) StageActivated(key Key, _ pipeline.Stage) { r.activated = append(r.activated, key) }
func (r *recorder) StageCleared(prev Key)                    { r.cleared = append(r.cleared, prev) }

func st(id string, status pipeline.StageStatus) pipeline.Stage {
	return pipeline.Stage{ID: id, Name: "NAME_" + id, Visible: true, Status: status}
}

func TestLoadSeedsDefault(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	key, ok := tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageSuccess), st("b", pipeline.StageRunning)})
	require.True(t, ok)
	assert.Equal(t, Key{DeploymentID: "d1", StageID: "b", StageName: "NAME_b"}, key)
	assert.Equal(t, []Key{key}, rec.activated)
}

func TestLoadWithoutDefaultStaysNone(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	_, ok := tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageNotStarted)})
	assert.False(t, ok)
	assert.Empty(t, rec.activated)
}

func TestLoadFollowsDefaultUntilPinned(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning), st("b", pipeline.StageNotStarted)})
	// Refresh with no change does not re-activate.
	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning), st("b", pipeline.StageNotStarted)})
	require.Len(t, rec.activated, 1)

	key, _ := tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageSuccess), st("b", pipeline.StageRunning)})
	assert.Equal(t, "b", key.StageID)
	require.Len(t, rec.activated, 2)

	_, err := tr.Select("a")
	require.NoError(t, err)
	require.Len(t, rec.activated, 3)

	key, _ = tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageSuccess), st("b", pipeline.StageSuccess), st("c", pipeline.StageRunning)})
	assert.Equal(t, "a", key.StageID, "manual choice must survive refresh")
	assert.Len(t, rec.activated, 3)
}

func TestUserClickWinsOverDefault(t *testing.T) {
	tr := NewTracker(nil)
	stages := []pipeline.Stage{st("a", pipeline.StageSuccess), st("b", pipeline.StageRunning)}

	tr.Load("d1", stages)
	_, err := tr.Select("a")
	require.NoError(t, err)
	tr.Load("d1", stages)

	key, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, "a", key.StageID)
}

func TestNewDeploymentReseeds(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning)})
	_, err := tr.Select("a")
	require.NoError(t, err)

	key, ok := tr.Load("d2", []pipeline.Stage{st("x", pipeline.StageSuccess), st("y", pipeline.StageRunning)})
	require.True(t, ok)
	assert.Equal(t, Key{DeploymentID: "d2", StageID: "y", StageName: "NAME_y"}, key)
	assert.False(t, tr.Pinned())
}

func TestReselectSameStageActivatesAgain(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning)})
	_, err := tr.Select("a")
	require.NoError(t, err)
	assert.Len(t, rec.activated, 2)
}

func TestSelectUnknownStage(t *testing.T) {
	tr := NewTracker(nil)
	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning)})

	_, err := tr.Select("zzz")
	assert.ErrorIs(t, err, ErrUnknownStage)
	key, _ := tr.Active()
	assert.Equal(t, "a", key.StageID)
}

func TestCloseClearsAndPins(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning)})
	tr.Close()

	_, ok := tr.Active()
	assert.False(t, ok)
	require.Len(t, rec.cleared, 1)
	assert.Equal(t, "a", rec.cleared[0].StageID)

	// Refreshing the same deployment leaves the viewer closed.
	_, ok = tr.Load("d1", []pipeline.Stage{st("a", pipeline.StageRunning)})
	assert.False(t, ok)

	// Closing twice is a no-op.
	tr.Close()
	assert.Len(t, rec.cleared, 1)

	_, err := tr.Select("a")
	require.NoError(t, err)
	_, ok = tr.Active()
	assert.True(t, ok)
}
