package fixture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/pipeview/internal/pipecd"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/stagelog"
)

const scenarioYAML = `
deployment:
  id: demo-1
  applicationName: web
stages:
  - id: plan
    name: K8S_PLAN
    log: ["\e[32mplanned\e[0m", "2 resources"]
  - id: approve
    name: WAIT_APPROVAL
    requires: [plan]
  - id: analysis
    name: ANALYSIS
    requires: [approve]
    log: ["checking", "still checking", "and more"]
  - id: rollout
    name: K8S_PRIMARY_ROLLOUT
    requires: [analysis]
    fail: true
`

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func mustParse(t *testing.T, data string) Scenario {
	t.Helper()
	sc, err := Parse([]byte(data))
	require.NoError(t, err)
	return sc
}

func stageStatus(t *testing.T, sim *Simulation, id string) pipeline.StageStatus {
	t.Helper()
	st, ok := sim.Deployment().Stage(id)
	require.True(t, ok)
	return st.Status
}

func TestParseValidates(t *testing.T) {
	sc := mustParse(t, scenarioYAML)
	assert.Equal(t, "demo-1", sc.Deployment.ID)
	require.Len(t, sc.Stages, 4)
	assert.Equal(t, "\x1b[32mplanned\x1b[0m", sc.Stages[0].Log[0])

	_, err := Parse([]byte("stages: [{id: a}, {id: a}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment.id is required")
	assert.Contains(t, err.Error(), "stages: duplicate ids")

	_, err = Parse([]byte("deployment: {id: d}\nstages: [{name: nameless}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages[0].id is required")

	_, err = Parse([]byte("deployment: {id: d}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages is required")

	_, err = Parse([]byte("deployment: {id: d}\nstages: [{id: a, logTail: -1}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages[0].logTail must be at least 0")

	_, err = Parse([]byte("deployment: ["))
	assert.Error(t, err)
}

func TestLoadReadsLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.log"), []byte("one\ntwo\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
deployment: {id: d}
stages:
  - id: sync
    log: [zero]
    logFile: sync.log
  - id: tail
    logFile: sync.log
    logTail: 1
`), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zero", "one", "two"}, sc.Stages[0].Log)
	assert.Equal(t, []string{"two"}, sc.Stages[1].Log)
}

func TestSimulationRunsThroughApprovalAndFailure(t *testing.T) {
	sim := NewSimulation(mustParse(t, scenarioYAML))
	assert.Equal(t, pipeline.DeploymentRunning, sim.Deployment().Status)

	require.True(t, sim.Step())
	assert.Equal(t, pipeline.StageRunning, stageStatus(t, sim, "plan"))

	sim.Step() // planned
	sim.Step() // 2 resources
	sim.Step() // plan succeeds, approval starts
	assert.Equal(t, pipeline.StageSuccess, stageStatus(t, sim, "plan"))
	assert.Equal(t, pipeline.StageRunning, stageStatus(t, sim, "approve"))

	// Approval waits.
	sim.Step()
	assert.Equal(t, pipeline.StageRunning, stageStatus(t, sim, "approve"))
	assert.ErrorIs(t, sim.Skip("approve"), ErrConflict)
	require.NoError(t, sim.Approve("approve", "alice"))

	st, _ := sim.Deployment().Stage("approve")
	assert.Equal(t, "alice", st.Approver())

	sim.Step() // analysis starts
	require.Equal(t, pipeline.StageRunning, stageStatus(t, sim, "analysis"))
	require.NoError(t, sim.Skip("analysis"))
	assert.Equal(t, pipeline.StageSkipped, stageStatus(t, sim, "analysis"))

	sim.Step() // rollout starts
	sim.Step() // rollout fails
	assert.Equal(t, pipeline.StageFailure, stageStatus(t, sim, "rollout"))
	assert.Equal(t, pipeline.DeploymentFailure, sim.Deployment().Status)

	page, err := sim.Logs("plan", 1)
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, "2 resources", page.Blocks[0].Text)
	assert.True(t, page.Completed)

	page, err = sim.Logs("rollout", 0)
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, stagelog.SeverityError, page.Blocks[0].Severity)

	_, err = sim.Logs("nope", 0)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestSimulationUpdatedAtIncreases(t *testing.T) {
	sim := NewSimulation(mustParse(t, scenarioYAML))
	sim.now = func() time.Time { return time.Unix(100, 0) }

	first := sim.Deployment().UpdatedAt
	sim.Step()
	second := sim.Deployment().UpdatedAt
	sim.Step()
	assert.Less(t, first, second)
	assert.Less(t, second, sim.Deployment().UpdatedAt)
}

func TestServerWithClient(t *testing.T) {
	sim := NewSimulation(mustParse(t, scenarioYAML))
	for i := 0; i < 4; i++ {
		sim.Step()
	}
	srv := NewServer(sim)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	client, err := pipecd.NewClient(ts.URL, "")
	require.NoError(t, err)
	ctx := context.Background()

	d, err := client.FetchDeployment(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, "web", d.ApplicationName)
	assert.Len(t, d.Stages, 4)

	_, err = client.FetchDeployment(ctx, "other")
	assert.ErrorIs(t, err, pipecd.ErrNotFound)

	page, err := client.FetchStageLog(ctx, stagelog.Query{DeploymentID: "demo-1", StageID: "plan"})
	require.NoError(t, err)
	assert.Len(t, page.Blocks, 2)
	assert.True(t, page.Completed)

	_, err = client.FetchStageLog(ctx, stagelog.Query{DeploymentID: "demo-1", StageID: "ghost"})
	assert.ErrorIs(t, err, stagelog.ErrNoLog)

	_, err = client.SkipStage(ctx, "demo-1", "approve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")

	id, err := client.ApproveStage(ctx, "demo-1", "approve")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, pipeline.StageSuccess, stageStatus(t, sim, "approve"))
}

func TestServerRoutesEscapedIDs(t *testing.T) {
	sim := NewSimulation(mustParse(t, `
deployment: {id: team/app}
stages:
  - id: k8s/sync
    log: [one]
`))
	sim.Step()
	sim.Step()
	srv := NewServer(sim)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	client, err := pipecd.NewClient(ts.URL, "")
	require.NoError(t, err)
	ctx := context.Background()

	d, err := client.FetchDeployment(ctx, "team/app")
	require.NoError(t, err)
	assert.Equal(t, "team/app", d.ID)

	page, err := client.FetchStageLog(ctx, stagelog.Query{DeploymentID: "team/app", StageID: "k8s/sync"})
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, "one", page.Blocks[0].Text)
}

func TestServerBadOffset(t *testing.T) {
	srv := NewServer(NewSimulation(mustParse(t, scenarioYAML)))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments/demo-1/stages/plan/logs?offset_index=x", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerWatchPushesSteps(t *testing.T) {
	sim := NewSimulation(mustParse(t, scenarioYAML))
	srv := NewServer(sim)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := pipecd.NewClient(ts.URL, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got := make(chan pipeline.Deployment, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.WatchDeployment(ctx, "demo-1", func(d pipeline.Deployment) {
			select {
			case got <- d:
			default:
			}
		})
	}()
	go srv.Run(ctx, 10*time.Millisecond)

	for {
		select {
		case d := <-got:
			st, _ := d.Stage("plan")
			if st.Status == pipeline.StageSuccess {
				cancel()
				select {
				case <-errCh:
				case <-time.After(2 * time.Second):
					t.Fatal("watch did not stop")
				}
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for plan to succeed")
		}
	}
}

func TestWatchFileReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Scenario, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, func(sc Scenario) { reloaded <- sc })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("deployment: {id: changed}\nstages: [{id: only}]\n"), 0o644))

	select {
	case sc := <-reloaded:
		assert.Equal(t, "changed", sc.Deployment.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("scenario was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}
