package pipecd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/stagelog"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAddress {
		t.Fatalf("host = %q, want %q", u.Host, defaultAddress)
	}

	u, err = parseBaseURL("https://pipecd.example.com:443/console?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchDeploymentAndLogs(t *testing.T) {
	t.Parallel()

	var gotLogQuery url.Values
	var gotUserAgent, gotRequestID, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get(requestIDHeader)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/v1/deployments/dep-1":
			_ = json.NewEncoder(w).Encode(pipeline.Deployment{
				ID:     "dep-1",
				Status: pipeline.DeploymentRunning,
				Stages: []pipeline.Stage{{ID: "s1", Name: "K8S_SYNC", Visible: true, Status: pipeline.StageRunning}},
			})
		case "/api/v1/deployments/dep-1/stages/s1/logs":
			gotLogQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(stagelog.Page{
				Blocks:    []stagelog.Block{{Index: 3, Text: "hello", Severity: stagelog.SeveritySuccess}},
				Completed: true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	d, err := c.FetchDeployment(ctx, "dep-1")
	if err != nil {
		t.Fatalf("FetchDeployment returned error: %v", err)
	}
	if d.Status != pipeline.DeploymentRunning || len(d.Stages) != 1 || d.Stages[0].Status != pipeline.StageRunning {
		t.Fatalf("FetchDeployment payload = %#v", d)
	}
	if gotUserAgent != defaultUserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUserAgent, defaultUserAgent)
	}
	if gotRequestID == "" {
		t.Fatalf("expected %s header", requestIDHeader)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}

	page, err := c.FetchStageLog(ctx, stagelog.Query{DeploymentID: "dep-1", StageID: "s1", OffsetIndex: 7, RetriedCount: 2})
	if err != nil {
		t.Fatalf("FetchStageLog returned error: %v", err)
	}
	if gotLogQuery.Get("offset_index") != "7" || gotLogQuery.Get("retried_count") != "2" {
		t.Fatalf("log query = %v", gotLogQuery)
	}
	if !page.Completed || len(page.Blocks) != 1 || page.Blocks[0].Severity != stagelog.SeveritySuccess {
		t.Fatalf("FetchStageLog payload = %#v", page)
	}
}

func TestClient_NotFoundMapping(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.FetchDeployment(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchDeployment error = %v, want ErrNotFound", err)
	}

	_, err = c.FetchStageLog(context.Background(), stagelog.Query{DeploymentID: "d", StageID: "s"})
	if !errors.Is(err, stagelog.ErrNoLog) {
		t.Fatalf("FetchStageLog error = %v, want ErrNoLog", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchStageLog error = %v, want ErrNotFound too", err)
	}
}

func TestClient_StageCommands(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if strings.HasSuffix(r.URL.Path, "/skip") {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "stage is not running"})
			return
		}
		_ = json.NewEncoder(w).Encode(commandResponse{CommandID: "cmd-9"})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	id, err := c.ApproveStage(context.Background(), "dep-1", "wait")
	if err != nil {
		t.Fatalf("ApproveStage returned error: %v", err)
	}
	if id != "cmd-9" {
		t.Fatalf("command id = %q, want cmd-9", id)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/v1/deployments/dep-1/stages/wait/approve" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}

	_, err = c.SkipStage(context.Background(), "dep-1", "analysis")
	if err == nil {
		t.Fatalf("expected error for conflict")
	}
	if !strings.Contains(err.Error(), "status 409: stage is not running") {
		t.Fatalf("error = %v", err)
	}
}

func TestClient_RequiresIDs(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchDeployment(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty deployment id")
	}
	if _, err := c.FetchStageLog(context.Background(), stagelog.Query{DeploymentID: "d"}); err == nil {
		t.Fatalf("expected error for empty stage id")
	}
	if _, err := c.ApproveStage(context.Background(), "", "s"); err == nil {
		t.Fatalf("expected error for empty deployment id")
	}

	var nilClient *Client
	if _, err := nilClient.FetchDeployment(context.Background(), "d"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestClient_EscapesPathSegments(t *testing.T) {
	t.Parallel()

	var gotPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	if _, err := c.FetchDeployment(ctx, "team/app"); err != nil {
		t.Fatalf("FetchDeployment returned error: %v", err)
	}
	if _, err := c.FetchStageLog(ctx, stagelog.Query{DeploymentID: "team/app", StageID: "sync?x"}); err != nil {
		t.Fatalf("FetchStageLog returned error: %v", err)
	}
	if _, err := c.SkipStage(ctx, "team/app", "a b"); err != nil {
		t.Fatalf("SkipStage returned error: %v", err)
	}

	want := []string{
		"/api/v1/deployments/team%2Fapp",
		"/api/v1/deployments/team%2Fapp/stages/sync%3Fx/logs",
		"/api/v1/deployments/team%2Fapp/stages/a%20b/skip",
	}
	if len(gotPaths) != len(want) {
		t.Fatalf("requests = %q, want %q", gotPaths, want)
	}
	for i := range want {
		if gotPaths[i] != want[i] {
			t.Fatalf("request %d path = %q, want %q", i, gotPaths[i], want[i])
		}
	}

	if got, want := c.watchURL("team/app"), "ws://"+strings.TrimPrefix(server.URL, "http://")+"/api/v1/deployments/team%2Fapp/watch"; got != want {
		t.Fatalf("watchURL = %q, want %q", got, want)
	}
}
