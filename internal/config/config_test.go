package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/pipeview/internal/pipeline"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIAddress != defaultAPIAddress {
		t.Fatalf("APIAddress = %q, want %q", cfg.APIAddress, defaultAPIAddress)
	}
	if cfg.PollInterval != defaultPollInterval || cfg.LogPollInterval != defaultLogPollInterval {
		t.Fatalf("intervals = %v/%v, want defaults", cfg.PollInterval, cfg.LogPollInterval)
	}
	if cfg.ApprovalStage != pipeline.DefaultApprovalStage {
		t.Fatalf("ApprovalStage = %q", cfg.ApprovalStage)
	}
	if cfg.RequirePolicy != pipeline.PolicyPromote {
		t.Fatalf("RequirePolicy = %v, want promote", cfg.RequirePolicy)
	}

	wantStateDir, err := ExpandPath(defaultStateDir)
	if err != nil {
		t.Fatalf("ExpandPath(defaultStateDir) returned error: %v", err)
	}
	if cfg.StateDir != wantStateDir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, wantStateDir)
	}
	if cfg.LogFilePath() != filepath.Join(wantStateDir, "pipeview.log") {
		t.Fatalf("LogFilePath = %q", cfg.LogFilePath())
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_address = "  https://cd.example.com  "
api_token = " tok "
poll_interval = "5s"
log_poll_interval = "10ms"
approval_stage = " MANUAL_GATE "
require_policy = "drop"
metrics_address = "127.0.0.1:9464"
log_level = "DEBUG"
state_dir = "  ~/.pv  "
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIAddress != "https://cd.example.com" || cfg.APIToken != "tok" {
		t.Fatalf("api = %q/%q", cfg.APIAddress, cfg.APIToken)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.LogPollInterval != minInterval {
		t.Fatalf("LogPollInterval = %v, want clamp to %v", cfg.LogPollInterval, minInterval)
	}
	if cfg.ApprovalStage != "MANUAL_GATE" {
		t.Fatalf("ApprovalStage = %q", cfg.ApprovalStage)
	}
	if cfg.RequirePolicy != pipeline.PolicyDrop {
		t.Fatalf("RequirePolicy = %v, want drop", cfg.RequirePolicy)
	}
	if cfg.MetricsAddress != "127.0.0.1:9464" || cfg.LogLevel != "debug" {
		t.Fatalf("metrics/log = %q/%q", cfg.MetricsAddress, cfg.LogLevel)
	}
	if !strings.HasPrefix(cfg.StateDir, home) {
		t.Fatalf("StateDir = %q, want it under HOME %q", cfg.StateDir, home)
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	cases := map[string]string{
		"toml":     `api_address = [`,
		"interval": `poll_interval = "soon"`,
		"policy":   `require_policy = "ignore"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load returned nil error, want parse error")
			}
			if !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("ExpandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := ExpandPath("   "); err == nil {
		t.Fatalf("ExpandPath returned nil error, want error")
	}
}

func TestLogFilePath_DefaultsWhenStateDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogFilePath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogFilePath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/pipeview.log")) {
		t.Fatalf("LogFilePath = %q, want it to end with /pipeview.log", got)
	}
}
