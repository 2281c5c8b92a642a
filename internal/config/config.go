package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/pipeview/internal/pipeline"
)

// Config captures the settings pipeview reads from its config file.
type Config struct {
	APIAddress      string
	APIToken        string
	PollInterval    time.Duration
	LogPollInterval time.Duration
	ApprovalStage   string
	RequirePolicy   pipeline.RequirePolicy
	MetricsAddress  string
	LogLevel        string
	StateDir        string
}

const (
	defaultConfigPath      = "~/.config/pipeview/config.toml"
	defaultStateDir        = "~/.local/state/pipeview"
	defaultAPIAddress      = "127.0.0.1:9090"
	defaultPollInterval    = 2 * time.Second
	defaultLogPollInterval = 2 * time.Second
	defaultLogLevel        = "info"
	minInterval            = 250 * time.Millisecond
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIAddress:      defaultAPIAddress,
		PollInterval:    defaultPollInterval,
		LogPollInterval: defaultLogPollInterval,
		ApprovalStage:   pipeline.DefaultApprovalStage,
		RequirePolicy:   pipeline.PolicyPromote,
		LogLevel:        defaultLogLevel,
		StateDir:        mustExpand(defaultStateDir),
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIAddress      string `toml:"api_address"`
		APIToken        string `toml:"api_token"`
		PollInterval    string `toml:"poll_interval"`
		LogPollInterval string `toml:"log_poll_interval"`
		ApprovalStage   string `toml:"approval_stage"`
		RequirePolicy   string `toml:"require_policy"`
		MetricsAddress  string `toml:"metrics_address"`
		LogLevel        string `toml:"log_level"`
		StateDir        string `toml:"state_dir"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIAddress); v != "" {
		cfg.APIAddress = v
	}
	cfg.APIToken = strings.TrimSpace(raw.APIToken)
	if v := strings.TrimSpace(raw.ApprovalStage); v != "" {
		cfg.ApprovalStage = v
	}
	cfg.MetricsAddress = strings.TrimSpace(raw.MetricsAddress)
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.StateDir); v != "" {
		cfg.StateDir = mustExpand(v)
	}

	if cfg.PollInterval, err = parseInterval("poll_interval", raw.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.LogPollInterval, err = parseInterval("log_poll_interval", raw.LogPollInterval, defaultLogPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.RequirePolicy, err = pipeline.ParseRequirePolicy(raw.RequirePolicy); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LogFilePath is where the UI writes its own log while it owns the terminal.
func (c Config) LogFilePath() string {
	if strings.TrimSpace(c.StateDir) == "" {
		return mustExpand(defaultStateDir + "/pipeview.log")
	}
	return filepath.Join(c.StateDir, "pipeview.log")
}

func parseInterval(key, raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d < minInterval {
		return minInterval, nil
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ to the home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
