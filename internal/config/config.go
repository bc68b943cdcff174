package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	RecordingsDir string `toml:"recordings_dir"`
	StagingDir    string `toml:"staging_dir"`
	LogDir        string `toml:"log_dir"`
	CatalogPath   string `toml:"catalog_path"`
	WatchCatalog  bool   `toml:"watch_catalog"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// Scheduler controls trigger resolution and the tick loop.
type Scheduler struct {
	TickSeconds int `toml:"tick_seconds"`
	Lookahead   int `toml:"lookahead"`
}

// Capture controls session concurrency, timeouts, and failure detection.
type Capture struct {
	MaxConcurrent             int      `toml:"max_concurrent"`
	SlotWaitSeconds           int      `toml:"slot_wait_seconds"`
	GraceSeconds              int      `toml:"grace_seconds"`
	PollSeconds               int      `toml:"poll_seconds"`
	MinOutputBytes            int64    `toml:"min_output_bytes"`
	EarlyExitToleranceSeconds int      `toml:"early_exit_tolerance_seconds"`
	MinAttemptSeconds         int      `toml:"min_attempt_seconds"`
	FallbackOrder             []string `toml:"fallback_order"`
	DefaultDurationMinutes    int      `toml:"default_duration_minutes"`
	DefaultRetentionDays      int      `toml:"default_retention_days"`
}

// Tools names the external capture binaries.
type Tools struct {
	StreamripperBinary string `toml:"streamripper_binary"`
	YtDlpBinary        string `toml:"ytdlp_binary"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	StaleAfterHours    int    `toml:"stale_after_hours"`
}

// Probe controls stream compatibility testing.
type Probe struct {
	Enabled         bool  `toml:"enabled"`
	IntervalHours   int   `toml:"interval_hours"`
	DurationSeconds int   `toml:"duration_seconds"`
	TimeoutSeconds  int   `toml:"timeout_seconds"`
	MinBytes        int64 `toml:"min_bytes"`
	Concurrency     int   `toml:"concurrency"`
	PerMinute       int   `toml:"per_minute"`
}

// Retention controls the recording reaper.
type Retention struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for radiocap.
//
// Configuration sections by subsystem:
//   - Paths: data, recording, staging and log directories, catalog file, API bind
//   - Scheduler: tick cadence and per-airing lookahead
//   - Capture: concurrency ceiling, timeouts, fallback order
//   - Tools: capture binaries and recommendation freshness
//   - Probe: stream compatibility testing cadence and limits
//   - Retention: reaper cadence
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scheduler Scheduler `toml:"scheduler"`
	Capture   Capture   `toml:"capture"`
	Tools     Tools     `toml:"tools"`
	Probe     Probe     `toml:"probe"`
	Retention Retention `toml:"retention"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("radiocap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.RecordingsDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "radiocap.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "radiocap.sock")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "radiocapd.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "radiocap.pid")
}

// TickInterval returns the scheduler tick cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// SlotWait returns how long a trigger may wait for a free capture slot.
func (c *Config) SlotWait() time.Duration {
	return time.Duration(c.Capture.SlotWaitSeconds) * time.Second
}

// Grace returns the window added to every subprocess deadline and allowed
// between SIGTERM and SIGKILL.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.Capture.GraceSeconds) * time.Second
}

// MinAttempt returns the shortest capture window worth launching a tool for.
func (c *Config) MinAttempt() time.Duration {
	return time.Duration(c.Capture.MinAttemptSeconds) * time.Second
}

// EarlyExitTolerance returns how long before its planned end a failing tool
// may exit and still count as having captured the full window.
func (c *Config) EarlyExitTolerance() time.Duration {
	return time.Duration(c.Capture.EarlyExitToleranceSeconds) * time.Second
}

// DefaultDuration returns the capture length for shows without one.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Capture.DefaultDurationMinutes) * time.Minute
}

// PollInterval returns the session progress polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Capture.PollSeconds) * time.Second
}

// ProbeInterval returns the periodic probe cadence.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Probe.IntervalHours) * time.Hour
}

// ProbeDuration returns the length of each probe capture.
func (c *Config) ProbeDuration() time.Duration {
	return time.Duration(c.Probe.DurationSeconds) * time.Second
}

// ProbeTimeout returns the hard limit for one probe capture.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// ReapInterval returns the retention sweep cadence.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Retention.IntervalMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
