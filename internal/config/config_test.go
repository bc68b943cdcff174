package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"

	"radiocap/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("RADIOCAP_API_TOKEN", "secret-token")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRecordings := filepath.Join(tempHome, ".local", "share", "radiocap", "recordings")
	if cfg.Paths.RecordingsDir != wantRecordings {
		t.Fatalf("unexpected recordings dir: got %q want %q", cfg.Paths.RecordingsDir, wantRecordings)
	}
	if cfg.Paths.APIToken != "secret-token" {
		t.Fatalf("expected API token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if diff := cmp.Diff(config.DefaultFallbackOrder, cfg.Capture.FallbackOrder); diff != "" {
		t.Fatalf("fallback order mismatch (-want +got):\n%s", diff)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "radiocap.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.RecordingsDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "radiocap.toml")

	type payload struct {
		Paths struct {
			RecordingsDir string `toml:"recordings_dir"`
		} `toml:"paths"`
		Capture struct {
			MaxConcurrent int      `toml:"max_concurrent"`
			FallbackOrder []string `toml:"fallback_order"`
		} `toml:"capture"`
	}
	custom := payload{}
	custom.Paths.RecordingsDir = filepath.Join(tempDir, "rec")
	custom.Capture.MaxConcurrent = 9
	custom.Capture.FallbackOrder = []string{" FFmpeg ", "yt-dlp", "ffmpeg"}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Capture.MaxConcurrent != 9 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Capture.MaxConcurrent)
	}
	if diff := cmp.Diff([]string{"ffmpeg", "yt-dlp"}, cfg.Capture.FallbackOrder); diff != "" {
		t.Fatalf("fallback order not normalized (-want +got):\n%s", diff)
	}
	if cfg.Paths.RecordingsDir != filepath.Join(tempDir, "rec") {
		t.Fatalf("unexpected recordings dir: %q", cfg.Paths.RecordingsDir)
	}
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.FallbackOrder = []string{"vlc"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for unknown tool")
	}
	if !strings.Contains(err.Error(), "vlc") {
		t.Fatalf("expected tool name in error, got %v", err)
	}
}

func TestValidateProbeTimeoutMustExceedDuration(t *testing.T) {
	cfg := config.Default()
	cfg.Probe.DurationSeconds = 30
	cfg.Probe.TimeoutSeconds = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected probe timeout validation error")
	}
	cfg.Probe.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled probe should skip validation, got %v", err)
	}
}

func TestValidateRejectsNonPositiveValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"scheduler.tick_seconds": func(c *config.Config) { c.Scheduler.TickSeconds = 0 },
		"scheduler.lookahead":    func(c *config.Config) { c.Scheduler.Lookahead = -1 },
		"capture.max_concurrent": func(c *config.Config) { c.Capture.MaxConcurrent = 0 },
		"capture.grace_seconds":  func(c *config.Config) { c.Capture.GraceSeconds = 0 },
		"logging.format":         func(c *config.Config) { c.Logging.Format = "xml" },
	}
	for key, mutate := range cases {
		t.Run(key, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error for %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %q in error, got %v", key, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "conf", "radiocap.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	defaults := config.Default()
	if cfg.Capture.MaxConcurrent != defaults.Capture.MaxConcurrent {
		t.Fatalf("sample max_concurrent %d differs from default %d", cfg.Capture.MaxConcurrent, defaults.Capture.MaxConcurrent)
	}
	if cfg.Scheduler.Lookahead != defaults.Scheduler.Lookahead {
		t.Fatalf("sample lookahead %d differs from default %d", cfg.Scheduler.Lookahead, defaults.Scheduler.Lookahead)
	}
}
