package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var knownTools = map[string]struct{}{
	"streamripper": {},
	"ffmpeg":       {},
	"yt-dlp":       {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateProbe(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RecordingsDir == c.Paths.StagingDir {
		return errors.New("paths.recordings_dir and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	return ensurePositiveMap(map[string]int{
		"scheduler.tick_seconds": c.Scheduler.TickSeconds,
		"scheduler.lookahead":    c.Scheduler.Lookahead,
	})
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.max_concurrent":           c.Capture.MaxConcurrent,
		"capture.grace_seconds":            c.Capture.GraceSeconds,
		"capture.poll_seconds":             c.Capture.PollSeconds,
		"capture.min_attempt_seconds":      c.Capture.MinAttemptSeconds,
		"capture.default_duration_minutes": c.Capture.DefaultDurationMinutes,
	}); err != nil {
		return err
	}
	if c.Capture.SlotWaitSeconds < 0 {
		return errors.New("capture.slot_wait_seconds must not be negative")
	}
	if c.Capture.EarlyExitToleranceSeconds < 0 {
		return errors.New("capture.early_exit_tolerance_seconds must not be negative")
	}
	if c.Capture.DefaultRetentionDays < 0 {
		return errors.New("capture.default_retention_days must not be negative")
	}
	if c.Capture.MinOutputBytes <= 0 {
		return errors.New("capture.min_output_bytes must be positive")
	}
	if len(c.Capture.FallbackOrder) == 0 {
		return errors.New("capture.fallback_order must list at least one tool")
	}
	for _, name := range c.Capture.FallbackOrder {
		if _, ok := knownTools[name]; !ok {
			return fmt.Errorf("capture.fallback_order: unknown tool %q (expected one of %s)", name, strings.Join(toolNames(), ", "))
		}
	}
	return nil
}

func (c *Config) validateProbe() error {
	if !c.Probe.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"probe.interval_hours":   c.Probe.IntervalHours,
		"probe.duration_seconds": c.Probe.DurationSeconds,
		"probe.timeout_seconds":  c.Probe.TimeoutSeconds,
		"probe.concurrency":      c.Probe.Concurrency,
		"probe.per_minute":       c.Probe.PerMinute,
	}); err != nil {
		return err
	}
	if c.Probe.TimeoutSeconds <= c.Probe.DurationSeconds {
		return errors.New("probe.timeout_seconds must be greater than probe.duration_seconds")
	}
	if c.Probe.MinBytes <= 0 {
		return errors.New("probe.min_bytes must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.IntervalMinutes <= 0 {
		return errors.New("retention.interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func toolNames() []string {
	names := make([]string, 0, len(knownTools))
	for name := range knownTools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
