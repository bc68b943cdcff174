// Package logging assembles structured slog loggers and formatting helpers used
// across the radiocap daemon and CLI.
//
// It owns the console and JSON handlers, the fanout that mirrors console output
// into a per-run JSON log file, and context helpers that tag lines with show
// IDs, capture session IDs, and correlation IDs. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
