// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates capture snapshots, pending triggers, recordings
// and probe reports into transport-friendly DTOs that the CLI and other
// consumers can render without coupling to internal types.
//
// # Key Types
//
// Session: one live capture with progress (elapsed, remaining, percent).
//
// Trigger: a pending scheduled instant for an airing.
//
// StationReport: per-tool outcomes of a stream compatibility test.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (capture.State,
// store.CompatibilityStatus) are exposed as lowercase strings. Timestamps
// use RFC3339 with milliseconds in UTC; durations are whole or fractional
// seconds so scripts do not have to parse Go duration strings.
package api
