// Package daemon coordinates the long-running radiocap process.
//
// It wires configuration, the SQLite store, the capture manager, the job
// scheduler, the stream prober, the retention reaper, and the catalog
// watcher into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes the operator surface (live
// sessions, schedule refresh, manual triggers, station tests, recordings,
// retention sweeps) to the IPC server and to an optional HTTP API served
// with chi.
//
// Keep orchestration logic here: scheduling and capture behavior live in
// their own packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
