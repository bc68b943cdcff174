// Package store persists radiocap state in SQLite.
//
// The Store owns the station and show catalog (written by catalog imports,
// read by the scheduler), the Recording rows produced by capture sessions and
// removed by the reaper, and two append-only audit trails: stream probe
// results and per-tool capture attempts. Recording filenames are unique at
// the database level; InsertRecording reports collisions as
// ErrDuplicateFilename so the capture manager can pick a new name.
//
// Schema changes bump schemaVersion in schema.go. An existing database with a
// different version is refused rather than migrated.
package store
