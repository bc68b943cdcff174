package ipc

import "radiocap/internal/api"

// StopRequest stops the daemon process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// Session mirrors the HTTP session DTO.
type Session = api.Session

// Trigger mirrors the HTTP pending trigger DTO.
type Trigger = api.Trigger

// Recording mirrors the HTTP recording DTO.
type Recording = api.Recording

// Station mirrors the HTTP station DTO.
type Station = api.Station

// SessionsRequest lists live captures.
type SessionsRequest struct{}

// SessionsResponse contains live captures ordered by show id.
type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// StopSessionRequest stops the capture of one show. Show is an id or key.
type StopSessionRequest struct {
	Show string `json:"show"`
}

// StopSessionResponse reports which show was stopped.
type StopSessionResponse struct {
	ShowID  int64 `json:"show_id"`
	Stopped bool  `json:"stopped"`
}

// RefreshAllRequest rebuilds every show's schedule.
type RefreshAllRequest struct{}

// RefreshShowRequest rebuilds one show's schedule. Show is an id or key.
type RefreshShowRequest struct {
	Show string `json:"show"`
}

// RefreshResponse summarizes a schedule rebuild.
type RefreshResponse = api.RefreshSummary

// TriggerRequest starts a manual capture. A zero DurationSeconds uses the
// show's configured duration.
type TriggerRequest struct {
	Show            string `json:"show"`
	DurationSeconds int    `json:"duration_seconds"`
}

// TriggerResponse reports the capture start outcome.
type TriggerResponse = api.TriggerResponse

// TestStationRequest probes a station. Station is an id or call sign.
type TestStationRequest struct {
	Station string `json:"station"`
}

// TestStationResponse carries the per-tool verdicts.
type TestStationResponse = api.StationReport

// PendingRequest lists pending triggers, optionally for one show.
type PendingRequest struct {
	Show string `json:"show"`
}

// PendingResponse contains pending triggers in firing order.
type PendingResponse struct {
	Triggers []Trigger `json:"triggers"`
}

// RecordingsRequest filters recordings by show and caps the result.
type RecordingsRequest struct {
	Show  string `json:"show"`
	Limit int    `json:"limit"`
}

// RecordingsResponse contains recordings newest first.
type RecordingsResponse struct {
	Recordings []Recording `json:"recordings"`
}

// StationsRequest lists stations.
type StationsRequest struct{}

// StationsResponse contains stations ordered by call sign.
type StationsResponse struct {
	Stations []Station `json:"stations"`
}

// ReapRequest runs a retention sweep.
type ReapRequest struct{}

// ReapResponse summarizes the sweep.
type ReapResponse = api.ReapSummary

// ImportCatalogRequest loads a catalog file. An empty Path uses the
// configured catalog.
type ImportCatalogRequest struct {
	Path string `json:"path"`
}

// ImportCatalogResponse summarizes the import.
type ImportCatalogResponse struct {
	Path            string   `json:"path"`
	Stations        int      `json:"stations"`
	Shows           int      `json:"shows"`
	ChangedStations int      `json:"changed_stations"`
	ChangedShows    int      `json:"changed_shows"`
	Deactivated     int      `json:"deactivated"`
	Warnings        []string `json:"warnings,omitempty"`
}
