package api

import (
	"time"

	"radiocap/internal/capture"
	"radiocap/internal/deps"
	"radiocap/internal/prober"
	"radiocap/internal/reaper"
	"radiocap/internal/schedule"
	"radiocap/internal/scheduler"
	"radiocap/internal/store"
)

const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromSnapshot converts a capture snapshot to its API representation.
func FromSnapshot(s capture.Snapshot) Session {
	return Session{
		SessionID:        s.SessionID,
		ShowID:           s.ShowID,
		ShowKey:          s.ShowKey,
		StationID:        s.StationID,
		CallSign:         s.CallSign,
		AiringID:         s.AiringID,
		Source:           string(s.Source),
		State:            string(s.State),
		Tool:             string(s.Tool),
		Attempt:          s.Attempt,
		StartedAt:        formatTime(s.StartedAt),
		PlannedSeconds:   s.Planned.Seconds(),
		ElapsedSeconds:   s.Elapsed.Seconds(),
		RemainingSeconds: s.Remaining.Seconds(),
		Percent:          s.Percent,
		Bytes:            s.Bytes,
	}
}

// FromSnapshots converts live sessions, preserving order.
func FromSnapshots(snapshots []capture.Snapshot) []Session {
	out := make([]Session, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, FromSnapshot(s))
	}
	return out
}

// FromTrigger converts a resolved trigger.
func FromTrigger(t schedule.Trigger) Trigger {
	return Trigger{
		At:         formatTime(t.At),
		ShowID:     t.ShowID,
		StationID:  t.StationID,
		AiringID:   t.AiringID,
		Priority:   t.Priority,
		AiringType: string(t.AiringType),
	}
}

// FromTriggers converts pending triggers, preserving order.
func FromTriggers(triggers []schedule.Trigger) []Trigger {
	out := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, FromTrigger(t))
	}
	return out
}

// FromRecording converts a recording row.
func FromRecording(r *store.Recording) Recording {
	if r == nil {
		return Recording{}
	}
	dto := Recording{
		ID:              r.ID,
		ShowID:          r.ShowID,
		StationID:       r.StationID,
		Filename:        r.Filename,
		Path:            r.Path,
		SourceType:      string(r.SourceType),
		TrackNumber:     r.TrackNumber,
		SizeBytes:       r.SizeBytes,
		DurationSeconds: r.DurationSeconds,
		Tool:            r.Tool,
		Partial:         r.Partial,
		RecordedAt:      formatTime(r.RecordedAt),
		CreatedAt:       formatTime(r.CreatedAt),
	}
	if r.ExpiresAt != nil {
		dto.ExpiresAt = formatTime(*r.ExpiresAt)
	}
	return dto
}

// FromRecordings converts recording rows, preserving order.
func FromRecordings(rows []store.Recording) []Recording {
	out := make([]Recording, 0, len(rows))
	for i := range rows {
		out = append(out, FromRecording(&rows[i]))
	}
	return out
}

// FromStation converts a station row.
func FromStation(s *store.Station) Station {
	if s == nil {
		return Station{}
	}
	dto := Station{
		ID:              s.ID,
		CallSign:        s.CallSign,
		Name:            s.Name,
		StreamURL:       s.StreamURL,
		Timezone:        s.Timezone,
		RecommendedTool: s.RecommendedTool,
		Compatibility:   string(s.Compatibility),
		LastTestResult:  s.LastTestResult,
	}
	if dto.Compatibility == "" {
		dto.Compatibility = string(store.CompatibilityUnknown)
	}
	if s.LastTestedAt != nil {
		dto.LastTestedAt = formatTime(*s.LastTestedAt)
	}
	return dto
}

// FromStations converts station rows, preserving order.
func FromStations(rows []store.Station) []Station {
	out := make([]Station, 0, len(rows))
	for i := range rows {
		out = append(out, FromStation(&rows[i]))
	}
	return out
}

// FromProbeReport converts a station test report.
func FromProbeReport(r *prober.Report) StationReport {
	if r == nil {
		return StationReport{}
	}
	dto := StationReport{
		StationID:   r.StationID,
		CallSign:    r.CallSign,
		Recommended: string(r.Recommended),
		Status:      string(r.Status),
		TestedAt:    formatTime(r.TestedAt),
		Results:     make([]ProbeResult, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		dto.Results = append(dto.Results, ProbeResult{
			Tool:      string(res.Tool),
			Outcome:   string(res.Outcome),
			Bytes:     res.Bytes,
			ElapsedMS: res.Elapsed.Milliseconds(),
			Detail:    res.Detail,
		})
	}
	return dto
}

// FromRefreshSummary converts a scheduler refresh summary. Errors are
// flattened to their messages.
func FromRefreshSummary(s scheduler.RefreshSummary) RefreshSummary {
	dto := RefreshSummary{Shows: s.Shows, Triggers: s.Triggers}
	for _, err := range s.Errors {
		if err != nil {
			dto.Errors = append(dto.Errors, err.Error())
		}
	}
	return dto
}

// FromStartResult converts the outcome of a capture start request.
func FromStartResult(showID int64, r capture.StartResult) TriggerResponse {
	return TriggerResponse{
		ShowID:    showID,
		Outcome:   string(r.Outcome),
		SessionID: r.SessionID,
		Tool:      string(r.Tool),
	}
}

// FromReapSummary converts a reaper sweep summary.
func FromReapSummary(s reaper.Summary) ReapSummary {
	return ReapSummary{Scanned: s.Scanned, Removed: s.Removed, Missing: s.Missing, Failed: s.Failed}
}

// FromDependencies converts binary availability results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// ParseTime parses a timestamp produced by this package. Empty input
// yields the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
