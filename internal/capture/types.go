package capture

import (
	"time"

	"radiocap/internal/store"
	"radiocap/internal/tools"
)

// Source identifies what asked for a capture.
type Source string

const (
	SourceSchedule Source = "schedule"
	SourceManual   Source = "manual"
)

// Outcome is the immediate answer to a start request.
type Outcome string

const (
	// OutcomeStarted means the session was admitted and is capturing.
	OutcomeStarted Outcome = "started"
	// OutcomeQueued means the session was registered but is still waiting
	// for a capture slot; it is dropped if none frees up in time.
	OutcomeQueued Outcome = "queued"
	// OutcomeAlreadyRunning means a session for the show already exists.
	// Nothing was started.
	OutcomeAlreadyRunning Outcome = "already_running"
	// OutcomeResourceExhausted means no slot freed up within the wait window.
	OutcomeResourceExhausted Outcome = "resource_exhausted"
)

// State is the lifecycle phase of a live session.
type State string

const (
	StateWaiting    State = "waiting_slot"
	StateCapturing  State = "capturing"
	StateFinalizing State = "finalizing"
)

// Result labels how a session ended.
const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailed  = "failed"
	ResultStopped = "stopped"
	ResultDropped = "dropped"
)

// StartRequest asks the manager to capture one show.
type StartRequest struct {
	ShowID   int64
	AiringID int64
	Source   Source
	// Duration overrides the show's planned length when positive.
	Duration time.Duration
	// Retention overrides the show's TTL for the resulting recording.
	Retention *store.Retention
	// WaitForSlot makes Start block until the session is admitted or the
	// slot wait expires, so the caller learns about resource exhaustion
	// directly.
	WaitForSlot bool
}

// StartResult reports what Start did.
type StartResult struct {
	Outcome   Outcome
	SessionID string
	Tool      tools.Tool
}

// Snapshot is an immutable view of one live session.
type Snapshot struct {
	SessionID string
	ShowID    int64
	ShowKey   string
	StationID int64
	CallSign  string
	AiringID  int64
	Source    Source
	State     State
	Tool      tools.Tool
	Attempt   int
	StartedAt time.Time
	Planned   time.Duration
	Elapsed   time.Duration
	Remaining time.Duration
	Percent   float64
	Bytes     int64
}

// AttemptReport describes one tool run inside a session.
type AttemptReport struct {
	Tool    tools.Tool
	Outcome store.AttemptOutcome
	Bytes   int64
	Elapsed time.Duration
	Detail  string
}

// Report summarizes a finished session. It is passed to the completion hook.
type Report struct {
	SessionID string
	ShowID    int64
	Result    string
	Attempts  []AttemptReport
	Recording *store.Recording
	Err       error
}
