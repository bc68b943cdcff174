package store

import "time"

// CompatibilityStatus is the cached verdict of a station's stream probes.
type CompatibilityStatus string

const (
	CompatibilityUnknown      CompatibilityStatus = "unknown"
	CompatibilityCompatible   CompatibilityStatus = "compatible"
	CompatibilityIncompatible CompatibilityStatus = "incompatible"
)

// ShowType distinguishes scheduled broadcasts from upload-only playlists.
type ShowType string

const (
	ShowTypeScheduled ShowType = "scheduled"
	ShowTypePlaylist  ShowType = "playlist"
)

// AiringType labels an airing for operators; it does not affect scheduling.
type AiringType string

const (
	AiringOriginal AiringType = "original"
	AiringRepeat   AiringType = "repeat"
	AiringSpecial  AiringType = "special"
)

// RetentionUnit is the unit of a show's recording TTL.
type RetentionUnit string

const (
	RetentionDays       RetentionUnit = "days"
	RetentionWeeks      RetentionUnit = "weeks"
	RetentionMonths     RetentionUnit = "months"
	RetentionIndefinite RetentionUnit = "indefinite"
)

// SourceType records how a Recording arrived.
type SourceType string

const (
	SourceRecorded SourceType = "recorded"
	SourceUploaded SourceType = "uploaded"
)

// AttemptOutcome classifies one tool attempt inside a capture session.
type AttemptOutcome string

const (
	AttemptOK                AttemptOutcome = "ok"
	AttemptLaunchError       AttemptOutcome = "launch_error"
	AttemptEmptyOutput       AttemptOutcome = "empty_output"
	AttemptExitedEarly       AttemptOutcome = "exited_early"
	AttemptTimeout           AttemptOutcome = "timeout"
	AttemptStopped           AttemptOutcome = "stopped"
	AttemptResourceExhausted AttemptOutcome = "resource_exhausted"
)

// Station is a broadcaster with a capturable stream.
type Station struct {
	ID              int64
	CallSign        string
	Name            string
	StreamURL       string
	Timezone        string
	RecommendedTool string
	Compatibility   CompatibilityStatus
	LastTestResult  string
	LastTestedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Airing is one cron-like trigger pattern of a show.
type Airing struct {
	ID          int64
	ShowID      int64
	Pattern     string
	Description string
	Type        AiringType
	Priority    int
	Active      bool
}

// Retention is a TTL policy. A zero Value with a non-indefinite unit means
// "use the configured default".
type Retention struct {
	Value int
	Unit  RetentionUnit
}

// IsZero reports whether no policy was configured.
func (r Retention) IsZero() bool {
	return r.Value <= 0 && r.Unit != RetentionIndefinite
}

// Expiry returns the instant a recording made at recordedAt expires, or nil
// for indefinite retention.
func (r Retention) Expiry(recordedAt time.Time) *time.Time {
	if r.Unit == RetentionIndefinite || r.Value <= 0 {
		return nil
	}
	var expires time.Time
	switch r.Unit {
	case RetentionWeeks:
		expires = recordedAt.AddDate(0, 0, 7*r.Value)
	case RetentionMonths:
		expires = recordedAt.AddDate(0, r.Value, 0)
	default:
		expires = recordedAt.AddDate(0, 0, r.Value)
	}
	expires = expires.UTC()
	return &expires
}

// Show is a recurring program on a station.
type Show struct {
	ID                int64
	Key               string
	StationID         int64
	Name              string
	Timezone          string
	Type              ShowType
	Active            bool
	StreamOnly        bool
	DurationMinutes   int
	Retention         Retention
	MaxRecordingBytes int64
	Airings           []Airing
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ActiveAirings returns the airings eligible for scheduling. Blank patterns
// are kept so the resolver can report them.
func (s Show) ActiveAirings() []Airing {
	out := make([]Airing, 0, len(s.Airings))
	for _, airing := range s.Airings {
		if airing.Active {
			out = append(out, airing)
		}
	}
	return out
}

// Schedulable reports whether the scheduler should ever trigger this show.
func (s Show) Schedulable() bool {
	if !s.Active || s.StreamOnly {
		return false
	}
	return len(s.ActiveAirings()) > 0
}

// Duration returns the planned capture length.
func (s Show) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Recording is a persisted capture or upload artifact.
type Recording struct {
	ID              int64
	ShowID          int64
	StationID       int64
	Filename        string
	Path            string
	SourceType      SourceType
	TrackNumber     *int
	SizeBytes       int64
	DurationSeconds float64
	Tool            string
	Partial         bool
	RecordedAt      time.Time
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// StreamTestResult is one tool's probe outcome against a station.
type StreamTestResult struct {
	ID        int64
	StationID int64
	URL       string
	Tool      string
	Outcome   CompatibilityStatus
	Bytes     int64
	Duration  time.Duration
	Detail    string
	TestedAt  time.Time
}

// CaptureAttempt is the audit row for one tool attempt.
type CaptureAttempt struct {
	ID        int64
	SessionID string
	ShowID    int64
	AiringID  int64
	Tool      string
	Attempt   int
	Outcome   AttemptOutcome
	Bytes     int64
	Detail    string
	StartedAt time.Time
	EndedAt   time.Time
}
