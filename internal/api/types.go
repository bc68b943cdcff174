package api

// Session is the transport representation of a live capture.
type Session struct {
	SessionID        string  `json:"sessionId"`
	ShowID           int64   `json:"showId"`
	ShowKey          string  `json:"showKey"`
	StationID        int64   `json:"stationId"`
	CallSign         string  `json:"callSign"`
	AiringID         int64   `json:"airingId,omitempty"`
	Source           string  `json:"source"`
	State            string  `json:"state"`
	Tool             string  `json:"tool"`
	Attempt          int     `json:"attempt"`
	StartedAt        string  `json:"startedAt,omitempty"`
	PlannedSeconds   float64 `json:"plannedSeconds"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
	RemainingSeconds float64 `json:"remainingSeconds"`
	Percent          float64 `json:"percent"`
	Bytes            int64   `json:"bytes"`
}

// Trigger is a pending scheduled capture.
type Trigger struct {
	At         string `json:"at"`
	ShowID     int64  `json:"showId"`
	StationID  int64  `json:"stationId"`
	AiringID   int64  `json:"airingId"`
	Priority   int    `json:"priority"`
	AiringType string `json:"airingType"`
}

// Recording describes a persisted capture artifact.
type Recording struct {
	ID              int64   `json:"id"`
	ShowID          int64   `json:"showId"`
	StationID       int64   `json:"stationId"`
	Filename        string  `json:"filename"`
	Path            string  `json:"path"`
	SourceType      string  `json:"sourceType"`
	TrackNumber     *int    `json:"trackNumber,omitempty"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationSeconds float64 `json:"durationSeconds"`
	Tool            string  `json:"tool"`
	Partial         bool    `json:"partial"`
	RecordedAt      string  `json:"recordedAt"`
	ExpiresAt       string  `json:"expiresAt,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
}

// Station exposes a station and its last compatibility verdict.
type Station struct {
	ID              int64  `json:"id"`
	CallSign        string `json:"callSign"`
	Name            string `json:"name"`
	StreamURL       string `json:"streamUrl"`
	Timezone        string `json:"timezone"`
	RecommendedTool string `json:"recommendedTool,omitempty"`
	Compatibility   string `json:"compatibility"`
	LastTestResult  string `json:"lastTestResult,omitempty"`
	LastTestedAt    string `json:"lastTestedAt,omitempty"`
}

// ProbeResult is one tool's outcome within a station test.
type ProbeResult struct {
	Tool      string `json:"tool"`
	Outcome   string `json:"outcome"`
	Bytes     int64  `json:"bytes"`
	ElapsedMS int64  `json:"elapsedMs"`
	Detail    string `json:"detail,omitempty"`
}

// StationReport summarizes a station stream test.
type StationReport struct {
	StationID   int64         `json:"stationId"`
	CallSign    string        `json:"callSign"`
	Results     []ProbeResult `json:"results"`
	Recommended string        `json:"recommended,omitempty"`
	Status      string        `json:"status"`
	TestedAt    string        `json:"testedAt"`
}

// RefreshSummary reports a schedule rebuild.
type RefreshSummary struct {
	Shows    int      `json:"shows"`
	Triggers int      `json:"triggers"`
	Errors   []string `json:"errors,omitempty"`
}

// TriggerResponse reports the outcome of a manual capture request.
type TriggerResponse struct {
	ShowID    int64  `json:"showId"`
	Outcome   string `json:"outcome"`
	SessionID string `json:"sessionId,omitempty"`
	Tool      string `json:"tool,omitempty"`
}

// ReapSummary reports a retention sweep.
type ReapSummary struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	DatabasePath    string             `json:"databasePath"`
	LockFilePath    string             `json:"lockFilePath"`
	SocketPath      string             `json:"socketPath"`
	APIBind         string             `json:"apiBind,omitempty"`
	CatalogPath     string             `json:"catalogPath,omitempty"`
	ActiveSessions  int                `json:"activeSessions"`
	PendingTriggers int                `json:"pendingTriggers"`
	NextTrigger     *Trigger           `json:"nextTrigger,omitempty"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}

// SessionListResponse wraps the live sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// TriggerListResponse wraps pending triggers.
type TriggerListResponse struct {
	Triggers []Trigger `json:"triggers"`
}

// RecordingListResponse wraps recordings.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}

// StationListResponse wraps stations.
type StationListResponse struct {
	Stations []Station `json:"stations"`
}

// ErrorResponse is the body of every non-2xx HTTP reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
