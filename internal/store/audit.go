package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertStreamTest appends a probe result.
func (s *Store) InsertStreamTest(ctx context.Context, result *StreamTestResult) error {
	if result.TestedAt.IsZero() {
		result.TestedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO stream_tests (station_id, url, tool, outcome, bytes, duration_ms, detail, tested_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StationID,
		result.URL,
		result.Tool,
		result.Outcome,
		result.Bytes,
		result.Duration.Milliseconds(),
		nullableString(result.Detail),
		formatTime(result.TestedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stream test: %w", err)
	}
	if result.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListStreamTests returns probe history for a station, newest first.
func (s *Store) ListStreamTests(ctx context.Context, stationID int64, limit int) ([]StreamTestResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, station_id, url, tool, outcome, bytes, duration_ms, detail, tested_at
           FROM stream_tests WHERE station_id = ? ORDER BY tested_at DESC, id DESC LIMIT ?`,
		stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stream tests: %w", err)
	}
	defer rows.Close()

	var results []StreamTestResult
	for rows.Next() {
		var (
			r          StreamTestResult
			outcome    string
			durationMS int64
			detail     sql.NullString
			testedRaw  string
		)
		if err := rows.Scan(&r.ID, &r.StationID, &r.URL, &r.Tool, &outcome, &r.Bytes, &durationMS, &detail, &testedRaw); err != nil {
			return nil, err
		}
		r.Outcome = CompatibilityStatus(outcome)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Detail = detail.String
		if tested, err := parseTimeString(testedRaw); err == nil {
			r.TestedAt = tested
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InsertCaptureAttempt appends a capture attempt audit row.
func (s *Store) InsertCaptureAttempt(ctx context.Context, attempt *CaptureAttempt) error {
	var airingID any
	if attempt.AiringID > 0 {
		airingID = attempt.AiringID
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO capture_attempts (session_id, show_id, airing_id, tool, attempt, outcome, bytes, detail, started_at, ended_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.SessionID,
		attempt.ShowID,
		airingID,
		attempt.Tool,
		attempt.Attempt,
		attempt.Outcome,
		attempt.Bytes,
		nullableString(attempt.Detail),
		formatTime(attempt.StartedAt),
		formatTime(attempt.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert capture attempt: %w", err)
	}
	if attempt.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListCaptureAttempts returns attempt history, newest first. A zero showID
// lists every show.
func (s *Store) ListCaptureAttempts(ctx context.Context, showID int64, limit int) ([]CaptureAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, show_id, airing_id, tool, attempt, outcome, bytes, detail, started_at, ended_at
                FROM capture_attempts`
	args := []any{}
	if showID > 0 {
		query += ` WHERE show_id = ?`
		args = append(args, showID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capture attempts: %w", err)
	}
	defer rows.Close()

	var attempts []CaptureAttempt
	for rows.Next() {
		var (
			a          CaptureAttempt
			airingID   sql.NullInt64
			outcome    string
			detail     sql.NullString
			startedRaw string
			endedRaw   string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.ShowID, &airingID, &a.Tool, &a.Attempt, &outcome, &a.Bytes, &detail, &startedRaw, &endedRaw); err != nil {
			return nil, err
		}
		a.AiringID = airingID.Int64
		a.Outcome = AttemptOutcome(outcome)
		a.Detail = detail.String
		if started, err := parseTimeString(startedRaw); err == nil {
			a.StartedAt = started
		}
		if ended, err := parseTimeString(endedRaw); err == nil {
			a.EndedAt = ended
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
