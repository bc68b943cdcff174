package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordingColumns = "id, show_id, station_id, filename, path, source_type, track_number, size_bytes, duration_seconds, tool, partial, recorded_at, expires_at, created_at"

func scanRecording(scanner rowScanner) (*Recording, error) {
	var (
		rec         Recording
		sourceType  string
		trackNumber sql.NullInt64
		partial     int
		recordedRaw string
		expiresRaw  sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.ShowID,
		&rec.StationID,
		&rec.Filename,
		&rec.Path,
		&sourceType,
		&trackNumber,
		&rec.SizeBytes,
		&rec.DurationSeconds,
		&rec.Tool,
		&partial,
		&recordedRaw,
		&expiresRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	rec.SourceType = SourceType(sourceType)
	if trackNumber.Valid {
		n := int(trackNumber.Int64)
		rec.TrackNumber = &n
	}
	rec.Partial = partial != 0
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		rec.RecordedAt = recorded
	}
	rec.ExpiresAt = parseNullTime(expiresRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return &rec, nil
}

// InsertRecording persists a recording row. A filename collision returns an
// error wrapping ErrDuplicateFilename; callers choose a new name and retry.
func (s *Store) InsertRecording(ctx context.Context, rec *Recording) error {
	if rec == nil {
		return errors.New("insert recording: nil recording")
	}
	if strings.TrimSpace(rec.Filename) == "" {
		return errors.New("insert recording: filename required")
	}
	if rec.SourceType == "" {
		rec.SourceType = SourceRecorded
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	created := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO recordings (show_id, station_id, filename, path, source_type, track_number, size_bytes,
            duration_seconds, tool, partial, recorded_at, expires_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ShowID,
		rec.StationID,
		rec.Filename,
		rec.Path,
		rec.SourceType,
		nullableInt(rec.TrackNumber),
		rec.SizeBytes,
		rec.DurationSeconds,
		rec.Tool,
		boolToInt(rec.Partial),
		formatTime(rec.RecordedAt),
		nullableTime(rec.ExpiresAt),
		formatTime(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert recording %s: %w", rec.Filename, ErrDuplicateFilename)
		}
		return fmt.Errorf("insert recording %s: %w", rec.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = created
	return nil
}

// RecordingFilter narrows ListRecordings.
type RecordingFilter struct {
	ShowID int64
	Limit  int
}

// ListRecordings returns recordings newest first.
func (s *Store) ListRecordings(ctx context.Context, filter RecordingFilter) ([]Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []any
	if filter.ShowID > 0 {
		query += ` WHERE show_id = ?`
		args = append(args, filter.ShowID)
	}
	query += ` ORDER BY recorded_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return s.queryRecordings(ctx, query, args...)
}

// ListExpiredRecordings returns recordings whose non-null expiry is at or
// before now, oldest expiry first. Rows with NULL expires_at never match.
func (s *Store) ListExpiredRecordings(ctx context.Context, now time.Time) ([]Recording, error) {
	return s.queryRecordings(ctx,
		`SELECT `+recordingColumns+` FROM recordings
          WHERE expires_at IS NOT NULL AND expires_at <= ?
          ORDER BY expires_at, id`,
		formatTime(now),
	)
}

// FilenameExists reports whether a recording already claims filename.
func (s *Store) FilenameExists(ctx context.Context, filename string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM recordings WHERE filename = ?`, filename).Scan(&count); err != nil {
		return false, fmt.Errorf("check filename %s: %w", filename, err)
	}
	return count > 0, nil
}

// DeleteRecording removes a recording row. Deleting a missing row is not an error.
func (s *Store) DeleteRecording(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording %d: %w", id, err)
	}
	return nil
}

func (s *Store) queryRecordings(ctx context.Context, query string, args ...any) ([]Recording, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()
	var recordings []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, *rec)
	}
	return recordings, rows.Err()
}
