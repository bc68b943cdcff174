package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const stationColumns = "id, call_sign, name, stream_url, timezone, recommended_tool, compatibility_status, last_test_result, last_tested_at, created_at, updated_at"

func scanStation(scanner rowScanner) (*Station, error) {
	var (
		st            Station
		recommended   sql.NullString
		status        string
		lastResult    sql.NullString
		lastTestedRaw sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&st.ID,
		&st.CallSign,
		&st.Name,
		&st.StreamURL,
		&st.Timezone,
		&recommended,
		&status,
		&lastResult,
		&lastTestedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	st.RecommendedTool = recommended.String
	st.Compatibility = CompatibilityStatus(status)
	st.LastTestResult = lastResult.String
	st.LastTestedAt = parseNullTime(lastTestedRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		st.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		st.UpdatedAt = updated
	}
	return &st, nil
}

// UpsertStation inserts a station or updates the catalog-owned fields of an
// existing one matched by call sign. Compatibility fields are preserved. The
// returned bool reports whether anything the prober cares about changed
// (new station, stream URL, or timezone).
func (s *Store) UpsertStation(ctx context.Context, station Station) (*Station, bool, error) {
	callSign := strings.TrimSpace(station.CallSign)
	if callSign == "" {
		return nil, false, errors.New("upsert station: call sign required")
	}
	existing, err := s.GetStationByCallSign(ctx, callSign)
	if err != nil {
		return nil, false, err
	}
	now := formatTime(time.Now())
	if existing == nil {
		res, err := s.execWithRetry(ctx,
			`INSERT INTO stations (call_sign, name, stream_url, timezone, compatibility_status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			callSign, station.Name, station.StreamURL, station.Timezone, CompatibilityUnknown, now, now,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert station %s: %w", callSign, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("last insert id: %w", err)
		}
		created, err := s.GetStation(ctx, id)
		return created, true, err
	}

	streamChanged := existing.StreamURL != station.StreamURL || existing.Timezone != station.Timezone
	if !streamChanged && existing.Name == station.Name {
		return existing, false, nil
	}
	query := `UPDATE stations SET name = ?, stream_url = ?, timezone = ?, updated_at = ? WHERE id = ?`
	if existing.StreamURL != station.StreamURL {
		// A new stream needs a fresh probe; the prober sweep picks up untested stations.
		query = `UPDATE stations SET name = ?, stream_url = ?, timezone = ?, last_tested_at = NULL, updated_at = ? WHERE id = ?`
	}
	if _, err := s.execWithRetry(ctx, query,
		station.Name, station.StreamURL, station.Timezone, now, existing.ID,
	); err != nil {
		return nil, false, fmt.Errorf("update station %s: %w", callSign, err)
	}
	updated, err := s.GetStation(ctx, existing.ID)
	return updated, streamChanged, err
}

// GetStation fetches a station by ID. A missing station returns nil, nil.
func (s *Store) GetStation(ctx context.Context, id int64) (*Station, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stationColumns+` FROM stations WHERE id = ?`, id)
	station, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get station %d: %w", id, err)
	}
	return station, nil
}

// GetStationByCallSign fetches a station by its unique call sign.
func (s *Store) GetStationByCallSign(ctx context.Context, callSign string) (*Station, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stationColumns+` FROM stations WHERE call_sign = ?`, callSign)
	station, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get station %s: %w", callSign, err)
	}
	return station, nil
}

// ListStations returns every station ordered by call sign.
func (s *Store) ListStations(ctx context.Context) ([]Station, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+stationColumns+` FROM stations ORDER BY call_sign`)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	return stations, rows.Err()
}

// CompatibilityUpdate is the prober's write-back to a station.
type CompatibilityUpdate struct {
	// RecommendedTool replaces the stored value only when non-empty.
	RecommendedTool string
	Status          CompatibilityStatus
	Result          string
	TestedAt        time.Time
}

// UpdateStationCompatibility writes probe results back to a station. An
// empty RecommendedTool keeps the previous recommendation.
func (s *Store) UpdateStationCompatibility(ctx context.Context, stationID int64, update CompatibilityUpdate) error {
	testedAt := update.TestedAt
	if testedAt.IsZero() {
		testedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE stations
            SET recommended_tool = COALESCE(?, recommended_tool),
                compatibility_status = ?,
                last_test_result = ?,
                last_tested_at = ?,
                updated_at = ?
          WHERE id = ?`,
		nullableString(update.RecommendedTool),
		update.Status,
		nullableString(update.Result),
		formatTime(testedAt),
		formatTime(time.Now()),
		stationID,
	)
	if err != nil {
		return fmt.Errorf("update station %d compatibility: %w", stationID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update station %d compatibility: %w", stationID, sql.ErrNoRows)
	}
	return nil
}
