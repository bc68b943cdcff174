package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const showColumns = "id, show_key, station_id, name, timezone, show_type, active, stream_only, duration_minutes, retention_value, retention_unit, max_recording_bytes, created_at, updated_at"

func scanShow(scanner rowScanner) (*Show, error) {
	var (
		show       Show
		showType   string
		active     int
		streamOnly int
		unit       string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&show.ID,
		&show.Key,
		&show.StationID,
		&show.Name,
		&show.Timezone,
		&showType,
		&active,
		&streamOnly,
		&show.DurationMinutes,
		&show.Retention.Value,
		&unit,
		&show.MaxRecordingBytes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	show.Type = ShowType(showType)
	show.Active = active != 0
	show.StreamOnly = streamOnly != 0
	show.Retention.Unit = RetentionUnit(unit)
	if created, err := parseTimeString(createdRaw); err == nil {
		show.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		show.UpdatedAt = updated
	}
	return &show, nil
}

func scanAiring(scanner rowScanner) (Airing, error) {
	var (
		airing     Airing
		airingType string
		active     int
	)
	if err := scanner.Scan(
		&airing.ID,
		&airing.ShowID,
		&airing.Pattern,
		&airing.Description,
		&airingType,
		&airing.Priority,
		&active,
	); err != nil {
		return Airing{}, err
	}
	airing.Type = AiringType(airingType)
	airing.Active = active != 0
	return airing, nil
}

// UpsertShow inserts a show or updates the existing one matched by key,
// replacing its airings. The returned bool is false when the stored show
// already matched, in which case airing IDs are left untouched.
func (s *Store) UpsertShow(ctx context.Context, show Show) (*Show, bool, error) {
	ctx = ensureContext(ctx)
	key := strings.TrimSpace(show.Key)
	if key == "" {
		return nil, false, errors.New("upsert show: key required")
	}
	show.Key = key
	if show.Type == "" {
		show.Type = ShowTypeScheduled
	}
	show.Airings = append([]Airing(nil), show.Airings...)
	sort.SliceStable(show.Airings, func(i, j int) bool {
		return show.Airings[i].Priority < show.Airings[j].Priority
	})
	existing, err := s.GetShowByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && sameShow(*existing, show) {
		return existing, false, nil
	}

	now := formatTime(time.Now())
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if existing == nil {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO shows (show_key, station_id, name, timezone, show_type, active, stream_only,
                    duration_minutes, retention_value, retention_unit, max_recording_bytes, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				key, show.StationID, show.Name, show.Timezone, show.Type,
				boolToInt(show.Active), boolToInt(show.StreamOnly), show.DurationMinutes,
				show.Retention.Value, show.Retention.Unit, show.MaxRecordingBytes, now, now,
			)
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		} else {
			id = existing.ID
			if _, err := tx.ExecContext(ctx,
				`UPDATE shows SET station_id = ?, name = ?, timezone = ?, show_type = ?, active = ?, stream_only = ?,
                    duration_minutes = ?, retention_value = ?, retention_unit = ?, max_recording_bytes = ?, updated_at = ?
                 WHERE id = ?`,
				show.StationID, show.Name, show.Timezone, show.Type,
				boolToInt(show.Active), boolToInt(show.StreamOnly), show.DurationMinutes,
				show.Retention.Value, show.Retention.Unit, show.MaxRecordingBytes, now, id,
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM airings WHERE show_id = ?`, id); err != nil {
				return err
			}
		}
		for _, airing := range show.Airings {
			airingType := airing.Type
			if airingType == "" {
				airingType = AiringOriginal
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO airings (show_id, pattern, description, airing_type, priority, active)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				id, strings.TrimSpace(airing.Pattern), airing.Description, airingType, airing.Priority, boolToInt(airing.Active),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert show %s: %w", key, err)
	}
	stored, err := s.GetShow(ctx, id)
	return stored, true, err
}

func sameShow(stored, incoming Show) bool {
	if stored.StationID != incoming.StationID ||
		stored.Name != incoming.Name ||
		stored.Timezone != incoming.Timezone ||
		stored.Type != incoming.Type ||
		stored.Active != incoming.Active ||
		stored.StreamOnly != incoming.StreamOnly ||
		stored.DurationMinutes != incoming.DurationMinutes ||
		stored.Retention != incoming.Retention ||
		stored.MaxRecordingBytes != incoming.MaxRecordingBytes ||
		len(stored.Airings) != len(incoming.Airings) {
		return false
	}
	for i := range stored.Airings {
		a, b := stored.Airings[i], incoming.Airings[i]
		if b.Type == "" {
			b.Type = AiringOriginal
		}
		if a.Pattern != strings.TrimSpace(b.Pattern) || a.Description != b.Description ||
			a.Type != b.Type || a.Priority != b.Priority || a.Active != b.Active {
			return false
		}
	}
	return true
}

// GetShow fetches a show and its airings. A missing show returns nil, nil.
func (s *Store) GetShow(ctx context.Context, id int64) (*Show, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get show %d: %w", id, err)
	}
	if show.Airings, err = s.listAirings(ctx, show.ID); err != nil {
		return nil, err
	}
	return show, nil
}

// GetShowByKey fetches a show by its unique key.
func (s *Store) GetShowByKey(ctx context.Context, key string) (*Show, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE show_key = ?`, key)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get show %s: %w", key, err)
	}
	if show.Airings, err = s.listAirings(ctx, show.ID); err != nil {
		return nil, err
	}
	return show, nil
}

// ListShows returns every show with its airings, ordered by ID.
func (s *Store) ListShows(ctx context.Context) ([]Show, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	var shows []Show
	index := make(map[int64]int)
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[show.ID] = len(shows)
		shows = append(shows, *show)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	airingRows, err := s.db.QueryContext(ctx,
		`SELECT id, show_id, pattern, description, airing_type, priority, active FROM airings ORDER BY show_id, priority, id`)
	if err != nil {
		return nil, fmt.Errorf("list airings: %w", err)
	}
	defer airingRows.Close()
	for airingRows.Next() {
		airing, err := scanAiring(airingRows)
		if err != nil {
			return nil, err
		}
		if pos, ok := index[airing.ShowID]; ok {
			shows[pos].Airings = append(shows[pos].Airings, airing)
		}
	}
	return shows, airingRows.Err()
}

// DeactivateShowsExcept marks every show whose key is not in keys inactive.
// It returns the IDs of shows that changed.
func (s *Store) DeactivateShowsExcept(ctx context.Context, keys []string) ([]int64, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id FROM shows WHERE active = 1`
	args := make([]any, 0, len(keys))
	if len(keys) > 0 {
		query += ` AND show_key NOT IN (` + makePlaceholders(len(keys)) + `)`
		for _, key := range keys {
			args = append(args, key)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select stale shows: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	now := formatTime(time.Now())
	for _, id := range ids {
		if _, err := s.execWithRetry(ctx, `UPDATE shows SET active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return nil, fmt.Errorf("deactivate show %d: %w", id, err)
		}
	}
	return ids, nil
}

func (s *Store) listAirings(ctx context.Context, showID int64) ([]Airing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, show_id, pattern, description, airing_type, priority, active FROM airings WHERE show_id = ? ORDER BY priority, id`,
		showID)
	if err != nil {
		return nil, fmt.Errorf("list airings for show %d: %w", showID, err)
	}
	defer rows.Close()
	var airings []Airing
	for rows.Next() {
		airing, err := scanAiring(rows)
		if err != nil {
			return nil, err
		}
		airings = append(airings, airing)
	}
	return airings, rows.Err()
}
