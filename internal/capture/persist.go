package capture

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"radiocap/internal/fileutil"
	"radiocap/internal/logging"
	"radiocap/internal/services"
	"radiocap/internal/store"
)

// persist moves the chosen staging file into the recordings directory and
// inserts its Recording row. A filename collision, on disk or in the
// database, is retried once under a disambiguated name.
func (m *Manager) persist(ctx context.Context, sess *session, out candidate, partial bool) (*store.Recording, error) {
	sess.mu.Lock()
	started := sess.startedAt
	sess.mu.Unlock()

	ext := filepath.Ext(out.path)
	names := []string{
		recordingName(sess.station.CallSign, sess.show.Key, started, ext),
		disambiguatedName(sess.station.CallSign, sess.show.Key, started, sess.id, ext),
	}
	recordedAt := started.UTC()
	rec := &store.Recording{
		ShowID:          sess.show.ID,
		StationID:       sess.station.ID,
		SourceType:      store.SourceRecorded,
		SizeBytes:       out.size,
		DurationSeconds: capDuration(out.elapsed, sess.planned).Seconds(),
		Tool:            string(out.tool),
		Partial:         partial,
		RecordedAt:      recordedAt,
		ExpiresAt:       m.expiry(sess, recordedAt),
	}

	current := out.path
	var lastErr error
	for _, name := range names {
		dst := filepath.Join(m.cfg.Paths.RecordingsDir, name)
		if err := fileutil.MoveFile(current, dst); err != nil {
			if errors.Is(err, fileutil.ErrDestinationExists) {
				lastErr = err
				continue
			}
			return nil, services.Wrap(services.ErrPersistence, "capture", "move recording", name, err)
		}
		current = dst
		rec.Filename = name
		rec.Path = dst
		err := m.store.InsertRecording(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrDuplicateFilename) {
			return nil, services.Wrap(services.ErrPersistence, "capture", "insert recording", name, err)
		}
		lastErr = err
		m.sessionLogger(sess).Info("recording filename taken, retrying with disambiguated name", logging.String("filename", name))
	}
	return nil, services.Wrap(services.ErrPersistence, "capture", "persist recording", "filename collision after retry; file left at "+current, lastErr)
}

// expiry applies the request TTL override, then the show's retention, then
// the configured default.
func (m *Manager) expiry(sess *session, recordedAt time.Time) *time.Time {
	if sess.retention != nil {
		return sess.retention.Expiry(recordedAt)
	}
	if !sess.show.Retention.IsZero() {
		return sess.show.Retention.Expiry(recordedAt)
	}
	if days := m.cfg.Capture.DefaultRetentionDays; days > 0 {
		return store.Retention{Value: days, Unit: store.RetentionDays}.Expiry(recordedAt)
	}
	return nil
}

func capDuration(elapsed, planned time.Duration) time.Duration {
	if planned > 0 && elapsed > planned {
		return planned
	}
	return elapsed
}
