// Package reaper deletes recordings whose retention has expired.
//
// Only persisted rows are considered, so a session that is still capturing
// or finalizing can never be reaped. The file goes first and the row second:
// a file that cannot be removed keeps its row and is retried next cycle.
package reaper

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"radiocap/internal/config"
	"radiocap/internal/logging"
	"radiocap/internal/metrics"
	"radiocap/internal/services"
	"radiocap/internal/store"
)

// Store is the persistence the reaper needs. *store.Store satisfies it.
type Store interface {
	ListExpiredRecordings(ctx context.Context, now time.Time) ([]store.Recording, error)
	DeleteRecording(ctx context.Context, id int64) error
}

// Summary reports one sweep.
type Summary struct {
	Scanned int
	Removed int
	// Missing counts expired rows whose file was already gone; they are
	// removed like any other.
	Missing int
	Failed  int
}

// Option configures the Reaper.
type Option func(*Reaper)

// WithClock overrides the time source used to decide expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

// Reaper sweeps expired recordings.
type Reaper struct {
	cfg    *config.Config
	store  Store
	logger *slog.Logger
	now    func() time.Time
	remove func(string) error
}

// New constructs a reaper.
func New(cfg *config.Config, st Store, logger *slog.Logger, opts ...Option) *Reaper {
	r := &Reaper{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "reaper"),
		now:    time.Now,
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce deletes every recording whose expiry is at or before now.
// Recordings without an expiry are never selected.
func (r *Reaper) RunOnce(ctx context.Context) (Summary, error) {
	recs, err := r.store.ListExpiredRecordings(ctx, r.now())
	if err != nil {
		return Summary{}, services.Wrap(services.ErrPersistence, "reaper", "list expired", "", err)
	}
	summary := Summary{Scanned: len(recs)}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		logger := r.logger.With(
			logging.Int64(logging.FieldShowID, rec.ShowID),
			logging.Int64("recording_id", rec.ID),
			logging.String("path", r.pathOf(rec)),
		)
		missing, err := r.removeFile(rec)
		if err != nil {
			summary.Failed++
			metrics.RecordReaped("failed")
			logging.WarnWithContext(logger, "expired recording could not be deleted", "reap_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "recording kept until the next sweep"),
				logging.String(logging.FieldErrorHint, "check permissions on the recordings directory"),
			)
			continue
		}
		if err := r.store.DeleteRecording(ctx, rec.ID); err != nil {
			summary.Failed++
			metrics.RecordReaped("failed")
			logging.WarnWithContext(logger, "expired recording row could not be deleted", "reap_failed",
				logging.Error(err),
				logging.ErrorKind(err),
			)
			continue
		}
		if missing {
			summary.Missing++
			metrics.RecordReaped("missing")
		} else {
			metrics.RecordReaped("removed")
		}
		summary.Removed++
		logger.Debug("expired recording deleted", logging.Bool("file_missing", missing))
	}
	if summary.Scanned > 0 {
		r.logger.Info("retention sweep complete",
			logging.Int("scanned", summary.Scanned),
			logging.Int("removed", summary.Removed),
			logging.Int("missing", summary.Missing),
			logging.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

func (r *Reaper) pathOf(rec store.Recording) string {
	if rec.Path != "" {
		return rec.Path
	}
	return filepath.Join(r.cfg.Paths.RecordingsDir, rec.Filename)
}

func (r *Reaper) removeFile(rec store.Recording) (missing bool, err error) {
	err = r.remove(r.pathOf(rec))
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, err
}

// Run sweeps once immediately and then every retention interval until ctx
// is cancelled. A disabled reaper returns at once.
func (r *Reaper) Run(ctx context.Context) error {
	if !r.cfg.Retention.Enabled {
		r.logger.Info("retention sweeps disabled")
		return nil
	}
	interval := r.cfg.ReapInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	sweep := func() {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(r.logger, "retention sweep failed", "reap_sweep_failed",
				logging.Error(err),
				logging.ErrorKind(err),
			)
		}
	}
	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}
