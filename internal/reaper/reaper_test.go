package reaper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"radiocap/internal/store"
	"radiocap/internal/testsupport"
)

var sweepTime = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func insertRecording(t *testing.T, st *store.Store, show *store.Show, dir, name string, expires *time.Time, withFile bool) *store.Recording {
	t.Helper()
	path := filepath.Join(dir, name)
	if withFile {
		testsupport.WriteRecordingFile(t, dir, name, 1024)
	}
	rec := &store.Recording{
		ShowID:          show.ID,
		StationID:       show.StationID,
		Filename:        name,
		Path:            path,
		SourceType:      store.SourceRecorded,
		SizeBytes:       1024,
		DurationSeconds: 60,
		Tool:            "streamripper",
		RecordedAt:      sweepTime.Add(-30 * 24 * time.Hour),
		ExpiresAt:       expires,
	}
	if err := st.InsertRecording(context.Background(), rec); err != nil {
		t.Fatalf("InsertRecording: %v", err)
	}
	return rec
}

func ptr(t time.Time) *time.Time { return &t }

func TestRunOnceDeletesOnlyExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, st, "KRPR", "http://stream.example.org/live", "UTC")
	show := testsupport.NewShow(t, st, station, "archive", 60, "0 8 * * *")
	dir := cfg.Paths.RecordingsDir

	expired := insertRecording(t, st, show, dir, "expired.mp3", ptr(sweepTime.Add(-time.Hour)), true)
	boundary := insertRecording(t, st, show, dir, "boundary.mp3", ptr(sweepTime), true)
	gone := insertRecording(t, st, show, dir, "gone.mp3", ptr(sweepTime.Add(-time.Minute)), false)
	future := insertRecording(t, st, show, dir, "future.mp3", ptr(sweepTime.Add(time.Hour)), true)
	forever := insertRecording(t, st, show, dir, "forever.mp3", nil, true)

	r := New(cfg, st, nil, WithClock(func() time.Time { return sweepTime }))
	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := Summary{Scanned: 3, Removed: 3, Missing: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	for _, rec := range []*store.Recording{expired, boundary} {
		if _, err := os.Stat(rec.Path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s should be deleted, stat err=%v", rec.Filename, err)
		}
	}
	for _, rec := range []*store.Recording{future, forever} {
		if _, err := os.Stat(rec.Path); err != nil {
			t.Fatalf("%s should survive: %v", rec.Filename, err)
		}
	}

	left, err := st.ListRecordings(context.Background(), store.RecordingFilter{ShowID: show.ID})
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	names := map[string]bool{}
	for _, rec := range left {
		names[rec.Filename] = true
	}
	if len(left) != 2 || !names["future.mp3"] || !names["forever.mp3"] || names[gone.Filename] {
		t.Fatalf("unexpected surviving rows %v", names)
	}

	again, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if again != (Summary{}) {
		t.Fatalf("second sweep should be a no-op, got %+v", again)
	}
}

func TestRunOnceKeepsRowWhenFileRemovalFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, st, "KRPR", "http://stream.example.org/live", "UTC")
	show := testsupport.NewShow(t, st, station, "stuck", 60, "0 8 * * *")
	rec := insertRecording(t, st, show, cfg.Paths.RecordingsDir, "stuck.mp3", ptr(sweepTime.Add(-time.Hour)), true)

	r := New(cfg, st, nil, WithClock(func() time.Time { return sweepTime }))
	r.remove = func(string) error { return os.ErrPermission }

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Failed != 1 || summary.Removed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	left, err := st.ListExpiredRecordings(context.Background(), sweepTime)
	if err != nil {
		t.Fatalf("ListExpiredRecordings: %v", err)
	}
	if len(left) != 1 || left[0].ID != rec.ID {
		t.Fatalf("row should be kept for retry, got %+v", left)
	}

	r.remove = os.Remove
	summary, err = r.RunOnce(context.Background())
	if err != nil || summary.Removed != 1 {
		t.Fatalf("retry sweep = %+v, %v", summary, err)
	}
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.Enabled = false
	r := New(cfg, nil, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
