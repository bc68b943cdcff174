package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"radiocap/internal/store"
	"radiocap/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	station := testsupport.NewStation(t, st, "KEXP", "http://live.kexp.org/kexp128.mp3", "America/Los_Angeles")
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetStation(context.Background(), station.ID)
	if err != nil || got == nil || got.CallSign != "KEXP" {
		t.Fatalf("station not persisted: %#v, %v", got, err)
	}
	if got.Compatibility != store.CompatibilityUnknown {
		t.Fatalf("new station compatibility = %q", got.Compatibility)
	}
}

func TestUpsertStationReportsStreamChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := store.Station{CallSign: "WFMU", Name: "WFMU", StreamURL: "http://stream0.wfmu.org/freeform-128k", Timezone: "America/New_York"}
	first, changed, err := st.UpsertStation(ctx, base)
	if err != nil || !changed {
		t.Fatalf("insert: changed=%v err=%v", changed, err)
	}
	if _, changed, err = st.UpsertStation(ctx, base); err != nil || changed {
		t.Fatalf("identical upsert: changed=%v err=%v", changed, err)
	}

	renamed := base
	renamed.Name = "WFMU 91.1"
	if _, changed, err = st.UpsertStation(ctx, renamed); err != nil || changed {
		t.Fatalf("rename should not count as stream change: changed=%v err=%v", changed, err)
	}

	if err := st.UpdateStationCompatibility(ctx, first.ID, store.CompatibilityUpdate{
		RecommendedTool: "ffmpeg",
		Status:          store.CompatibilityCompatible,
		TestedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("update compatibility: %v", err)
	}

	moved := renamed
	moved.StreamURL = "https://stream0.wfmu.org/freeform-256k"
	updated, changed, err := st.UpsertStation(ctx, moved)
	if err != nil || !changed {
		t.Fatalf("url change: changed=%v err=%v", changed, err)
	}
	if updated.ID != first.ID || updated.StreamURL != moved.StreamURL || updated.Name != "WFMU 91.1" {
		t.Fatalf("unexpected updated station %#v", updated)
	}
	if updated.LastTestedAt != nil {
		t.Fatalf("stream change kept last tested time %v", updated.LastTestedAt)
	}
	if updated.RecommendedTool != "ffmpeg" {
		t.Fatalf("stream change cleared recommendation: %q", updated.RecommendedTool)
	}
}

func TestUpdateStationCompatibilityKeepsRecommendation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	station := testsupport.NewStation(t, st, "KCRW", "https://kcrw.streamguys1.com/live", "America/Los_Angeles")

	tested := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.UpdateStationCompatibility(ctx, station.ID, store.CompatibilityUpdate{
		RecommendedTool: "streamripper",
		Status:          store.CompatibilityCompatible,
		Result:          "streamripper ok",
		TestedAt:        tested,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := st.UpdateStationCompatibility(ctx, station.ID, store.CompatibilityUpdate{
		Status:   store.CompatibilityIncompatible,
		Result:   "all tools failed",
		TestedAt: tested.Add(time.Hour),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.GetStation(ctx, station.ID)
	if err != nil {
		t.Fatalf("GetStation: %v", err)
	}
	if got.RecommendedTool != "streamripper" {
		t.Fatalf("recommended tool cleared: %q", got.RecommendedTool)
	}
	if got.Compatibility != store.CompatibilityIncompatible {
		t.Fatalf("compatibility = %q", got.Compatibility)
	}
	if got.LastTestedAt == nil || !got.LastTestedAt.Equal(tested.Add(time.Hour)) {
		t.Fatalf("last tested = %v", got.LastTestedAt)
	}

	if err := st.UpdateStationCompatibility(ctx, 9999, store.CompatibilityUpdate{Status: store.CompatibilityCompatible}); err == nil {
		t.Fatal("expected error for missing station")
	}
}

func TestUpsertShowReplacesAirings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	station := testsupport.NewStation(t, st, "KEXP", "http://live.kexp.org/kexp128.mp3", "America/Los_Angeles")

	show := testsupport.NewShow(t, st, station, "morning-show", 180, "0 6 * * 1-5", "0 9 * * 6")
	if len(show.Airings) != 2 {
		t.Fatalf("expected 2 airings, got %d", len(show.Airings))
	}
	if !show.Schedulable() {
		t.Fatal("expected show to be schedulable")
	}

	again, changed, err := st.UpsertShow(ctx, *show)
	if err != nil || changed {
		t.Fatalf("identical upsert: changed=%v err=%v", changed, err)
	}
	if again.Airings[0].ID != show.Airings[0].ID {
		t.Fatal("unchanged upsert should keep airing ids")
	}

	edited := *show
	edited.Airings = []store.Airing{{Pattern: "30 7 * * *", Priority: 1, Active: true, Type: store.AiringRepeat}}
	stored, changed, err := st.UpsertShow(ctx, edited)
	if err != nil || !changed {
		t.Fatalf("edit: changed=%v err=%v", changed, err)
	}
	want := []store.Airing{{ID: stored.Airings[0].ID, ShowID: show.ID, Pattern: "30 7 * * *", Type: store.AiringRepeat, Priority: 1, Active: true}}
	if diff := cmp.Diff(want, stored.Airings); diff != "" {
		t.Fatalf("airings mismatch (-want +got):\n%s", diff)
	}

	shows, err := st.ListShows(ctx)
	if err != nil {
		t.Fatalf("ListShows: %v", err)
	}
	if len(shows) != 1 || len(shows[0].Airings) != 1 {
		t.Fatalf("unexpected shows %#v", shows)
	}
}

func TestDeactivateShowsExcept(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	station := testsupport.NewStation(t, st, "KEXP", "http://live.kexp.org/kexp128.mp3", "")
	keep := testsupport.NewShow(t, st, station, "keep", 60, "0 6 * * *")
	drop := testsupport.NewShow(t, st, station, "drop", 60, "0 7 * * *")

	ids, err := st.DeactivateShowsExcept(ctx, []string{"keep"})
	if err != nil {
		t.Fatalf("DeactivateShowsExcept: %v", err)
	}
	if diff := cmp.Diff([]int64{drop.ID}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	got, _ := st.GetShow(ctx, drop.ID)
	if got.Active {
		t.Fatal("expected dropped show inactive")
	}
	if got, _ := st.GetShow(ctx, keep.ID); !got.Active {
		t.Fatal("expected kept show active")
	}
}

func TestInsertRecordingRejectsDuplicateFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := &store.Recording{ShowID: 1, StationID: 1, Filename: "kexp_morning_20260301T1400Z.mp3", Path: "/tmp/x.mp3", SizeBytes: 10}
	if err := st.InsertRecording(ctx, rec); err != nil {
		t.Fatalf("InsertRecording: %v", err)
	}
	if rec.ID == 0 || rec.SourceType != store.SourceRecorded {
		t.Fatalf("unexpected recording after insert: %#v", rec)
	}
	dup := &store.Recording{ShowID: 1, StationID: 1, Filename: rec.Filename, Path: "/tmp/y.mp3"}
	err := st.InsertRecording(ctx, dup)
	if !errors.Is(err, store.ErrDuplicateFilename) {
		t.Fatalf("expected ErrDuplicateFilename, got %v", err)
	}
	exists, err := st.FilenameExists(ctx, rec.Filename)
	if err != nil || !exists {
		t.Fatalf("FilenameExists = %v, %v", exists, err)
	}
}

func TestListExpiredRecordingsSkipsIndefinite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	recs := []*store.Recording{
		{ShowID: 1, Filename: "expired.mp3", Path: "/r/expired.mp3", ExpiresAt: &yesterday},
		{ShowID: 1, Filename: "forever.mp3", Path: "/r/forever.mp3"},
		{ShowID: 1, Filename: "later.mp3", Path: "/r/later.mp3", ExpiresAt: &tomorrow},
	}
	for _, rec := range recs {
		if err := st.InsertRecording(ctx, rec); err != nil {
			t.Fatalf("InsertRecording %s: %v", rec.Filename, err)
		}
	}

	expired, err := st.ListExpiredRecordings(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredRecordings: %v", err)
	}
	if len(expired) != 1 || expired[0].Filename != "expired.mp3" {
		t.Fatalf("unexpected expired set %#v", expired)
	}
	if err := st.DeleteRecording(ctx, expired[0].ID); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	all, err := st.ListRecordings(ctx, store.RecordingFilter{ShowID: 1})
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 remaining recordings, got %d", len(all))
	}
}

func TestRetentionExpiry(t *testing.T) {
	recorded := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		policy store.Retention
		want   *time.Time
	}{
		{store.Retention{Value: 3, Unit: store.RetentionDays}, ptr(recorded.AddDate(0, 0, 3))},
		{store.Retention{Value: 2, Unit: store.RetentionWeeks}, ptr(recorded.AddDate(0, 0, 14))},
		{store.Retention{Value: 1, Unit: store.RetentionMonths}, ptr(recorded.AddDate(0, 1, 0))},
		{store.Retention{Unit: store.RetentionIndefinite}, nil},
		{store.Retention{Value: 5, Unit: store.RetentionIndefinite}, nil},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, tc.policy.Expiry(recorded)); diff != "" {
			t.Fatalf("%+v expiry mismatch (-want +got):\n%s", tc.policy, diff)
		}
	}
	if !(store.Retention{}).IsZero() || (store.Retention{Unit: store.RetentionIndefinite}).IsZero() {
		t.Fatal("IsZero misreports")
	}
}

func TestAuditTrails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	station := testsupport.NewStation(t, st, "KEXP", "http://live.kexp.org/kexp128.mp3", "")

	result := &store.StreamTestResult{StationID: station.ID, URL: station.StreamURL, Tool: "ffmpeg", Outcome: store.CompatibilityCompatible, Bytes: 8192, Duration: 1500 * time.Millisecond}
	if err := st.InsertStreamTest(ctx, result); err != nil {
		t.Fatalf("InsertStreamTest: %v", err)
	}
	tests, err := st.ListStreamTests(ctx, station.ID, 10)
	if err != nil || len(tests) != 1 || tests[0].Duration != 1500*time.Millisecond {
		t.Fatalf("ListStreamTests = %#v, %v", tests, err)
	}

	started := time.Now().Add(-time.Minute)
	attempt := &store.CaptureAttempt{SessionID: "s1", ShowID: 4, Tool: "streamripper", Attempt: 1, Outcome: store.AttemptEmptyOutput, StartedAt: started, EndedAt: started.Add(5 * time.Second)}
	if err := st.InsertCaptureAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertCaptureAttempt: %v", err)
	}
	attempts, err := st.ListCaptureAttempts(ctx, 4, 0)
	if err != nil || len(attempts) != 1 || attempts[0].Outcome != store.AttemptEmptyOutput {
		t.Fatalf("ListCaptureAttempts = %#v, %v", attempts, err)
	}
}

func ptr(t time.Time) *time.Time { return &t }
