package scheduler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"radiocap/internal/capture"
	"radiocap/internal/scheduler"
	"radiocap/internal/services"
	"radiocap/internal/store"
	"radiocap/internal/testsupport"
	"radiocap/internal/tools"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeLauncher struct {
	mu       sync.Mutex
	requests []capture.StartRequest
	err      error
}

func (f *fakeLauncher) Start(_ context.Context, req capture.StartRequest) (capture.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return capture.StartResult{}, f.err
	}
	return capture.StartResult{Outcome: capture.OutcomeStarted, SessionID: "s", Tool: tools.Streamripper}, nil
}

func (f *fakeLauncher) Requests() []capture.StartRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capture.StartRequest(nil), f.requests...)
}

// monday0800 is 2026-03-02 08:00 UTC, a Monday.
var monday0800 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	station  *store.Station
	clock    *fakeClock
	launcher *fakeLauncher
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	f := &fixture{
		store:    st,
		station:  testsupport.NewStation(t, st, "KUTC", "http://stream.example.org/live", "UTC"),
		clock:    &fakeClock{now: monday0800},
		launcher: &fakeLauncher{},
	}
	f.sched = scheduler.New(cfg, st, f.launcher, nil, scheduler.WithClock(f.clock.Now))
	return f
}

func (f *fixture) refresh(t *testing.T) scheduler.RefreshSummary {
	t.Helper()
	summary, err := f.sched.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	return summary
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestRefreshAllIsIdempotent(t *testing.T) {
	f := newFixture(t)
	testsupport.NewShow(t, f.store, f.station, "breakfast", 60, "5 8 * * *", "0 20 * * *")
	testsupport.NewShow(t, f.store, f.station, "news", 10, "1 8 * * *")

	summary := f.refresh(t)
	if summary.Shows != 2 || summary.Triggers != 6 || len(summary.Errors) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	first := f.sched.Pending()
	f.refresh(t)
	if diff := cmp.Diff(first, f.sched.Pending()); diff != "" {
		t.Fatalf("second refresh changed pending triggers (-first +second):\n%s", diff)
	}
	for i := 1; i < len(first); i++ {
		if first[i].At.Before(first[i-1].At) {
			t.Fatalf("pending triggers out of order at %d: %v before %v", i, first[i].At, first[i-1].At)
		}
	}
}

func TestTickFiresDueTriggersInOrderAndReplenishes(t *testing.T) {
	f := newFixture(t)
	breakfast := testsupport.NewShow(t, f.store, f.station, "breakfast", 60, "5 8 * * *")
	news := testsupport.NewShow(t, f.store, f.station, "news", 10, "1 8 * * *")
	f.refresh(t)

	if fired := f.sched.Tick(context.Background()); len(fired) != 0 {
		t.Fatalf("nothing should be due at 08:00, fired %+v", fired)
	}

	f.clock.Set(at(8, 10))
	fired := f.sched.Tick(context.Background())
	if len(fired) != 2 {
		t.Fatalf("expected 2 fired triggers, got %+v", fired)
	}
	if fired[0].ShowID != news.ID || !fired[0].At.Equal(at(8, 1)) {
		t.Fatalf("expected news at 08:01 first, got %+v", fired[0])
	}
	if fired[1].ShowID != breakfast.ID || !fired[1].At.Equal(at(8, 5)) {
		t.Fatalf("expected breakfast at 08:05 second, got %+v", fired[1])
	}

	reqs := f.launcher.Requests()
	if len(reqs) != 2 || reqs[0].ShowID != news.ID || reqs[1].ShowID != breakfast.ID {
		t.Fatalf("unexpected launch order %+v", reqs)
	}
	for _, req := range reqs {
		if req.Source != capture.SourceSchedule || req.WaitForSlot {
			t.Fatalf("scheduled start should not wait for a slot: %+v", req)
		}
	}

	pending := f.sched.Pending()
	if len(pending) != 4 {
		t.Fatalf("expected lookahead to be restored to 4 pending, got %d", len(pending))
	}
	for _, trig := range pending {
		if !trig.At.After(at(8, 10)) {
			t.Fatalf("pending trigger %v is not in the future", trig.At)
		}
	}
	want := []time.Time{
		time.Date(2026, 3, 3, 8, 1, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 8, 1, 0, 0, time.UTC),
	}
	var got []time.Time
	for _, trig := range f.sched.PendingFor(news.ID) {
		got = append(got, trig.At)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("news pending mismatch (-want +got):\n%s", diff)
	}
}

func TestTickSkipsMissedBacklog(t *testing.T) {
	f := newFixture(t)
	show := testsupport.NewShow(t, f.store, f.station, "ticker", 1, "*/5 * * * *")
	f.refresh(t)

	f.clock.Set(at(9, 0))
	fired := f.sched.Tick(context.Background())
	if len(fired) != 1 {
		t.Fatalf("expected a single catch-up trigger, got %+v", fired)
	}
	if !fired[0].At.Equal(at(8, 10)) {
		t.Fatalf("expected the latest missed instant 08:10, got %v", fired[0].At)
	}

	var got []time.Time
	for _, trig := range f.sched.PendingFor(show.ID) {
		got = append(got, trig.At)
	}
	if diff := cmp.Diff([]time.Time{at(9, 5), at(9, 10)}, got); diff != "" {
		t.Fatalf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshIsolatesBadPatterns(t *testing.T) {
	f := newFixture(t)
	show := testsupport.NewShow(t, f.store, f.station, "mixed", 30, "not a pattern", "0 9 * * *")
	other := testsupport.NewShow(t, f.store, f.station, "other", 30, "0 10 * * *")

	summary := f.refresh(t)
	if len(summary.Errors) != 1 {
		t.Fatalf("expected one airing error, got %v", summary.Errors)
	}
	if !errors.Is(summary.Errors[0], services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", summary.Errors[0])
	}
	if n := len(f.sched.PendingFor(show.ID)); n != 2 {
		t.Fatalf("valid airing should still be scheduled, got %d pending", n)
	}
	if n := len(f.sched.PendingFor(other.ID)); n != 2 {
		t.Fatalf("other show should be unaffected, got %d pending", n)
	}
}

func TestRefreshShowDropsDeactivatedShow(t *testing.T) {
	f := newFixture(t)
	show := testsupport.NewShow(t, f.store, f.station, "retired", 30, "0 9 * * *")
	keep := testsupport.NewShow(t, f.store, f.station, "kept", 30, "0 10 * * *")
	f.refresh(t)

	show.Active = false
	if _, _, err := f.store.UpsertShow(context.Background(), *show); err != nil {
		t.Fatalf("UpsertShow: %v", err)
	}
	n, err := f.sched.RefreshShow(context.Background(), show.ID)
	if err != nil {
		t.Fatalf("RefreshShow: %v", err)
	}
	if n != 0 || len(f.sched.PendingFor(show.ID)) != 0 {
		t.Fatalf("deactivated show still has %d pending triggers", len(f.sched.PendingFor(show.ID)))
	}
	if len(f.sched.PendingFor(keep.ID)) != 2 {
		t.Fatalf("unrelated show lost its triggers")
	}

	n, err = f.sched.RefreshShow(context.Background(), keep.ID)
	if err != nil || n != 2 {
		t.Fatalf("RefreshShow(kept) = %d, %v", n, err)
	}
	if len(f.sched.PendingFor(keep.ID)) != 2 {
		t.Fatalf("refreshing a show should not duplicate its triggers")
	}
}

func TestTriggerNowRequestsManualCaptureWithSlotWait(t *testing.T) {
	f := newFixture(t)
	show := testsupport.NewShow(t, f.store, f.station, "manual", 30, "0 9 * * *")
	retention := &store.Retention{Value: 2, Unit: store.RetentionWeeks}

	if _, err := f.sched.TriggerNow(context.Background(), show.ID, scheduler.TriggerOptions{Duration: time.Minute, Retention: retention}); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	reqs := f.launcher.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	want := capture.StartRequest{
		ShowID:      show.ID,
		Source:      capture.SourceManual,
		Duration:    time.Minute,
		Retention:   retention,
		WaitForSlot: true,
	}
	if diff := cmp.Diff(want, reqs[0]); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}

	f.launcher.err = services.Wrap(services.ErrNotFound, "capture", "start", "show 999", nil)
	if _, err := f.sched.TriggerNow(context.Background(), 999, scheduler.TriggerOptions{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// blockingExecutor writes a little audio and then holds until cancelled.
type blockingExecutor struct {
	calls atomic.Int32
}

func (b *blockingExecutor) Run(ctx context.Context, _ string, args []string, _ func(string)) error {
	b.calls.Add(1)
	var dir string
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "-d":
			dir = args[i+1]
		case "-o":
			dir = filepath.Dir(args[i+1])
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "capture.mp3"), make([]byte, 4096), 0o644); err != nil {
		return err
	}
	<-ctx.Done()
	return context.Cause(ctx)
}

func TestTriggerNowDuringScheduledSessionIsAlreadyRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, st, "KUTC", "http://stream.example.org/live", "UTC")
	show := testsupport.NewShow(t, st, station, "overlap", 60, "1 8 * * *")

	exec := &blockingExecutor{}
	mgr, err := capture.NewManager(cfg, st, tools.NewRegistry(cfg), nil, capture.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mgr.Close(ctx); err != nil {
			t.Errorf("close manager: %v", err)
		}
	}()

	clock := &fakeClock{now: monday0800}
	sched := scheduler.New(cfg, st, mgr, nil, scheduler.WithClock(clock.Now))
	if _, err := sched.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	clock.Set(at(8, 1))
	if fired := sched.Tick(context.Background()); len(fired) != 1 {
		t.Fatalf("expected the 08:01 trigger to fire, got %+v", fired)
	}
	if !mgr.OnAir(show.ID) {
		t.Fatal("scheduled session should be on air")
	}

	res, err := sched.TriggerNow(context.Background(), show.ID, scheduler.TriggerOptions{})
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if res.Outcome != capture.OutcomeAlreadyRunning {
		t.Fatalf("expected already_running, got %s", res.Outcome)
	}

	deadline := time.Now().Add(5 * time.Second)
	for exec.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := exec.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one capture process, got %d", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	testsupport.NewShow(t, f.store, f.station, "loop", 30, "0 9 * * *")
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(f.sched.Pending()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(f.sched.Pending()) != 2 {
		t.Fatalf("Run should refresh on start, pending=%d", len(f.sched.Pending()))
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
