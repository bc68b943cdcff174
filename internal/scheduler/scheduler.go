package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"radiocap/internal/capture"
	"radiocap/internal/config"
	"radiocap/internal/logging"
	"radiocap/internal/metrics"
	"radiocap/internal/schedule"
	"radiocap/internal/services"
	"radiocap/internal/store"
)

// Launcher starts capture sessions. *capture.Manager satisfies it.
type Launcher interface {
	Start(ctx context.Context, req capture.StartRequest) (capture.StartResult, error)
}

// Catalog is the read side of the store the scheduler resolves from.
type Catalog interface {
	ListShows(ctx context.Context) ([]store.Show, error)
	ListStations(ctx context.Context) ([]store.Station, error)
	GetShow(ctx context.Context, id int64) (*store.Show, error)
	GetStation(ctx context.Context, id int64) (*store.Station, error)
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to decide which triggers are due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// RefreshSummary reports the outcome of a full refresh.
type RefreshSummary struct {
	Shows    int
	Triggers int
	Errors   []error
}

// TriggerOptions adjusts a manual capture.
type TriggerOptions struct {
	Duration  time.Duration
	Retention *store.Retention
}

// Scheduler keeps the pending trigger instants of every schedulable show and
// hands due ones to the Launcher.
type Scheduler struct {
	catalog  Catalog
	launcher Launcher
	resolver *schedule.Resolver
	logger   *slog.Logger
	tick     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending triggerHeap
	seq     uint64

	refresh singleflight.Group
}

type airingKey struct {
	showID   int64
	airingID int64
}

// New constructs a scheduler.
func New(cfg *config.Config, catalog Catalog, launcher Launcher, logger *slog.Logger, opts ...Option) *Scheduler {
	tick := cfg.TickInterval()
	if tick <= 0 {
		tick = time.Second
	}
	s := &Scheduler{
		catalog:  catalog,
		launcher: launcher,
		resolver: schedule.NewResolver(cfg.Scheduler.Lookahead),
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		tick:     tick,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run refreshes every show and then fires due triggers on each tick until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.RefreshAll(ctx); err != nil {
		logging.WarnWithContext(s.logger, "initial schedule refresh failed", "scheduler_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no triggers until the next refresh"),
			logging.String(logging.FieldErrorHint, "check the database and catalog, then run radiocap schedule refresh"),
		)
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every trigger due at the current instant and returns them in
// firing order.
func (s *Scheduler) Tick(ctx context.Context) []schedule.Trigger {
	due := s.popDue(s.now())
	for _, trig := range due {
		s.fire(ctx, trig)
	}
	return due
}

// popDue removes due entries and schedules each airing's replacement
// instants. Only the latest due instant of an airing is returned; older ones
// were missed while the daemon was busy or asleep and are not replayed.
func (s *Scheduler) popDue(now time.Time) []schedule.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	var popped []*entry
	for s.pending.Len() > 0 && !s.pending[0].trigger.At.After(now) {
		popped = append(popped, heap.Pop(&s.pending).(*entry))
	}
	if len(popped) == 0 {
		return nil
	}

	latest := make(map[airingKey]*entry, len(popped))
	counts := make(map[airingKey]int, len(popped))
	var order []airingKey
	for _, e := range popped {
		key := airingKey{e.trigger.ShowID, e.trigger.AiringID}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
		latest[key] = e
	}

	due := make([]schedule.Trigger, 0, len(order))
	for _, e := range popped {
		key := airingKey{e.trigger.ShowID, e.trigger.AiringID}
		if latest[key] != e {
			s.logger.Debug("skipping missed trigger",
				logging.Int64(logging.FieldShowID, e.trigger.ShowID),
				logging.Int64(logging.FieldAiringID, e.trigger.AiringID),
				logging.Time("at", e.trigger.At),
			)
			continue
		}
		due = append(due, e.trigger)
	}

	horizon := make(map[airingKey]time.Time, len(order))
	for _, e := range s.pending {
		key := airingKey{e.trigger.ShowID, e.trigger.AiringID}
		if _, ok := counts[key]; ok && e.trigger.At.After(horizon[key]) {
			horizon[key] = e.trigger.At
		}
	}
	for _, key := range order {
		e := latest[key]
		cursor := now
		if h := horizon[key]; h.After(cursor) {
			cursor = h
		}
		for i := 0; i < counts[key]; i++ {
			next, err := s.resolver.NextAfter(e.plan.show, e.plan.station, e.plan.airing, cursor)
			if err != nil {
				if !errors.Is(err, schedule.ErrNoOccurrence) {
					logging.WarnWithContext(s.logger, "airing could not be rescheduled", "airing_resolve_failed",
						logging.Int64(logging.FieldShowID, key.showID),
						logging.Int64(logging.FieldAiringID, key.airingID),
						logging.Error(err),
					)
				}
				break
			}
			s.pushLocked(schedule.Trigger{
				At:         next,
				ShowID:     e.trigger.ShowID,
				StationID:  e.trigger.StationID,
				AiringID:   e.trigger.AiringID,
				Priority:   e.trigger.Priority,
				AiringType: e.trigger.AiringType,
			}, e.plan)
			cursor = next
		}
	}
	metrics.SetPendingTriggers(s.pending.Len())
	return due
}

func (s *Scheduler) fire(ctx context.Context, trig schedule.Trigger) {
	logger := s.logger.With(
		logging.Int64(logging.FieldShowID, trig.ShowID),
		logging.Int64(logging.FieldAiringID, trig.AiringID),
	)
	res, err := s.launcher.Start(ctx, capture.StartRequest{
		ShowID:   trig.ShowID,
		AiringID: trig.AiringID,
		Source:   capture.SourceSchedule,
	})
	if err != nil {
		logging.WarnWithContext(logger, "scheduled capture not started", "trigger_rejected",
			logging.Time("at", trig.At),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldImpact, "this airing will not be recorded"),
		)
		return
	}
	logger.Info("trigger fired",
		logging.Time("at", trig.At),
		logging.String("outcome", string(res.Outcome)),
		logging.String(logging.FieldSessionID, res.SessionID),
		logging.String(logging.FieldTool, string(res.Tool)),
	)
}

// RefreshAll rebuilds the pending set from the store. Concurrent callers
// share one refresh.
func (s *Scheduler) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	v, err, _ := s.refresh.Do("all", func() (any, error) {
		return s.refreshAll(ctx)
	})
	summary, _ := v.(RefreshSummary)
	return summary, err
}

func (s *Scheduler) refreshAll(ctx context.Context) (RefreshSummary, error) {
	shows, err := s.catalog.ListShows(ctx)
	if err != nil {
		return RefreshSummary{}, services.Wrap(services.ErrPersistence, "scheduler", "list shows", "", err)
	}
	stations, err := s.catalog.ListStations(ctx)
	if err != nil {
		return RefreshSummary{}, services.Wrap(services.ErrPersistence, "scheduler", "list stations", "", err)
	}
	byID := make(map[int64]store.Station, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}

	now := s.now()
	var summary RefreshSummary
	type resolved struct {
		res  schedule.Resolution
		plan map[int64]*plan
	}
	var batches []resolved
	for _, show := range shows {
		if !show.Schedulable() {
			continue
		}
		station, ok := byID[show.StationID]
		if !ok {
			err := services.Wrap(services.ErrConfiguration, "scheduler", "refresh", "station missing", nil)
			summary.Errors = append(summary.Errors, err)
			logging.WarnWithContext(s.logger, "show references a missing station", "show_station_missing",
				logging.Int64(logging.FieldShowID, show.ID),
				logging.Int64(logging.FieldStationID, show.StationID),
			)
			continue
		}
		summary.Shows++
		res := s.resolver.Resolve(show, station, now)
		s.logAiringErrors(res.Errors)
		summary.Errors = append(summary.Errors, res.Errors...)
		batches = append(batches, resolved{res: res, plan: plansFor(show, station)})
	}

	s.mu.Lock()
	s.pending = s.pending[:0]
	for _, b := range batches {
		for _, trig := range b.res.Triggers {
			s.pushLocked(trig, b.plan[trig.AiringID])
			summary.Triggers++
		}
	}
	metrics.SetPendingTriggers(s.pending.Len())
	s.mu.Unlock()

	s.logger.Info("schedule refreshed",
		logging.Int("shows", summary.Shows),
		logging.Int("triggers", summary.Triggers),
		logging.Int("errors", len(summary.Errors)),
		logging.Int("lookahead", s.resolver.Lookahead()),
	)
	return summary, nil
}

// RefreshShow re-resolves a single show, replacing its pending triggers. A
// show that no longer exists or is no longer schedulable just loses them.
// It returns the number of triggers now pending for the show.
func (s *Scheduler) RefreshShow(ctx context.Context, showID int64) (int, error) {
	show, err := s.catalog.GetShow(ctx, showID)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "scheduler", "get show", "", err)
	}
	var (
		res   schedule.Resolution
		plans map[int64]*plan
	)
	if show != nil && show.Schedulable() {
		station, err := s.catalog.GetStation(ctx, show.StationID)
		if err != nil {
			return 0, services.Wrap(services.ErrPersistence, "scheduler", "get station", "", err)
		}
		if station == nil {
			return 0, services.Wrap(services.ErrConfiguration, "scheduler", "refresh show", "station missing", nil)
		}
		res = s.resolver.Resolve(*show, *station, s.now())
		s.logAiringErrors(res.Errors)
		plans = plansFor(*show, *station)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.removeShow(showID)
	for _, trig := range res.Triggers {
		s.pushLocked(trig, plans[trig.AiringID])
	}
	metrics.SetPendingTriggers(s.pending.Len())
	if len(res.Errors) > 0 {
		return len(res.Triggers), errors.Join(res.Errors...)
	}
	return len(res.Triggers), nil
}

// TriggerNow starts a manual capture of showID. Unlike scheduled triggers it
// waits for a capture slot, so resource exhaustion is reported to the caller.
func (s *Scheduler) TriggerNow(ctx context.Context, showID int64, opts TriggerOptions) (capture.StartResult, error) {
	res, err := s.launcher.Start(ctx, capture.StartRequest{
		ShowID:      showID,
		Source:      capture.SourceManual,
		Duration:    opts.Duration,
		Retention:   opts.Retention,
		WaitForSlot: true,
	})
	if err != nil {
		return res, err
	}
	s.logger.Info("manual capture requested",
		logging.Int64(logging.FieldShowID, showID),
		logging.String("outcome", string(res.Outcome)),
		logging.String(logging.FieldSessionID, res.SessionID),
	)
	return res, nil
}

// Pending returns a copy of the pending triggers in firing order.
func (s *Scheduler) Pending() []schedule.Trigger {
	s.mu.Lock()
	entries := make([]*entry, len(s.pending))
	copy(entries, s.pending)
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.trigger.At.Equal(b.trigger.At) {
			return a.trigger.At.Before(b.trigger.At)
		}
		return a.seq < b.seq
	})
	out := make([]schedule.Trigger, len(entries))
	for i, e := range entries {
		out[i] = e.trigger
	}
	return out
}

// PendingFor returns the pending triggers of one show in firing order.
func (s *Scheduler) PendingFor(showID int64) []schedule.Trigger {
	var out []schedule.Trigger
	for _, trig := range s.Pending() {
		if trig.ShowID == showID {
			out = append(out, trig)
		}
	}
	return out
}

func (s *Scheduler) pushLocked(trig schedule.Trigger, p *plan) {
	s.seq++
	heap.Push(&s.pending, &entry{trigger: trig, plan: p, seq: s.seq})
}

func (s *Scheduler) logAiringErrors(errs []error) {
	for _, err := range errs {
		var airingErr *schedule.AiringError
		attrs := []logging.Attr{logging.Error(err), logging.ErrorKind(err)}
		if errors.As(err, &airingErr) {
			attrs = append(attrs,
				logging.Int64(logging.FieldShowID, airingErr.ShowID),
				logging.Int64(logging.FieldAiringID, airingErr.AiringID),
				logging.String("pattern", airingErr.Pattern),
			)
		}
		attrs = append(attrs,
			logging.String(logging.FieldImpact, "airing skipped; other airings are unaffected"),
			logging.String(logging.FieldErrorHint, "fix the airing pattern or timezone in the catalog"),
		)
		logging.WarnWithContext(s.logger, "airing could not be resolved", "airing_resolve_failed", attrs...)
	}
}

func plansFor(show store.Show, station store.Station) map[int64]*plan {
	plans := make(map[int64]*plan, len(show.Airings))
	for _, airing := range show.ActiveAirings() {
		plans[airing.ID] = &plan{show: show, station: station, airing: airing}
	}
	return plans
}
