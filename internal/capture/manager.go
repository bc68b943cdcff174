package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"radiocap/internal/config"
	"radiocap/internal/logging"
	"radiocap/internal/metrics"
	"radiocap/internal/services"
	"radiocap/internal/store"
	"radiocap/internal/tools"
)

// WithCompletionHook registers fn to run after every session finishes.
func WithCompletionHook(fn func(Report)) Option {
	return func(m *Manager) {
		m.onComplete = fn
	}
}

// Manager owns the registry of live capture sessions. At most one session
// exists per show; the registry is only touched under mu and only copied
// out as snapshots.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	registry *tools.Registry
	exec     Executor
	logger   *slog.Logger
	slots    *semaphore.Weighted
	now      func() time.Time

	onComplete func(Report)

	baseCtx context.Context
	cancel  context.CancelCauseFunc

	mu       sync.Mutex
	sessions map[int64]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewManager constructs a capture manager.
func NewManager(cfg *config.Config, st *store.Store, registry *tools.Registry, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("capture manager requires config")
	}
	if st == nil {
		return nil, errors.New("capture manager requires store")
	}
	if registry == nil {
		registry = tools.NewRegistry(cfg)
	}
	limit := cfg.Capture.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	baseCtx, cancel := context.WithCancelCause(context.Background())
	m := &Manager{
		cfg:      cfg,
		store:    st,
		registry: registry,
		exec:     processExecutor{grace: cfg.Grace()},
		logger:   logging.NewComponentLogger(logger, "capture"),
		slots:    semaphore.NewWeighted(int64(limit)),
		now:      time.Now,
		baseCtx:  baseCtx,
		cancel:   cancel,
		sessions: make(map[int64]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start registers a capture session for req.ShowID. A show that already has
// a session yields OutcomeAlreadyRunning and a nil error. Configuration
// problems (unknown show, stream-only show, missing stream URL) are errors.
func (m *Manager) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if req.Source == "" {
		req.Source = SourceSchedule
	}
	show, station, err := m.loadTarget(ctx, req.ShowID)
	if err != nil {
		return StartResult{}, err
	}

	planned := req.Duration
	if planned <= 0 {
		planned = show.Duration()
	}
	if planned <= 0 {
		planned = m.cfg.DefaultDuration()
	}
	selection := m.registry.Select(*station, m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return StartResult{}, services.Wrap(services.ErrStopped, "capture", "start", "manager closed", nil)
	}
	if existing, ok := m.sessions[show.ID]; ok {
		sessionID := existing.id
		m.mu.Unlock()
		metrics.RecordTriggerRejected(string(OutcomeAlreadyRunning))
		m.logger.Info("capture already running",
			logging.Int64(logging.FieldShowID, show.ID),
			logging.Int64(logging.FieldAiringID, req.AiringID),
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("source", string(req.Source)),
		)
		return StartResult{Outcome: OutcomeAlreadyRunning, SessionID: sessionID}, nil
	}
	sessCtx, cancel := context.WithCancelCause(m.baseCtx)
	sess := &session{
		id:        uuid.NewString(),
		show:      *show,
		station:   *station,
		airingID:  req.AiringID,
		source:    req.Source,
		retention: req.Retention,
		planned:   planned,
		selection: selection,
		cancel:    cancel,
		state:     StateWaiting,
		tool:      selection.Tool,
		queuedAt:  m.now(),
	}
	m.sessions[show.ID] = sess
	m.wg.Add(1)
	active := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(active)
	metrics.RecordTriggerFired(string(req.Source))

	result := StartResult{SessionID: sess.id, Tool: selection.Tool}
	admitted := m.slots.TryAcquire(1)
	switch {
	case admitted:
		result.Outcome = OutcomeStarted
	case req.WaitForSlot:
		if err := m.waitForSlot(ctx, sessCtx); err != nil {
			m.drop(sess, err)
			cancel(nil)
			m.wg.Done()
			result.Outcome = OutcomeResourceExhausted
			return result, nil
		}
		admitted = true
		result.Outcome = OutcomeStarted
	default:
		result.Outcome = OutcomeQueued
	}

	go func() {
		defer m.wg.Done()
		defer cancel(nil)
		m.run(sessCtx, sess, admitted)
	}()
	return result, nil
}

func (m *Manager) loadTarget(ctx context.Context, showID int64) (*store.Show, *store.Station, error) {
	show, err := m.store.GetShow(ctx, showID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrPersistence, "capture", "load show", fmt.Sprintf("show %d", showID), err)
	}
	if show == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "capture", "load show", fmt.Sprintf("show %d", showID), nil)
	}
	if show.StreamOnly {
		return nil, nil, services.Wrap(services.ErrConfiguration, "capture", "load show", fmt.Sprintf("show %s is stream-only", show.Key), nil)
	}
	station, err := m.store.GetStation(ctx, show.StationID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrPersistence, "capture", "load station", fmt.Sprintf("station %d", show.StationID), err)
	}
	if station == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "capture", "load station", fmt.Sprintf("station %d", show.StationID), nil)
	}
	if strings.TrimSpace(station.StreamURL) == "" {
		return nil, nil, services.Wrap(services.ErrConfiguration, "capture", "load station", fmt.Sprintf("station %s has no stream url", station.CallSign), nil)
	}
	return show, station, nil
}

// waitForSlot blocks for at most the configured slot wait. It returns an
// ErrResourceExhausted error when no slot frees up in time.
func (m *Manager) waitForSlot(ctxs ...context.Context) error {
	wait := m.cfg.SlotWait()
	waitCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	for _, ctx := range ctxs {
		if ctx == nil {
			continue
		}
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}
	if err := m.slots.Acquire(waitCtx, 1); err != nil {
		for _, ctx := range ctxs {
			if ctx != nil && ctx.Err() != nil {
				return services.Wrap(services.ErrStopped, "capture", "admission", "cancelled while waiting for a slot", context.Cause(ctx))
			}
		}
		return services.Wrap(services.ErrResourceExhausted, "capture", "admission",
			fmt.Sprintf("no capture slot free within %s (max_concurrent=%d)", wait, m.cfg.Capture.MaxConcurrent), nil)
	}
	return nil
}

// drop removes a session that never got a slot.
func (m *Manager) drop(sess *session, cause error) {
	m.deregister(sess)
	now := m.now()
	outcome := store.AttemptResourceExhausted
	result := string(OutcomeResourceExhausted)
	if errors.Is(cause, services.ErrStopped) {
		outcome = store.AttemptStopped
		result = ResultStopped
	}
	attempt := &store.CaptureAttempt{
		SessionID: sess.id,
		ShowID:    sess.show.ID,
		AiringID:  sess.airingID,
		Tool:      string(sess.selection.Tool),
		Attempt:   0,
		Outcome:   outcome,
		Detail:    cause.Error(),
		StartedAt: sess.queuedAt,
		EndedAt:   now,
	}
	if err := m.store.InsertCaptureAttempt(context.Background(), attempt); err != nil {
		m.logger.Warn("record dropped session failed", logging.Error(err))
	}
	metrics.RecordTriggerRejected(result)
	metrics.RecordCaptureResult(ResultDropped)
	logging.WarnWithContext(m.sessionLogger(sess), "capture session dropped before start", "capture_admission_failed",
		logging.Error(cause),
		logging.ErrorKind(cause),
		logging.String(logging.FieldErrorHint, "raise capture.max_concurrent or stagger overlapping shows"),
		logging.String(logging.FieldImpact, "this occurrence was not recorded"),
	)
	m.complete(Report{SessionID: sess.id, ShowID: sess.show.ID, Result: ResultDropped, Err: cause})
}

func (m *Manager) deregister(sess *session) {
	m.mu.Lock()
	if current, ok := m.sessions[sess.show.ID]; ok && current == sess {
		delete(m.sessions, sess.show.ID)
	}
	active := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(active)
}

func (m *Manager) complete(report Report) {
	if m.onComplete != nil {
		m.onComplete(report)
	}
}

// Stop cancels the live session for showID. The subprocess is terminated
// and whatever it captured is persisted as a partial recording. Stop does
// not wait for finalization.
func (m *Manager) Stop(showID int64) error {
	m.mu.Lock()
	sess, ok := m.sessions[showID]
	m.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "capture", "stop", fmt.Sprintf("no live session for show %d", showID), nil)
	}
	sess.cancel(services.Wrap(services.ErrStopped, "capture", "stop", "stopped by operator", nil))
	m.sessionLogger(sess).Info("capture stop requested")
	return nil
}

// OnAir reports whether showID has a live session.
func (m *Manager) OnAir(showID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[showID]
	return ok
}

// Sessions returns a snapshot of every live session ordered by show id.
func (m *Manager) Sessions() []Snapshot {
	m.mu.Lock()
	live := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		live = append(live, sess)
	}
	m.mu.Unlock()

	now := m.now()
	snapshots := make([]Snapshot, 0, len(live))
	for _, sess := range live {
		snapshots = append(snapshots, sess.snapshot(now))
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ShowID < snapshots[j].ShowID })
	return snapshots
}

// Close stops every session and waits for them to finalize or for ctx to end.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel(services.Wrap(services.ErrStopped, "capture", "close", "daemon shutting down", nil))

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) sessionLogger(sess *session) *slog.Logger {
	return m.logger.With(
		logging.Int64(logging.FieldShowID, sess.show.ID),
		logging.Int64(logging.FieldStationID, sess.station.ID),
		logging.String(logging.FieldSessionID, sess.id),
	)
}
