package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"radiocap/internal/api"
	"radiocap/internal/capture"
	"radiocap/internal/catalog"
	"radiocap/internal/config"
	"radiocap/internal/deps"
	"radiocap/internal/logging"
	"radiocap/internal/prober"
	"radiocap/internal/reaper"
	"radiocap/internal/schedule"
	"radiocap/internal/scheduler"
	"radiocap/internal/services"
	"radiocap/internal/store"
	"radiocap/internal/tools"
)

// Daemon coordinates the background capture services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *tools.Registry
	captures *capture.Manager
	sched    *scheduler.Scheduler
	prober   *prober.Prober
	reaper   *reaper.Reaper
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group

	// probeCtx is nil unless the daemon is running; on-demand probes run
	// under it and are counted in probes so Stop can wait for them.
	probeCtx context.Context
	probes   sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	DatabasePath    string
	LockFilePath    string
	SocketPath      string
	APIBind         string
	CatalogPath     string
	ActiveSessions  int
	PendingTriggers int
	NextTrigger     *schedule.Trigger
	Dependencies    []deps.Status
}

// Payload converts the status to its transport form.
func (status Status) Payload() api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		DatabasePath:    status.DatabasePath,
		LockFilePath:    status.LockFilePath,
		SocketPath:      status.SocketPath,
		APIBind:         status.APIBind,
		CatalogPath:     status.CatalogPath,
		ActiveSessions:  status.ActiveSessions,
		PendingTriggers: status.PendingTriggers,
		Dependencies:    api.FromDependencies(status.Dependencies),
	}
	if status.NextTrigger != nil {
		next := api.FromTrigger(*status.NextTrigger)
		payload.NextTrigger = &next
	}
	return payload
}

// Option customizes the daemon's components.
type Option func(*options)

type options struct {
	capture []capture.Option
	prober  []prober.Option
}

// WithCaptureOptions forwards options to the capture manager.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(o *options) { o.capture = append(o.capture, opts...) }
}

// WithProberOptions forwards options to the stream prober.
func WithProberOptions(opts ...prober.Option) Option {
	return func(o *options) { o.prober = append(o.prober, opts...) }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		registry: tools.NewRegistry(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	captureOpts := append([]capture.Option{capture.WithCompletionHook(d.onCaptureComplete)}, o.capture...)
	captures, err := capture.NewManager(cfg, st, d.registry, logger, captureOpts...)
	if err != nil {
		return nil, fmt.Errorf("capture manager: %w", err)
	}
	d.captures = captures
	d.sched = scheduler.New(cfg, st, captures, logger)
	d.prober = prober.New(cfg, st, d.registry, logger, o.prober...)
	d.reaper = reaper.New(cfg, st, logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, imports the catalog when one is
// configured, and launches the scheduler, prober, reaper and catalog
// watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another radiocap daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if path := d.catalogPath(); path != "" {
		if _, err := d.ImportCatalog(runCtx, path); err != nil && !errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(d.logger, "catalog import failed", "catalog_import_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "schedules use the shows already in the database"),
				logging.String(logging.FieldErrorHint, "fix the catalog file and run radiocap catalog import"),
			)
		}
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return d.sched.Run(groupCtx) })
	group.Go(func() error { return d.prober.Run(groupCtx) })
	group.Go(func() error { return d.reaper.Run(groupCtx) })
	if path := d.catalogPath(); path != "" && d.cfg.Paths.WatchCatalog {
		group.Go(func() error {
			return catalog.Watch(groupCtx, path, catalog.DefaultDebounce, d.logger, func(watchCtx context.Context) {
				if _, err := d.ImportCatalog(watchCtx, path); err != nil {
					logging.WarnWithContext(d.logger, "catalog reload failed", "catalog_reload_failed",
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldImpact, "previous schedules stay in effect"),
						logging.String(logging.FieldErrorHint, "fix the catalog file; it is re-read on the next save"),
					)
				}
			})
		})
	}

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = group.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.mu.Lock()
	d.cancel = cancel
	d.group = group
	d.probeCtx = groupCtx
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("radiocap daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrent", d.cfg.Capture.MaxConcurrent),
	)
	return nil
}

// Stop cancels background loops, stops live captures, and releases the
// daemon lock. Live sessions are given the termination grace period plus a
// margin to persist partial recordings. A stopped daemon cannot be
// restarted.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, group := d.cancel, d.group
	d.cancel, d.group = nil, nil
	d.probeCtx = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			d.logger.Warn("background loop exited with error", logging.Error(err))
		}
	}
	d.probes.Wait()
	d.api.stop()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), d.cfg.Grace()+10*time.Second)
	defer closeCancel()
	if err := d.captures.Close(closeCtx); err != nil {
		d.logger.Warn("capture sessions did not finish before shutdown", logging.Error(err))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("radiocap daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Sessions returns the live capture snapshots.
func (d *Daemon) Sessions() []capture.Snapshot {
	return d.captures.Sessions()
}

// StopSession terminates the live capture of showID.
func (d *Daemon) StopSession(showID int64) error {
	return d.captures.Stop(showID)
}

// RefreshAll rebuilds every show's pending triggers.
func (d *Daemon) RefreshAll(ctx context.Context) (scheduler.RefreshSummary, error) {
	return d.sched.RefreshAll(ctx)
}

// RefreshShow rebuilds one show's pending triggers.
func (d *Daemon) RefreshShow(ctx context.Context, showID int64) (int, error) {
	return d.sched.RefreshShow(ctx, showID)
}

// Trigger starts a manual capture of showID.
func (d *Daemon) Trigger(ctx context.Context, showID int64, opts scheduler.TriggerOptions) (capture.StartResult, error) {
	return d.sched.TriggerNow(ctx, showID, opts)
}

// TestStation probes every capture tool against a station's stream.
func (d *Daemon) TestStation(ctx context.Context, stationID int64) (*prober.Report, error) {
	report, err := d.prober.TestStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Pending returns the pending triggers in firing order.
func (d *Daemon) Pending() []schedule.Trigger {
	return d.sched.Pending()
}

// Recordings lists persisted recordings newest first.
func (d *Daemon) Recordings(ctx context.Context, filter store.RecordingFilter) ([]store.Recording, error) {
	return d.store.ListRecordings(ctx, filter)
}

// Stations lists configured stations with their compatibility verdicts.
func (d *Daemon) Stations(ctx context.Context) ([]store.Station, error) {
	return d.store.ListStations(ctx)
}

// Reap runs one retention sweep immediately.
func (d *Daemon) Reap(ctx context.Context) (reaper.Summary, error) {
	return d.reaper.RunOnce(ctx)
}

// ResolveShow accepts a numeric show id or a show key.
func (d *Daemon) ResolveShow(ctx context.Context, ref string) (*store.Show, error) {
	ref = strings.TrimSpace(ref)
	var (
		show *store.Show
		err  error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		show, err = d.store.GetShow(ctx, id)
	} else {
		show, err = d.store.GetShowByKey(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "resolve show", fmt.Sprintf("show %q", ref), nil)
	}
	return show, nil
}

// ResolveStation accepts a numeric station id or a call sign.
func (d *Daemon) ResolveStation(ctx context.Context, ref string) (*store.Station, error) {
	ref = strings.TrimSpace(ref)
	var (
		station *store.Station
		err     error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		station, err = d.store.GetStation(ctx, id)
	} else {
		station, err = d.store.GetStationByCallSign(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "resolve station", fmt.Sprintf("station %q", ref), nil)
	}
	return station, nil
}

// ImportCatalog loads the catalog at path into the store. When anything
// changed on a running daemon the schedule is rebuilt and stations whose
// stream changed are probed in the background. Before Start the prober's
// first sweep covers them, since a stream change clears the last test time.
func (d *Daemon) ImportCatalog(ctx context.Context, path string) (catalog.ImportResult, error) {
	result, err := catalog.ImportFile(ctx, d.store, path)
	if err != nil {
		return result, err
	}
	for _, warning := range result.Warnings {
		d.logger.Warn("catalog airing disabled",
			logging.String("detail", warning),
			logging.String(logging.FieldEventType, "catalog_airing_invalid"),
			logging.String(logging.FieldErrorHint, "fix the cron pattern in the catalog"),
		)
	}
	d.logger.Info("catalog imported",
		logging.String("path", path),
		logging.Int("stations", result.Stations),
		logging.Int("shows", result.Shows),
		logging.Int("changed_shows", len(result.ChangedShows)),
		logging.Int("deactivated", len(result.Deactivated)),
	)
	if !result.Changed() {
		return result, nil
	}
	if d.running.Load() {
		if _, err := d.sched.RefreshAll(ctx); err != nil {
			return result, err
		}
	}
	if len(result.ChangedStations) > 0 && d.cfg.Probe.Enabled {
		d.probeInBackground(append([]int64(nil), result.ChangedStations...))
	}
	return result, nil
}

// probeInBackground tests stationIDs under the daemon's run context. It is a
// no-op unless the daemon is running.
func (d *Daemon) probeInBackground(stationIDs []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probeCtx == nil {
		return
	}
	ctx := d.probeCtx
	d.probes.Add(1)
	go func() {
		defer d.probes.Done()
		d.prober.ProbeAll(ctx, stationIDs)
	}()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	pending := d.sched.Pending()
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		SocketPath:      d.cfg.SocketPath(),
		APIBind:         d.api.address(),
		CatalogPath:     d.catalogPath(),
		ActiveSessions:  len(d.captures.Sessions()),
		PendingTriggers: len(pending),
		Dependencies:    deps.CheckBinaries(d.registry.Requirements()),
	}
	if len(pending) > 0 {
		next := pending[0]
		status.NextTrigger = &next
	}
	return status
}

func (d *Daemon) catalogPath() string {
	return strings.TrimSpace(d.cfg.Paths.CatalogPath)
}

func (d *Daemon) onCaptureComplete(report capture.Report) {
	logger := d.logger.With(
		logging.Int64(logging.FieldShowID, report.ShowID),
		logging.String(logging.FieldSessionID, report.SessionID),
		logging.String("result", report.Result),
		logging.Int("attempts", len(report.Attempts)),
	)
	if report.Recording != nil {
		logger.Info("capture finished", logging.String("filename", report.Recording.Filename), logging.Int64("bytes", report.Recording.SizeBytes))
		return
	}
	logger.Info("capture finished without a recording", logging.Error(report.Err))
}
