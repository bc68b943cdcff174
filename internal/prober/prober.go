package prober

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"radiocap/internal/capture"
	"radiocap/internal/config"
	"radiocap/internal/fileutil"
	"radiocap/internal/logging"
	"radiocap/internal/metrics"
	"radiocap/internal/services"
	"radiocap/internal/store"
	"radiocap/internal/tools"
)

// Store is the persistence the prober reads stations from and writes
// results to. *store.Store satisfies it.
type Store interface {
	GetStation(ctx context.Context, id int64) (*store.Station, error)
	ListStations(ctx context.Context) ([]store.Station, error)
	InsertStreamTest(ctx context.Context, result *store.StreamTestResult) error
	UpdateStationCompatibility(ctx context.Context, stationID int64, update store.CompatibilityUpdate) error
}

// Result is the outcome of probing one station with one tool.
type Result struct {
	Tool    tools.Tool
	Outcome store.CompatibilityStatus
	Bytes   int64
	Elapsed time.Duration
	Detail  string
}

// Report summarizes a station test.
type Report struct {
	StationID   int64
	CallSign    string
	Results     []Result
	Recommended tools.Tool
	Status      store.CompatibilityStatus
	TestedAt    time.Time
}

// Option configures the Prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec capture.Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithClock overrides the time source for result timestamps and elapsed
// times.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) {
		if now != nil {
			p.now = now
		}
	}
}

// Prober runs short test captures to learn which tool works for a station.
type Prober struct {
	cfg      *config.Config
	store    Store
	registry *tools.Registry
	exec     capture.Executor
	logger   *slog.Logger
	now      func() time.Time
	limiter  *rate.Limiter

	// inflight prevents two probes of the same station from overlapping.
	mu       sync.Mutex
	inflight map[int64]struct{}
}

// New constructs a prober.
func New(cfg *config.Config, st Store, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Prober {
	limit := rate.Inf
	if cfg.Probe.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.Probe.PerMinute))
	}
	p := &Prober{
		cfg:      cfg,
		store:    st,
		registry: registry,
		exec:     capture.NewProcessExecutor(cfg.Grace()),
		logger:   logging.NewComponentLogger(logger, "prober"),
		now:      time.Now,
		limiter:  rate.NewLimiter(limit, 1),
		inflight: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TestStation probes stationID with every tool in fallback order and stores
// the verdict on the station.
func (p *Prober) TestStation(ctx context.Context, stationID int64) (Report, error) {
	station, err := p.store.GetStation(ctx, stationID)
	if err != nil {
		return Report{}, services.Wrap(services.ErrPersistence, "prober", "get station", "", err)
	}
	if station == nil {
		return Report{}, services.Wrap(services.ErrNotFound, "prober", "test station", fmt.Sprintf("station %d", stationID), nil)
	}
	if strings.TrimSpace(station.StreamURL) == "" {
		return Report{}, services.Wrap(services.ErrConfiguration, "prober", "test station", "station has no stream url", nil)
	}
	if !p.claim(stationID) {
		return Report{}, services.Wrap(services.ErrResourceExhausted, "prober", "test station", "probe already running for station", nil)
	}
	defer p.release(stationID)

	if err := os.MkdirAll(p.cfg.Paths.StagingDir, 0o755); err != nil {
		return Report{}, services.Wrap(services.ErrPersistence, "prober", "create staging dir", p.cfg.Paths.StagingDir, err)
	}
	workDir, err := os.MkdirTemp(p.cfg.Paths.StagingDir, "probe-")
	if err != nil {
		return Report{}, services.Wrap(services.ErrPersistence, "prober", "create probe dir", "", err)
	}
	defer os.RemoveAll(workDir)

	logger := p.logger.With(
		logging.Int64(logging.FieldStationID, station.ID),
		logging.String("call_sign", station.CallSign),
	)
	report := Report{StationID: station.ID, CallSign: station.CallSign, TestedAt: p.now().UTC()}
	for i, tool := range p.registry.Order() {
		if err := ctx.Err(); err != nil {
			return report, services.Wrap(services.ErrStopped, "prober", "test station", "cancelled", err)
		}
		dir := filepath.Join(workDir, fmt.Sprintf("%d-%s", i+1, tool))
		result := p.probe(ctx, *station, tool, dir)
		report.Results = append(report.Results, result)
		metrics.RecordProbeResult(string(tool), string(result.Outcome))

		row := &store.StreamTestResult{
			StationID: station.ID,
			URL:       station.StreamURL,
			Tool:      string(tool),
			Outcome:   result.Outcome,
			Bytes:     result.Bytes,
			Duration:  result.Elapsed,
			Detail:    result.Detail,
			TestedAt:  report.TestedAt,
		}
		if err := p.store.InsertStreamTest(context.WithoutCancel(ctx), row); err != nil {
			return report, services.Wrap(services.ErrPersistence, "prober", "insert stream test", "", err)
		}
		logger.Debug("probe finished",
			logging.String(logging.FieldTool, string(tool)),
			logging.String("outcome", string(result.Outcome)),
			logging.Int64("bytes", result.Bytes),
			logging.String("detail", result.Detail),
		)
	}

	report.Recommended, report.Status = recommend(report.Results)
	update := store.CompatibilityUpdate{
		RecommendedTool: string(report.Recommended),
		Status:          report.Status,
		Result:          summarize(report.Results),
		TestedAt:        report.TestedAt,
	}
	if err := p.store.UpdateStationCompatibility(context.WithoutCancel(ctx), station.ID, update); err != nil {
		return report, services.Wrap(services.ErrPersistence, "prober", "update station", "", err)
	}

	if report.Status == store.CompatibilityIncompatible {
		logging.WarnWithContext(logger, "no capture tool could record the station", "station_incompatible",
			logging.String("results", update.Result),
			logging.String(logging.FieldImpact, "captures keep using the previous recommendation or the signature table"),
			logging.String(logging.FieldErrorHint, "check the stream url and run radiocap station test"),
		)
	} else {
		logger.Info("station probed",
			logging.String("recommended_tool", string(report.Recommended)),
			logging.String("results", update.Result),
		)
	}
	return report, nil
}

func (p *Prober) probe(ctx context.Context, station store.Station, tool tools.Tool, dir string) Result {
	result := Result{Tool: tool, Outcome: store.CompatibilityIncompatible}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Detail = err.Error()
		return result
	}
	binary, args := p.registry.Command(tool, tools.Invocation{
		URL:      station.StreamURL,
		Dir:      dir,
		BaseName: "probe",
		Duration: p.cfg.ProbeDuration(),
	})

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout())
	defer cancel()

	var (
		lineMu   sync.Mutex
		lastLine string
	)
	started := p.now()
	runErr := p.exec.Run(runCtx, binary, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			lineMu.Lock()
			lastLine = line
			lineMu.Unlock()
		}
	})
	result.Elapsed = p.now().Sub(started)
	_, result.Bytes = fileutil.LargestFile(dir)

	if result.Bytes >= p.cfg.Probe.MinBytes {
		result.Outcome = store.CompatibilityCompatible
		result.Detail = fmt.Sprintf("%d bytes", result.Bytes)
		return result
	}
	switch {
	case errors.Is(runErr, services.ErrToolLaunch):
		result.Detail = "launch error: " + runErr.Error()
	case errors.Is(runErr, context.DeadlineExceeded):
		result.Detail = fmt.Sprintf("timeout after %s with %d bytes", p.cfg.ProbeTimeout(), result.Bytes)
	case runErr != nil:
		result.Detail = runErr.Error()
	default:
		result.Detail = fmt.Sprintf("only %d bytes", result.Bytes)
	}
	lineMu.Lock()
	if lastLine != "" {
		result.Detail += ": " + lastLine
	}
	lineMu.Unlock()
	return result
}

// recommend prefers streamripper among working tools, then the first one
// that worked in fallback order.
func recommend(results []Result) (tools.Tool, store.CompatibilityStatus) {
	var first tools.Tool
	for _, r := range results {
		if r.Outcome != store.CompatibilityCompatible {
			continue
		}
		if r.Tool == tools.Streamripper {
			return r.Tool, store.CompatibilityCompatible
		}
		if first == "" {
			first = r.Tool
		}
	}
	if first == "" {
		return "", store.CompatibilityIncompatible
	}
	return first, store.CompatibilityCompatible
}

func summarize(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Tool, r.Outcome))
	}
	return strings.Join(parts, " ")
}

func (p *Prober) claim(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Prober) release(id int64) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

// ProbeAll tests the given stations concurrently, bounded by
// probe.concurrency and paced by probe.per_minute. Failures are logged and
// do not stop the other probes.
func (p *Prober) ProbeAll(ctx context.Context, stationIDs []int64) []Report {
	limit := p.cfg.Probe.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		reports []Report
	)
	for _, id := range stationIDs {
		if err := p.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			report, err := p.TestStation(gctx, id)
			if err != nil {
				if !errors.Is(err, services.ErrStopped) {
					logging.WarnWithContext(p.logger, "station probe failed", "station_probe_failed",
						logging.Int64(logging.FieldStationID, id),
						logging.Error(err),
						logging.ErrorKind(err),
					)
				}
				return nil
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Due returns the stations whose last probe is missing or older than the
// probe interval.
func (p *Prober) Due(ctx context.Context) ([]int64, error) {
	stations, err := p.store.ListStations(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "prober", "list stations", "", err)
	}
	cutoff := p.now().Add(-p.cfg.ProbeInterval())
	var ids []int64
	for _, st := range stations {
		if strings.TrimSpace(st.StreamURL) == "" {
			continue
		}
		if st.LastTestedAt == nil || st.LastTestedAt.Before(cutoff) {
			ids = append(ids, st.ID)
		}
	}
	return ids, nil
}

// Run probes due stations immediately and then once per probe interval
// until ctx is cancelled. A disabled prober returns at once.
func (p *Prober) Run(ctx context.Context) error {
	if !p.cfg.Probe.Enabled {
		p.logger.Info("stream probing disabled")
		return nil
	}
	interval := p.cfg.ProbeInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	sweep := func() {
		ids, err := p.Due(ctx)
		if err != nil {
			logging.WarnWithContext(p.logger, "probe sweep failed", "probe_sweep_failed", logging.Error(err))
			return
		}
		if len(ids) == 0 {
			return
		}
		reports := p.ProbeAll(ctx, ids)
		p.logger.Info("probe sweep complete",
			logging.Int("due", len(ids)),
			logging.Int("probed", len(reports)),
		)
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
