package capture

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

	"radiocap/internal/fileutil"
	"radiocap/internal/logging"
	"radiocap/internal/metrics"
	"radiocap/internal/services"
	"radiocap/internal/store"
	"radiocap/internal/tools"
)

var errSizeLimit = errors.New("max_recording_bytes reached")

type session struct {
	id        string
	show      store.Show
	station   store.Station
	airingID  int64
	source    Source
	retention *store.Retention
	planned   time.Duration
	selection tools.Selection
	cancel    context.CancelCauseFunc
	queuedAt  time.Time

	mu        sync.Mutex
	state     State
	tool      tools.Tool
	attempt   int
	startedAt time.Time
	bytes     int64
}

func (s *session) snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID: s.id,
		ShowID:    s.show.ID,
		ShowKey:   s.show.Key,
		StationID: s.station.ID,
		CallSign:  s.station.CallSign,
		AiringID:  s.airingID,
		Source:    s.source,
		State:     s.state,
		Tool:      s.tool,
		Attempt:   s.attempt,
		StartedAt: s.startedAt,
		Planned:   s.planned,
		Remaining: s.planned,
		Bytes:     s.bytes,
	}
	if !s.startedAt.IsZero() {
		snap.Elapsed = now.Sub(s.startedAt)
		if snap.Elapsed > s.planned {
			snap.Elapsed = s.planned
		}
		snap.Remaining = s.planned - snap.Elapsed
		if s.planned > 0 {
			snap.Percent = float64(snap.Elapsed) / float64(s.planned) * 100
		}
	}
	return snap
}

func (s *session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *session) setAttempt(tool tools.Tool, attempt int) {
	s.mu.Lock()
	s.tool = tool
	s.attempt = attempt
	s.bytes = 0
	s.mu.Unlock()
}

func (s *session) setBytes(n int64) {
	s.mu.Lock()
	s.bytes = n
	s.mu.Unlock()
}

// candidate is an output file left behind by one attempt.
type candidate struct {
	path    string
	size    int64
	tool    tools.Tool
	elapsed time.Duration
}

func (m *Manager) run(ctx context.Context, sess *session, admitted bool) {
	if !admitted {
		if err := m.waitForSlot(ctx); err != nil {
			m.drop(sess, err)
			return
		}
	}
	sessionDir := filepath.Join(m.cfg.Paths.StagingDir, sess.id)
	report := m.runChain(ctx, sess, sessionDir)

	if err := os.RemoveAll(sessionDir); err != nil {
		m.sessionLogger(sess).Warn("staging cleanup failed", logging.String("dir", sessionDir), logging.Error(err))
	}
	m.deregister(sess)
	m.slots.Release(1)
	m.complete(report)
}

// runChain walks the tool chain and persists the best output.
func (m *Manager) runChain(ctx context.Context, sess *session, sessionDir string) Report {
	logger := m.sessionLogger(sess)
	started := m.now()
	sess.mu.Lock()
	sess.state = StateCapturing
	sess.startedAt = started
	sess.mu.Unlock()
	deadline := started.Add(sess.planned)

	chain := m.registry.Chain(sess.selection.Tool)
	logger.Info("capture session started",
		logging.String(logging.FieldTool, string(sess.selection.Tool)),
		logging.String("selection", string(sess.selection.Source)),
		logging.String("rule", sess.selection.Rule),
		logging.Any("chain", chain),
		logging.Duration("planned", sess.planned),
		logging.String("source", string(sess.source)),
		logging.Int64(logging.FieldAiringID, sess.airingID),
	)

	var (
		reports    []AttemptReport
		candidates []candidate
		winner     *candidate
	)
	for i, tool := range chain {
		if ctx.Err() != nil {
			break
		}
		remaining := deadline.Sub(m.now())
		if remaining < m.cfg.MinAttempt() {
			logger.Info("capture window exhausted before next tool",
				logging.String(logging.FieldTool, string(tool)),
				logging.Duration("remaining", remaining),
			)
			break
		}
		if i > 0 {
			metrics.RecordFallback(string(chain[i-1]), string(tool))
			logger.Info("falling back to next capture tool",
				logging.String("from", string(chain[i-1])),
				logging.String(logging.FieldTool, string(tool)),
				logging.Duration("remaining", remaining),
			)
		}
		report, out := m.attempt(ctx, sess, sessionDir, tool, i+1, remaining, logger)
		reports = append(reports, report)
		if out.size > 0 {
			candidates = append(candidates, out)
		}
		if report.Outcome == store.AttemptOK {
			winner = &out
			break
		}
	}

	// A stopped session keeps whatever it captured; an exhausted chain only
	// keeps a partial that clears the minimum size.
	stopped := ctx.Err() != nil
	partial := false
	if winner == nil {
		if best := bestCandidate(candidates); best != nil && (stopped || best.size >= m.cfg.Capture.MinOutputBytes) {
			winner, partial = best, true
		}
	}
	result := ResultSuccess
	switch {
	case stopped:
		result = ResultStopped
	case winner == nil:
		result = ResultFailed
	case partial:
		result = ResultPartial
	}

	report := Report{SessionID: sess.id, ShowID: sess.show.ID, Result: result, Attempts: reports}
	if winner == nil {
		report.Err = m.failure(sess, reports, stopped)
		metrics.RecordCaptureResult(result)
		if stopped {
			logger.Info("capture session stopped without output", logging.Any("attempts", describeAttempts(reports)))
		} else {
			logging.ErrorWithContext(logger, "capture failed after exhausting tool chain", "capture_chain_exhausted",
				logging.Error(report.Err),
				logging.ErrorKind(report.Err),
				logging.Any("attempts", describeAttempts(reports)),
				logging.String(logging.FieldErrorHint, "run `radiocap station test` for this station and check the stream URL"),
			)
		}
		return report
	}

	sess.setState(StateFinalizing)
	rec, err := m.persist(context.WithoutCancel(ctx), sess, *winner, partial)
	if err != nil {
		report.Result = ResultFailed
		report.Err = err
		metrics.RecordCaptureResult(ResultFailed)
		logging.ErrorWithContext(logger, "recording persistence failed", "recording_persist_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check paths.recordings_dir permissions and free space"),
		)
		return report
	}
	report.Recording = rec
	metrics.RecordCaptureResult(result)
	logger.Info("capture session finished",
		logging.String("result", result),
		logging.String(logging.FieldTool, string(winner.tool)),
		logging.String("filename", rec.Filename),
		logging.Int64("bytes", rec.SizeBytes),
		logging.Duration("duration", winner.elapsed),
		logging.Int("attempts", len(reports)),
	)
	return report
}

// attempt runs one tool for at most remaining plus grace and classifies the
// result.
func (m *Manager) attempt(ctx context.Context, sess *session, sessionDir string, tool tools.Tool, number int, remaining time.Duration, logger *slog.Logger) (AttemptReport, candidate) {
	logger = logger.With(logging.String(logging.FieldTool, string(tool)), logging.Int("attempt", number))
	sess.setAttempt(tool, number)
	report := AttemptReport{Tool: tool}
	out := candidate{tool: tool}

	dir := filepath.Join(sessionDir, fmt.Sprintf("%d-%s", number, tool))
	startedAt := m.now()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		report.Outcome = store.AttemptLaunchError
		report.Detail = fmt.Sprintf("create staging dir: %v", err)
		m.recordAttempt(sess, number, report, startedAt)
		return report, out
	}

	inv := tools.Invocation{
		URL:      sess.station.StreamURL,
		Dir:      dir,
		BaseName: baseName(sess.station.CallSign, sess.show.Key),
		Duration: remaining,
	}
	binary, args := m.registry.Command(tool, inv)

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, remaining+m.cfg.Grace())
	defer cancelTimeout()
	attemptCtx, cancelAttempt := context.WithCancelCause(timeoutCtx)
	defer cancelAttempt(nil)

	monitorDone := make(chan struct{})
	var monitorWG sync.WaitGroup
	monitorWG.Add(1)
	go func() {
		defer monitorWG.Done()
		m.monitor(sess, dir, cancelAttempt, monitorDone, logger)
	}()

	var (
		lastLine string
		lineMu   sync.Mutex
	)
	logger.Debug("launching capture tool", logging.String("binary", binary), logging.Any("args", args))
	runErr := m.exec.Run(attemptCtx, binary, args, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		lineMu.Lock()
		lastLine = line
		lineMu.Unlock()
		logger.Debug("tool output", logging.String("line", line))
	})
	close(monitorDone)
	monitorWG.Wait()

	endedAt := m.now()
	report.Elapsed = endedAt.Sub(startedAt)
	out.path, out.size = fileutil.LargestFile(dir)
	out.elapsed = report.Elapsed
	report.Bytes = out.size
	sess.setBytes(out.size)

	cause := context.Cause(attemptCtx)
	lineMu.Lock()
	detail := lastLine
	lineMu.Unlock()
	plannedEnd := startedAt.Add(remaining)
	earlyCutoff := plannedEnd.Add(-m.cfg.EarlyExitTolerance())
	minBytes := m.cfg.Capture.MinOutputBytes

	switch {
	case errors.Is(cause, errSizeLimit):
		report.Outcome = store.AttemptOK
		detail = errSizeLimit.Error()
	case ctx.Err() != nil:
		report.Outcome = store.AttemptStopped
		detail = context.Cause(ctx).Error()
	case runErr != nil && errors.Is(runErr, services.ErrToolLaunch):
		report.Outcome = store.AttemptLaunchError
		detail = runErr.Error()
	case errors.Is(cause, context.DeadlineExceeded):
		if out.size >= minBytes {
			report.Outcome = store.AttemptOK
		} else {
			report.Outcome = store.AttemptTimeout
		}
		detail = fmt.Sprintf("killed after %s", remaining+m.cfg.Grace())
	case out.size < minBytes:
		report.Outcome = store.AttemptEmptyOutput
		if detail == "" && runErr != nil {
			detail = runErr.Error()
		}
		detail = strings.TrimSpace(fmt.Sprintf("%d bytes (< %d) %s", out.size, minBytes, detail))
	case runErr != nil && endedAt.Before(earlyCutoff):
		report.Outcome = store.AttemptExitedEarly
		detail = strings.TrimSpace(fmt.Sprintf("exited %s before planned end: %v", plannedEnd.Sub(endedAt).Round(time.Second), runErr))
	default:
		report.Outcome = store.AttemptOK
	}
	report.Detail = detail
	m.recordAttempt(sess, number, report, startedAt)

	if report.Outcome == store.AttemptOK {
		logger.Info("capture attempt succeeded", logging.Int64("bytes", out.size), logging.Duration("elapsed", report.Elapsed))
	} else {
		logger.Info("capture attempt failed",
			logging.String("outcome", string(report.Outcome)),
			logging.Int64("bytes", out.size),
			logging.String("detail", detail),
		)
	}
	return report, out
}

// monitor polls the attempt directory for progress until done closes. It
// cancels the attempt once the show's size ceiling is reached.
func (m *Manager) monitor(sess *session, dir string, cancel context.CancelCauseFunc, done <-chan struct{}, logger *slog.Logger) {
	interval := m.cfg.PollInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sampler := logging.NewProgressSampler(10)
	limit := sess.show.MaxRecordingBytes
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		_, size := fileutil.LargestFile(dir)
		sess.setBytes(size)
		snap := sess.snapshot(m.now())
		if sampler.ShouldLog(snap.Percent, string(snap.Tool)) {
			logger.Info("capture progress",
				logging.Int64("bytes", size),
				logging.Duration("elapsed", snap.Elapsed.Round(time.Second)),
				logging.Duration("remaining", snap.Remaining.Round(time.Second)),
				logging.Int("percent", int(snap.Percent)),
			)
		}
		if limit > 0 && size >= limit {
			logger.Info("recording size limit reached", logging.Int64("limit", limit), logging.Int64("bytes", size))
			cancel(errSizeLimit)
			return
		}
	}
}

func (m *Manager) recordAttempt(sess *session, number int, report AttemptReport, startedAt time.Time) {
	metrics.RecordCaptureAttempt(string(report.Tool), string(report.Outcome))
	attempt := &store.CaptureAttempt{
		SessionID: sess.id,
		ShowID:    sess.show.ID,
		AiringID:  sess.airingID,
		Tool:      string(report.Tool),
		Attempt:   number,
		Outcome:   report.Outcome,
		Bytes:     report.Bytes,
		Detail:    report.Detail,
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(report.Elapsed),
	}
	if err := m.store.InsertCaptureAttempt(context.Background(), attempt); err != nil {
		m.sessionLogger(sess).Warn("record capture attempt failed", logging.Error(err))
	}
}

func (m *Manager) failure(sess *session, reports []AttemptReport, stopped bool) error {
	marker := services.ErrCaptureFailure
	if stopped {
		marker = services.ErrStopped
	}
	if len(reports) == 0 {
		return services.Wrap(marker, "capture", "run", fmt.Sprintf("show %s: no tool attempted", sess.show.Key), nil)
	}
	return services.Wrap(marker, "capture", "run",
		fmt.Sprintf("show %s: %s", sess.show.Key, strings.Join(describeAttempts(reports), "; ")), nil)
}

func describeAttempts(reports []AttemptReport) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		line := fmt.Sprintf("%s=%s", r.Tool, r.Outcome)
		if r.Detail != "" {
			line += " (" + r.Detail + ")"
		}
		out = append(out, line)
	}
	return out
}

func bestCandidate(candidates []candidate) *candidate {
	var best *candidate
	for i := range candidates {
		if best == nil || candidates[i].size > best.size {
			best = &candidates[i]
		}
	}
	return best
}
