// Package metrics exposes Prometheus collectors for the scheduler, capture
// sessions, the prober and the reaper.
//
// Labels are bounded enumerations (tool names, outcomes, reasons). Show,
// station and session identifiers never appear as label values.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks live capture sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiocap_active_sessions",
		Help: "Current number of live capture sessions.",
	})

	// PendingTriggers tracks entries waiting in the scheduler heap.
	PendingTriggers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiocap_pending_triggers",
		Help: "Current number of pending schedule triggers.",
	})

	// TriggersFired counts triggers handed to the capture manager, by source.
	TriggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_triggers_fired_total",
		Help: "Total number of capture triggers fired, by source (schedule/manual).",
	}, []string{"source"})

	// TriggersRejected counts triggers that did not start a session, by reason.
	TriggersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_triggers_rejected_total",
		Help: "Total number of capture triggers rejected, by reason.",
	}, []string{"reason"})

	// CaptureAttempts counts individual tool attempts, by tool and outcome.
	CaptureAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_capture_attempts_total",
		Help: "Total number of capture tool attempts, by tool and outcome.",
	}, []string{"tool", "outcome"})

	// CaptureResults counts finished sessions, by result.
	CaptureResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_capture_results_total",
		Help: "Total number of finished capture sessions, by result (success/partial/failed/stopped).",
	}, []string{"result"})

	// Fallbacks counts transitions from a failed tool to the next in the chain.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_tool_fallbacks_total",
		Help: "Total number of tool fallbacks, by failed tool and next tool.",
	}, []string{"from", "to"})

	// ProbeResults counts stream probe captures, by tool and outcome.
	ProbeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_probe_results_total",
		Help: "Total number of stream probe captures, by tool and outcome.",
	}, []string{"tool", "outcome"})

	// RecordingsReaped counts reaper decisions, by result.
	RecordingsReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_recordings_reaped_total",
		Help: "Total number of expired recordings handled by the reaper, by result (removed/missing/failed).",
	}, []string{"result"})

	// ProcTerminate counts signals sent to capture process groups.
	ProcTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_proc_terminate_total",
		Help: "Total number of termination signals sent to process groups, by signal and result.",
	}, []string{"signal", "result"})

	// ProcWait counts how terminated process groups exited.
	ProcWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiocap_proc_wait_total",
		Help: "Total number of terminated process waits, by outcome.",
	}, []string{"outcome"})
)

// SetActiveSessions records the live session count.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

// SetPendingTriggers records the scheduler heap size.
func SetPendingTriggers(n int) {
	PendingTriggers.Set(float64(n))
}

// RecordTriggerFired increments the fired counter.
func RecordTriggerFired(source string) {
	TriggersFired.WithLabelValues(source).Inc()
}

// RecordTriggerRejected increments the rejected counter.
func RecordTriggerRejected(reason string) {
	TriggersRejected.WithLabelValues(reason).Inc()
}

// RecordCaptureAttempt increments the attempt counter.
func RecordCaptureAttempt(tool, outcome string) {
	CaptureAttempts.WithLabelValues(tool, outcome).Inc()
}

// RecordCaptureResult increments the session result counter.
func RecordCaptureResult(result string) {
	CaptureResults.WithLabelValues(result).Inc()
}

// RecordFallback increments the fallback counter.
func RecordFallback(from, to string) {
	Fallbacks.WithLabelValues(from, to).Inc()
}

// RecordProbeResult increments the probe counter.
func RecordProbeResult(tool, outcome string) {
	ProbeResults.WithLabelValues(tool, outcome).Inc()
}

// RecordReaped increments the reaper counter.
func RecordReaped(result string) {
	RecordingsReaped.WithLabelValues(result).Inc()
}

// IncProcTerminate increments the termination signal counter.
func IncProcTerminate(signal, result string) {
	ProcTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait increments the terminated process wait counter.
func IncProcWait(outcome string) {
	ProcWait.WithLabelValues(outcome).Inc()
}
