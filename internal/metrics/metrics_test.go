package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpersIncrementLabelledSeries(t *testing.T) {
	before := testutil.ToFloat64(CaptureAttempts.WithLabelValues("ffmpeg", "empty_output"))
	RecordCaptureAttempt("ffmpeg", "empty_output")
	RecordCaptureAttempt("ffmpeg", "empty_output")
	if got := testutil.ToFloat64(CaptureAttempts.WithLabelValues("ffmpeg", "empty_output")); got != before+2 {
		t.Fatalf("expected %v attempts, got %v", before+2, got)
	}

	beforeFallback := testutil.ToFloat64(Fallbacks.WithLabelValues("streamripper", "ffmpeg"))
	RecordFallback("streamripper", "ffmpeg")
	if got := testutil.ToFloat64(Fallbacks.WithLabelValues("streamripper", "ffmpeg")); got != beforeFallback+1 {
		t.Fatalf("expected fallback count %v, got %v", beforeFallback+1, got)
	}
}

func TestGaugesReflectLatestValue(t *testing.T) {
	SetActiveSessions(3)
	SetActiveSessions(1)
	if got := testutil.ToFloat64(ActiveSessions); got != 1 {
		t.Fatalf("expected active sessions 1, got %v", got)
	}
	SetPendingTriggers(8)
	if got := testutil.ToFloat64(PendingTriggers); got != 8 {
		t.Fatalf("expected pending triggers 8, got %v", got)
	}
}

func TestProcessCountersExposeSeries(t *testing.T) {
	IncProcTerminate("SIGTERM", "sent")
	IncProcWait("exit0")
	if n := testutil.CollectAndCount(ProcTerminate); n < 1 {
		t.Fatalf("expected at least one terminate series, got %d", n)
	}
	if n := testutil.CollectAndCount(ProcWait, "radiocap_proc_wait_total"); n < 1 {
		t.Fatalf("expected at least one wait series, got %d", n)
	}
}
