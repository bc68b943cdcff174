package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"radiocap/internal/api"
	"radiocap/internal/capture"
	"radiocap/internal/config"
	"radiocap/internal/store"
	"radiocap/internal/testsupport"
)

// holdingExecutor writes a little audio and then holds until cancelled.
type holdingExecutor struct{}

func (holdingExecutor) Run(ctx context.Context, _ string, args []string, _ func(string)) error {
	dir := filepath.Dir(args[len(args)-1])
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

type apiFixture struct {
	cfg     *config.Config
	store   *store.Store
	daemon  *Daemon
	show    *store.Show
	station *store.Station
	server  *httptest.Server
}

func newAPIFixture(t *testing.T, token string) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Probe.Enabled = false
	st := testsupport.MustOpenStore(t, cfg)
	station := testsupport.NewStation(t, st, "KAPI", "http://stream.example.org/live", "UTC")
	show := testsupport.NewShow(t, st, station, "api-show", 30, "0 6 * * *")

	d, err := New(cfg, st, nil, WithCaptureOptions(capture.WithExecutor(holdingExecutor{})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.captures.Close(ctx)
	})

	srv := &apiServer{token: token, daemon: d}
	server := httptest.NewServer(srv.routes())
	t.Cleanup(server.Close)
	return &apiFixture{cfg: cfg, store: st, daemon: d, show: show, station: station, server: server}
}

func (f *apiFixture) do(t *testing.T, method, path, token string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return out
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t, "secret")

	if code, _ := f.do(t, http.MethodGet, "/api/status", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := f.do(t, http.MethodGet, "/api/status", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}
	code, body := f.do(t, http.MethodGet, "/api/status", "secret")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	status := decode[api.DaemonStatus](t, body)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if len(status.Dependencies) != 3 {
		t.Fatalf("expected a dependency per capture tool, got %+v", status.Dependencies)
	}
}

func TestAPIMetricsSkipsAuth(t *testing.T) {
	f := newAPIFixture(t, "secret")
	code, body := f.do(t, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(string(body), "radiocap_") {
		t.Fatal("expected radiocap collectors in metrics output")
	}
}

func TestAPITriggerListAndStopSession(t *testing.T) {
	f := newAPIFixture(t, "")
	showPath := "/api/shows/" + itoa(f.show.ID)

	code, body := f.do(t, http.MethodPost, showPath+"/trigger?duration=10s", "")
	if code != http.StatusOK {
		t.Fatalf("trigger: expected 200, got %d: %s", code, body)
	}
	started := decode[api.TriggerResponse](t, body)
	if started.Outcome != string(capture.OutcomeStarted) || started.SessionID == "" {
		t.Fatalf("unexpected trigger response %+v", started)
	}

	code, body = f.do(t, http.MethodPost, showPath+"/trigger", "")
	if code != http.StatusOK {
		t.Fatalf("second trigger: expected 200, got %d", code)
	}
	if again := decode[api.TriggerResponse](t, body); again.Outcome != string(capture.OutcomeAlreadyRunning) {
		t.Fatalf("expected already_running, got %+v", again)
	}

	code, body = f.do(t, http.MethodGet, "/api/sessions", "")
	if code != http.StatusOK {
		t.Fatalf("sessions: expected 200, got %d", code)
	}
	sessions := decode[api.SessionListResponse](t, body).Sessions
	if len(sessions) != 1 || sessions[0].ShowKey != "api-show" || sessions[0].CallSign != "KAPI" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	if code, body := f.do(t, http.MethodDelete, "/api/sessions/"+itoa(f.show.ID), ""); code != http.StatusAccepted {
		t.Fatalf("stop: expected 202, got %d: %s", code, body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.daemon.captures.OnAir(f.show.ID) {
		if time.Now().After(deadline) {
			t.Fatal("session still live after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
	code, body = f.do(t, http.MethodGet, "/api/recordings?show="+itoa(f.show.ID), "")
	if code != http.StatusOK {
		t.Fatalf("recordings: expected 200, got %d", code)
	}
	recordings := decode[api.RecordingListResponse](t, body).Recordings
	if len(recordings) != 1 || !recordings[0].Partial {
		t.Fatalf("expected one partial recording, got %+v", recordings)
	}
}

func TestAPIErrorsCarryKind(t *testing.T) {
	f := newAPIFixture(t, "")

	code, body := f.do(t, http.MethodPost, "/api/shows/9999/trigger", "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", code, body)
	}
	if resp := decode[api.ErrorResponse](t, body); resp.Kind != "not_found" {
		t.Fatalf("kind = %q", resp.Kind)
	}

	if code, _ := f.do(t, http.MethodDelete, "/api/sessions/"+itoa(f.show.ID), ""); code != http.StatusNotFound {
		t.Fatalf("stopping an idle show: expected 404, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/shows/abc/refresh", ""); code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/shows/"+itoa(f.show.ID)+"/trigger?duration=soon", ""); code != http.StatusBadRequest {
		t.Fatalf("bad duration: expected 400, got %d", code)
	}
}

func TestAPIRefreshAndPending(t *testing.T) {
	f := newAPIFixture(t, "")

	code, body := f.do(t, http.MethodPost, "/api/schedule/refresh", "")
	if code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", code, body)
	}
	summary := decode[api.RefreshSummary](t, body)
	if summary.Shows != 1 || summary.Triggers == 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	code, body = f.do(t, http.MethodGet, "/api/schedule?show="+itoa(f.show.ID), "")
	if code != http.StatusOK {
		t.Fatalf("pending: expected 200, got %d", code)
	}
	triggers := decode[api.TriggerListResponse](t, body).Triggers
	if len(triggers) != summary.Triggers {
		t.Fatalf("expected %d pending triggers, got %d", summary.Triggers, len(triggers))
	}
	for _, trig := range triggers {
		at, err := api.ParseTime(trig.At)
		if err != nil {
			t.Fatalf("parse %q: %v", trig.At, err)
		}
		if at.Hour() != 6 || at.Minute() != 0 {
			t.Fatalf("unexpected trigger instant %v", at)
		}
	}

	code, body = f.do(t, http.MethodGet, "/api/stations", "")
	if code != http.StatusOK {
		t.Fatalf("stations: expected 200, got %d", code)
	}
	stations := decode[api.StationListResponse](t, body).Stations
	if len(stations) != 1 || stations[0].Compatibility != "unknown" {
		t.Fatalf("unexpected stations %+v", stations)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:            errNotFoundForTest(),
		http.StatusServiceUnavailable:  errExhaustedForTest(),
		http.StatusInternalServerError: io.ErrUnexpectedEOF,
	}
	for want, err := range cases {
		if got := httpStatus(err); got != want {
			t.Fatalf("httpStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
