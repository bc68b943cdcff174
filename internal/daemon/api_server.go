package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radiocap/internal/api"
	"radiocap/internal/config"
	"radiocap/internal/logging"
	"radiocap/internal/scheduler"
	"radiocap/internal/services"
	"radiocap/internal/store"
)

const (
	apiRequestLimit   = 120
	apiRequestWindow  = time.Minute
	actionLimit       = 10
	actionLimitWindow = time.Minute
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Station tests run a probe capture per tool before replying.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(rateLimit(apiRequestLimit, apiRequestWindow))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)
		r.Get("/sessions", s.handleSessions)
		r.Delete("/sessions/{showID}", s.handleStopSession)
		r.Get("/schedule", s.handlePending)
		r.Get("/recordings", s.handleRecordings)
		r.Get("/stations", s.handleStations)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(actionLimit, actionLimitWindow))
			r.Post("/schedule/refresh", s.handleRefreshAll)
			r.Post("/shows/{showID}/refresh", s.handleRefreshShow)
			r.Post("/shows/{showID}/trigger", s.handleTrigger)
			r.Post("/stations/{stationID}/test", s.handleTestStation)
			r.Post("/reap", s.handleReap)
		})
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, status.Payload())
}

func (s *apiServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: api.FromSnapshots(s.daemon.Sessions())})
}

func (s *apiServer) handleStopSession(w http.ResponseWriter, r *http.Request) {
	showID, ok := s.pathID(w, r, "showID")
	if !ok {
		return
	}
	if err := s.daemon.StopSession(showID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *apiServer) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := s.daemon.Pending()
	if value := strings.TrimSpace(r.URL.Query().Get("show")); value != "" {
		showID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid show id")
			return
		}
		filtered := pending[:0]
		for _, trig := range pending {
			if trig.ShowID == showID {
				filtered = append(filtered, trig)
			}
		}
		pending = filtered
	}
	s.writeJSON(w, http.StatusOK, api.TriggerListResponse{Triggers: api.FromTriggers(pending)})
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	var filter store.RecordingFilter
	query := r.URL.Query()
	if value := strings.TrimSpace(query.Get("show")); value != "" {
		showID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid show id")
			return
		}
		filter.ShowID = showID
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	rows, err := s.daemon.Recordings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Recordings: api.FromRecordings(rows)})
}

func (s *apiServer) handleStations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.daemon.Stations(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StationListResponse{Stations: api.FromStations(rows)})
}

func (s *apiServer) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.RefreshAll(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRefreshSummary(summary))
}

func (s *apiServer) handleRefreshShow(w http.ResponseWriter, r *http.Request) {
	showID, ok := s.pathID(w, r, "showID")
	if !ok {
		return
	}
	count, err := s.daemon.RefreshShow(r.Context(), showID)
	summary := api.RefreshSummary{Shows: 1, Triggers: count}
	if err != nil {
		if !errors.Is(err, services.ErrConfiguration) {
			s.writeServiceError(w, err)
			return
		}
		summary.Errors = []string{err.Error()}
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	showID, ok := s.pathID(w, r, "showID")
	if !ok {
		return
	}
	var opts scheduler.TriggerOptions
	if value := strings.TrimSpace(r.URL.Query().Get("duration")); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		opts.Duration = d
	}
	res, err := s.daemon.Trigger(r.Context(), showID, opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStartResult(showID, res))
}

func (s *apiServer) handleTestStation(w http.ResponseWriter, r *http.Request) {
	stationID, ok := s.pathID(w, r, "stationID")
	if !ok {
		return
	}
	report, err := s.daemon.TestStation(r.Context(), stationID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProbeReport(report))
}

func (s *apiServer) handleReap(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.Reap(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromReapSummary(summary))
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid "+strings.TrimSuffix(name, "ID")+" id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrResourceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
