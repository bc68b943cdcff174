package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"radiocap/internal/api"
	"radiocap/internal/daemon"
	"radiocap/internal/logging"
	"radiocap/internal/scheduler"
	"radiocap/internal/store"
)

// ServiceName is the JSON-RPC receiver name.
const ServiceName = "Radiocap"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption customizes the IPC server.
type ServerOption func(*service)

// WithShutdown registers fn to run after a Stop request has stopped the
// daemon, typically to end the hosting process.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) {
		s.shutdown = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	for _, opt := range opts {
		opt(srv)
	}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Connected clients are
// served until they hang up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun radiocap stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		// Let the reply reach the client before the socket goes away.
		time.AfterFunc(100*time.Millisecond, s.shutdown)
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).Payload()
	return nil
}

func (s *service) Sessions(_ SessionsRequest, resp *SessionsResponse) error {
	resp.Sessions = api.FromSnapshots(s.daemon.Sessions())
	return nil
}

func (s *service) StopSession(req StopSessionRequest, resp *StopSessionResponse) error {
	show, err := s.daemon.ResolveShow(s.ctx, req.Show)
	if err != nil {
		return err
	}
	if err := s.daemon.StopSession(show.ID); err != nil {
		return err
	}
	resp.ShowID = show.ID
	resp.Stopped = true
	s.logger.Info("capture stopped via IPC",
		logging.String(logging.FieldEventType, "capture_stop"),
		logging.Int64(logging.FieldShowID, show.ID))
	return nil
}

func (s *service) RefreshAll(_ RefreshAllRequest, resp *RefreshResponse) error {
	summary, err := s.daemon.RefreshAll(s.ctx)
	if err != nil {
		return err
	}
	*resp = api.FromRefreshSummary(summary)
	return nil
}

func (s *service) RefreshShow(req RefreshShowRequest, resp *RefreshResponse) error {
	show, err := s.daemon.ResolveShow(s.ctx, req.Show)
	if err != nil {
		return err
	}
	count, err := s.daemon.RefreshShow(s.ctx, show.ID)
	resp.Shows = 1
	resp.Triggers = count
	if err != nil {
		resp.Errors = []string{err.Error()}
	}
	return nil
}

func (s *service) Trigger(req TriggerRequest, resp *TriggerResponse) error {
	if req.DurationSeconds < 0 {
		return fmt.Errorf("invalid duration %ds", req.DurationSeconds)
	}
	show, err := s.daemon.ResolveShow(s.ctx, req.Show)
	if err != nil {
		return err
	}
	opts := scheduler.TriggerOptions{Duration: time.Duration(req.DurationSeconds) * time.Second}
	res, err := s.daemon.Trigger(s.ctx, show.ID, opts)
	if err != nil {
		return err
	}
	*resp = api.FromStartResult(show.ID, res)
	return nil
}

func (s *service) TestStation(req TestStationRequest, resp *TestStationResponse) error {
	station, err := s.daemon.ResolveStation(s.ctx, req.Station)
	if err != nil {
		return err
	}
	report, err := s.daemon.TestStation(s.ctx, station.ID)
	if err != nil {
		return err
	}
	*resp = api.FromProbeReport(report)
	return nil
}

func (s *service) Pending(req PendingRequest, resp *PendingResponse) error {
	pending := s.daemon.Pending()
	if strings.TrimSpace(req.Show) != "" {
		show, err := s.daemon.ResolveShow(s.ctx, req.Show)
		if err != nil {
			return err
		}
		filtered := pending[:0]
		for _, trig := range pending {
			if trig.ShowID == show.ID {
				filtered = append(filtered, trig)
			}
		}
		pending = filtered
	}
	resp.Triggers = api.FromTriggers(pending)
	return nil
}

func (s *service) Recordings(req RecordingsRequest, resp *RecordingsResponse) error {
	filter := store.RecordingFilter{Limit: req.Limit}
	if strings.TrimSpace(req.Show) != "" {
		show, err := s.daemon.ResolveShow(s.ctx, req.Show)
		if err != nil {
			return err
		}
		filter.ShowID = show.ID
	}
	rows, err := s.daemon.Recordings(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Recordings = api.FromRecordings(rows)
	return nil
}

func (s *service) Stations(_ StationsRequest, resp *StationsResponse) error {
	rows, err := s.daemon.Stations(s.ctx)
	if err != nil {
		return err
	}
	resp.Stations = api.FromStations(rows)
	return nil
}

func (s *service) Reap(_ ReapRequest, resp *ReapResponse) error {
	summary, err := s.daemon.Reap(s.ctx)
	if err != nil {
		return err
	}
	*resp = api.FromReapSummary(summary)
	s.logger.Info("retention sweep via IPC",
		logging.String(logging.FieldEventType, "reap_requested"),
		logging.Int("removed", summary.Removed))
	return nil
}

func (s *service) ImportCatalog(req ImportCatalogRequest, resp *ImportCatalogResponse) error {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = s.daemon.Status(s.ctx).CatalogPath
	}
	if path == "" {
		return errors.New("no catalog path configured")
	}
	result, err := s.daemon.ImportCatalog(s.ctx, path)
	if err != nil {
		return err
	}
	*resp = ImportCatalogResponse{
		Path:            path,
		Stations:        result.Stations,
		Shows:           result.Shows,
		ChangedStations: len(result.ChangedStations),
		ChangedShows:    len(result.ChangedShows),
		Deactivated:     len(result.Deactivated),
		Warnings:        result.Warnings,
	}
	return nil
}
