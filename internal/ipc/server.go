package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"taskqueue/internal/config"
	"taskqueue/internal/daemon"
	"taskqueue/internal/logging"
	"taskqueue/internal/logs"
	"taskqueue/internal/results"
)

// SocketPath returns the control socket path inside runDir.
func SocketPath(runDir string) string {
	return filepath.Join(runDir, SocketName)
}

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

// NewServer configures the IPC server at the given socket path. onStop is
// invoked when a client requests shutdown.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logPath string, onStop func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logPath: logPath, onStop: onStop, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("TaskQueue", srv); err != nil {
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

// Serve starts accepting RPC connections until the context is cancelled.
func (s *Server) Serve() {
	s.logger.Debug("control socket listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed", logging.Error(err))
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

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon  *daemon.Daemon
	logPath string
	onStop  func()
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status()
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("shutdown requested over control socket")
	if s.onStop != nil {
		// Deferred so the RPC response reaches the client first.
		go s.onStop()
	}
	resp.Stopped = true
	resp.Message = "daemon stopping"
	return nil
}

func (s *service) LoadBacklog(req LoadBacklogRequest, resp *LoadBacklogResponse) error {
	added, err := s.daemon.LoadBacklog(req.SourceID)
	if err != nil {
		return err
	}
	resp.Added = added
	return nil
}

func (s *service) SourceAdd(req SourceAddRequest, resp *SourceAddResponse) error {
	src, err := newSource(req)
	if err != nil {
		return err
	}
	if err := s.daemon.AddSource(src); err != nil {
		return err
	}
	resp.Added = true
	return nil
}

func (s *service) SourceRemove(req SourceRemoveRequest, resp *SourceRemoveResponse) error {
	if err := s.daemon.RemoveSource(req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	found, err := s.daemon.Cancel(req.SourceID, req.TaskID)
	if err != nil {
		return err
	}
	resp.Cancelled = found
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	w, err := s.daemon.Worker(req.SourceID)
	if err != nil {
		return err
	}
	resp.Current = w.Current()
	resp.Queued = w.Queue().Snapshot()
	return nil
}

func (s *service) Result(req ResultRequest, resp *ResultResponse) error {
	src, ok := s.daemon.Config().SourceByID(req.SourceID)
	if !ok {
		return fmt.Errorf("unknown source %q", req.SourceID)
	}
	res, err := results.NewStore(src.ResultsDir()).Read(req.TaskID)
	if err != nil {
		if os.IsNotExist(err) {
			resp.Found = false
			return nil
		}
		return err
	}
	resp.Found = true
	resp.Result = res
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	src, ok := s.daemon.Config().SourceByID(req.SourceID)
	if !ok {
		return fmt.Errorf("unknown source %q", req.SourceID)
	}
	store := results.NewStore(src.ResultsDir())
	recent, err := store.Recent(req.Limit)
	if err != nil {
		return err
	}
	summary, err := store.Summarize()
	if err != nil {
		return err
	}
	resp.Results = recent
	resp.Summary = summary
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	res, err := logs.Tail(s.ctx, s.logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   time.Duration(req.WaitMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	resp.Lines = res.Lines
	resp.Offset = res.Offset
	return nil
}

func newSource(req SourceAddRequest) (config.Source, error) {
	path, err := config.ExpandPath(req.Path)
	if err != nil {
		return config.Source{}, err
	}
	workspace := ""
	if req.Workspace != "" {
		if workspace, err = config.ExpandPath(req.Workspace); err != nil {
			return config.Source{}, err
		}
	}
	return config.Source{
		ID:        req.ID,
		Path:      path,
		Workspace: workspace,
		Enabled:   req.Enabled,
	}, nil
}
