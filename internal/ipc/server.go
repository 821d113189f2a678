package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyRunning is returned by Start when a live daemon owns the socket.
var ErrAlreadyRunning = errors.New("server already running")

// Handler answers one request. It is called from the connection goroutine.
type Handler interface {
	Handle(req Request) Response
}

type HandlerFunc func(req Request) Response

func (f HandlerFunc) Handle(req Request) Response { return f(req) }

// Server accepts requests on a Unix socket and dispatches them to a Handler.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger
	listener   net.Listener
	lock       *instanceLock
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewServer creates a server. An empty path selects DefaultSocketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{socketPath: socketPath, handler: handler, logger: logger}
}

// Start claims the socket and begins accepting connections. A socket file
// left by a dead daemon is removed; one answered by a live peer is not.
// The probe, removal and listen run under the instance lock so two daemons
// started together cannot unlink each other's socket.
func (s *Server) Start(ctx context.Context) error {
	lock, err := acquireInstanceLock(s.socketPath + ".lock")
	if err != nil {
		return err
	}
	if conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond); err == nil {
		conn.Close()
		lock.release()
		return ErrAlreadyRunning
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		lock.release()
		return errors.Wrapf(err, "remove stale socket %s", s.socketPath)
	}

	s.listener, err = net.Listen("unix", s.socketPath)
	if err != nil {
		lock.release()
		return errors.Wrapf(err, "failed to listen on %s", s.socketPath)
	}
	s.lock = lock
	s.logger.Info("listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		s.closeListener()
	}()
	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	raw, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(raw) == 0 {
		s.logger.Debug("client closed without a request", "err", err)
		return
	}
	var req Request
	var resp Response
	if err := json.Unmarshal(raw, &req); err != nil {
		resp = Fail("invalid request: " + err.Error())
	} else {
		s.logger.Debug("request", "command", req.Command, "bytes", len(req.Data))
		resp = s.handler.Handle(req)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "err", err)
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

func (s *Server) closeListener() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Stop closes the listener, waits for in-flight connections and removes the
// socket file.
func (s *Server) Stop() {
	s.closeListener()
	s.wg.Wait()
	os.Remove(s.socketPath)
	s.lock.release()
	s.lock = nil
	s.logger.Info("server stopped")
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}
