package httpsrv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultReadHeaderTimeout = 10 * time.Second

// Server wraps http.Server with an explicit listen step so the bound address
// is known before Serve runs.
type Server struct {
	*http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	listener        net.Listener
}

func New(addr string, handler http.Handler, logger *slog.Logger, shutdownTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("HTTP_SERVER_LISTENING", "addr", ln.Addr().String())

	go func() {
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests. Hijacked WebSocket sessions are closed by the hub.
func (s *Server) Stop(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	s.logger.Info("HTTP_SERVER_STOPPING")
	return s.Shutdown(ctx)
}

// ListenAddr returns the bound address, or the configured one before Start.
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return s.Addr
	}
	return s.listener.Addr().String()
}
