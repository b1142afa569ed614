// Package api hosts the ticker server's HTTP and gRPC listeners and manages
// their lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	httpSrv  *http.Server
	grpcSrv  *grpc.Server
	log      *slog.Logger

	ready    chan struct{}
	httpBind net.Addr
	grpcBind net.Addr
}

// NewServer creates a server for handler on httpAddr. Each register func is
// applied to a gRPC server on grpcAddr; an empty grpcAddr disables gRPC.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, log *slog.Logger, register ...func(*grpc.Server)) *Server {
	s := &Server{
		httpAddr: httpAddr,
		grpcAddr: grpcAddr,
		httpSrv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:   log,
		ready: make(chan struct{}),
	}
	if grpcAddr != "" {
		s.grpcSrv = grpc.NewServer()
		for _, r := range register {
			r(s.grpcSrv)
		}
	}
	return s
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. Cancellation triggers a
// graceful shutdown and is not an error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	s.httpBind = httpLn.Addr()

	var grpcLn net.Listener
	if s.grpcSrv != nil {
		grpcLn, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
		s.grpcBind = grpcLn.Addr()
	}
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.httpBind.String())
		if err := s.httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", s.grpcBind.String())
			if err := s.grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Addrs returns the bound listener addresses once ListenAndServe has
// started listening. grpc is nil when gRPC is disabled.
func (s *Server) Addrs(ctx context.Context) (httpAddr, grpcAddr net.Addr, err error) {
	select {
	case <-s.ready:
		return s.httpBind, s.grpcBind, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	if s.grpcSrv != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcSrv.Stop()
		}
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
