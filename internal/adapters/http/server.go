// Package http provides the HTTP adapter layer using Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
)

// Server serves the gateway routes and drains them on shutdown.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	cfg    *config.ServerConfig
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New builds a Server for cfg. Request bodies above cfg.MaxRequestSize are
// cut off, and responses of at least cfg.GzipMinSize bytes are compressed
// for clients that accept gzip.
func New(cfg *config.ServerConfig, logger *slog.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	compress, err := gzhttp.NewWrapper(gzhttp.MinSize(cfg.GzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip_min_size %d: %w", cfg.GzipMinSize, err)
	}

	engine := gin.New()
	engine.Use(limitBody(cfg.MaxRequestSize))

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      compress(engine),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}, nil
}

// Engine returns the Gin engine routes are registered on.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the engine wrapped in compression.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Ready is closed once Run has bound its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address once Ready is closed, and the configured one
// before that. With port 0 only the bound address names the real port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.srv.Addr
}

// Run serves until ctx ends or the listener fails. On cancellation it stops
// accepting connections and waits up to ShutdownTimeout for in-flight
// requests. A Server runs once.
func (s *Server) Run(ctx context.Context) error {
	ln, err := new(net.ListenConfig).Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("HTTP server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("read_timeout", s.cfg.ReadTimeout),
		slog.Duration("write_timeout", s.cfg.WriteTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		return s.drain(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

func (s *Server) drain(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)

		defer cancel()
	}

	s.logger.Info("draining HTTP server", slog.Duration("timeout", s.cfg.ShutdownTimeout))

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("draining: %w", err)
	}

	s.logger.Info("HTTP server stopped")

	return nil
}

// limitBody caps the bytes a handler can read from the request body.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
