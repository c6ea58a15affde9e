// Package daemon implements the ringlist page server: a gRPC service on a
// Unix socket that serves pages of the item store to remote pagers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/storage"
)

// Version is set at build time
var Version = "dev"

// Server serves pages of the item store over gRPC.
type Server struct {
	store storage.Store

	// Server state
	grpcServer *grpc.Server
	listener   net.Listener
	paths      *config.Paths
	socketPath string
	logger     *slog.Logger

	// Lifecycle
	startTime    time.Time
	lastActivity time.Time
	idleTimeout  time.Duration
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	// Metrics
	mu          sync.RWMutex
	pagesServed int64
}

// Compile-time check that Server implements PageServiceServer.
var _ PageServiceServer = (*Server)(nil)

// ServerConfig contains configuration options for the page server.
type ServerConfig struct {
	// Store is the storage backend (required)
	Store storage.Store

	// Paths is the path configuration (optional, uses defaults if nil)
	Paths *config.Paths

	// SocketPath overrides Paths.SocketFile (optional)
	SocketPath string

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// IdleTimeout is the duration after which the server exits if no page
	// was requested. Zero disables the idle shutdown.
	IdleTimeout time.Duration

	// ReloadFn is called on SIGHUP to reload configuration.
	// If nil, SIGHUP is ignored.
	ReloadFn ReloadFunc
}

// NewServer creates a new page server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = paths.SocketFile()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	return &Server{
		store:        cfg.Store,
		paths:        paths,
		socketPath:   socketPath,
		logger:       logger,
		startTime:    now,
		lastActivity: now,
		idleTimeout:  cfg.IdleTimeout,
		shutdownChan: make(chan struct{}),
	}, nil
}

// SocketPath returns the Unix socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start starts the gRPC server and blocks until ctx is cancelled, Shutdown
// is called or serving fails.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Clean up stale socket
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stale socket", "path", s.socketPath, "error", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Readable/writable by owner only
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.grpcServer = grpc.NewServer()
	RegisterPageServiceServer(s.grpcServer, s)

	if err := s.writePIDFile(); err != nil {
		listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	s.logger.Info("page server starting",
		"socket", s.socketPath,
		"pid", os.Getpid(),
		"version", Version,
	)

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.watchIdle(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("page server shutting down",
			"pages_served", s.PagesServed(),
			"uptime", time.Since(s.startTime).Round(time.Second),
		)

		close(s.shutdownChan)

		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}

		s.wg.Wait()

		if s.listener != nil {
			s.listener.Close()
		}

		s.cleanup()

		s.logger.Info("page server stopped")
	})
}

// Done is closed once Shutdown has begun.
func (s *Server) Done() <-chan struct{} {
	return s.shutdownChan
}

// FetchPage serves one page of the filtered item list.
func (s *Server) FetchPage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.touchActivity()

	req, err := DecodePageRequest(in)
	if err != nil {
		return nil, err
	}

	page, err := s.store.FetchPage(ctx, storage.ParseFilter(req.Query), req.PageNum, req.PageSize)
	if err != nil {
		s.logger.Error("failed to fetch page",
			"page", req.PageNum,
			"page_size", req.PageSize,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "fetch page: %v", err)
	}

	resp := PageResponse{Total: page.Total, Items: make([]PageItem, len(page.Items))}
	for i, it := range page.Items {
		resp.Items[i] = PageItem{ID: it.ItemID, Text: it.Text}
	}

	s.incrementPagesServed()
	s.logger.Debug("page served",
		"query", req.Query,
		"page", req.PageNum,
		"page_size", req.PageSize,
		"items", len(resp.Items),
		"total", resp.Total,
	)
	return resp.Encode()
}

// cleanup removes the socket and PID file.
func (s *Server) cleanup() {
	pidPath := s.paths.PIDFile()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove socket", "path", s.socketPath, "error", err)
	}

	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove PID file", "path", pidPath, "error", err)
	}
}

// writePIDFile writes the current process ID to the PID file.
func (s *Server) writePIDFile() error {
	pidPath := s.paths.PIDFile()
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}

// touchActivity updates the last activity timestamp.
func (s *Server) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// getLastActivity returns the last activity timestamp.
func (s *Server) getLastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Server) incrementPagesServed() {
	s.mu.Lock()
	s.pagesServed++
	s.mu.Unlock()
}

// PagesServed returns the number of pages served since start.
func (s *Server) PagesServed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagesServed
}

// watchIdle monitors for idle timeout and initiates shutdown.
func (s *Server) watchIdle(ctx context.Context) {
	defer s.wg.Done()

	interval := min(time.Minute, s.idleTimeout/2)
	if interval <= 0 {
		interval = s.idleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			since := time.Since(s.getLastActivity())
			if since > s.idleTimeout {
				s.logger.Info("idle timeout reached",
					"idle_duration", since,
					"timeout", s.idleTimeout,
				)
				go s.Shutdown()
				return
			}
		}
	}
}
