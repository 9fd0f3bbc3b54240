package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/termhost/internal/api/http"
	"github.com/GriffinCanCode/termhost/internal/api/middleware"
	"github.com/GriffinCanCode/termhost/internal/api/ws"
	"github.com/GriffinCanCode/termhost/internal/domain/terminal"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/workspace"
	"github.com/GriffinCanCode/termhost/internal/providers/pty"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	host    *ws.Host
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewServer creates a server that spawns real shells. Terminal settings are
// re-read from the config file named by TERMHOST_CONFIG on every tab
// creation, so edits apply to new tabs without a restart.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	source := config.NewSource(os.Getenv(config.FileEnv), cfg, logger.Logger)
	settings := terminal.SettingsFunc(func() terminal.Settings {
		return TerminalSettings(source.Current().Terminal)
	})
	return newServer(cfg, logger, pty.NewBackend(logger.Logger), settings)
}

func newServer(cfg *config.Config, logger *logging.Logger, backend terminal.Backend, settings terminal.SettingsSource) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}

	logger.Info("Initializing terminal host",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Int("max_tabs", cfg.Terminal.MaxTabs),
	)

	metrics := monitoring.NewMetrics()

	if backend.IsAvailable() {
		logger.Info("Pseudo-terminal support available", zap.String("default_shell", pty.DefaultShell()))
	} else {
		logger.Warn("Pseudo-terminal support unavailable, tabs cannot be opened")
	}

	resolver := workspace.NewResolver(logger.Logger)
	host := ws.NewHost(backend, settings, logger.Logger).
		WithMetrics(metrics).
		WithWorkspace(resolver).
		WithOriginCheck(middleware.OriginChecker(cfg.Server.AllowedOrigins))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	if len(cfg.Server.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(middleware.CORSForOrigins(cfg.Server.AllowedOrigins)))
	}

	connect := []gin.HandlerFunc{host.HandleConnection}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Int("connections_per_second", cfg.RateLimit.ConnectionsPerSecond),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
		if cfg.RateLimit.ConnectionsPerSecond > 0 {
			connect = append([]gin.HandlerFunc{middleware.GlobalRateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimit.ConnectionsPerSecond,
				Burst:             cfg.RateLimit.ConnectionBurst,
			})}, connect...)
		}
	}

	handlers := api.NewHandlers(backend, host, metrics).
		WithWorkspaceRoots(func() []string {
			return resolver.Roots(settings.Settings().WorkspaceRoots)
		})

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/views", host.HandleViews)
	router.GET("/terminal", connect...)

	router.GET("/metrics", gin.WrapH(gzhttp.GzipHandler(metrics.Handler())))
	router.GET("/metrics/json", handlers.Stats)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		http:    httpServer,
		host:    host,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// TerminalSettings maps the terminal section of the config file to the
// settings read by each session registry.
func TerminalSettings(t config.TerminalConfig) terminal.Settings {
	return terminal.Settings{
		Shell:           t.Shell,
		ShellArgs:       t.ShellArgs,
		Cols:            t.Cols,
		Rows:            t.Rows,
		MaxSessions:     t.MaxTabs,
		ScrollbackBytes: t.ScrollbackBytes,
		KillGrace:       t.KillGrace.Std(),
		Env:             t.Env,
		WorkspaceRoots:  t.WorkspaceRoots,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown closes every view, killing all sessions, then stops the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.host.Shutdown()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.logger.Sync()
	return nil
}
