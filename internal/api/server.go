package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reznoir/netward/internal/auth"
	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/infrastructure/config"
	"github.com/reznoir/netward/internal/infrastructure/logging"
	"github.com/reznoir/netward/internal/plan"
	"github.com/reznoir/netward/internal/plant"
	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
	syncengine "github.com/reznoir/netward/internal/sync"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Subscribers subscriber.Repository
	Devices     device.Repository
	Packages    plan.Repository
	Plant       plant.Repository
	Users       auth.UserRepository
	Engine      *syncengine.Engine
	Dialer      routeros.Dialer
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Netward.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	subscribers subscriber.Repository
	devices     device.Repository
	packages    plan.Repository
	plant       plant.Repository
	users       auth.UserRepository
	engine      *syncengine.Engine
	dialer      routeros.Dialer
	version     string
	server      *http.Server
	hub         *Hub
	tickets     *ticketStore
	startedAt   time.Time
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("sync engine is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		subscribers: deps.Subscribers,
		devices:     deps.Devices,
		packages:    deps.Packages,
		plant:       deps.Plant,
		users:       deps.Users,
		engine:      deps.Engine,
		dialer:      deps.Dialer,
		version:     deps.Version,
		tickets:     newTicketStore(),
	}

	// Use an externally-provided hub if available (needed when the sync
	// engine also requires the hub for WebSocket broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and ticket cleanup,
// and launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the server's WebSocket hub, creating it if necessary.
// Exposed so the sync engine can be wired to broadcast status deltas.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
