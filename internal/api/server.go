package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
	"github.com/norris81b/webCamCtrl/internal/control"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/config"
	"github.com/norris81b/webCamCtrl/internal/infrastructure/logging"
	"github.com/norris81b/webCamCtrl/internal/preset"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Camera is the processor surface the API drives.
type Camera interface {
	Submit(name string, args []byte) (string, error)
	Stats() rs232.ProcessorStats
	HealthCheck(ctx context.Context) error
}

// Controller runs the legacy grammar and the preset and scan operations.
type Controller interface {
	HandleJSON(ctx context.Context, raw string) (control.Result, error)
	MovePreset(n int) error
	StorePreset(ctx context.Context, n int, label *string) (*preset.Preset, error)
	LabelPreset(ctx context.Context, n int, label string) (*preset.Preset, error)
	SetScanning(enabled bool) error
	Scanning() bool
	Presets(ctx context.Context) ([]preset.Preset, error)
}

// ScanStatusSource reports scanner detail. Satisfied by *preset.Scanner.
type ScanStatusSource interface {
	Status() preset.ScanStatus
}

// HealthChecker is implemented by every component reported on
// /api/v1/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Camera  Camera
	Control Controller

	// Scanner adds position and timing detail to /api/v1/scan. Optional.
	Scanner ScanStatusSource

	// Checks are extra components for /api/v1/health, keyed by name
	// ("database", "mqtt"). Nil entries are skipped.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	camera  Camera
	control Controller
	scanner ScanStatusSource
	checks  map[string]HealthChecker
	version string

	hub       *Hub
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Camera == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if deps.Control == nil {
		return nil, fmt.Errorf("controller is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		camera:    deps.Camera,
		control:   deps.Control,
		scanner:   deps.Scanner,
		checks:    deps.Checks,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. Binding
// errors (port in use) are returned directly. Stop the server with Close.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	server := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	server, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// BroadcastResponse sends a classified response to WebSocket subscribers.
// It has the rs232.ResponseListener signature.
func (s *Server) BroadcastResponse(resp rs232.Response) {
	s.hub.Broadcast(ChannelResponse, rs232.NewResponseMessage(resp))
}

// BroadcastEvent sends a control event to WebSocket subscribers. It has
// the control.Options.OnEvent signature.
func (s *Server) BroadcastEvent(kind string, fields map[string]any) {
	s.hub.Broadcast(ChannelEvent, map[string]any{
		"kind":   kind,
		"fields": fields,
	})
}
