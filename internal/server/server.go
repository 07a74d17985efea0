package server

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	"github.com/ecoguard/ecoguard/internal/core/security"
	apperrors "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server/handlers"
	servermw "github.com/ecoguard/ecoguard/internal/server/middleware"
)

// Default HTTP timeouts, used when Deps leaves them zero.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
)

// Deps carries the components the API routes are built from. Limiter and Gate
// are required; the rest fall back to in-process defaults.
type Deps struct {
	Limiter *ratelimit.Limiter
	Gate    *security.Gate
	Keys    *security.KeyRing

	// Admin backs the rate limit record routes. Nil disables them.
	Admin ratelimit.Admin

	Sensors *handlers.SensorHandler
	Alerts  *handlers.AlertHandler

	// TrustedProxies are the peers whose forwarding headers name the client.
	// Empty means every request is keyed on its socket address.
	TrustedProxies []netip.Prefix

	// MaxRPS and Burst configure the global API throttle. Zero MaxRPS disables it.
	MaxRPS float64
	Burst  int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (d *Deps) withDefaults() error {
	if d.Limiter == nil {
		return fmt.Errorf("server: rate limiter is required")
	}
	if d.Gate == nil {
		return fmt.Errorf("server: security gate is required")
	}
	if d.Keys == nil {
		d.Keys = security.NewKeyRing()
	}
	if d.Sensors == nil {
		d.Sensors = handlers.NewSensorHandler(handlers.DefaultReadingCapacity)
	}
	if d.Alerts == nil {
		d.Alerts = handlers.NewAlertHandler(handlers.DefaultAlertCapacity)
	}
	if d.ReadTimeout <= 0 {
		d.ReadTimeout = DefaultReadTimeout
	}
	if d.WriteTimeout <= 0 {
		d.WriteTimeout = DefaultWriteTimeout
	}
	if d.IdleTimeout <= 0 {
		d.IdleTimeout = DefaultIdleTimeout
	}
	return nil
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	deps   Deps
	host   string
	port   int
}

// New creates a new HTTP server instance
func New(host string, port int, deps Deps) (*Server, error) {
	if err := deps.withDefaults(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(servermw.TrustedRealIP(deps.TrustedProxies))

	// RequestID → Metrics → Recovery → security headers
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)
	r.Use(servermw.SecurityHeaders(deps.Gate))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router: r,
		deps:   deps,
		host:   host,
		port:   port,
	}

	// Handlers and middleware share the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)
	servermw.SetErrorResponder(apperrors.RespondWithEnvelope)

	s.registerRoutes()

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.deps.ReadTimeout,
		WriteTimeout: s.deps.WriteTimeout,
		IdleTimeout:  s.deps.IdleTimeout,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// HandleError writes err as the standard error envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
