package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server/handlers"
	servermw "github.com/ecoguard/ecoguard/internal/server/middleware"
)

// AdminTokenEnv enables POST /admin/signal when set.
const AdminTokenEnv = config.EnvPrefix + "_ADMIN_TOKEN"

// registerRoutes mounts probes, version, metrics and the API.
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminEndpoint()
	s.registerAPI()
}

// registerAPI mounts the public API. Every route is screened by the gate
// before it counts against the caller's rate limit, so preflights and
// rejected bots never consume quota.
func (s *Server) registerAPI() {
	deps := s.deps

	s.router.Route("/api", func(r chi.Router) {
		r.Use(servermw.Throttle(deps.MaxRPS, deps.Burst))
		r.Use(servermw.SecureAPIRoute(deps.Gate))
		r.Use(servermw.RateLimit(deps.Limiter))

		r.Post("/sensors/readings", deps.Sensors.Create)
		r.Get("/sensors/readings", deps.Sensors.List)
		r.Post("/credentials/check", handlers.CredentialCheckHandler)

		r.Group(func(r chi.Router) {
			r.Use(servermw.RequireAPIKey(deps.Keys))

			r.Post("/alerts", deps.Alerts.Create)
			r.Get("/alerts", deps.Alerts.List)

			if deps.Admin != nil {
				admin := handlers.NewRateLimitAdmin(deps.Admin)
				r.Get("/ratelimit/records", admin.List)
				r.Delete("/ratelimit/records", admin.Reset)
			}
		})
	})
}

// Signal endpoint limits, per minute and burst.
const (
	signalRatePerMinute = 10
	signalBurst         = 5
)

// registerAdminEndpoint mounts POST /admin/signal when AdminTokenEnv is set.
// It lets operators trigger reloads and shutdowns over HTTP with a bearer token.
func (s *Server) registerAdminEndpoint() {
	token := os.Getenv(AdminTokenEnv)
	log := observability.ServerLogger
	if token == "" {
		if log != nil {
			log.Debug("Admin signal endpoint disabled", zap.String("env", AdminTokenEnv))
		}
		return
	}

	s.router.Post("/admin/signal", signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: signalRatePerMinute,
		RateBurst: signalBurst,
	}).ServeHTTP)

	if log != nil {
		log.Warn("Admin signal endpoint enabled; keep it off the public internet",
			zap.String("path", "/admin/signal"),
			zap.Int("rate_per_minute", signalRatePerMinute),
			zap.Int("burst", signalBurst))
	}
}
