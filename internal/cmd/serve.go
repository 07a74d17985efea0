package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	"github.com/ecoguard/ecoguard/internal/core/security"
	errwrap "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server"
	"github.com/ecoguard/ecoguard/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// buildGate assembles the security gate from config and the optional rules file.
func buildGate(cfg *config.Config) (*security.Gate, error) {
	gateCfg := security.Config{
		AllowedOrigins:      cfg.Security.AllowedOrigins,
		BlockEmptyUserAgent: cfg.Security.BlockEmptyUserAgent,
	}
	if cfg.Security.RulesFile != "" {
		rules, err := security.LoadRules(cfg.Security.RulesFile)
		if err != nil {
			return nil, &config.ConfigurationError{Key: "security.rules_file", Err: err}
		}
		gateCfg = rules.Apply(gateCfg)
	}
	return security.NewGate(gateCfg), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the monitoring API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (logged; restart to apply limits)

On shutdown the sweeper stops, the HTTP server drains, the rate limit store
closes, the metrics exporter stops and logs are flushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, cfg.Logging.Profile)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend),
			zap.Int("rate_limit_max", cfg.RateLimit.Max),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		backend, err := openBackend(ctx, cfg)
		if err != nil {
			logger.Error("Failed to open rate limit store", zap.Error(err))
			return err
		}

		limiter, err := ratelimit.NewLimiter(backend.store, cfg.RateLimit.Policies())
		if err != nil {
			_ = backend.close()
			return err
		}

		gate, err := buildGate(cfg)
		if err != nil {
			_ = backend.close()
			return err
		}

		proxies, err := cfg.Server.ProxyPrefixes()
		if err != nil {
			_ = backend.close()
			return &config.ConfigurationError{Key: "server.trusted_proxies", Err: err}
		}

		keys := security.NewKeyRing(cfg.Security.APIKeys...)
		if keys.Len() == 0 {
			logger.Warn("No API keys configured; protected routes will reject every request")
		}

		sweeper := ratelimit.NewSweeper(limiter, cfg.RateLimit.SweepInterval)
		sweeper.Start(ctx)

		hm := handlers.InitHealthManager(versionInfo.Version)
		hm.RegisterChecker("ratelimit_store", handlers.CheckerFunc(backend.ping))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		srv, err := server.New(cfg.Server.Host, cfg.Server.Port, server.Deps{
			Limiter:        limiter,
			Gate:           gate,
			Keys:           keys,
			Admin:          backend.admin,
			TrustedProxies: proxies,
			MaxRPS:         cfg.Server.MaxRPS,
			Burst:          cfg.Server.Burst,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    cfg.Server.IdleTimeout,
		})
		if err != nil {
			sweeper.Stop()
			_ = backend.close()
			return err
		}

		metrics.SetServerStartTime(time.Now().Unix())

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: sweeper, HTTP server, store, metrics, logger.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Prometheus exporter stop failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := backend.close(); err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "rate limit store close failed")
			}
			logger.Info("Rate limit store closed", zap.String("backend", backend.name))
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			if _, err := loadConfig(); err != nil {
				logger.Error("Reloaded configuration is invalid", zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			logger.Info("Configuration reloaded; restart to apply rate limit and gate changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
