package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")
		log.Info("✅ Logger initialized")

		cfg, err := loadConfig()
		if err != nil {
			log.Error("❌ FAIL: Configuration invalid")
			ExitWithCode(log, ExitCodeFor(err), "Configuration invalid", err)
			return
		}
		if _, err := buildGate(cfg); err != nil {
			log.Error("❌ FAIL: Security rules unreadable")
			ExitWithCode(log, ExitCodeFor(err), "Security rules unreadable", err)
			return
		}
		log.Info("✅ Configuration valid", zap.String("rate_limit_backend", cfg.RateLimit.Backend))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
