package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/core/security"
	"github.com/ecoguard/ecoguard/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on configuration, the rate limit backend and the security rules.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("=== ecoguard doctor ===")
		log.Info("")

		allChecks := true
		totalChecks := 6

		goVersion := runtime.Version()
		log.Info(fmt.Sprintf("[1/%d] Checking Go runtime... ✅ %s %s/%s", totalChecks, goVersion, runtime.GOOS, runtime.GOARCH),
			zap.String("go_version", goVersion))

		version := crucible.GetVersion()
		if version.Crucible != "" && version.Gofulmen != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ✅ v%s / v%s", totalChecks, version.Gofulmen, version.Crucible))
		} else {
			log.Error(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ❌ version metadata unavailable", totalChecks))
			allChecks = false
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Error(fmt.Sprintf("[3/%d] Checking configuration... ❌ invalid", totalChecks), zap.Error(cfgErr))
			allChecks = false
		} else {
			source := viperConfigSource()
			log.Info(fmt.Sprintf("[3/%d] Checking configuration... ✅ %s", totalChecks, source))
		}

		if cfgErr == nil {
			if err := checkBackend(cmd.Context(), cfg); err != nil {
				log.Error(fmt.Sprintf("[4/%d] Checking rate limit backend... ❌ %s", totalChecks, cfg.RateLimit.Backend), zap.Error(err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("[4/%d] Checking rate limit backend... ✅ %s", totalChecks, cfg.RateLimit.Backend))
			}

			if cfg.Security.RulesFile == "" {
				log.Info(fmt.Sprintf("[5/%d] Checking security rules... ✅ built-in defaults", totalChecks))
			} else if _, err := security.LoadRules(cfg.Security.RulesFile); err != nil {
				log.Error(fmt.Sprintf("[5/%d] Checking security rules... ❌ %s", totalChecks, cfg.Security.RulesFile), zap.Error(err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("[5/%d] Checking security rules... ✅ %s", totalChecks, cfg.Security.RulesFile))
			}

			if n := len(cfg.Security.APIKeys); n > 0 {
				log.Info(fmt.Sprintf("[6/%d] Checking API keys... ✅ %d configured", totalChecks, n))
			} else {
				log.Warn(fmt.Sprintf("[6/%d] Checking API keys... ⚠️  none configured (set %s or %s)", totalChecks, config.EnvAPIKey1, config.EnvAPIKey2))
			}
		} else {
			log.Warn(fmt.Sprintf("[4-6/%d] Remaining checks skipped (config not loaded)", totalChecks))
		}

		log.Info("")
		if allChecks {
			log.Info("✅ All checks passed!")
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		observability.CLILogger.Info("Config is valid", zap.String("source", viperConfigSource()))
		return nil
	},
}

var doctorInitForce bool

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

const defaultConfigYAML = `server:
  host: localhost
  port: 8080
  max_rps: 0
  # Peers allowed to set X-Forwarded-For / X-Real-IP, e.g. ["10.0.0.0/8"].
  trusted_proxies: []
logging:
  level: info
  profile: STRUCTURED
metrics:
  enabled: true
  port: 9090
rate_limit:
  backend: memory
  max: 100
  window: 15m
  sweep_interval: 5m
  routes: {}
security:
  allowed_origins: ["*"]
  api_keys: []
  rules_file: ""
  block_empty_user_agent: false
`

func checkBackend(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close() // nolint:errcheck // best-effort cleanup
	return b.ping(ctx)
}

func viperConfigSource() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "defaults and environment"
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorValidateCmd)
	doctorCmd.AddCommand(doctorInitCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
}
