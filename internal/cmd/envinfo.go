package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, effective configuration and version information. Secrets are reported as set or unset only.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()

		log.Info("=== ecoguard Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Server:")
		log.Info("  Host:           "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Port:           %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info(fmt.Sprintf("  Max RPS:        %g (burst %d)", cfg.Server.MaxRPS, cfg.Server.Burst))
		log.Info(fmt.Sprintf("  Proxies:        %v", cfg.Server.TrustedProxies))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Rate Limiting:")
		log.Info("  Backend:        "+cfg.RateLimit.Backend, zap.String("backend", cfg.RateLimit.Backend))
		log.Info(fmt.Sprintf("  Default:        %d per %s", cfg.RateLimit.Max, cfg.RateLimit.Window))
		log.Info("  Sweep Interval: " + cfg.RateLimit.SweepInterval.String())
		prefixes := make([]string, 0, len(cfg.RateLimit.Routes))
		for prefix := range cfg.RateLimit.Routes {
			prefixes = append(prefixes, prefix)
		}
		sort.Strings(prefixes)
		for _, prefix := range prefixes {
			limit := cfg.RateLimit.Routes[prefix]
			log.Info(fmt.Sprintf("  Route %s: %d per %s", prefix, limit.Max, limit.Window))
		}
		switch cfg.RateLimit.Backend {
		case config.BackendLibsql:
			if strings.TrimSpace(cfg.Store.URL) != "" {
				log.Info("  DB URL:         " + cfg.Store.URL)
			} else {
				log.Info("  DB Path:        " + cfg.Store.Path)
			}
		case config.BackendRedis:
			log.Info("  Redis:          "+cfg.Redis.Addr, zap.String("redis_addr", cfg.Redis.Addr))
			log.Info("  Redis Prefix:   " + cfg.Redis.Prefix)
		}
		log.Info("")

		log.Info("Security:")
		log.Info("  Allowed Origins: " + strings.Join(cfg.Security.AllowedOrigins, ", "))
		log.Info(fmt.Sprintf("  API Keys:        %d configured", len(cfg.Security.APIKeys)))
		rules := cfg.Security.RulesFile
		if rules == "" {
			rules = "(built-in defaults)"
		}
		log.Info("  Rules File:      " + rules)
		log.Info(fmt.Sprintf("  Block Empty UA:  %t", cfg.Security.BlockEmptyUserAgent))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
