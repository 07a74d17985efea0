package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

// Logging profiles accepted by logging.profile.
const (
	ProfileSimple     = "SIMPLE"
	ProfileStructured = "STRUCTURED"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used for HTTP server (STRUCTURED profile unless configured otherwise)
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// InitServerLogger initializes the server logger. An empty profile means
// STRUCTURED: JSON lines on stderr with request correlation.
func InitServerLogger(serviceName, logLevel, profile string) {
	logger, err := logging.New(serverLoggerConfig(serviceName, logLevel, profile))
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

func serverLoggerConfig(serviceName, logLevel, profile string) *logging.LoggerConfig {
	environment := strings.TrimSpace(os.Getenv("ECOGUARD_ENV"))
	if environment == "" {
		environment = "production"
	}

	config := &logging.LoggerConfig{
		DefaultLevel:     parseLogLevel(logLevel),
		Service:          serviceName,
		Environment:      environment,
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	if strings.EqualFold(profile, ProfileSimple) {
		config.Profile = logging.ProfileSimple
		config.Sinks = []logging.SinkConfig{consoleSink("console")}
		return config
	}

	config.Profile = logging.ProfileStructured
	config.Middleware = []logging.MiddlewareConfig{
		{
			Name:    "correlation",
			Enabled: true,
			Order:   100,
			Config:  make(map[string]any),
		},
	}
	config.Sinks = []logging.SinkConfig{consoleSink("json")}
	return config
}

func consoleSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:   "console",
		Format: format,
		Console: &logging.ConsoleSinkConfig{
			Stream:   "stderr",
			Colorize: false,
		},
	}
}

// parseLogLevel converts string log level to logging severity string
func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// Used for logger initialization failures before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	if !ok {
		os.Exit(int(exitCode))
	}

	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
