package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"deployhook/internal/history"
	"deployhook/internal/security"
	"deployhook/internal/server"
	"deployhook/internal/service"
	"deployhook/internal/webhook"
	"deployhook/pkg/cmdutil"
	"deployhook/pkg/fileutil"

	"github.com/spf13/cobra"
)

const configFileName = "services.yaml"

var (
	configFile       string
	logFile          string
	logLevel         string
	dbPath           string
	host             string
	port             int
	secretEnv        string
	allowEmptySecret bool
	rateLimit        int
	trustProxy       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server to receive GitHub push webhooks.

Each service in services.yaml is exposed at POST /webhook/<service>. Without a
config file the built-in "gatus" service is served.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("DEPLOYHOOK_CONFIG_FILE", ""), "Path to services.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("DEPLOYHOOK_LOG_FILE", "./deployhook.log"), "Path to log file (empty logs to stdout only)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", getEnvOrDefault("DEPLOYHOOK_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&dbPath, "db", getEnvOrDefault("DEPLOYHOOK_DB_PATH", ""), "Path to SQLite audit log (empty disables it)")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("DEPLOYHOOK_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("DEPLOYHOOK_PORT", 5000), "Port to listen on")
	serveCmd.Flags().StringVar(&secretEnv, "secret-env", getEnvOrDefault("DEPLOYHOOK_SECRET_ENV", defaultSecretEnv), "Environment variable holding the webhook secret")
	serveCmd.Flags().BoolVar(&allowEmptySecret, "allow-empty-secret", getEnvBool("DEPLOYHOOK_ALLOW_EMPTY_SECRET"), "Start even if the webhook secret is empty")
	serveCmd.Flags().IntVar(&rateLimit, "rate-limit", getEnvOrDefaultInt("DEPLOYHOOK_RATE_LIMIT", server.DefaultWebhookRateLimit), "Webhook requests per minute per client IP (0 disables)")
	serveCmd.Flags().BoolVar(&trustProxy, "trust-proxy", getEnvBool("DEPLOYHOOK_TRUST_PROXY"), "Take client IPs from X-Forwarded-For set by a reverse proxy")
}

func runServe(cmd *cobra.Command, args []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}

	logger, logFileHandle, err := setupLogging(logFile, level)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFileHandle != nil {
		defer logFileHandle.Close()
	}

	logger.Info("Starting deployhook", "version", version)

	secret := os.Getenv(secretEnv)
	if secret == "" {
		if !allowEmptySecret {
			logger.Error("Webhook secret is empty", "env", secretEnv)
			return fmt.Errorf("%s is not set; refusing to start (use --allow-empty-secret to override)", secretEnv)
		}
		logger.Warn("Webhook secret is empty, signatures are computed with an empty key", "env", secretEnv)
	} else if err := security.ValidateSecret(secret); err != nil {
		logger.Warn("Weak webhook secret", "env", secretEnv, "reason", err.Error())
	}

	services, err := loadServices(configFile, logger)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	for _, svc := range services {
		logger.Info("Service configured",
			"service", svc.Name,
			"command", cmdutil.FormatCommand(svc.Command()),
			"branch", svc.Branch,
			"timeout", svc.Timeout.String(),
			"exclusive", svc.Exclusive)
		for _, warning := range service.CheckServiceFiles(svc) {
			logger.Warn("Service script problem", "service", svc.Name, "problem", warning)
		}
	}

	registry := service.NewRegistry(services)

	if !isLoopback(host) {
		logger.Warn("Binding to a non-loopback address, the gateway is reachable from the network", "host", host)
	}

	var hist *history.History
	if dbPath != "" {
		logger.Info("Initializing audit log", "db", dbPath)
		hist, err = history.NewHistory(dbPath)
		if err != nil {
			logger.Error("Failed to initialize audit log", "error", err)
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		defer hist.Close()
	}

	srv := server.NewServer(registry, webhook.NewVerifier(secret), hist, logger)
	srv.SecretEnv = secretEnv
	srv.RateLimit = rateLimit
	srv.TrustProxy = trustProxy

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, host, port); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// loadServices reads path, or searches the default locations when path is
// empty. With no config file at all the built-in service is used.
func loadServices(path string, logger *slog.Logger) (map[string]*service.Service, error) {
	if path == "" {
		searchPaths := fileutil.DefaultConfigPaths(configFileName)
		path = fileutil.SearchPathsOptional(searchPaths)
		if path == "" {
			logger.Warn("No configuration file found, using built-in service",
				"searched", searchPaths,
				"service", service.DefaultServiceName)
			return service.DefaultServices(), nil
		}
	}

	logger.Info("Loading configuration", "config", path)
	_, services, err := service.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return services, nil
}

// setupLogging configures slog for JSON output on stdout and, if logPath is
// set, an append-only log file. The caller must close the returned file.
func setupLogging(logPath string, level slog.Level) (*slog.Logger, *os.File, error) {
	var out io.Writer = os.Stdout
	var file *os.File

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), security.PermDirectory); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		var err error
		file, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, security.PermLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), file, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (use debug, info, warn or error)", s)
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
