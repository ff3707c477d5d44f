package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onboardly/onboardly/internal/api"
	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/drive"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/metrics"
	"github.com/onboardly/onboardly/internal/platform"
	"github.com/onboardly/onboardly/internal/provision"
	"github.com/onboardly/onboardly/internal/refresh"
	"github.com/onboardly/onboardly/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the Onboardly server",
	Long: `Start the Onboardly HTTP server.

The server exposes the provisioning endpoint with its SSE progress
stream, the OAuth callback and token endpoints, and runs the background
token refresh scheduler.

Example:
  onboardly serve --config config.yaml --db ./data/onboardly.db`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "1.3", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Secrets referenced from config via ${ENV} substitution may live in .env.
	_ = godotenv.Load()

	if globalFlags.Verbose {
		log.Println("Starting Onboardly server...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)))

	// Log level follows the config file; other settings need a restart.
	loader.SetOnChange(func(updated *config.Config) {
		logger.SetLevel(logging.LogLevel(updated.Server.LogLevel))
		logger.Info("configuration reloaded", "path", globalFlags.Config)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer loader.StopWatcher()

	sqliteStore, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite store: %w", err)
	}

	if globalFlags.Verbose {
		log.Printf("Database initialized at: %s", globalFlags.DBPath)
	}

	m := metrics.NewMetrics("onboardly")
	platformClient := platform.NewHTTPClient(cfg.Platform)
	driveClient := drive.NewHTTPClient(cfg.Storage)

	workflow := provision.NewWorkflow(sqliteStore, platformClient, driveClient, *cfg, logger, m)
	scheduler := refresh.NewScheduler(sqliteStore, platformClient, cfg.Scheduler.Interval, cfg.Scheduler.Grace, logger, m)

	server := api.NewServer(*cfg, sqliteStore, workflow, platformClient, scheduler, logger, m)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	signalCh := api.SetupSignalHandler()
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveFlags.Timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
