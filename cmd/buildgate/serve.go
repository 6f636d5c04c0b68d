package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/internal/security"
	"buildgate/internal/server"
	"buildgate/internal/sources"

	"github.com/spf13/cobra"
)

// ShutdownTimeout bounds the graceful shutdown on SIGINT/SIGTERM
const ShutdownTimeout = 15 * time.Second

var (
	logFile  string
	host     string
	port     int
	testMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server to receive GitHub webhook requests.

The server records build reports from status and check_run events, gates
pushes and pull requests to each project's default branch, and publishes its
decisions as commit statuses when the project enables publish_status.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("BUILDGATE_LOG_FILE", "./buildgate.log"), "Path to log file")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("BUILDGATE_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("BUILDGATE_PORT", 5000), "Port to listen on")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("BUILDGATE_TEST_MODE") == "1", "Enable test mode (no history database, no rate limits)")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigFile()
	if err != nil {
		return err
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting buildgate", "version", version)

	// Load configuration
	logger.Info("Loading configuration", "config", path)
	if err := security.ValidateSecurePermissions(path); err != nil {
		logger.Warn("Configuration file holds webhook secrets and should not be world-accessible",
			"config", path,
			"recommended_mode", fmt.Sprintf("%04o", security.PermConfigFile),
			"error", err)
	}

	_, projects, err := project.LoadConfig(path)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Configuration validated successfully", "count", len(projects))

	// Warn if no projects are configured
	if len(projects) == 0 {
		logger.Warn("No projects configured in config file", "config", path)
		logger.Warn("The server will start but won't gate any repository until projects are added")
	}

	for name, proj := range projects {
		if security.IsWeakSecret(proj.Secret) {
			logger.Warn("Project webhook secret looks weak, consider 'buildgate secret'", "project", name)
		}
	}

	// Create project registry
	registry := project.NewRegistry(projects)

	// Initialize history database
	var hist *history.History
	if !testMode {
		if err := ensureParentDir(dbPath); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}

		logger.Info("Initializing history database", "db", dbPath)
		hist, err = history.NewHistory(dbPath)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		if err := os.Chmod(dbPath, security.PermDBFile); err != nil {
			logger.Warn("Failed to restrict database permissions", "db", dbPath, "error", err)
		}
	}

	// Create and start server
	srv := server.NewServer(registry, hist, sources.NewConnector(hist), logger, testMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "host", host, "port", port)
		errCh <- srv.Start(host, port)
	}()

	select {
	case err := <-errCh:
		if hist != nil {
			hist.Close()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
		return err
	}
	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	if err := ensureParentDir(logPath); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := security.OpenSecureAppend(logPath, security.PermLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), file, nil
}

// ensureParentDir creates the directory holding path. The working directory
// is left alone.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return security.CreateSecureDir(dir, security.PermDirectory)
}
