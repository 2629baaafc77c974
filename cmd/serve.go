package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phonewise/phonewise/internal/api"
	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/collaborator"
	"github.com/phonewise/phonewise/internal/config"
	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/orchestrator"
	"github.com/phonewise/phonewise/internal/phonetool"
	"github.com/phonewise/phonewise/internal/session"
	"github.com/phonewise/phonewise/internal/telemetry"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 5 * time.Minute // SSE streaming needs a long write window
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
	pruneInterval     = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLevel(cfg.LogLevel),
		JSON:  cfg.LogFormat == "json",
		File:  cfg.LogFile,
	})
	logger.Info("starting server", "version", AppVersion, "provider", cfg.Provider, "model", cfg.ModelName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled: cfg.TelemetryEnabled,
		Dir:     cfg.TelemetryDir,
		Version: AppVersion,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	store, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	logger.Info("catalog loaded", "phones", store.Len())

	tools, err := phonetool.NewRegistry(store, logger)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	collab, err := collaborator.NewClient(collaborator.ClientConfig{
		BaseURL: cfg.BaseURL(),
		APIKey:  cfg.APIKey(),
		Model:   cfg.ModelName,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	sessions := session.NewStore(cfg.HistoryPairs, logger)
	go pruneSessions(ctx, sessions, cfg.SessionTTL(), logger)

	orch := orchestrator.New(sessions, tools, store, collab, logger, orchestrator.Config{
		MaxRounds: cfg.MaxToolRounds,
		Timeout:   cfg.RequestTimeout(),
	})

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Orchestrator: orch,
		Telemetry:    tel,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateRPS:      cfg.RateRPS,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready", "addr", cfg.Addr, "api", "/api/*", "health", "/health")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pruneSessions evicts idle sessions on a fixed interval until ctx ends.
func pruneSessions(ctx context.Context, sessions *session.Store, ttl time.Duration, logger log.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.PruneIdle(ttl); n > 0 {
				logger.Debug("pruned idle sessions", "count", n)
			}
		}
	}
}
